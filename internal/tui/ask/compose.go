package ask

import (
	"errors"
	"strings"

	"github.com/alkime/podbook/internal/question"
	"github.com/alkime/podbook/internal/tui/components/phases"
	"github.com/alkime/podbook/internal/tui/msg"
	"github.com/alkime/podbook/internal/tui/style"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// composePhase takes the question as text or speech.
type composePhase struct {
	shared    *shared
	keys      KeyMap
	input     textinput.Model
	listening bool
	sending   bool
	err       error
}

func newComposePhase(s *shared) *composePhase {
	ti := textinput.New()
	ti.Placeholder = "What did they just say about..."
	ti.CharLimit = 500
	ti.Width = 60

	return &composePhase{
		shared: s,
		keys:   DefaultKeyMap(),
		input:  ti,
	}
}

func (cp *composePhase) Init() tea.Cmd {
	return cp.input.Focus()
}

func (cp *composePhase) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch teaMsg := teaMsg.(type) {
	case msg.HeardMsg:
		cp.listening = false
		if teaMsg.Err != nil {
			cp.err = heardError(teaMsg.Err)
			return cp, nil
		}
		cp.input.SetValue(teaMsg.Text)
		return cp, cp.submit()

	case msg.QuestionSubmittedMsg:
		return cp, phases.NextPhaseCmd

	case msg.ErrMsg:
		cp.sending = false
		cp.err = teaMsg.Err
		return cp, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(teaMsg, cp.keys.Cancel):
			if cp.listening {
				cp.shared.controls.StopListening()
			}
			return cp, cp.shared.cancel()

		case cp.listening || cp.sending:
			return cp, nil

		case key.Matches(teaMsg, cp.keys.Submit):
			return cp, cp.submit()

		case key.Matches(teaMsg, cp.keys.Speak) && cp.shared.controls.CanListen():
			cp.listening = true
			cp.err = nil
			return cp, cp.listen()
		}
	}

	var cmd tea.Cmd
	cp.input, cmd = cp.input.Update(teaMsg)

	return cp, cmd
}

func (cp *composePhase) submit() tea.Cmd {
	text := strings.TrimSpace(cp.input.Value())
	if text == "" {
		return nil
	}

	cp.sending = true
	cp.err = nil
	s := cp.shared

	return func() tea.Msg {
		if err := s.controls.Ask(s.ctx, text); err != nil {
			return msg.ErrMsg{Err: err}
		}
		return msg.QuestionSubmittedMsg{Text: text}
	}
}

func (cp *composePhase) listen() tea.Cmd {
	s := cp.shared

	return func() tea.Msg {
		text, err := s.controls.Listen(s.ctx)
		return msg.HeardMsg{Text: text, Err: err}
	}
}

func (cp *composePhase) View() string {
	var sb strings.Builder

	sb.WriteString(style.Title.Render("Ask about this episode"))
	sb.WriteString("\n")
	sb.WriteString(style.Subtitle.Render("Playback is paused"))
	sb.WriteString("\n\n")

	switch {
	case cp.listening:
		sb.WriteString(style.Warning.Render("● Listening... stop talking to send"))
	case cp.sending:
		sb.WriteString(style.Muted.Render("Sending: " + cp.input.Value()))
	default:
		sb.WriteString(cp.input.View())
	}
	sb.WriteString("\n\n")

	if cp.err != nil {
		sb.WriteString(style.Error.Render("Error: " + cp.err.Error()))
		sb.WriteString("\n\n")
	}

	sb.WriteString(renderKeyHelp(cp.keys.Submit, "  "))
	if cp.shared.controls.CanListen() {
		sb.WriteString(renderKeyHelp(cp.keys.Speak, "  "))
	}
	sb.WriteString(renderKeyHelp(cp.keys.Cancel))

	return sb.String()
}

func heardError(err error) error {
	switch {
	case errors.Is(err, question.ErrNoSpeech):
		return errors.New("didn't catch that, try again or type it")
	default:
		return err
	}
}

func renderKeyHelp(b key.Binding, suffix ...string) string {
	return style.Help.Render("[") + style.Key.Render(b.Help().Key) +
		style.Help.Render("] ") + style.Help.Render(b.Help().Desc) +
		strings.Join(suffix, "")
}
