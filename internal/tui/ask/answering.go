package ask

import (
	"github.com/alkime/podbook/internal/interjection"
	"github.com/alkime/podbook/internal/tui/components/labeledspinner"
	"github.com/alkime/podbook/internal/tui/msg"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// answeringPhase waits for the answer and stays up while it plays.
type answeringPhase struct {
	shared  *shared
	keys    KeyMap
	spinner labeledspinner.Model
}

func newAnsweringPhase(s *shared) *answeringPhase {
	return &answeringPhase{
		shared: s,
		keys:   DefaultKeyMap(),
		spinner: labeledspinner.New(
			spinner.Dot,
			"Thinking about your question...",
			"The episode picks up where it left off once the answer ends",
			"[esc] never mind",
		),
	}
}

func (ap *answeringPhase) Init() tea.Cmd {
	return ap.spinner.Init()
}

func (ap *answeringPhase) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch teaMsg := teaMsg.(type) {
	case msg.InterjectionMsg:
		if teaMsg.Event.Kind != interjection.AnswerPlaying {
			return ap, nil
		}
		var cmd tea.Cmd
		ap.spinner, cmd = ap.spinner.Relabel(
			spinner.Meter,
			"Answering",
			"Playing the answer",
			"[esc] skip the answer",
		)
		return ap, cmd

	case tea.KeyMsg:
		if key.Matches(teaMsg, ap.keys.Cancel) {
			return ap, ap.shared.cancel()
		}
		return ap, nil
	}

	var cmd tea.Cmd
	ap.spinner, cmd = ap.spinner.Update(teaMsg)

	return ap, cmd
}

func (ap *answeringPhase) View() string {
	return ap.spinner.View()
}
