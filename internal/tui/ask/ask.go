// Package ask provides the question screen shown over the player while a
// question is asked and answered.
package ask

import (
	"context"
	"strings"

	"github.com/alkime/podbook/internal/tui/components/phases"
	"github.com/alkime/podbook/internal/tui/msg"
	"github.com/alkime/podbook/internal/tui/style"
	tea "github.com/charmbracelet/bubbletea"
)

// Controls is what the question screen drives.
type Controls interface {
	Ask(ctx context.Context, text string) error
	CancelQuestion(ctx context.Context) error
	Listen(ctx context.Context) (string, error)
	StopListening()
	CanListen() bool
}

type shared struct {
	ctx      context.Context
	controls Controls
}

// cancel abandons the question and closes the screen either way.
func (s *shared) cancel() tea.Cmd {
	return tea.Sequence(
		func() tea.Msg { return msg.Result(s.controls.CancelQuestion(s.ctx)) },
		func() tea.Msg { return msg.QuestionClosedMsg{} },
	)
}

// Model steps from composing the question to waiting on its answer.
type Model struct {
	phases   phases.Model
	question string
	skip     bool
}

// New creates the screen. Questions asked elsewhere, such as over the
// remote API, start at the answering step.
func New(ctx context.Context, controls Controls, alreadyAsked bool) Model {
	s := &shared{ctx: ctx, controls: controls}

	return Model{
		phases: phases.New([]phases.Phase{
			phases.NewPhase("Ask", newComposePhase(s)),
			phases.NewPhase("Answer", newAnsweringPhase(s)),
		}),
		skip: alreadyAsked,
	}
}

func (m Model) Init() tea.Cmd {
	if m.skip {
		return tea.Batch(m.phases.Init(), phases.NextPhaseCmd)
	}

	return m.phases.Init()
}

func (m Model) Update(teaMsg tea.Msg) (Model, tea.Cmd) {
	if sm, ok := teaMsg.(msg.QuestionSubmittedMsg); ok {
		m.question = sm.Text
	}

	updated, cmd := m.phases.Update(teaMsg)
	m.phases = updated.(phases.Model) //nolint:forcetypeassert // phases.Model always returns phases.Model

	return m, cmd
}

func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.phases.Steps())
	sb.WriteString("\n\n")
	if m.question != "" {
		sb.WriteString(style.Label.Render("Q: "))
		sb.WriteString(m.question)
		sb.WriteString("\n\n")
	}
	sb.WriteString(m.phases.View())

	return sb.String()
}

// Step returns the name of the current step.
func (m Model) Step() string {
	return m.phases.CurrentPhaseName()
}
