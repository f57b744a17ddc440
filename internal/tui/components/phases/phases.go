// Package phases steps through a fixed sequence of sub-models, such as the
// compose and answer steps of a question.
package phases

import (
	"strings"

	"github.com/alkime/podbook/internal/tui/style"
	tea "github.com/charmbracelet/bubbletea"
)

// NextPhaseMsg advances the container to the next phase.
type NextPhaseMsg struct{}

// PrevPhaseMsg moves the container back one phase.
type PrevPhaseMsg struct{}

func NextPhaseCmd() tea.Msg { return NextPhaseMsg{} }

func PrevPhaseCmd() tea.Msg { return PrevPhaseMsg{} }

// Phase is a named step.
type Phase struct {
	Name string
	mdl  tea.Model
}

func NewPhase(name string, mdl tea.Model) Phase {
	return Phase{Name: name, mdl: mdl}
}

// Model forwards messages to the current phase only. Entering a phase,
// forwards or back, runs its Init.
type Model struct {
	phases  []Phase
	current int
}

func New(phases []Phase) Model {
	return Model{phases: phases}
}

func (m Model) Init() tea.Cmd {
	return m.phases[m.current].mdl.Init()
}

func (m Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch teaMsg.(type) {
	case NextPhaseMsg:
		return m.enter(m.current + 1)
	case PrevPhaseMsg:
		return m.enter(m.current - 1)
	}

	ph := m.phases[m.current]
	var cmd tea.Cmd
	ph.mdl, cmd = ph.mdl.Update(teaMsg)
	m.phases[m.current] = ph

	return m, cmd
}

func (m Model) enter(i int) (tea.Model, tea.Cmd) {
	if i < 0 || i >= len(m.phases) || i == m.current {
		return m, nil
	}
	m.current = i

	return m, m.phases[i].mdl.Init()
}

func (m Model) View() string {
	return m.phases[m.current].mdl.View()
}

// CurrentPhaseName returns the name of the current phase.
func (m Model) CurrentPhaseName() string {
	return m.phases[m.current].Name
}

// Index is the position of the current phase.
func (m Model) Index() int {
	return m.current
}

// Steps renders every phase name, highlighting the current one and muting
// the ones already done.
func (m Model) Steps() string {
	names := make([]string, len(m.phases))
	for i, ph := range m.phases {
		switch {
		case i == m.current:
			names[i] = style.Highlight.Render(ph.Name)
		case i < m.current:
			names[i] = style.Muted.Render(ph.Name)
		default:
			names[i] = ph.Name
		}
	}

	return strings.Join(names, style.Muted.Render(" › "))
}
