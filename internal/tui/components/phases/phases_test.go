package phases_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/alkime/podbook/internal/tui/components/phases"
	"github.com/alkime/podbook/pkg/collections"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:gochecknoinits // recommend for CI by bubbletea folks
func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

type stepMock struct {
	t       *testing.T
	name    string
	inits   int
	updates int
}

type advanceMsg struct{}

func (s *stepMock) Init() tea.Cmd {
	s.inits++
	return nil
}

func (s *stepMock) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	s.t.Logf("%s got %#v", s.name, msg)

	if _, ok := msg.(advanceMsg); ok {
		s.updates++
		return s, phases.NextPhaseCmd
	}

	return s, nil
}

func (s *stepMock) View() string { return "view:" + s.name }

func steps(t *testing.T, names ...string) ([]*stepMock, phases.Model) {
	t.Helper()

	mocks := make([]*stepMock, len(names))
	list := make([]phases.Phase, len(names))
	for i, n := range names {
		mocks[i] = &stepMock{t: t, name: n}
		list[i] = phases.NewPhase(n, mocks[i])
	}

	return mocks, phases.New(list)
}

func inits(mocks []*stepMock) []int {
	return collections.Apply(mocks, func(s *stepMock) int { return s.inits })
}

func updates(mocks []*stepMock) []int {
	return collections.Apply(mocks, func(s *stepMock) int { return s.updates })
}

func waitFor(t *testing.T, tm *teatest.TestModel, substr string) {
	t.Helper()
	teatest.WaitFor(t, tm.Output(), func(buf []byte) bool {
		return bytes.Contains(buf, []byte(substr))
	}, teatest.WithCheckInterval(50*time.Millisecond), teatest.WithDuration(time.Second))
}

func TestPhases_Program(t *testing.T) {
	mocks, ph := steps(t, "compose", "answer", "done")
	tm := teatest.NewTestModel(t, ph, teatest.WithInitialTermSize(80, 10))

	waitFor(t, tm, "view:compose")
	require.Equal(t, []int{1, 0, 0}, inits(mocks))

	tm.Send(advanceMsg{})
	waitFor(t, tm, "view:answer")
	require.Equal(t, []int{1, 1, 0}, inits(mocks))
	require.Equal(t, []int{1, 0, 0}, updates(mocks), "only the current phase sees messages")

	tm.Send(phases.PrevPhaseMsg{})
	waitFor(t, tm, "view:compose")
	require.Equal(t, []int{2, 1, 0}, inits(mocks), "going back re-enters the phase")

	require.NoError(t, tm.Quit())
}

func TestPhases_Bounds(t *testing.T) {
	mocks, ph := steps(t, "ask", "answer")

	var m tea.Model = ph
	m, cmd := m.Update(phases.PrevPhaseMsg{})
	assert.Nil(t, cmd)
	assert.Equal(t, "ask", m.(phases.Model).CurrentPhaseName())

	m, _ = m.Update(phases.NextPhaseMsg{})
	m, cmd = m.Update(phases.NextPhaseMsg{})
	assert.Nil(t, cmd)
	assert.Equal(t, 1, m.(phases.Model).Index())
	assert.Equal(t, "view:answer", m.View())
	assert.Equal(t, []int{0, 1}, inits(mocks))
}

func TestPhases_Steps(t *testing.T) {
	_, ph := steps(t, "Ask", "Answer")
	assert.Equal(t, "Ask › Answer", ph.Steps())

	m, _ := ph.Update(phases.NextPhaseMsg{})
	assert.Equal(t, "Ask › Answer", m.(phases.Model).Steps())
	assert.Equal(t, "Answer", m.(phases.Model).CurrentPhaseName())
}
