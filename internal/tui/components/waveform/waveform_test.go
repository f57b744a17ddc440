package waveform_test

import (
	"strings"
	"testing"

	"github.com/alkime/podbook/internal/tui/components/waveform"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

type fakeLevels struct {
	samples []int16
}

func (f *fakeLevels) Read() []int16 {
	return f.samples
}

func constant(v int16, n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = v
	}

	return s
}

func tick(t *testing.T, m waveform.Model, n int) waveform.Model {
	t.Helper()

	for range n {
		var cmd tea.Cmd
		m, cmd = m.Update(waveform.TickMsg{})
		require.NotNil(t, cmd)
	}

	return m
}

func TestWaveform_Baseline(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "▁▁▁▁▁", waveform.New(nil, 5, 1).View())

	rows := strings.Split(waveform.New(&fakeLevels{}, 4, 2).View(), "\n")
	require.Len(t, rows, 2)
	assert.Equal(t, "    ", rows[0])
	assert.Equal(t, "▁▁▁▁", rows[1])
}

func TestWaveform_NewestOnTheRight(t *testing.T) {
	t.Parallel()

	levels := &fakeLevels{samples: constant(32767, 64)}
	m := waveform.New(levels, 5, 1).SetActive(true)

	m = tick(t, m, 1)
	assert.Equal(t, "    █", m.View())

	levels.samples = constant(8192, 64)
	m = tick(t, m, 1)
	assert.Equal(t, "   █▄", m.View())
}

func TestWaveform_Scrolls(t *testing.T) {
	t.Parallel()

	levels := &fakeLevels{samples: constant(32767, 64)}
	m := waveform.New(levels, 4, 1).SetActive(true)

	m = tick(t, m, 6)
	assert.Equal(t, "████", m.View())

	levels.samples = constant(0, 64)
	m = tick(t, m, 1)
	assert.Equal(t, "███ ", m.View())
}

func TestWaveform_FrozenWhileInactive(t *testing.T) {
	t.Parallel()

	levels := &fakeLevels{samples: constant(32767, 64)}
	m := waveform.New(levels, 3, 1).SetActive(true)
	m = tick(t, m, 1)

	m = m.SetActive(false)
	assert.False(t, m.Active())
	m = tick(t, m, 3)
	assert.Equal(t, "  █", m.View())
}

func TestWaveform_MultiRow(t *testing.T) {
	t.Parallel()

	levels := &fakeLevels{samples: constant(8192, 64)}
	m := tick(t, waveform.New(levels, 2, 2).SetActive(true), 1)

	rows := strings.Split(m.View(), "\n")
	require.Len(t, rows, 2)
	assert.Equal(t, "  ", rows[0])
	assert.Equal(t, " █", rows[1])
}

func TestWaveform_ResizeKeepsNewest(t *testing.T) {
	t.Parallel()

	levels := &fakeLevels{samples: constant(32767, 64)}
	m := tick(t, waveform.New(levels, 4, 1).SetActive(true), 2)
	levels.samples = constant(8192, 64)
	m = tick(t, m, 1)
	assert.Equal(t, " ██▄", m.View())

	m = m.Resize(2)
	assert.Equal(t, "█▄", m.View())

	m = m.Resize(5)
	assert.Equal(t, "   █▄", m.View())
}

func TestWaveform_IgnoresOtherMessages(t *testing.T) {
	t.Parallel()

	m := waveform.New(&fakeLevels{}, 3, 1)
	_, cmd := m.Update("other")
	assert.Nil(t, cmd)
}
