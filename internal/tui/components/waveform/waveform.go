// Package waveform draws a scrolling level meter of the audio being played.
package waveform

import (
	"math"
	"strings"
	"time"

	"github.com/alkime/podbook/internal/audio"
	"github.com/alkime/podbook/internal/tui/style"
	"github.com/alkime/podbook/pkg/uictl"
	tea "github.com/charmbracelet/bubbletea"
)

// Eight fill levels per row, index 0 is empty.
const blockChars = " ▁▂▃▄▅▆▇█"

// Interval is how often a new column is sampled.
const Interval = 50 * time.Millisecond

// TickMsg samples the level source and schedules the next tick.
type TickMsg struct{}

// Model keeps one level per column, newest on the right. While inactive
// (paused, loading) ticks keep running but the history is frozen.
type Model struct {
	levels  uictl.Levels[int16]
	history []float64
	width   int
	height  int
	active  bool
}

func New(levels uictl.Levels[int16], width, height int) Model {
	return Model{
		levels: levels,
		width:  max(width, 0),
		height: max(height, 1),
	}
}

// SetActive starts or freezes the scrolling.
func (m Model) SetActive(on bool) Model {
	m.active = on
	return m
}

// Active reports whether new columns are being sampled.
func (m Model) Active() bool {
	return m.active
}

// Resize changes the column count, keeping the newest history.
func (m Model) Resize(width int) Model {
	m.width = max(width, 0)
	m.history = newest(m.history, m.width)

	return m
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(TickMsg); !ok {
		return m, nil
	}
	if m.active && m.levels != nil {
		m = m.push(audio.Level(m.levels.Read()))
	}

	return m, tick()
}

func (m Model) View() string {
	if len(m.history) == 0 {
		return m.baseline()
	}

	maxLevel := m.height * 8
	cols := make([]int, m.width)
	offset := m.width - len(m.history)
	for i, lvl := range m.history {
		cols[offset+i] = scale(lvl, maxLevel)
	}

	render := style.Progress.Render
	if !m.active {
		render = style.Muted.Render
	}

	runes := []rune(blockChars)
	rows := make([]string, m.height)
	for row := range rows {
		base := (m.height - 1 - row) * 8

		var sb strings.Builder
		for _, level := range cols {
			sb.WriteRune(runes[min(max(level-base, 0), 8)])
		}
		rows[row] = render(sb.String())
	}

	return strings.Join(rows, "\n")
}

func (m Model) push(level float64) Model {
	if m.width == 0 {
		return m
	}
	h := make([]float64, 0, m.width)
	h = append(h, newest(m.history, m.width-1)...)
	m.history = append(h, level)

	return m
}

func (m Model) baseline() string {
	rows := make([]string, m.height)
	for row := range rows {
		fill := " "
		if row == m.height-1 {
			fill = "▁"
		}
		rows[row] = style.Muted.Render(strings.Repeat(fill, m.width))
	}

	return strings.Join(rows, "\n")
}

func newest(h []float64, n int) []float64 {
	if len(h) <= n {
		return h
	}

	return h[len(h)-n:]
}

// scale maps an RMS level in [0, 1] onto 0..maxLevel. The square root
// keeps quiet speech visible.
func scale(level float64, maxLevel int) int {
	if level <= 0 {
		return 0
	}

	return min(int(math.Round(math.Sqrt(min(level, 1))*float64(maxLevel))), maxLevel)
}

func tick() tea.Cmd {
	return tea.Tick(Interval, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}
