// Package timebar renders episode progress as one bar segment per phase.
package timebar

import (
	"fmt"
	"strings"
	"time"

	"github.com/alkime/podbook/internal/timeline"
	"github.com/alkime/podbook/internal/tui/style"
	"github.com/charmbracelet/lipgloss"
)

const (
	filled    = "━"
	empty     = "─"
	separator = "┊"
)

// Model is a static view; set the layout and position and render.
type Model struct {
	width    int
	specs    []timeline.PhaseSpec
	position time.Duration
}

func New(width int) Model {
	return Model{width: max(width, 1)}
}

// SetWidth sets the total width including separators and labels.
func (m Model) SetWidth(width int) Model {
	m.width = max(width, 1)
	return m
}

// SetTimeline takes the phase layout. A nil timeline renders an empty bar.
func (m Model) SetTimeline(tl *timeline.Timeline) Model {
	m.specs = tl.Specs()
	return m
}

func (m Model) SetPosition(g time.Duration) Model {
	m.position = g
	return m
}

func (m Model) total() time.Duration {
	var total time.Duration
	for _, s := range m.specs {
		total += s.Duration
	}

	return total
}

// View renders the bar followed by "position / duration".
func (m Model) View() string {
	total := m.total()
	label := " " + FormatDuration(m.position) + " / " + FormatDuration(total)
	barWidth := max(m.width-lipgloss.Width(label), len(m.specs)*2)

	if total <= 0 {
		return style.Remaining.Render(strings.Repeat(empty, barWidth)) + style.Muted.Render(label)
	}

	cells := allocate(m.specs, total, barWidth-(len(m.specs)-1))

	var sb strings.Builder
	var start time.Duration
	for i, spec := range m.specs {
		if i > 0 {
			sb.WriteString(style.Muted.Render(separator))
		}

		n := fill(m.position-start, spec.Duration, cells[i])
		sb.WriteString(phaseStyle(spec.Phase).Render(strings.Repeat(filled, n)))
		sb.WriteString(style.Remaining.Render(strings.Repeat(empty, cells[i]-n)))

		start += spec.Duration
	}
	sb.WriteString(style.Muted.Render(label))

	return sb.String()
}

// allocate splits width cells across specs in proportion to their duration.
// Every phase gets at least one cell; rounding leftovers go to the longest.
func allocate(specs []timeline.PhaseSpec, total time.Duration, width int) []int {
	cells := make([]int, len(specs))
	used := 0
	longest := 0
	for i, s := range specs {
		cells[i] = max(int(int64(width)*int64(s.Duration)/int64(total)), 1)
		used += cells[i]
		if s.Duration > specs[longest].Duration {
			longest = i
		}
	}

	if len(specs) > 0 {
		cells[longest] = max(cells[longest]+width-used, 1)
	}

	return cells
}

func fill(elapsed, d time.Duration, cells int) int {
	switch {
	case elapsed <= 0 || d <= 0:
		return 0
	case elapsed >= d:
		return cells
	default:
		return int(int64(cells) * int64(elapsed) / int64(d))
	}
}

func phaseStyle(p timeline.Phase) lipgloss.Style {
	return style.Phase(int(p))
}

// FormatDuration renders d as m:ss, or h:mm:ss from an hour up.
func FormatDuration(d time.Duration) string {
	d = max(d, 0).Round(time.Second)
	h := int(d / time.Hour)
	mins := int(d/time.Minute) % 60
	secs := int(d/time.Second) % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mins, secs)
	}

	return fmt.Sprintf("%d:%02d", mins, secs)
}
