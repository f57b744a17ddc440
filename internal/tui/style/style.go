// Package style holds the TUI palette and the lipgloss styles built from it.
package style

import "github.com/charmbracelet/lipgloss"

// Palette, in 256-color codes.
const (
	pink   = lipgloss.Color("205")
	indigo = lipgloss.Color("62")
	violet = lipgloss.Color("63")
	sky    = lipgloss.Color("39")
	green  = lipgloss.Color("42")
	amber  = lipgloss.Color("214")
	red    = lipgloss.Color("196")
	cream  = lipgloss.Color("230")
	white  = lipgloss.Color("255")
	gray   = lipgloss.Color("245")
	dim    = lipgloss.Color("241")
	track  = lipgloss.Color("238")
)

var (
	Title    = lipgloss.NewStyle().Bold(true).Foreground(pink)
	Subtitle = lipgloss.NewStyle().Foreground(dim)
	Label    = lipgloss.NewStyle().Bold(true).Foreground(white)
	Muted    = lipgloss.NewStyle().Foreground(gray)
	Help     = lipgloss.NewStyle().Foreground(dim)
	Key      = lipgloss.NewStyle().Bold(true).Foreground(pink)
	Bullet   = lipgloss.NewStyle().Foreground(pink)

	Warning = lipgloss.NewStyle().Foreground(amber)
	Error   = lipgloss.NewStyle().Foreground(red)

	// Viewport frames the transcript.
	Viewport = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(indigo).
			Padding(0, 1)

	// Highlight marks the transcript segment being spoken.
	Highlight = lipgloss.NewStyle().Bold(true).Foreground(cream).Background(indigo)

	// Progress colors live level meters.
	Progress = lipgloss.NewStyle().Foreground(violet)

	Elapsed   = lipgloss.NewStyle().Foreground(pink)
	Remaining = lipgloss.NewStyle().Foreground(track)
)

var phases = []lipgloss.Style{
	lipgloss.NewStyle().Foreground(sky),
	lipgloss.NewStyle().Foreground(pink),
	lipgloss.NewStyle().Foreground(green),
}

// Phase returns the progress bar color of the i-th phase (intro, main,
// outro), or Elapsed past the known phases.
func Phase(i int) lipgloss.Style {
	if i >= 0 && i < len(phases) {
		return phases[i]
	}

	return Elapsed
}
