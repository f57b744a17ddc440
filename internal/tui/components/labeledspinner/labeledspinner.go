// Package labeledspinner shows a spinner next to a title, subtitle, help
// line and how long it has been waiting.
package labeledspinner

import (
	"strings"
	"time"

	"github.com/alkime/podbook/internal/tui/style"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	tea "github.com/charmbracelet/bubbletea"
)

// Model is a spinner with labels and an elapsed-time stopwatch.
type Model struct {
	spinner  spinner.Model
	watch    stopwatch.Model
	title    string
	subtitle string
	help     string
}

func New(s spinner.Spinner, title, subtitle, help string) Model {
	return Model{
		spinner:  spinner.New(spinner.WithSpinner(s)),
		watch:    stopwatch.NewWithInterval(time.Second),
		title:    title,
		subtitle: subtitle,
		help:     help,
	}
}

// Relabel swaps the spinner and labels and restarts the stopwatch.
func (m Model) Relabel(s spinner.Spinner, title, subtitle, help string) (Model, tea.Cmd) {
	m.spinner = spinner.New(spinner.WithSpinner(s))
	m.title, m.subtitle, m.help = title, subtitle, help

	return m, tea.Batch(m.spinner.Tick, m.watch.Reset())
}

func (m Model) Title() string { return m.title }
func (m Model) Subtitle() string { return m.subtitle }
func (m Model) Help() string { return m.help }
func (m Model) Frame() string { return m.spinner.View() }
func (m Model) Elapsed() time.Duration { return m.watch.Elapsed() }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.watch.Init())
}

func (m Model) Update(teaMsg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch teaMsg.(type) {
	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(teaMsg)
	case stopwatch.TickMsg, stopwatch.StartStopMsg, stopwatch.ResetMsg:
		m.watch, cmd = m.watch.Update(teaMsg)
	}

	return m, cmd
}

func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.spinner.View())
	sb.WriteString(" ")
	sb.WriteString(style.Title.Render(m.title))
	sb.WriteString(" ")
	sb.WriteString(style.Muted.Render(m.watch.Elapsed().Truncate(time.Second).String()))
	sb.WriteString("\n\n")

	sb.WriteString(style.Subtitle.Render(m.subtitle))
	sb.WriteString("\n\n")

	sb.WriteString(style.Help.Render(m.help))

	return sb.String()
}
