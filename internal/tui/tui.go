// Package tui is the terminal player: the now-playing screen with the
// question screen shown over it while a question is open.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alkime/podbook/internal/engine"
	"github.com/alkime/podbook/internal/interjection"
	"github.com/alkime/podbook/internal/playback"
	"github.com/alkime/podbook/internal/transcript"
	"github.com/alkime/podbook/internal/tui/ask"
	"github.com/alkime/podbook/internal/tui/components/timebar"
	"github.com/alkime/podbook/internal/tui/msg"
	"github.com/alkime/podbook/internal/tui/nowplaying"
	"github.com/alkime/podbook/internal/tui/style"
	"github.com/alkime/podbook/pkg/uictl"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Engine is the player engine as the TUI sees it.
type Engine interface {
	nowplaying.Controls
	ask.Controls
	Snapshot(ctx context.Context) (playback.Snapshot, error)
	Segments(ctx context.Context) ([]transcript.Segment, error)
	BeginQuestion(ctx context.Context) (interjection.Session, error)
	Observe(ctx context.Context, o engine.Observer) (func(), error)
}

type Config struct {
	Title string
	// Levels feeds the waveform; nil shows a flat line.
	Levels uictl.Levels[int16]
	Logger *slog.Logger
}

type beginFailedMsg struct {
	err error
}

// Model is the root TUI model.
type Model struct {
	ctx    context.Context
	engine Engine
	config Config
	keys   KeyMap

	player  nowplaying.Model
	overlay *ask.Model
	// asking is set between the ask key and the interjection starting.
	asking bool
}

func New(ctx context.Context, eng Engine, config Config) *Model {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Model{
		ctx:    ctx,
		engine: eng,
		config: config,
		keys:   DefaultKeyMap(),
		player: nowplaying.New(ctx, eng, config.Levels, 80, 24),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.player.Init(), m.load())
}

func (m *Model) load() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.engine.Snapshot(m.ctx)
		if err != nil {
			return msg.ErrMsg{Err: err}
		}
		tl, err := m.engine.Timeline(m.ctx)
		if err != nil {
			return msg.ErrMsg{Err: err}
		}
		segs, err := m.engine.Segments(m.ctx)
		if err != nil {
			return msg.ErrMsg{Err: err}
		}

		return msg.LoadedMsg{Title: m.config.Title, Snapshot: snap, Timeline: tl, Segments: segs}
	}
}

func (m *Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch teaMsg := teaMsg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(teaMsg, m.keys.ForceQuit):
			return m, tea.Quit
		case m.overlay != nil:
			return m, m.updateOverlay(teaMsg)
		case key.Matches(teaMsg, m.keys.Quit):
			return m, tea.Quit
		}
		return m, m.updatePlayer(teaMsg)

	case msg.AskMsg:
		if m.overlay != nil || m.asking {
			return m, nil
		}
		m.asking = true
		return m, func() tea.Msg {
			if _, err := m.engine.BeginQuestion(m.ctx); err != nil {
				return beginFailedMsg{err: err}
			}
			return nil
		}

	case beginFailedMsg:
		m.asking = false
		return m, m.updatePlayer(msg.ErrMsg{Err: teaMsg.err})

	case msg.InterjectionMsg:
		return m, m.onInterjection(teaMsg)

	case msg.QuestionClosedMsg:
		m.overlay = nil
		return m, nil

	case msg.ErrMsg:
		if m.overlay != nil {
			return m, m.updateOverlay(teaMsg)
		}
		return m, m.updatePlayer(teaMsg)

	case tea.WindowSizeMsg, msg.LoadedMsg, msg.TimelineMsg, msg.PlaybackMsg, msg.TranscriptMsg:
		return m, m.updatePlayer(teaMsg)
	}

	// Ticks and blinks of whichever components are running.
	return m, tea.Batch(m.updatePlayer(teaMsg), m.updateOverlay(teaMsg))
}

func (m *Model) onInterjection(im msg.InterjectionMsg) tea.Cmd {
	switch im.Event.Kind {
	case interjection.Started:
		overlay := ask.New(m.ctx, m.engine, !m.asking)
		m.overlay = &overlay
		m.asking = false
		return overlay.Init()

	case interjection.Resumed:
		m.overlay = nil
		return nil

	case interjection.Failed:
		m.overlay = nil
		err := im.Event.Err
		if err == nil {
			err = interjection.ErrInterjectionFailed
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		m.config.Logger.Warn("question failed", "question", im.Event.Session.QuestionID, "error", err)
		return m.updatePlayer(msg.ErrMsg{Err: fmt.Errorf("question failed: %w", err)})
	}

	return m.updateOverlay(im)
}

func (m *Model) updatePlayer(teaMsg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.player, cmd = m.player.Update(teaMsg)
	return cmd
}

func (m *Model) updateOverlay(teaMsg tea.Msg) tea.Cmd {
	if m.overlay == nil {
		return nil
	}

	updated, cmd := m.overlay.Update(teaMsg)
	m.overlay = &updated

	return cmd
}

func (m *Model) View() string {
	if m.overlay == nil {
		return m.player.View()
	}

	snap := m.player.Snapshot()

	var sb strings.Builder
	sb.WriteString(style.Muted.Render("Paused at " + timebar.FormatDuration(snap.CombinedPosition)))
	sb.WriteString("\n\n")
	sb.WriteString(style.Viewport.Render(m.overlay.View()))

	return sb.String()
}

// Run shows the player until the user quits or ctx ends.
func Run(ctx context.Context, eng Engine, config Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(ctx, eng, config)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	unsub, err := eng.Observe(ctx, msg.Forward(ctx, p, 256, m.config.Logger))
	if err != nil {
		return fmt.Errorf("failed to observe engine: %w", err)
	}
	defer unsub()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	return nil
}
