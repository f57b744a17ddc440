// Package nowplaying provides the main player screen: progress, waveform
// and the synced transcript.
package nowplaying

import (
	"context"
	"strings"
	"time"

	"github.com/alkime/podbook/internal/playback"
	"github.com/alkime/podbook/internal/timeline"
	"github.com/alkime/podbook/internal/transcript"
	"github.com/alkime/podbook/internal/tui/components/timebar"
	"github.com/alkime/podbook/internal/tui/components/waveform"
	"github.com/alkime/podbook/internal/tui/msg"
	"github.com/alkime/podbook/internal/tui/style"
	"github.com/alkime/podbook/pkg/uictl"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	// SeekStep is the fraction of the episode shift+arrow moves.
	SeekStep = 0.01
	// ScrollIdle is how long after the last scroll key the scroll counts
	// as ended.
	ScrollIdle = 300 * time.Millisecond

	waveHeight = 3
	// title, status, bar, waveform, viewport border, help, error
	chromeHeight = 2 + 2 + waveHeight + 1 + 2 + 2
)

// Controls is what the screen drives. Calls may block and are only made
// from commands.
type Controls interface {
	TogglePlayPause(ctx context.Context) error
	SkipForward(ctx context.Context) error
	SkipBackward(ctx context.Context) error
	SeekFraction(ctx context.Context, frac float64) error
	ScrollStarted(ctx context.Context) error
	ScrollEnded(ctx context.Context) error
	SelectSegment(ctx context.Context, id int) error
	Timeline(ctx context.Context) (*timeline.Timeline, error)
}

type scrollIdleMsg struct {
	gen int
}

// Model represents the now-playing screen state.
type Model struct {
	ctx      context.Context
	controls Controls
	keys     KeyMap

	title string
	snap  playback.Snapshot
	err   error

	bar      timebar.Model
	wave     waveform.Model
	viewport viewport.Model
	width    int

	segments  []transcript.Segment
	index     map[int]int
	lineStart []int

	current    int
	hasCurrent bool
	cursor     int
	following  bool
	scrolling  bool
	scrollGen  int
}

// New creates the screen. levels may be nil when no waveform is available.
func New(ctx context.Context, controls Controls, levels uictl.Levels[int16], width, height int) Model {
	return Model{
		ctx:       ctx,
		controls:  controls,
		keys:      DefaultKeyMap(),
		bar:       timebar.New(width),
		wave:      waveform.New(levels, width, waveHeight),
		viewport:  viewport.New(width-4, max(height-chromeHeight, 3)),
		width:     width,
		following: true,
	}
}

func (m Model) Init() tea.Cmd {
	return m.wave.Init()
}

// Update handles messages for the now-playing screen.
func (m Model) Update(teaMsg tea.Msg) (Model, tea.Cmd) {
	switch teaMsg := teaMsg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(teaMsg.Width, teaMsg.Height), nil

	case msg.LoadedMsg:
		m.title = teaMsg.Title
		m.snap = teaMsg.Snapshot
		m.wave = m.wave.SetActive(m.snap.Status == playback.StatusPlaying)
		m.bar = m.bar.SetTimeline(teaMsg.Timeline).SetPosition(m.snap.CombinedPosition)
		m.setSegments(teaMsg.Segments)
		return m, nil

	case msg.TimelineMsg:
		m.bar = m.bar.SetTimeline(teaMsg.Timeline)
		return m, nil

	case msg.PlaybackMsg:
		return m.onPlayback(teaMsg.Event)

	case msg.TranscriptMsg:
		return m.onTranscript(teaMsg.Event), nil

	case msg.ErrMsg:
		m.err = teaMsg.Err
		return m, nil

	case scrollIdleMsg:
		if teaMsg.gen != m.scrollGen || !m.scrolling {
			return m, nil
		}
		m.scrolling = false
		return m, m.call(m.controls.ScrollEnded)

	case waveform.TickMsg:
		var cmd tea.Cmd
		m.wave, cmd = m.wave.Update(teaMsg)
		return m, cmd

	case tea.KeyMsg:
		return m.onKey(teaMsg)
	}

	return m, nil
}

func (m Model) onKey(km tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(km, m.keys.PlayPause):
		m.err = nil
		return m, m.call(m.controls.TogglePlayPause)

	case key.Matches(km, m.keys.SkipForward):
		return m, m.call(m.controls.SkipForward)

	case key.Matches(km, m.keys.SkipBackward):
		return m, m.call(m.controls.SkipBackward)

	case key.Matches(km, m.keys.SeekForward):
		return m, m.seek(SeekStep)

	case key.Matches(km, m.keys.SeekBackward):
		return m, m.seek(-SeekStep)

	case key.Matches(km, m.keys.ScrollUp):
		return m.scroll(-1)

	case key.Matches(km, m.keys.ScrollDown):
		return m.scroll(1)

	case key.Matches(km, m.keys.Select):
		if len(m.segments) == 0 {
			return m, nil
		}
		id := m.segments[m.cursor].ID
		m.scrolling = false
		m.following = true
		return m, func() tea.Msg {
			return msg.Result(m.controls.SelectSegment(m.ctx, id))
		}

	case key.Matches(km, m.keys.Ask):
		return m, func() tea.Msg { return msg.AskMsg{} }
	}

	return m, nil
}

func (m Model) onPlayback(ev playback.Event) (Model, tea.Cmd) {
	m.snap = ev.Snapshot
	m.bar = m.bar.SetPosition(ev.Snapshot.CombinedPosition)
	m.wave = m.wave.SetActive(ev.Snapshot.Status == playback.StatusPlaying)

	switch ev.Kind {
	case playback.EventFailed:
		m.err = ev.Err
	case playback.EventDurationConfirmed:
		return m, m.refreshTimeline()
	case playback.EventStatusChanged:
		if ev.Snapshot.Status == playback.StatusPlaying {
			m.err = nil
		}
	}

	return m, nil
}

func (m Model) onTranscript(ev transcript.SyncEvent) Model {
	switch ev.Kind {
	case transcript.SegmentChanged:
		m.current, m.hasCurrent = m.index[ev.SegmentID], ev.HasSegment
		if m.following && m.hasCurrent {
			m.cursor = m.current
		}
	case transcript.ScrollToSegment:
		m.following = true
		m.scrolling = false
		if ev.HasSegment {
			m.current, m.hasCurrent = m.index[ev.SegmentID], true
			m.cursor = m.current
		}
	default:
		return m
	}

	m.render()
	if m.following {
		m.scrollTo(m.cursor)
	}

	return m
}

// scroll moves the cursor by delta segments and tells the engine the user
// is scrolling until ScrollIdle passes without another scroll key.
func (m Model) scroll(delta int) (Model, tea.Cmd) {
	if len(m.segments) == 0 {
		return m, nil
	}

	var cmds []tea.Cmd
	if !m.scrolling {
		m.scrolling = true
		cmds = append(cmds, m.call(m.controls.ScrollStarted))
	}
	m.following = false
	m.cursor = min(max(m.cursor+delta, 0), len(m.segments)-1)
	m.render()
	m.scrollTo(m.cursor)

	m.scrollGen++
	gen := m.scrollGen
	cmds = append(cmds, tea.Tick(ScrollIdle, func(time.Time) tea.Msg {
		return scrollIdleMsg{gen: gen}
	}))

	return m, tea.Batch(cmds...)
}

func (m Model) seek(frac float64) tea.Cmd {
	return func() tea.Msg {
		return msg.Result(m.controls.SeekFraction(m.ctx, frac))
	}
}

func (m Model) call(fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return msg.Result(fn(m.ctx))
	}
}

func (m Model) refreshTimeline() tea.Cmd {
	return func() tea.Msg {
		tl, err := m.controls.Timeline(m.ctx)
		if err != nil {
			return msg.ErrMsg{Err: err}
		}
		return msg.TimelineMsg{Timeline: tl}
	}
}

func (m Model) resize(width, height int) Model {
	m.width = width
	m.bar = m.bar.SetWidth(width)
	m.wave = m.wave.Resize(width)
	m.viewport.Width = width - 4
	m.viewport.Height = max(height-chromeHeight, 3)
	m.render()
	m.scrollTo(m.cursor)

	return m
}

func (m *Model) setSegments(segs []transcript.Segment) {
	m.segments = segs
	m.index = make(map[int]int, len(segs))
	for i, s := range segs {
		m.index[s.ID] = i
	}
	m.cursor, m.current, m.hasCurrent = 0, 0, false
	m.render()
}

// render lays the transcript out into the viewport, one paragraph per
// segment, and records where each segment starts.
func (m *Model) render() {
	if len(m.segments) == 0 {
		m.viewport.SetContent(style.Muted.Render("No transcript for this episode."))
		m.lineStart = nil
		return
	}

	width := max(m.viewport.Width-2, 10)
	wrapper := lipgloss.NewStyle().Width(width)
	m.lineStart = make([]int, len(m.segments))

	var lines []string
	for i, seg := range m.segments {
		m.lineStart[i] = len(lines)

		for j, line := range strings.Split(wrapper.Render(seg.Text), "\n") {
			prefix := "  "
			if j == 0 && i == m.cursor && !m.following {
				prefix = style.Bullet.Render("› ")
			}
			if m.hasCurrent && i == m.current {
				line = style.Highlight.Render(line)
			}
			lines = append(lines, prefix+line)
		}
	}

	m.viewport.SetContent(strings.Join(lines, "\n"))
}

// scrollTo keeps segment i visible, about a third of the way down.
func (m *Model) scrollTo(i int) {
	if i < 0 || i >= len(m.lineStart) {
		return
	}

	m.viewport.SetYOffset(max(m.lineStart[i]-m.viewport.Height/3, 0))
}

// View renders the now-playing screen.
func (m Model) View() string {
	var sb strings.Builder

	title := m.title
	if title == "" {
		title = "Nothing playing"
	}
	sb.WriteString(style.Title.Render(title))
	sb.WriteString("\n")
	sb.WriteString(m.statusLine())
	sb.WriteString("\n\n")

	sb.WriteString(m.bar.View())
	sb.WriteString("\n\n")

	sb.WriteString(m.wave.View())
	sb.WriteString("\n\n")

	sb.WriteString(style.Viewport.Render(m.viewport.View()))
	sb.WriteString("\n")

	sb.WriteString(m.helpLine())
	if m.err != nil {
		sb.WriteString("\n")
		sb.WriteString(style.Error.Render("Error: " + m.err.Error()))
	}

	return sb.String()
}

func (m Model) statusLine() string {
	s := style.Subtitle.Render(m.snap.Status.String())
	if m.snap.EpisodeID != "" {
		s += style.Muted.Render(" · " + m.snap.Phase.String())
	}
	if m.snap.IsLoading {
		s += style.Warning.Render(" · loading")
	}
	if m.scrolling || !m.following {
		s += style.Muted.Render(" · browsing")
	}

	return s
}

func (m Model) helpLine() string {
	parts := make([]string, 0, len(m.keys.ShortHelp())+1)
	for _, b := range m.keys.ShortHelp() {
		parts = append(parts, renderKeyHelp(b))
	}
	parts = append(parts, style.Help.Render("[")+style.Key.Render("q")+style.Help.Render("] quit"))

	return strings.Join(parts, "  ")
}

func renderKeyHelp(b key.Binding) string {
	return style.Help.Render("[") + style.Key.Render(b.Help().Key) +
		style.Help.Render("] ") + style.Help.Render(b.Help().Desc)
}

// Snapshot returns the last playback snapshot the screen saw.
func (m Model) Snapshot() playback.Snapshot {
	return m.snap
}
