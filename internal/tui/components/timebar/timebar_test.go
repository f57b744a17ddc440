package timebar_test

import (
	"strings"
	"testing"
	"time"

	"github.com/alkime/podbook/internal/timeline"
	"github.com/alkime/podbook/internal/tui/components/timebar"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func mustTimeline(t *testing.T, specs ...timeline.PhaseSpec) *timeline.Timeline {
	t.Helper()
	tl, err := timeline.New(specs...)
	require.NoError(t, err)
	return tl
}

func TestTimebar(t *testing.T) {
	tl := mustTimeline(t,
		timeline.PhaseSpec{Phase: timeline.Intro, SourceRef: "i.mp3", Duration: 10 * time.Second},
		timeline.PhaseSpec{Phase: timeline.Main, SourceRef: "m.mp3", Duration: 80 * time.Second},
		timeline.PhaseSpec{Phase: timeline.Outro, SourceRef: "o.mp3", Duration: 10 * time.Second},
	)

	t.Run("one segment per phase", func(t *testing.T) {
		view := timebar.New(60).SetTimeline(tl).View()
		assert.Equal(t, 2, strings.Count(view, "┊"))
		assert.Contains(t, view, "0:00 / 1:40")
		assert.Equal(t, 60, lipgloss.Width(view))
	})

	t.Run("intro finished fills the first segment", func(t *testing.T) {
		m := timebar.New(60).SetTimeline(tl)

		view := m.SetPosition(10 * time.Second).View()
		first, _, ok := strings.Cut(view, "┊")
		require.True(t, ok)
		assert.NotContains(t, first, "─")
		assert.Contains(t, view, "0:10 / 1:40")
	})

	t.Run("fill grows with position", func(t *testing.T) {
		m := timebar.New(60).SetTimeline(tl)

		early := strings.Count(m.SetPosition(20*time.Second).View(), "━")
		late := strings.Count(m.SetPosition(70*time.Second).View(), "━")
		done := m.SetPosition(100 * time.Second).View()

		assert.Less(t, early, late)
		assert.NotContains(t, done, "─")
	})

	t.Run("short phases keep a cell", func(t *testing.T) {
		tiny := mustTimeline(t,
			timeline.PhaseSpec{Phase: timeline.Intro, SourceRef: "i.mp3", Duration: time.Millisecond},
			timeline.PhaseSpec{Phase: timeline.Main, SourceRef: "m.mp3", Duration: time.Hour},
		)

		view := timebar.New(40).SetTimeline(tiny).View()
		first, _, ok := strings.Cut(view, "┊")
		require.True(t, ok)
		assert.Equal(t, "─", first)
	})

	t.Run("no timeline", func(t *testing.T) {
		view := timebar.New(30).View()
		assert.Contains(t, view, "0:00 / 0:00")
		assert.NotContains(t, view, "┊")
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{59*time.Second + 600*time.Millisecond, "1:00"},
		{15 * time.Minute, "15:00"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, timebar.FormatDuration(tt.in))
	}
}
