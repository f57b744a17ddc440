package tui_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alkime/podbook/internal/engine"
	"github.com/alkime/podbook/internal/interjection"
	"github.com/alkime/podbook/internal/playback"
	"github.com/alkime/podbook/internal/timeline"
	"github.com/alkime/podbook/internal/transcript"
	"github.com/alkime/podbook/internal/tui"
	"github.com/alkime/podbook/internal/tui/msg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

type outputChecker struct {
	intervl, timeout time.Duration
}

func defaultChecker() outputChecker {
	return outputChecker{
		intervl: 50 * time.Millisecond,
		timeout: 3 * time.Second,
	}
}

func (o outputChecker) checkString(t *testing.T, tm *teatest.TestModel, substr string) {
	t.Helper()
	teatest.WaitFor(t, tm.Output(), func(buf []byte) bool {
		return bytes.Contains(buf, []byte(substr))
	}, teatest.WithCheckInterval(o.intervl), teatest.WithDuration(o.timeout))
}

// fakeEngine records calls. Observe hands back the observer so tests can
// play the engine's part.
type fakeEngine struct {
	mu       sync.Mutex
	calls    []string
	beginErr error
	observer engine.Observer
}

func (f *fakeEngine) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeEngine) TogglePlayPause(context.Context) error { f.record("toggle"); return nil }
func (f *fakeEngine) SkipForward(context.Context) error     { f.record("skip+"); return nil }
func (f *fakeEngine) SkipBackward(context.Context) error    { f.record("skip-"); return nil }
func (f *fakeEngine) ScrollStarted(context.Context) error   { return nil }
func (f *fakeEngine) ScrollEnded(context.Context) error     { return nil }
func (f *fakeEngine) StopListening()                        {}
func (f *fakeEngine) CanListen() bool                       { return false }

func (f *fakeEngine) SeekFraction(context.Context, float64) error { return nil }
func (f *fakeEngine) SelectSegment(context.Context, int) error    { return nil }

func (f *fakeEngine) Timeline(context.Context) (*timeline.Timeline, error) {
	return timeline.New(timeline.PhaseSpec{Phase: timeline.Main, SourceRef: "m.mp3", Duration: time.Minute})
}

func (f *fakeEngine) Snapshot(context.Context) (playback.Snapshot, error) {
	return playback.Snapshot{EpisodeID: "ep-1", CombinedPosition: 12 * time.Second}, nil
}

func (f *fakeEngine) Segments(context.Context) ([]transcript.Segment, error) {
	return []transcript.Segment{{ID: 0, End: time.Minute, Text: "a long walk across the bridge"}}, nil
}

func (f *fakeEngine) BeginQuestion(context.Context) (interjection.Session, error) {
	f.record("begin")
	return interjection.Session{}, f.beginErr
}

func (f *fakeEngine) Ask(_ context.Context, text string) error {
	f.record("ask:" + text)
	return nil
}

func (f *fakeEngine) CancelQuestion(context.Context) error {
	f.record("cancel")
	return nil
}

func (f *fakeEngine) Listen(context.Context) (string, error) {
	return "", errors.New("no microphone")
}

func (f *fakeEngine) Observe(_ context.Context, o engine.Observer) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observer = o
	return func() {}, nil
}

func newTestModel(t *testing.T, eng *fakeEngine) *teatest.TestModel {
	t.Helper()
	m := tui.New(context.Background(), eng, tui.Config{Title: "The Bridge Episode"})
	return teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 30))
}

func TestTUI_LoadsAndQuits(t *testing.T) {
	checker := defaultChecker()
	tm := newTestModel(t, &fakeEngine{})

	checker.checkString(t, tm, "The Bridge Episode")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))
}

func TestTUI_QuestionFlow(t *testing.T) {
	checker := defaultChecker()
	eng := &fakeEngine{}
	tm := newTestModel(t, eng)
	checker.checkString(t, tm, "The Bridge Episode")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	require.Eventually(t, func() bool {
		return len(eng.Calls()) == 1 && eng.Calls()[0] == "begin"
	}, time.Second, 10*time.Millisecond)

	tm.Send(msg.InterjectionMsg{Event: interjection.Event{Kind: interjection.Started}})
	checker.checkString(t, tm, "Ask about this episode")

	// q is text while the question screen is open.
	tm.Type("q?")
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
	checker.checkString(t, tm, "Thinking about your question")
	assert.Equal(t, []string{"begin", "ask:q?"}, eng.Calls())

	tm.Send(msg.InterjectionMsg{Event: interjection.Event{Kind: interjection.Resumed}})
	checker.checkString(t, tm, "a long walk across the bridge")

	require.NoError(t, tm.Quit())
}

func TestTUI_RemoteQuestionSkipsCompose(t *testing.T) {
	checker := defaultChecker()
	tm := newTestModel(t, &fakeEngine{})
	checker.checkString(t, tm, "The Bridge Episode")

	tm.Send(msg.InterjectionMsg{Event: interjection.Event{Kind: interjection.Started}})
	checker.checkString(t, tm, "Thinking about your question")

	tm.Send(msg.InterjectionMsg{Event: interjection.Event{
		Kind: interjection.Failed,
		Err:  interjection.ErrInterjectionTimedOut,
	}})
	checker.checkString(t, tm, "question failed")

	require.NoError(t, tm.Quit())
}

func TestTUI_BeginFails(t *testing.T) {
	checker := defaultChecker()
	tm := newTestModel(t, &fakeEngine{beginErr: engine.ErrNotOpen})
	checker.checkString(t, tm, "The Bridge Episode")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	checker.checkString(t, tm, "no episode open")

	require.NoError(t, tm.Quit())
}
