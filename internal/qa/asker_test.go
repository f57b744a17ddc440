package qa_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alkime/podbook/internal/qa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInterjector struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingInterjector) record(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return nil
}

func (r *recordingInterjector) SetQuestionID(_ context.Context, id string) error {
	return r.record("id:" + id)
}

func (r *recordingInterjector) Resolve(_ context.Context, uri string) error {
	return r.record("resolve:" + uri)
}

func (r *recordingInterjector) Fail(context.Context, error) error {
	return r.record("fail")
}

func (r *recordingInterjector) Cancel(context.Context) error {
	return r.record("cancel")
}

func (r *recordingInterjector) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type countingPoster struct {
	mu    sync.Mutex
	posts int
}

func (p *countingPoster) Post(fn func()) error {
	p.mu.Lock()
	p.posts++
	p.mu.Unlock()
	fn()
	return nil
}

func TestAsker(t *testing.T) {
	ctx := context.Background()
	q := qa.Question{EpisodeID: "ep-1", Text: "why?", At: 500 * time.Second}

	t.Run("answer resolves the interjection", func(t *testing.T) {
		b := &scriptedBackend{script: pending(2, qa.Status{State: qa.Completed, AudioURL: "a.mp3"})}
		ij := &recordingInterjector{}
		poster := &countingPoster{}

		a := qa.NewAsker(b, ij, qa.WithPolling(time.Millisecond, 10), qa.WithAskerPoster(poster))

		st, err := a.Ask(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, "a.mp3", st.AudioURL)
		assert.Equal(t, []string{"id:q-1", "resolve:a.mp3"}, ij.Calls())
		assert.Equal(t, 2, poster.posts)
	})

	t.Run("submit failure fails the interjection", func(t *testing.T) {
		b := &scriptedBackend{submitErr: errors.New("offline")}
		ij := &recordingInterjector{}

		_, err := qa.NewAsker(b, ij).Ask(ctx, q)
		assert.ErrorContains(t, err, "offline")
		assert.Equal(t, []string{"fail"}, ij.Calls())
	})

	t.Run("failed answer fails the interjection", func(t *testing.T) {
		b := &scriptedBackend{script: []qa.Status{{State: qa.Failed, Message: "nope"}}}
		ij := &recordingInterjector{}

		_, err := qa.NewAsker(b, ij, qa.WithPolling(time.Millisecond, 10)).Ask(ctx, q)
		assert.ErrorIs(t, err, qa.ErrQuestionFailed)
		assert.Equal(t, []string{"id:q-1", "fail"}, ij.Calls())
	})

	t.Run("cancel while waiting", func(t *testing.T) {
		b := &scriptedBackend{script: []qa.Status{{State: qa.Pending}}}
		ij := &recordingInterjector{}
		a := qa.NewAsker(b, ij, qa.WithPolling(time.Millisecond, 100000))

		done := make(chan error, 1)
		go func() {
			_, err := a.Ask(ctx, q)
			done <- err
		}()

		require.Eventually(t, func() bool {
			b.mu.Lock()
			defer b.mu.Unlock()
			return b.polls > 0
		}, time.Second, time.Millisecond)

		require.NoError(t, a.Cancel(ctx))

		select {
		case err := <-done:
			assert.ErrorIs(t, err, qa.ErrQuestionCanceled)
		case <-time.After(time.Second):
			t.Fatal("ask did not return after cancel")
		}

		assert.Equal(t, []string{"id:q-1", "cancel"}, ij.Calls())
		assert.Equal(t, []string{"q-1"}, b.canceled)
	})

	t.Run("cancel while submitting", func(t *testing.T) {
		b := &scriptedBackend{
			script:    []qa.Status{{State: qa.Pending}},
			submitted: make(chan struct{}),
			release:   make(chan struct{}),
		}
		ij := &recordingInterjector{}
		a := qa.NewAsker(b, ij, qa.WithPolling(time.Millisecond, 100000))

		done := make(chan error, 1)
		go func() {
			_, err := a.Ask(ctx, q)
			done <- err
		}()

		<-b.submitted
		require.NoError(t, a.Cancel(ctx))
		close(b.release)

		select {
		case err := <-done:
			assert.ErrorIs(t, err, qa.ErrQuestionCanceled)
		case <-time.After(time.Second):
			t.Fatal("ask did not return after cancel")
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		assert.Equal(t, []string{"q-1"}, b.canceled)
		assert.Zero(t, b.polls)
		assert.Equal(t, []string{"cancel"}, ij.Calls())
		assert.False(t, a.Busy())
	})
}

func TestAsker_Resume(t *testing.T) {
	b := &scriptedBackend{script: pending(1, qa.Status{State: qa.Completed, AudioURL: "b.mp3"})}
	ij := &recordingInterjector{}
	a := qa.NewAsker(b, ij, qa.WithPolling(time.Millisecond, 10))

	st, err := a.Resume(context.Background(), "q-7")
	require.NoError(t, err)
	assert.Equal(t, "b.mp3", st.AudioURL)
	assert.Equal(t, []string{"resolve:b.mp3"}, ij.Calls())
	assert.False(t, a.Busy())
}
