package qa_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/alkime/podbook/internal/qa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBackend answers Status from a fixed script, one entry per poll.
type scriptedBackend struct {
	mu        sync.Mutex
	submitErr error
	script    []qa.Status
	polls     int
	canceled  []string

	// When release is set, Submit signals submitted and holds until
	// release is closed.
	submitted chan struct{}
	release   chan struct{}
}

func (b *scriptedBackend) Submit(context.Context, qa.Question) (string, error) {
	if b.release != nil {
		close(b.submitted)
		<-b.release
	}
	if b.submitErr != nil {
		return "", b.submitErr
	}
	return "q-1", nil
}

func (b *scriptedBackend) Status(context.Context, string) (qa.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := min(b.polls, len(b.script)-1)
	b.polls++
	return b.script[i], nil
}

func (b *scriptedBackend) Cancel(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.canceled = append(b.canceled, id)
	return nil
}

func pending(n int, last qa.Status) []qa.Status {
	out := make([]qa.Status, n, n+1)
	for i := range out {
		out[i] = qa.Status{State: qa.Pending}
	}
	return append(out, last)
}

func TestWait(t *testing.T) {
	ctx := context.Background()

	t.Run("completes", func(t *testing.T) {
		b := &scriptedBackend{script: pending(3, qa.Status{State: qa.Completed, AudioURL: "a.mp3"})}

		st, err := qa.Wait(ctx, b, "q-1", time.Millisecond, 10)
		require.NoError(t, err)
		assert.Equal(t, "a.mp3", st.AudioURL)
		assert.Equal(t, 4, b.polls)
	})

	t.Run("failed with message", func(t *testing.T) {
		b := &scriptedBackend{script: pending(1, qa.Status{State: qa.Failed, Message: "no answer"})}

		_, err := qa.Wait(ctx, b, "q-1", time.Millisecond, 10)
		assert.ErrorIs(t, err, qa.ErrQuestionFailed)
		assert.ErrorContains(t, err, "no answer")
	})

	t.Run("failed without message", func(t *testing.T) {
		b := &scriptedBackend{script: []qa.Status{{State: qa.Failed}}}

		_, err := qa.Wait(ctx, b, "q-1", time.Millisecond, 10)
		assert.ErrorContains(t, err, "failed to generate response")
	})

	t.Run("attempts exhausted", func(t *testing.T) {
		b := &scriptedBackend{script: []qa.Status{{State: qa.Pending}}}

		_, err := qa.Wait(ctx, b, "q-1", time.Millisecond, 5)
		assert.ErrorIs(t, err, qa.ErrAnswerTimedOut)
		assert.Equal(t, 5, b.polls)
	})

	t.Run("context canceled", func(t *testing.T) {
		b := &scriptedBackend{script: []qa.Status{{State: qa.Pending}}}
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := qa.Wait(cctx, b, "q-1", time.Millisecond, 5)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHTTPBackend(t *testing.T) {
	var submitted map[string]any
	var deleted bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "key", r.Header.Get("apikey"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/questions":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
			_, _ = w.Write([]byte(`{"id":"q-9"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/questions/q-9":
			_, _ = w.Write([]byte(`{"status":"completed","audio_url":"https://cdn/a.mp3"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/questions/q-busy":
			_, _ = w.Write([]byte(`{"status":"processing"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/questions/q-9":
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	b := qa.NewHTTPBackend(srv.URL+"/", "key", srv.Client())
	ctx := context.Background()

	id, err := b.Submit(ctx, qa.Question{
		EpisodeID:         "ep-1",
		Text:              "who is that?",
		At:                500 * time.Second,
		TranscriptContext: "some words",
	})
	require.NoError(t, err)
	assert.Equal(t, "q-9", id)
	assert.Equal(t, "ep-1", submitted["episode_id"])
	assert.Equal(t, "who is that?", submitted["question"])
	assert.InDelta(t, 500.0, submitted["timestamp"], 1e-9)
	assert.Equal(t, "some words", submitted["transcript_context"])

	st, err := b.Status(ctx, "q-9")
	require.NoError(t, err)
	assert.Equal(t, qa.Completed, st.State)
	assert.Equal(t, "https://cdn/a.mp3", st.AudioURL)

	st, err = b.Status(ctx, "q-busy")
	require.NoError(t, err)
	assert.Equal(t, qa.Pending, st.State)

	_, err = b.Status(ctx, "q-missing")
	assert.ErrorIs(t, err, qa.ErrUnknownQuestion)

	require.NoError(t, b.Cancel(ctx, "q-9"))
	assert.True(t, deleted)
}

type fakeWriter struct {
	text  string
	err   error
	block chan struct{}
}

func (w *fakeWriter) WriteAnswer(ctx context.Context, _ qa.Question) (string, error) {
	if w.block != nil {
		select {
		case <-w.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return w.text, w.err
}

type fakeSpeaker struct{}

func (fakeSpeaker) Speak(_ context.Context, text string, w io.Writer) error {
	_, err := io.WriteString(w, "ID3"+text)
	return err
}

func TestLocalBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("renders answer", func(t *testing.T) {
		dir := t.TempDir()
		b := qa.NewLocalBackend(&fakeWriter{text: "It is the host."}, fakeSpeaker{}, dir, nil)

		id, err := b.Submit(ctx, qa.Question{Text: "who?"})
		require.NoError(t, err)
		b.Wait()

		st, err := b.Status(ctx, id)
		require.NoError(t, err)
		require.Equal(t, qa.Completed, st.State)
		assert.True(t, strings.HasPrefix(st.AudioURL, dir))

		data, err := os.ReadFile(st.AudioURL)
		require.NoError(t, err)
		assert.Equal(t, "ID3It is the host.", string(data))
	})

	t.Run("writer fails", func(t *testing.T) {
		b := qa.NewLocalBackend(&fakeWriter{err: errors.New("overloaded")}, fakeSpeaker{}, t.TempDir(), nil)

		id, err := b.Submit(ctx, qa.Question{Text: "who?"})
		require.NoError(t, err)
		b.Wait()

		st, err := b.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, qa.Failed, st.State)
		assert.Equal(t, "overloaded", st.Message)
	})

	t.Run("cancel", func(t *testing.T) {
		b := qa.NewLocalBackend(&fakeWriter{block: make(chan struct{})}, fakeSpeaker{}, t.TempDir(), nil)

		id, err := b.Submit(ctx, qa.Question{Text: "who?"})
		require.NoError(t, err)
		require.NoError(t, b.Cancel(ctx, id))
		b.Wait()

		st, err := b.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, qa.Failed, st.State)
		assert.Equal(t, qa.ErrQuestionCanceled.Error(), st.Message)
	})

	t.Run("unknown and empty", func(t *testing.T) {
		b := qa.NewLocalBackend(&fakeWriter{}, fakeSpeaker{}, t.TempDir(), nil)

		_, err := b.Status(ctx, "nope")
		assert.ErrorIs(t, err, qa.ErrUnknownQuestion)
		assert.ErrorIs(t, b.Cancel(ctx, "nope"), qa.ErrUnknownQuestion)

		_, err = b.Submit(ctx, qa.Question{})
		assert.Error(t, err)
	})
}

func TestClaudeWriter(t *testing.T) {
	var prompt string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)

		var body struct {
			Messages []struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		prompt = body.Messages[0].Content[0].Text

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "The host is Maya."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	w := qa.NewClaudeWriter("key", anthropicopt.WithBaseURL(srv.URL), anthropicopt.WithMaxRetries(0))

	text, err := w.WriteAnswer(context.Background(), qa.Question{
		Text:              "who hosts?",
		At:                90 * time.Second,
		TranscriptContext: "welcome back to the show",
	})
	require.NoError(t, err)
	assert.Equal(t, "The host is Maya.", text)
	assert.Contains(t, prompt, "welcome back to the show")
	assert.Contains(t, prompt, "who hosts?")
	assert.Contains(t, prompt, "1m30s")
}

func TestOpenAISpeaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/audio/speech"), r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tts-1", body["model"])
		assert.Equal(t, "mp3", body["response_format"])

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	s := qa.NewOpenAISpeaker("key", openaiopt.WithBaseURL(srv.URL+"/"), openaiopt.WithMaxRetries(0))

	var out strings.Builder
	require.NoError(t, s.Speak(context.Background(), "hello", &out))
	assert.Equal(t, "ID3audio", out.String())
}
