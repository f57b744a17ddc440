// Package qa submits listener questions to an answer backend and waits for
// the spoken answer.
package qa

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultPollInterval = time.Second
	DefaultPollAttempts = 180
)

var (
	ErrQuestionFailed   = errors.New("question failed")
	ErrAnswerTimedOut   = errors.New("answer not ready")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrQuestionCanceled = errors.New("question canceled")
)

// Question is what the listener asked and where.
type Question struct {
	EpisodeID string
	Text      string
	// At is the global playback position the question was asked at.
	At                time.Duration
	TranscriptContext string
}

type State string

const (
	Pending   State = "pending"
	Completed State = "completed"
	Failed    State = "failed"
)

type Status struct {
	State    State
	AudioURL string
	Message  string
}

func (s Status) Done() bool {
	return s.State == Completed || s.State == Failed
}

// Backend produces spoken answers asynchronously.
type Backend interface {
	Submit(ctx context.Context, q Question) (string, error)
	Status(ctx context.Context, id string) (Status, error)
	Cancel(ctx context.Context, id string) error
}

// Wait polls the backend every interval until the answer for id is done,
// giving up after maxAttempts polls. A failed answer is returned with
// ErrQuestionFailed.
func Wait(ctx context.Context, b Backend, id string, interval time.Duration, maxAttempts int) (Status, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollAttempts
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return Status{}, ctx.Err()
		case <-timer.C:
		}

		st, err := b.Status(ctx, id)
		if err != nil {
			return Status{}, fmt.Errorf("failed to poll question %s: %w", id, err)
		}

		switch st.State {
		case Completed:
			if st.AudioURL == "" {
				return st, fmt.Errorf("%w: completed without audio", ErrQuestionFailed)
			}
			return st, nil
		case Failed:
			msg := st.Message
			if msg == "" {
				msg = "failed to generate response"
			}
			return st, fmt.Errorf("%w: %s", ErrQuestionFailed, msg)
		}

		timer.Reset(interval)
	}

	return Status{State: Pending}, fmt.Errorf("%w after %d attempts", ErrAnswerTimedOut, maxAttempts)
}
