package engine

import (
	"context"
	"time"

	"github.com/alkime/podbook/internal/interjection"
	"github.com/alkime/podbook/internal/qa"
	"github.com/alkime/podbook/internal/timeline"
)

func (e *Engine) Play(ctx context.Context) error {
	return e.Do(ctx, func(c Components) error { return c.Player.Play() })
}

func (e *Engine) Pause(ctx context.Context) error {
	return e.Do(ctx, func(c Components) error { return c.Player.Pause() })
}

func (e *Engine) TogglePlayPause(ctx context.Context) error {
	return e.Do(ctx, func(c Components) error { return c.Player.TogglePlayPause() })
}

// SkipForward moves the configured skip interval forward.
func (e *Engine) SkipForward(ctx context.Context) error {
	return e.Do(ctx, func(c Components) error { return c.Player.SkipForward(0) })
}

func (e *Engine) SkipBackward(ctx context.Context) error {
	return e.Do(ctx, func(c Components) error { return c.Player.SkipBackward(0) })
}

func (e *Engine) Seek(ctx context.Context, g time.Duration) error {
	return e.Do(ctx, func(c Components) error { return c.Player.Seek(g) })
}

// SeekFraction moves by frac of the whole episode, negative to go back.
func (e *Engine) SeekFraction(ctx context.Context, frac float64) error {
	return e.Do(ctx, func(c Components) error {
		snap := c.Player.Snapshot()
		delta := time.Duration(frac * float64(snap.GlobalDuration))
		return c.Player.Seek(max(snap.CombinedPosition+delta, 0))
	})
}

func (e *Engine) ScrollStarted(ctx context.Context) error {
	return e.Do(ctx, func(c Components) error {
		if c.Transcript != nil {
			c.Transcript.UserDidStartScroll()
		}
		return nil
	})
}

func (e *Engine) ScrollEnded(ctx context.Context) error {
	return e.Do(ctx, func(c Components) error {
		if c.Transcript != nil {
			c.Transcript.UserDidEndScroll()
		}
		return nil
	})
}

// SelectSegment seeks playback to the start of segment id.
func (e *Engine) SelectSegment(ctx context.Context, id int) error {
	return e.Do(ctx, func(c Components) error {
		if c.Transcript == nil {
			return ErrNotOpen
		}
		return c.Transcript.UserDidSelectSegment(id)
	})
}

// BeginQuestion pauses playback and captures where the question is asked.
func (e *Engine) BeginQuestion(ctx context.Context) (interjection.Session, error) {
	var s interjection.Session
	err := e.Do(ctx, func(c Components) error {
		snap := c.Player.Snapshot()
		if snap.EpisodeID == "" {
			return ErrNotOpen
		}

		var err error
		s, err = c.Interjection.Begin(ctx, snap.CombinedPosition)
		return err
	})

	return s, err
}

// Ask submits text for the open interjection and returns once the question
// is on its way. The answer plays, or the failure is reported, through
// interjection events.
func (e *Engine) Ask(ctx context.Context, text string) error {
	if e.asker == nil {
		return ErrQuestionsDisabled
	}

	var q qa.Question
	err := e.Do(ctx, func(c Components) error {
		s, ok := c.Interjection.Session()
		if !ok {
			return interjection.ErrNoSession
		}

		q = qa.Question{EpisodeID: s.EpisodeID, Text: text, At: s.CapturedGlobalTime}
		if c.Transcript != nil {
			q.TranscriptContext = c.Transcript.ContextAround(mainTime(c.Player.Timeline(), s.CapturedGlobalTime), e.config.ContextRadius)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.wg.Go(func() {
		if _, err := e.asker.Ask(context.WithoutCancel(ctx), q); err != nil {
			e.logger.Warn("question did not complete", "error", err)
		}
	})

	return nil
}

// AskNow begins an interjection at the current position and asks text.
func (e *Engine) AskNow(ctx context.Context, text string) error {
	if e.asker == nil {
		return ErrQuestionsDisabled
	}

	if _, err := e.BeginQuestion(ctx); err != nil {
		return err
	}

	if err := e.Ask(ctx, text); err != nil {
		_ = e.CancelQuestion(ctx)
		return err
	}

	return nil
}

// CancelQuestion abandons the question in any state and resumes playback.
func (e *Engine) CancelQuestion(ctx context.Context) error {
	if e.listener != nil {
		e.listener.Stop()
	}

	if e.asker != nil && e.asker.Busy() {
		return e.asker.Cancel(ctx)
	}

	return e.Do(ctx, func(c Components) error { return c.Interjection.Cancel(ctx) })
}

// Listen records a spoken question and returns its text. It blocks until
// the speaker falls silent or StopListening is called.
func (e *Engine) Listen(ctx context.Context) (string, error) {
	if e.listener == nil {
		return "", ErrListenerDisabled
	}

	return e.listener.Listen(ctx)
}

func (e *Engine) StopListening() {
	if e.listener != nil {
		e.listener.Stop()
	}
}

// CanListen reports whether a microphone listener is configured.
func (e *Engine) CanListen() bool {
	return e.listener != nil
}

// mainTime converts global time g to main-phase time, clamping positions
// in the intro to 0 and in the outro to the end of main.
func mainTime(tl *timeline.Timeline, g time.Duration) time.Duration {
	if tl == nil {
		return g
	}

	pos, err := tl.Localize(g)
	if err != nil {
		return g
	}

	switch pos.Phase {
	case timeline.Main:
		return pos.Local
	case timeline.Intro:
		return 0
	default:
		return tl.Duration(timeline.Main)
	}
}
