package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Interjector is the part of interjection.Coordinator the asker drives.
type Interjector interface {
	SetQuestionID(ctx context.Context, id string) error
	Resolve(ctx context.Context, uri string) error
	Fail(ctx context.Context, cause error) error
	Cancel(ctx context.Context) error
}

// Poster runs fn on the interjector's scheduling context.
type Poster interface {
	Post(fn func()) error
}

type AskerOption func(*Asker)

func WithPolling(interval time.Duration, attempts int) AskerOption {
	return func(a *Asker) {
		a.interval = interval
		a.attempts = attempts
	}
}

// WithAskerPoster marshals every interjector call through p.
func WithAskerPoster(p Poster) AskerOption {
	return func(a *Asker) {
		a.poster = p
	}
}

func WithAskerLogger(l *slog.Logger) AskerOption {
	return func(a *Asker) {
		a.logger = l
	}
}

// Asker runs one question at a time from submission to the answer playing.
type Asker struct {
	backend  Backend
	interj   Interjector
	poster   Poster
	interval time.Duration
	attempts int
	logger   *slog.Logger

	mu       sync.Mutex
	current  string
	cancelFn context.CancelFunc
	// canceled records a Cancel that arrived before the backend returned
	// the question's ID.
	canceled bool
}

func NewAsker(backend Backend, interj Interjector, opts ...AskerOption) *Asker {
	a := &Asker{
		backend:  backend,
		interj:   interj,
		interval: DefaultPollInterval,
		attempts: DefaultPollAttempts,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Ask submits q, waits for its answer and hands the answer to the
// interjector. It blocks for the whole round trip, so call it off the
// scheduling context. Any failure ends the interjection through Fail.
func (a *Asker) Ask(ctx context.Context, q Question) (Status, error) {
	ctx, done, err := a.begin(ctx)
	if err != nil {
		return Status{}, err
	}
	defer done()

	id, err := a.backend.Submit(ctx, q)
	if err != nil {
		return Status{}, a.fail(ctx, fmt.Errorf("failed to submit question: %w", err))
	}

	if err := a.adopt(ctx, id); err != nil {
		return Status{}, err
	}

	a.logger.Info("question submitted", "question", id, "at", q.At)
	a.call(func() error { return a.interj.SetQuestionID(ctx, id) })

	return a.await(ctx, id)
}

// Resume waits for the answer to a question submitted by an earlier run,
// typically one recovered from the session store.
func (a *Asker) Resume(ctx context.Context, id string) (Status, error) {
	ctx, done, err := a.begin(ctx)
	if err != nil {
		return Status{}, err
	}
	defer done()

	if err := a.adopt(ctx, id); err != nil {
		return Status{}, err
	}

	a.logger.Info("resuming question", "question", id)

	return a.await(ctx, id)
}

func (a *Asker) begin(ctx context.Context) (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancelFn != nil {
		cancel()
		return nil, nil, errors.New("a question is already in flight")
	}
	a.cancelFn, a.canceled = cancel, false

	return ctx, func() {
		cancel()
		a.mu.Lock()
		a.current, a.cancelFn, a.canceled = "", nil, false
		a.mu.Unlock()
	}, nil
}

// adopt makes id the in-flight question. When the question was canceled
// before its ID was known, the backend is told here instead.
func (a *Asker) adopt(ctx context.Context, id string) error {
	a.mu.Lock()
	canceled := a.canceled
	if !canceled {
		a.current = id
	}
	a.mu.Unlock()

	if !canceled {
		return nil
	}

	a.logger.Info("question canceled during submit", "question", id)
	if err := a.backend.Cancel(context.WithoutCancel(ctx), id); err != nil && !errors.Is(err, ErrUnknownQuestion) {
		a.logger.Warn("failed to cancel question", "question", id, "error", err)
	}

	return fmt.Errorf("%w: %s", ErrQuestionCanceled, id)
}

func (a *Asker) await(ctx context.Context, id string) (Status, error) {
	st, err := Wait(ctx, a.backend, id, a.interval, a.attempts)
	if err != nil {
		return st, a.fail(ctx, err)
	}

	a.logger.Info("answer ready", "question", id, "audio", st.AudioURL)
	a.call(func() error { return a.interj.Resolve(context.WithoutCancel(ctx), st.AudioURL) })

	return st, nil
}

// Busy reports whether a question is in flight.
func (a *Asker) Busy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.cancelFn != nil
}

// fail reports err to the interjector unless the question was canceled, in
// which case Cancel already resumed playback.
func (a *Asker) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrQuestionCanceled, err)
	}

	a.call(func() error { return a.interj.Fail(context.WithoutCancel(ctx), err) })

	return err
}

// Cancel abandons the in-flight question, tells the backend, and resumes
// playback.
func (a *Asker) Cancel(ctx context.Context) error {
	a.mu.Lock()
	id, cancel := a.current, a.cancelFn
	if cancel != nil && id == "" {
		a.canceled = true
	}
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var errs []error
	if id != "" {
		if err := a.backend.Cancel(ctx, id); err != nil && !errors.Is(err, ErrUnknownQuestion) {
			errs = append(errs, err)
		}
	}

	a.call(func() error { return a.interj.Cancel(ctx) })

	return errors.Join(errs...)
}

func (a *Asker) call(fn func() error) {
	run := func() {
		if err := fn(); err != nil {
			a.logger.Warn("interjection call failed", "error", err)
		}
	}

	if a.poster == nil {
		run()
		return
	}

	if err := a.poster.Post(run); err != nil {
		a.logger.Warn("failed to post interjection call", "error", err)
	}
}
