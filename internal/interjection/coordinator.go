// Package interjection splices an answer clip into a playing episode and
// returns the listener to exactly where they were.
package interjection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alkime/podbook/internal/clock"
	"github.com/alkime/podbook/internal/playback"
	"github.com/alkime/podbook/internal/timeline"
	"github.com/alkime/podbook/internal/timesource"
)

const DefaultReadyTimeout = 10 * time.Second

var (
	ErrInterjectionActive   = errors.New("interjection already active")
	ErrInterjectionTimedOut = errors.New("interjection timed out")
	ErrInterjectionFailed   = errors.New("interjection failed")
	ErrNoSession            = errors.New("no active interjection")
)

// Session is the only state that survives while a question is processed.
type Session struct {
	EpisodeID          string
	QuestionID         string
	CapturedGlobalTime time.Duration
	OriginalPhase      timeline.Phase
	WasPlaying         bool
	StartedAt          time.Time
}

// Player is the part of playback.Controller the coordinator drives.
type Player interface {
	Snapshot() playback.Snapshot
	Pause() error
	Suspend() (playback.Resumable, error)
	Restore(g time.Duration, playing bool) error
}

// SessionStore persists the session so a rebuilt player can resume.
type SessionStore interface {
	SaveInterjection(ctx context.Context, s Session) error
	PendingInterjection(ctx context.Context) (Session, bool, error)
	ClearInterjection(ctx context.Context) error
}

type EventKind int

const (
	Started EventKind = iota
	AnswerPlaying
	Resumed
	Failed
)

func (k EventKind) String() string {
	switch k {
	case Started:
		return "started"
	case AnswerPlaying:
		return "answer_playing"
	case Resumed:
		return "resumed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind    EventKind
	Session Session
	Err     error
}

type Option func(*Coordinator)

func WithReadyTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithStore persists sessions as they change.
func WithStore(s SessionStore) Option {
	return func(c *Coordinator) {
		c.store = s
	}
}

// WithPoster re-posts transient source callbacks onto the scheduling context.
func WithPoster(p timesource.Poster) Option {
	return func(c *Coordinator) {
		c.poster = p
	}
}

// Coordinator owns the interjection session and the transient answer
// source. The phase source and the transient source never play together.
//
// Not safe for concurrent use.
type Coordinator struct {
	player   Player
	provider timesource.Provider
	sched    clock.Scheduler
	poster   timesource.Poster
	store    SessionStore
	timeout  time.Duration
	logger   *slog.Logger

	session   *Session
	transient timesource.Source
	gen       uint64
	timer     clock.Timer

	subs    []func(Event)
	subIDs  []uint64
	nextSub uint64
}

// New creates a coordinator splicing answers into player.
func New(player Player, provider timesource.Provider, sched clock.Scheduler, opts ...Option) *Coordinator {
	c := &Coordinator{
		player:   player,
		provider: provider,
		sched:    sched,
		timeout:  DefaultReadyTimeout,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Subscribe registers fn for coordinator events.
func (c *Coordinator) Subscribe(fn func(Event)) func() {
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, fn)
	c.subIDs = append(c.subIDs, id)

	return func() {
		for i, sid := range c.subIDs {
			if sid == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				c.subIDs = append(c.subIDs[:i:i], c.subIDs[i+1:]...)
				return
			}
		}
	}
}

func (c *Coordinator) emit(ev Event) {
	for _, fn := range c.subs {
		fn(ev)
	}
}

// Active reports whether a session exists.
func (c *Coordinator) Active() bool {
	return c.session != nil
}

// Session returns a copy of the active session.
func (c *Coordinator) Session() (Session, bool) {
	if c.session == nil {
		return Session{}, false
	}

	return *c.session, true
}

// Begin pauses playback and captures the position at global time at.
func (c *Coordinator) Begin(ctx context.Context, at time.Duration) (Session, error) {
	if c.session != nil {
		return Session{}, ErrInterjectionActive
	}

	snap := c.player.Snapshot()
	if err := c.player.Pause(); err != nil {
		return Session{}, fmt.Errorf("failed to pause for interjection: %w", err)
	}

	c.session = &Session{
		EpisodeID:          snap.EpisodeID,
		CapturedGlobalTime: at,
		OriginalPhase:      snap.Phase,
		WasPlaying:         snap.IsPlaying,
		StartedAt:          c.sched.Now(),
	}

	c.logger.Info("interjection started", "at", at, "phase", snap.Phase, "was_playing", snap.IsPlaying)
	c.persist(ctx)
	c.emit(Event{Kind: Started, Session: *c.session})

	return *c.session, nil
}

// SetQuestionID records the backend's ID for the pending question.
func (c *Coordinator) SetQuestionID(ctx context.Context, id string) error {
	if c.session == nil {
		return ErrNoSession
	}

	c.session.QuestionID = id
	c.persist(ctx)

	return nil
}

// RecoverSession adopts a session persisted by an earlier player, so its
// answer can still be resolved or cancelled. The player must already have
// the episode loaded.
func (c *Coordinator) RecoverSession(ctx context.Context) (Session, bool, error) {
	if c.session != nil {
		return Session{}, false, ErrInterjectionActive
	}

	if c.store == nil {
		return Session{}, false, nil
	}

	s, ok, err := c.store.PendingInterjection(ctx)
	if err != nil {
		return Session{}, false, fmt.Errorf("failed to read pending interjection: %w", err)
	}

	if !ok {
		return Session{}, false, nil
	}

	c.session = &s
	c.logger.Info("recovered interjection", "question", s.QuestionID, "at", s.CapturedGlobalTime)

	return s, true, nil
}

func (c *Coordinator) persist(ctx context.Context) {
	if c.store == nil || c.session == nil {
		return
	}

	if err := c.store.SaveInterjection(ctx, *c.session); err != nil {
		c.logger.Warn("failed to persist interjection", "error", err)
	}
}

// Resolve suspends the phase source and plays the answer at uri. It returns
// once the load has started; a load failure or a source that does not
// become ready within the timeout ends the session through the resume path
// and is reported as a Failed event.
func (c *Coordinator) Resolve(ctx context.Context, uri string) error {
	if c.session == nil {
		return ErrNoSession
	}

	if c.transient != nil {
		return ErrInterjectionActive
	}

	if _, err := c.player.Suspend(); err != nil {
		c.logger.Debug("suspend before answer", "error", err)
	}

	c.gen++
	gen := c.gen

	src, err := c.provider.Load(ctx, uri, c.listener(gen))
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInterjectionFailed, err)
		_ = c.finish(ctx, err)
		return err
	}

	c.transient = src
	c.timer = c.sched.AfterFunc(c.timeout, func() {
		if gen != c.gen {
			return
		}
		_ = c.finish(context.Background(), fmt.Errorf("%w after %s", ErrInterjectionTimedOut, c.timeout))
	})

	return nil
}

func (c *Coordinator) listener(gen uint64) timesource.Listener {
	var l timesource.Listener = timesource.Callbacks{
		Ready: func(time.Duration) {
			if gen != c.gen || c.transient == nil {
				return
			}
			c.stopTimer()
			c.transient.Seek(0, timesource.ExactTolerance)
			c.transient.Play()
			c.emit(Event{Kind: AnswerPlaying, Session: *c.session})
		},
		End: func() {
			if gen != c.gen {
				return
			}
			_ = c.finish(context.Background(), nil)
		},
		Failure: func(err error) {
			if gen != c.gen {
				return
			}
			_ = c.finish(context.Background(), fmt.Errorf("%w: %w", ErrInterjectionFailed, err))
		},
	}

	if c.poster != nil {
		l = timesource.Marshal(c.poster, l)
	}

	return l
}

// Cancel abandons the interjection and resumes the episode.
func (c *Coordinator) Cancel(ctx context.Context) error {
	if c.session == nil {
		return nil
	}

	c.logger.Info("interjection cancelled")

	return c.finish(ctx, nil)
}

// Fail ends the interjection because the answer could not be produced.
func (c *Coordinator) Fail(ctx context.Context, cause error) error {
	if c.session == nil {
		return ErrNoSession
	}

	err := fmt.Errorf("%w: %w", ErrInterjectionFailed, cause)
	if rerr := c.finish(ctx, err); rerr != nil {
		return errors.Join(err, rerr)
	}

	return err
}

func (c *Coordinator) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// finish tears the transient source down and returns playback to the
// captured position and intent. It runs for every way a session ends.
func (c *Coordinator) finish(ctx context.Context, cause error) error {
	if c.session == nil {
		return nil
	}

	s := *c.session
	c.gen++
	c.stopTimer()

	if c.transient != nil {
		if err := c.transient.Close(); err != nil {
			c.logger.Debug("closing answer source", "error", err)
		}
		c.transient = nil
	}

	c.session = nil

	if c.store != nil {
		if err := c.store.ClearInterjection(ctx); err != nil {
			c.logger.Warn("failed to clear interjection", "error", err)
		}
	}

	if cause != nil {
		c.logger.Warn("interjection ended with error", "error", cause)
		c.emit(Event{Kind: Failed, Session: s, Err: cause})
	}

	err := c.player.Restore(s.CapturedGlobalTime, s.WasPlaying)
	if err != nil {
		err = fmt.Errorf("failed to resume at %s: %w", s.CapturedGlobalTime, err)
	}

	c.logger.Info("interjection resumed", "at", s.CapturedGlobalTime, "playing", s.WasPlaying)
	c.emit(Event{Kind: Resumed, Session: s, Err: err})

	return err
}
