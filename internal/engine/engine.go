// Package engine assembles the playback controller, transcript sync,
// interjection coordinator and question pipeline around one scheduling loop
// and exposes goroutine-safe commands for the terminal UI, the remote
// control server and the CLI.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alkime/podbook/internal/clock"
	"github.com/alkime/podbook/internal/episode"
	"github.com/alkime/podbook/internal/interjection"
	"github.com/alkime/podbook/internal/playback"
	"github.com/alkime/podbook/internal/qa"
	"github.com/alkime/podbook/internal/timeline"
	"github.com/alkime/podbook/internal/timesource"
	"github.com/alkime/podbook/internal/transcript"
	"github.com/alkime/podbook/pkg/channels"
)

var (
	ErrQuestionsDisabled = errors.New("questions are not configured")
	ErrListenerDisabled  = errors.New("microphone is not configured")
	ErrNotOpen           = errors.New("no episode open")
)

const (
	DefaultContextRadius = 30 * time.Second
	DefaultSaveEvery     = 5 * time.Second
)

type Config struct {
	SkipInterval        time.Duration
	SpringBackDelay     time.Duration
	InterjectionTimeout time.Duration
	WordsPerSegment     int
	PollInterval        time.Duration
	PollAttempts        int
	// ContextRadius is how much transcript on each side of the question is
	// sent along with it.
	ContextRadius time.Duration
	// SaveEvery throttles resume position writes during playback.
	SaveEvery time.Duration
	Autoplay  bool
}

func (c Config) WithDefaults() Config {
	if c.SkipInterval <= 0 {
		c.SkipInterval = playback.DefaultSkipInterval
	}
	if c.SpringBackDelay <= 0 {
		c.SpringBackDelay = transcript.DefaultSpringBackDelay
	}
	if c.InterjectionTimeout <= 0 {
		c.InterjectionTimeout = interjection.DefaultReadyTimeout
	}
	if c.WordsPerSegment <= 0 {
		c.WordsPerSegment = transcript.DefaultWordsPerSegment
	}
	if c.PollInterval <= 0 {
		c.PollInterval = qa.DefaultPollInterval
	}
	if c.PollAttempts <= 0 {
		c.PollAttempts = qa.DefaultPollAttempts
	}
	if c.ContextRadius <= 0 {
		c.ContextRadius = DefaultContextRadius
	}
	if c.SaveEvery <= 0 {
		c.SaveEvery = DefaultSaveEvery
	}

	return c
}

// Store keeps resume positions and the pending interjection.
type Store interface {
	interjection.SessionStore
	SavePosition(ctx context.Context, episodeID string, pos time.Duration) error
	Position(ctx context.Context, episodeID string) (time.Duration, bool, error)
}

// Listener records a spoken question.
type Listener interface {
	Listen(ctx context.Context) (string, error)
	Stop()
}

// Deps are the collaborators the engine drives. Provider is required.
type Deps struct {
	Provider timesource.Provider
	Backend  qa.Backend
	Listener Listener
	Store    Store
	Logger   *slog.Logger
}

type savedPosition struct {
	episodeID string
	pos       time.Duration
}

// Engine is safe for concurrent use. Components it owns are only touched on
// its loop.
type Engine struct {
	config   Config
	loop     *channels.Loop
	sched    clock.Scheduler
	ctrl     *playback.Controller
	coord    *interjection.Coordinator
	asker    *qa.Asker
	listener Listener
	store    Store
	logger   *slog.Logger

	// loop only
	sync      *transcript.SyncEngine
	bridge    *playback.TranscriptBridge
	unsubs    []func()
	lastSaved time.Duration

	observers    []*observation
	nextObserver uint64

	saveC chan savedPosition
	wg    sync.WaitGroup
}

func New(config Config, deps Deps) (*Engine, error) {
	if deps.Provider == nil {
		return nil, errors.New("timesource provider cannot be nil")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	config = config.WithDefaults()
	loop := channels.NewLoop()
	sched := clock.OnLoop(loop)

	e := &Engine{
		config:   config,
		loop:     loop,
		sched:    sched,
		listener: deps.Listener,
		store:    deps.Store,
		logger:   logger,
		saveC:    make(chan savedPosition, 16),
	}

	e.ctrl = playback.New(deps.Provider,
		playback.WithLogger(logger.With("component", "playback")),
		playback.WithPoster(loop),
		playback.WithSkipInterval(config.SkipInterval),
		playback.WithAutoplay(config.Autoplay),
	)

	coordOpts := []interjection.Option{
		interjection.WithLogger(logger.With("component", "interjection")),
		interjection.WithPoster(loop),
		interjection.WithReadyTimeout(config.InterjectionTimeout),
	}
	if deps.Store != nil {
		coordOpts = append(coordOpts, interjection.WithStore(deps.Store))
	}
	e.coord = interjection.New(e.ctrl, deps.Provider, sched, coordOpts...)

	if deps.Backend != nil {
		e.asker = qa.NewAsker(deps.Backend, e.coord,
			qa.WithPolling(config.PollInterval, config.PollAttempts),
			qa.WithAskerPoster(loop),
			qa.WithAskerLogger(logger.With("component", "qa")),
		)
	}

	return e, nil
}

// Run starts the loop and the position writer. Both stop with ctx.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.loop.Run(ctx); err != nil {
		return err
	}

	e.wg.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-e.saveC:
				e.writePosition(context.WithoutCancel(ctx), p)
			}
		}
	})

	return nil
}

func (e *Engine) writePosition(ctx context.Context, p savedPosition) {
	if e.store == nil {
		return
	}

	if err := e.store.SavePosition(ctx, p.episodeID, p.pos); err != nil {
		e.logger.Warn("failed to save position", "episode", p.episodeID, "error", err)
	}
}

// Loop is the scheduling context every owned component lives on.
func (e *Engine) Loop() *channels.Loop {
	return e.loop
}

// Wait blocks until the loop and position writer have exited.
func (e *Engine) Wait() {
	e.loop.Wait()
	e.wg.Wait()
}

// Do runs fn on the loop with the owned components and waits for it.
func (e *Engine) Do(ctx context.Context, fn func(c Components) error) error {
	var opErr error
	if err := e.loop.Do(ctx, func() {
		opErr = fn(Components{Player: e.ctrl, Transcript: e.sync, Interjection: e.coord})
	}); err != nil {
		return err
	}

	return opErr
}

// Components are only valid inside Do. Transcript is nil before Open or
// for episodes without word timings.
type Components struct {
	Player       *playback.Controller
	Transcript   *transcript.SyncEngine
	Interjection *interjection.Coordinator
}

// Open loads ep and positions it at start, or at the saved resume position
// when start is negative. A question left pending by an earlier run is
// picked up again.
func (e *Engine) Open(ctx context.Context, ep episode.Episode, start time.Duration) error {
	if start < 0 {
		start = e.resumePosition(ctx, ep.ID)
	}

	var recovered *interjection.Session
	err := e.Do(ctx, func(c Components) error {
		e.closeTranscript()

		if err := c.Player.Load(context.WithoutCancel(ctx), ep); err != nil {
			return err
		}

		if start > 0 {
			if err := c.Player.Seek(start); err != nil {
				return fmt.Errorf("failed to seek to %s: %w", start, err)
			}
		}
		e.lastSaved = start

		if len(ep.Transcript) > 0 {
			segs := transcript.Group(transcript.WordsFromEpisode(ep.Transcript), e.config.WordsPerSegment)
			e.sync = transcript.NewSyncEngine(segs, e.sched,
				transcript.WithSpringBackDelay(e.config.SpringBackDelay),
				transcript.WithSyncLogger(e.logger.With("component", "transcript")),
			)
			e.bridge = playback.NewTranscriptBridge(c.Player, e.sync)
		}
		for _, obs := range e.observers {
			e.attachTranscript(obs)
		}

		e.unsubs = append(e.unsubs, c.Player.Subscribe(e.trackPosition))

		s, ok, err := c.Interjection.RecoverSession(ctx)
		if err != nil {
			e.logger.Warn("failed to recover interjection", "error", err)
		}
		if ok {
			recovered = &s
		}

		return nil
	})
	if err != nil {
		return err
	}

	if recovered != nil {
		e.resumeQuestion(ctx, *recovered)
	}

	return nil
}

func (e *Engine) resumePosition(ctx context.Context, episodeID string) time.Duration {
	if e.store == nil {
		return 0
	}

	pos, ok, err := e.store.Position(ctx, episodeID)
	if err != nil {
		e.logger.Warn("failed to read resume position", "episode", episodeID, "error", err)
		return 0
	}
	if ok {
		e.logger.Info("resuming episode", "episode", episodeID, "at", pos)
	}

	return pos
}

// resumeQuestion waits for a recovered question's answer, or abandons the
// session when there is nothing to wait for.
func (e *Engine) resumeQuestion(ctx context.Context, s interjection.Session) {
	if e.asker == nil || s.QuestionID == "" || s.EpisodeID == "" {
		_ = e.Do(ctx, func(c Components) error { return c.Interjection.Cancel(ctx) })
		return
	}

	e.wg.Go(func() {
		if _, err := e.asker.Resume(context.WithoutCancel(ctx), s.QuestionID); err != nil {
			e.logger.Warn("recovered question did not complete", "question", s.QuestionID, "error", err)
		}
	})
}

// trackPosition queues resume position writes. Runs on the loop.
func (e *Engine) trackPosition(ev playback.Event) {
	snap := ev.Snapshot
	if snap.EpisodeID == "" {
		return
	}

	pos := snap.CombinedPosition
	switch ev.Kind {
	case playback.EventCompleted:
		pos = 0
	case playback.EventStatusChanged:
		if snap.Status != playback.StatusPaused {
			return
		}
	case playback.EventPositionChanged:
		if d := pos - e.lastSaved; d < e.config.SaveEvery && d > -e.config.SaveEvery {
			return
		}
	default:
		return
	}

	e.lastSaved = pos
	if err := channels.SendNonBlock(e.saveC, savedPosition{episodeID: snap.EpisodeID, pos: pos}); err != nil {
		e.logger.Debug("position save dropped", "error", err)
	}
}

// closeTranscript detaches the previous episode. Runs on the loop.
func (e *Engine) closeTranscript() {
	for _, unsub := range e.unsubs {
		unsub()
	}
	e.unsubs = nil

	if e.bridge != nil {
		e.bridge.Close()
		e.bridge = nil
	}
	if e.sync != nil {
		e.sync.Close()
		e.sync = nil
	}
}

// Close saves the final position and disposes the controller.
func (e *Engine) Close(ctx context.Context) error {
	if e.asker != nil && e.asker.Busy() {
		if err := e.asker.Cancel(ctx); err != nil {
			e.logger.Warn("failed to cancel question", "error", err)
		}
	}

	var final *savedPosition
	err := e.Do(ctx, func(c Components) error {
		snap := c.Player.Snapshot()
		if snap.EpisodeID != "" {
			pos := snap.CombinedPosition
			if snap.Status == playback.StatusCompleted {
				pos = 0
			}
			final = &savedPosition{episodeID: snap.EpisodeID, pos: pos}
		}

		e.closeTranscript()
		c.Player.Dispose()
		return nil
	})
	if err != nil && !errors.Is(err, channels.ErrLoopStopped) {
		return err
	}

	if final != nil {
		e.writePosition(ctx, *final)
	}

	return nil
}

// Snapshot returns the current playback snapshot.
func (e *Engine) Snapshot(ctx context.Context) (playback.Snapshot, error) {
	var snap playback.Snapshot
	err := e.Do(ctx, func(c Components) error {
		snap = c.Player.Snapshot()
		return nil
	})

	return snap, err
}

// Timeline returns the current phase layout, nil before Open.
func (e *Engine) Timeline(ctx context.Context) (*timeline.Timeline, error) {
	var tl *timeline.Timeline
	err := e.Do(ctx, func(c Components) error {
		tl = c.Player.Timeline()
		return nil
	})

	return tl, err
}

// Segments returns the grouped transcript of the open episode.
func (e *Engine) Segments(ctx context.Context) ([]transcript.Segment, error) {
	var segs []transcript.Segment
	err := e.Do(ctx, func(c Components) error {
		if c.Transcript != nil {
			segs = c.Transcript.Segments()
		}
		return nil
	})

	return segs, err
}
