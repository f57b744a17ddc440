// Package playback drives an episode's phases through a single live
// timesource: loading, phase advance, seeking across phase boundaries and
// the suspend/restore hooks used for interjections.
//
// A Controller is not safe for concurrent use. All calls, including the
// source callbacks, must happen on one scheduling context; use WithPoster to
// have callbacks re-posted there.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alkime/podbook/internal/episode"
	"github.com/alkime/podbook/internal/timeline"
	"github.com/alkime/podbook/internal/timesource"
)

var (
	ErrNoEpisode = errors.New("no episode loaded")
	ErrDisposed  = errors.New("controller disposed")
	// ErrSuspended rejects playback commands while another source plays in
	// place of the episode.
	ErrSuspended = errors.New("playback suspended")
)

// pendingLoad is the phase load currently in flight. Only the load whose
// generation matches Controller.gen may complete.
type pendingLoad struct {
	gen   uint64
	phase timeline.Phase
	local time.Duration
	seek  bool
	// endOnArrival turns the arrival into a phase advance, used when a
	// forward skip queued during the load reached the end of the phase.
	endOnArrival bool
}

// A source seek is settled by the first tick near its target. Ticks sampled
// before the seek was applied may still be queued behind it; they are
// dropped, at most maxSeekWait of them.
const (
	seekSlack   = 100 * time.Millisecond
	seekWindow  = time.Second
	maxSeekWait = 10
)

type seekWait struct {
	target  time.Duration
	dropped int
}

func (w *seekWait) settles(pos time.Duration) bool {
	return pos >= w.target-seekSlack && pos <= w.target+seekWindow
}

type subscription struct {
	id uint64
	fn func(Event)
}

// Controller owns the live phase source and the playback state.
type Controller struct {
	provider     timesource.Provider
	poster       timesource.Poster
	logger       *slog.Logger
	skipInterval time.Duration
	tolerance    timesource.Tolerance
	autoplay     bool

	ctx    context.Context //nolint:containedctx // lifecycle of the loaded episode
	cancel context.CancelFunc

	episode *episode.Episode
	tl      *timeline.Timeline
	state   State
	source  timesource.Source
	gen     uint64
	pending *pendingLoad
	played  bool
	seek    *seekWait
	// suspended is set between Suspend and Restore; no phase source may
	// load in that window.
	suspended bool

	subs    []subscription
	nextSub uint64

	disposed bool
}

// New creates an idle controller loading streams through provider.
func New(provider timesource.Provider, opts ...Option) *Controller {
	c := &Controller{
		provider:     provider,
		logger:       slog.Default(),
		skipInterval: DefaultSkipInterval,
		tolerance:    timesource.ExactTolerance,
		ctx:          context.Background(),
		cancel:       func() {},
		state:        State{Status: StatusIdle, Phase: timeline.Main},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Subscribe registers fn for every event. Events are delivered synchronously
// in emission order. The returned func removes the subscription.
func (c *Controller) Subscribe(fn func(Event)) func() {
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscription{id: id, fn: fn})

	return func() {
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

func (c *Controller) emit(kind EventKind, mod func(*Event)) {
	ev := Event{Kind: kind, Snapshot: c.Snapshot()}
	if mod != nil {
		mod(&ev)
	}

	subs := c.subs
	for _, s := range subs {
		s.fn(ev)
	}
}

func (c *Controller) setStatus(s Status) {
	if c.state.Status == s {
		return
	}

	c.logger.Debug("playback status", "from", c.state.Status, "to", s, "phase", c.state.Phase)
	c.state.Status = s
	c.emit(EventStatusChanged, nil)
}

func (c *Controller) setPhase(p timeline.Phase) {
	if c.state.Phase == p {
		return
	}

	c.state.Phase = p
	c.emit(EventPhaseChanged, nil)
}

func (c *Controller) setLocal(local time.Duration) {
	c.state.LocalTime = local
	c.emit(EventPositionChanged, nil)
}

// restingStatus is the status of a loaded, non-playing source.
func (c *Controller) restingStatus() Status {
	if c.played {
		return StatusPaused
	}

	return StatusReady
}

// State returns a copy of the playback state.
func (c *Controller) State() State {
	return c.state
}

// Timeline returns the current timeline, nil before Load.
func (c *Controller) Timeline() *timeline.Timeline {
	return c.tl
}

// Episode returns the loaded episode, if any.
func (c *Controller) Episode() (episode.Episode, bool) {
	if c.episode == nil {
		return episode.Episode{}, false
	}

	return *c.episode, true
}

// Snapshot returns the state with derived positions.
func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{State: c.state}

	if c.episode != nil {
		snap.EpisodeID = c.episode.ID
	}

	if c.tl != nil {
		snap.GlobalDuration = c.tl.GlobalDuration()
		snap.PhaseDuration = c.tl.Duration(c.state.Phase)
		if g, err := c.tl.Globalize(c.state.Phase, c.state.LocalTime); err == nil {
			snap.CombinedPosition = g
		}
	}

	return snap
}

func (c *Controller) ready() error {
	if c.disposed {
		return ErrDisposed
	}

	if c.tl == nil {
		c.logger.Debug("playback command without episode")
		return ErrNoEpisode
	}

	if _, err := c.tl.Localize(0); err != nil {
		c.logger.Debug("playback command on uninitialized timeline", "error", err)
		return err
	}

	return nil
}

// command gates the user-facing playback commands.
func (c *Controller) command() error {
	if err := c.ready(); err != nil {
		return err
	}

	if c.suspended {
		c.logger.Debug("playback command while suspended")
		return ErrSuspended
	}

	return nil
}

// Load resets the controller and starts loading ep from its first phase.
// Loading the episode that already has a live source is a no-op.
func (c *Controller) Load(ctx context.Context, ep episode.Episode) error {
	if c.disposed {
		return ErrDisposed
	}

	if c.suspended {
		return ErrSuspended
	}

	if c.episode != nil && c.episode.ID == ep.ID && (c.source != nil || c.pending != nil) {
		return nil
	}

	tl, err := ep.Timeline()
	if err != nil {
		return fmt.Errorf("failed to build timeline for %s: %w", ep.ID, err)
	}

	c.Stop()
	c.cancel()
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.episode = &ep
	c.tl = tl
	c.played = false
	c.state = State{Status: StatusIdle, Phase: tl.First(), IsPlaying: c.autoplay}

	c.logger.Info("loading episode", "id", ep.ID, "phases", tl.Phases(), "duration", tl.GlobalDuration())

	return c.loadPhase(tl.First(), 0, false)
}

// loadPhase tears down the live source and starts loading phase. The load
// supersedes any load still in flight.
func (c *Controller) loadPhase(phase timeline.Phase, local time.Duration, seek bool) error {
	spec, err := c.tl.Spec(phase)
	if err != nil {
		return err
	}

	c.teardown()
	c.gen++
	gen := c.gen

	c.pending = &pendingLoad{gen: gen, phase: phase, local: local, seek: seek}
	c.state.IsLoading = true
	c.state.LastError = nil
	c.state.LocalTime = local
	c.setPhase(phase)
	c.setStatus(StatusLoading)
	c.emit(EventPositionChanged, nil)

	src, err := c.provider.Load(c.ctx, spec.SourceRef, c.listener(gen))
	if err != nil {
		c.fail(fmt.Errorf("%w: %s: %w", timesource.ErrSourceLoadFailed, phase, err))
		return c.state.LastError
	}

	if gen != c.gen {
		// superseded from inside Load
		_ = src.Close()
		return nil
	}

	c.source = src

	return nil
}

func (c *Controller) listener(gen uint64) timesource.Listener {
	var l timesource.Listener = timesource.Callbacks{
		Ready:   func(d time.Duration) { c.onReady(gen, d) },
		Tick:    func(pos, _ time.Duration) { c.onTick(gen, pos) },
		End:     func() { c.onEnd(gen) },
		Failure: func(err error) { c.onFailure(gen, err) },
	}

	if c.poster != nil {
		l = timesource.Marshal(c.poster, l)
	}

	return l
}

func (c *Controller) stale(gen uint64, what string) bool {
	if gen == c.gen {
		return false
	}

	c.logger.Debug("dropping stale source callback", "callback", what, "gen", gen, "current", c.gen)

	return true
}

func (c *Controller) onReady(gen uint64, d time.Duration) {
	if c.stale(gen, "ready") || c.pending == nil {
		return
	}

	p := c.pending
	c.pending = nil
	c.state.IsLoading = false

	if d > 0 {
		tl, err := c.tl.WithConfirmedDuration(p.phase, d)
		if err == nil {
			c.tl = tl
			c.emit(EventDurationConfirmed, func(ev *Event) {
				ev.Phase = p.phase
				ev.Duration = d
			})
		}
	}

	local := min(max(p.local, 0), c.tl.Duration(p.phase))
	if p.seek && c.source != nil {
		c.seekSource(local)
	} else {
		c.setLocal(local)
	}

	if p.endOnArrival {
		c.advance()
		return
	}

	if c.state.IsPlaying && c.source != nil {
		c.source.Play()
		c.played = true
		c.setStatus(StatusPlaying)
		return
	}

	c.setStatus(c.restingStatus())
}

func (c *Controller) onTick(gen uint64, pos time.Duration) {
	if c.stale(gen, "tick") || c.pending != nil || c.source == nil {
		return
	}

	pos = min(max(pos, 0), c.tl.Duration(c.state.Phase))

	switch w := c.seek; {
	case w != nil && !w.settles(pos) && w.dropped < maxSeekWait:
		w.dropped++
		c.logger.Debug("dropping tick before seek settled", "pos", pos, "target", w.target)
		return
	case w != nil:
		c.seek = nil
	case pos < c.state.LocalTime && c.state.IsPlaying:
		c.logger.Debug("dropping regressing tick", "pos", pos, "local", c.state.LocalTime)
		return
	}

	if pos == c.state.LocalTime {
		return
	}

	c.setLocal(pos)
}

func (c *Controller) onEnd(gen uint64) {
	if c.stale(gen, "end") || c.pending != nil {
		return
	}

	c.advance()
}

func (c *Controller) onFailure(gen uint64, err error) {
	if c.stale(gen, "failure") {
		return
	}

	if !errors.Is(err, timesource.ErrSourceLoadFailed) {
		err = fmt.Errorf("%w: %w", timesource.ErrSourceLoadFailed, err)
	}

	c.fail(err)
}

func (c *Controller) fail(err error) {
	c.logger.Warn("phase source failed", "phase", c.state.Phase, "error", err)

	if p := c.pending; p != nil {
		c.state.LocalTime = p.local
	}

	c.teardown()
	c.gen++
	c.state.IsLoading = false
	c.state.LastError = err
	c.setStatus(StatusFailed)
	c.emit(EventFailed, func(ev *Event) { ev.Err = err })
}

// advance moves to the next phase at the end of the current one. The
// playing intent is kept so the next phase starts on its own.
func (c *Controller) advance() {
	end := c.tl.Duration(c.state.Phase)
	if c.state.LocalTime != end {
		c.setLocal(end)
	}

	next, ok := c.tl.Next(c.state.Phase)
	if !ok {
		c.complete()
		return
	}

	c.logger.Debug("phase advance", "from", c.state.Phase, "to", next, "playing", c.state.IsPlaying)

	if err := c.loadPhase(next, 0, false); err != nil {
		c.logger.Warn("phase advance failed", "phase", next, "error", err)
	}
}

func (c *Controller) complete() {
	c.teardown()
	c.gen++
	c.state.IsPlaying = false
	c.state.IsLoading = false
	c.setStatus(StatusCompleted)
	c.emit(EventCompleted, nil)
}

// seekSource seeks the live source within the current phase.
func (c *Controller) seekSource(local time.Duration) {
	c.source.Seek(local, c.tolerance)
	c.seek = &seekWait{target: local}
	c.setLocal(local)
}

func (c *Controller) teardown() {
	c.pending = nil
	c.seek = nil

	if c.source == nil {
		return
	}

	if err := c.source.Close(); err != nil && !errors.Is(err, timesource.ErrSourceClosed) {
		c.logger.Debug("closing phase source", "error", err)
	}
	c.source = nil
}

// Seek moves playback to global time g, clamped to the timeline. Seeking
// within the live phase seeks the source; seeking into another phase
// reloads, superseding any load in flight.
func (c *Controller) Seek(g time.Duration) error {
	if err := c.command(); err != nil {
		return err
	}

	pos, err := c.tl.Localize(g)
	if err != nil {
		return err
	}

	return c.seekTo(pos)
}

func (c *Controller) seekTo(pos timeline.Position) error {
	if p := c.pending; p != nil && p.phase == pos.Phase {
		p.local = pos.Local
		p.seek = true
		p.endOnArrival = false
		c.setLocal(pos.Local)
		return nil
	}

	if c.pending == nil && c.source != nil && pos.Phase == c.state.Phase {
		c.seekSource(pos.Local)
		return nil
	}

	return c.loadPhase(pos.Phase, pos.Local, true)
}

// SkipForward moves d forward within the current phase, stopping at its end.
// Reaching the end advances to the next phase. A non-positive d uses the
// configured skip interval.
func (c *Controller) SkipForward(d time.Duration) error {
	return c.skip(c.skipDelta(d))
}

// SkipBackward moves d back within the current phase, stopping at zero.
func (c *Controller) SkipBackward(d time.Duration) error {
	return c.skip(-c.skipDelta(d))
}

func (c *Controller) skipDelta(d time.Duration) time.Duration {
	if d <= 0 {
		return c.skipInterval
	}

	return d
}

func (c *Controller) skip(delta time.Duration) error {
	if err := c.command(); err != nil {
		return err
	}

	// a reload is in flight: the skip becomes a post-load seek
	if p := c.pending; p != nil {
		dur := c.tl.Duration(p.phase)
		p.local = offset(p.local, delta, dur)
		p.seek = true
		p.endOnArrival = delta > 0 && p.local == dur
		c.setLocal(p.local)
		return nil
	}

	if c.source == nil {
		c.logger.Debug("skip without live source", "status", c.state.Status)
		return nil
	}

	dur := c.tl.Duration(c.state.Phase)
	target := offset(c.state.LocalTime, delta, dur)

	if delta > 0 && target == dur {
		c.advance()
		return nil
	}

	c.seekSource(target)

	return nil
}

// offset moves local by delta, staying within [0, dur].
func offset(local, delta, dur time.Duration) time.Duration {
	delta = min(max(delta, -dur), dur)

	return min(max(local+delta, 0), dur)
}

// Play sets the playing intent. A loading phase starts once ready; a
// completed episode restarts from the beginning.
func (c *Controller) Play() error {
	if err := c.command(); err != nil {
		return err
	}

	c.state.IsPlaying = true

	if c.state.Status == StatusCompleted {
		return c.Seek(0)
	}

	if c.pending != nil || c.source == nil {
		return nil
	}

	c.source.Play()
	c.played = true
	c.setStatus(StatusPlaying)

	return nil
}

// Pause clears the playing intent.
func (c *Controller) Pause() error {
	if err := c.command(); err != nil {
		return err
	}

	c.state.IsPlaying = false

	if c.pending != nil || c.source == nil {
		return nil
	}

	c.source.Pause()
	c.played = true
	c.setStatus(StatusPaused)

	return nil
}

// TogglePlayPause flips the playing intent.
func (c *Controller) TogglePlayPause() error {
	if c.state.IsPlaying {
		return c.Pause()
	}

	return c.Play()
}

// SetAutoplay controls whether later loads start with the playing intent.
func (c *Controller) SetAutoplay(on bool) {
	c.autoplay = on
}

// Retry reloads the phase that failed, at the position it failed at.
func (c *Controller) Retry() error {
	if err := c.command(); err != nil {
		return err
	}

	if c.state.Status != StatusFailed {
		return nil
	}

	return c.loadPhase(c.state.Phase, c.state.LocalTime, c.state.LocalTime > 0)
}

// Stop tears down the live source and returns to idle. The episode stays
// loaded so Load of the same episode starts it again.
func (c *Controller) Stop() {
	c.teardown()
	c.gen++
	c.played = false

	if c.state.Status == StatusIdle {
		return
	}

	c.state.IsPlaying = false
	c.state.IsLoading = false
	c.state.LastError = nil
	c.state.LocalTime = 0
	c.setStatus(StatusIdle)
}

// Dispose stops playback, cancels outstanding loads and drops every
// subscriber. The controller cannot be used afterwards.
func (c *Controller) Dispose() {
	if c.disposed {
		return
	}

	c.Stop()
	c.cancel()
	c.suspended = false
	c.subs = nil
	c.episode = nil
	c.tl = nil
	c.disposed = true
}

// Suspend tears down the live phase source so another source can play,
// keeping the timeline and position. The returned state is what Restore
// needs to continue.
func (c *Controller) Suspend() (Resumable, error) {
	if err := c.ready(); err != nil {
		return Resumable{}, err
	}

	r := Resumable{
		Phase:      c.state.Phase,
		GlobalTime: c.Snapshot().CombinedPosition,
		WasPlaying: c.state.IsPlaying,
	}

	c.teardown()
	c.gen++
	c.suspended = true
	c.state.IsPlaying = false
	c.state.IsLoading = false
	c.setStatus(StatusPaused)

	c.logger.Debug("playback suspended", "phase", r.Phase, "global", r.GlobalTime)

	return r, nil
}

// Restore seeks to g and applies the playing intent, reloading the phase
// source if it was suspended.
func (c *Controller) Restore(g time.Duration, playing bool) error {
	if err := c.ready(); err != nil {
		return err
	}

	c.suspended = false
	c.state.IsPlaying = playing

	if err := c.Seek(g); err != nil {
		return err
	}

	if c.pending != nil || c.source == nil {
		return nil
	}

	if playing {
		return c.Play()
	}

	return c.Pause()
}

// Resumable is the playback position captured by Suspend.
type Resumable struct {
	Phase      timeline.Phase
	GlobalTime time.Duration
	WasPlaying bool
}
