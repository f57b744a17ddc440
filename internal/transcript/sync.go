package transcript

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alkime/podbook/internal/clock"
)

const DefaultSpringBackDelay = 1500 * time.Millisecond

var ErrUnknownSegment = errors.New("unknown transcript segment")

// SyncState is the highlight state. CurrentSegmentID is only meaningful when
// HasSegment is set.
type SyncState struct {
	CurrentSegmentID int
	HasSegment       bool
	IsUserScrolling  bool
	// IdleSince is when the user last stopped scrolling; zero while
	// scrolling or when no spring-back is pending.
	IdleSince    time.Time
	LastPosition time.Duration
}

type SyncEventKind int

const (
	// SegmentChanged: the highlighted segment changed.
	SegmentChanged SyncEventKind = iota
	// ScrollToSegment: the view should scroll back to the highlight.
	ScrollToSegment
	// SeekRequested: the user picked a segment; playback should seek.
	SeekRequested
)

type SyncEvent struct {
	Kind       SyncEventKind
	SegmentID  int
	HasSegment bool
	SeekTo     time.Duration
}

type SyncOption func(*SyncEngine)

// WithSpringBackDelay sets how long after the user stops scrolling the
// highlight takes over again.
func WithSpringBackDelay(d time.Duration) SyncOption {
	return func(e *SyncEngine) {
		e.delay = d
	}
}

func WithSyncLogger(l *slog.Logger) SyncOption {
	return func(e *SyncEngine) {
		e.logger = l
	}
}

// SyncEngine derives the highlighted segment from playback position, with a
// manual-scroll override that springs back after a quiet period.
//
// Not safe for concurrent use. The scheduler must deliver timer callbacks on
// the same context as every other call.
type SyncEngine struct {
	segments []Segment
	sched    clock.Scheduler
	delay    time.Duration
	logger   *slog.Logger

	state    SyncState
	timer    clock.Timer
	timerGen uint64

	subs    map[uint64]func(SyncEvent)
	order   []uint64
	nextSub uint64
}

// NewSyncEngine creates an engine over segments, which must be ordered and
// non-overlapping.
func NewSyncEngine(segments []Segment, sched clock.Scheduler, opts ...SyncOption) *SyncEngine {
	e := &SyncEngine{
		segments: segments,
		sched:    sched,
		delay:    DefaultSpringBackDelay,
		logger:   slog.Default(),
		subs:     make(map[uint64]func(SyncEvent)),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Segments returns the segments the engine tracks.
func (e *SyncEngine) Segments() []Segment {
	return e.segments
}

// State returns a copy of the sync state.
func (e *SyncEngine) State() SyncState {
	return e.state
}

// Current returns the highlighted segment.
func (e *SyncEngine) Current() (Segment, bool) {
	if !e.state.HasSegment {
		return Segment{}, false
	}

	return e.segments[e.state.CurrentSegmentID], true
}

// Subscribe registers fn for engine events and returns its removal func.
func (e *SyncEngine) Subscribe(fn func(SyncEvent)) func() {
	e.nextSub++
	id := e.nextSub
	e.subs[id] = fn
	e.order = append(e.order, id)

	return func() {
		delete(e.subs, id)
	}
}

func (e *SyncEngine) emit(ev SyncEvent) {
	live := e.order[:0]
	for _, id := range e.order {
		if _, ok := e.subs[id]; ok {
			live = append(live, id)
		}
	}
	e.order = live

	for _, id := range append([]uint64(nil), live...) {
		if fn, ok := e.subs[id]; ok {
			fn(ev)
		}
	}
}

// OnPositionUpdate records the latest main-phase position and moves the
// highlight, unless the user is scrolling.
func (e *SyncEngine) OnPositionUpdate(t time.Duration) {
	e.state.LastPosition = t

	if e.state.IsUserScrolling {
		return
	}

	e.highlight(t)
}

func (e *SyncEngine) highlight(t time.Duration) {
	id, ok := Find(e.segments, t)
	e.setCurrent(id, ok)
}

func (e *SyncEngine) setCurrent(id int, ok bool) {
	if ok == e.state.HasSegment && (!ok || id == e.state.CurrentSegmentID) {
		return
	}

	e.state.CurrentSegmentID = id
	e.state.HasSegment = ok
	e.emit(SyncEvent{Kind: SegmentChanged, SegmentID: id, HasSegment: ok})
}

// ClearHighlight drops the highlight, used while a phase without a
// transcript plays.
func (e *SyncEngine) ClearHighlight() {
	e.setCurrent(0, false)
}

// UserDidStartScroll suspends position-driven highlighting.
func (e *SyncEngine) UserDidStartScroll() {
	e.stopTimer()
	e.state.IsUserScrolling = true
	e.state.IdleSince = time.Time{}
}

// UserDidEndScroll arms the spring-back timer.
func (e *SyncEngine) UserDidEndScroll() {
	e.stopTimer()
	e.state.IdleSince = e.sched.Now()

	gen := e.timerGen
	e.timer = e.sched.AfterFunc(e.delay, func() {
		if gen != e.timerGen {
			e.logger.Debug("dropping stale spring-back")
			return
		}
		e.springBack()
	})
}

func (e *SyncEngine) springBack() {
	e.timer = nil
	e.state.IsUserScrolling = false
	e.state.IdleSince = time.Time{}
	e.highlight(e.state.LastPosition)
	e.emit(SyncEvent{
		Kind:       ScrollToSegment,
		SegmentID:  e.state.CurrentSegmentID,
		HasSegment: e.state.HasSegment,
	})
}

// UserDidSelectSegment highlights segment id right away and asks playback
// to seek to its start.
func (e *SyncEngine) UserDidSelectSegment(id int) error {
	if id < 0 || id >= len(e.segments) {
		return fmt.Errorf("segment %d: %w", id, ErrUnknownSegment)
	}

	e.stopTimer()
	e.state.IsUserScrolling = false
	e.state.IdleSince = time.Time{}

	seg := e.segments[id]
	e.state.LastPosition = seg.Start
	e.setCurrent(id, true)
	e.emit(SyncEvent{Kind: SeekRequested, SegmentID: id, HasSegment: true, SeekTo: seg.Start})

	return nil
}

// stopTimer stops and invalidates the pending spring-back, so a callback
// already queued on the scheduler is dropped too.
func (e *SyncEngine) stopTimer() {
	e.timerGen++

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// Close cancels any pending spring-back.
func (e *SyncEngine) Close() {
	e.stopTimer()
}

// ContextAround returns the transcript text of every segment overlapping
// [t-radius, t+radius].
func (e *SyncEngine) ContextAround(t, radius time.Duration) string {
	from, to := t-radius, t+radius

	var parts []string
	for _, s := range e.segments {
		if s.End <= from || s.Start > to {
			continue
		}
		parts = append(parts, s.Text)
	}

	return strings.Join(parts, " ")
}
