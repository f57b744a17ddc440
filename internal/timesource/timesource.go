// Package timesource defines the boundary to the platform audio layer: one
// loaded stream that reports readiness, position ticks, end of stream and
// failures, and accepts play, pause and seek commands.
package timesource

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultTickInterval is how often a playing source reports its position.
	DefaultTickInterval = 100 * time.Millisecond
)

var (
	// ErrSourceLoadFailed wraps network and decoding failures of a stream.
	ErrSourceLoadFailed = errors.New("source load failed")
	// ErrSourceClosed is returned for commands issued after Close.
	ErrSourceClosed = errors.New("source closed")
)

// Tolerance bounds how far a seek may land from the requested position.
type Tolerance struct {
	Before time.Duration
	After  time.Duration
}

// ExactTolerance requests a frame-accurate seek.
var ExactTolerance = Tolerance{}

// Listener receives the asynchronous notifications of one loaded source.
// Callbacks may arrive on any goroutine; consumers marshal them onto their
// own scheduling context.
type Listener interface {
	// OnReady reports that the stream is decoded far enough to play and
	// carries its authoritative duration.
	OnReady(duration time.Duration)
	// OnPositionTick reports the elapsed position while playing. interval is
	// the cadence the source ticks at.
	OnPositionTick(position, interval time.Duration)
	// OnEndOfStream reports that playback reached the end.
	OnEndOfStream()
	// OnFailure reports a load or decode failure. The source is unusable.
	OnFailure(err error)
}

// Source is a handle on one loaded stream.
type Source interface {
	Play()
	Pause()
	Seek(position time.Duration, tol Tolerance)
	// Close stops playback and releases the stream. Listener callbacks stop.
	Close() error
}

// Provider loads streams. Load returns immediately; readiness arrives via
// the listener.
type Provider interface {
	Load(ctx context.Context, uri string, l Listener) (Source, error)
}

// Callbacks adapts plain functions to a Listener. Nil fields are ignored.
type Callbacks struct {
	Ready   func(duration time.Duration)
	Tick    func(position, interval time.Duration)
	End     func()
	Failure func(err error)
}

// OnReady implements Listener.
func (c Callbacks) OnReady(duration time.Duration) {
	if c.Ready != nil {
		c.Ready(duration)
	}
}

// OnPositionTick implements Listener.
func (c Callbacks) OnPositionTick(position, interval time.Duration) {
	if c.Tick != nil {
		c.Tick(position, interval)
	}
}

// OnEndOfStream implements Listener.
func (c Callbacks) OnEndOfStream() {
	if c.End != nil {
		c.End()
	}
}

// OnFailure implements Listener.
func (c Callbacks) OnFailure(err error) {
	if c.Failure != nil {
		c.Failure(err)
	}
}

// Poster runs a function on the consumer's scheduling context.
// channels.Loop implements it.
type Poster interface {
	Post(fn func()) error
}

// Marshal wraps l so every callback is re-posted onto p instead of running on
// the platform goroutine that produced it. Callbacks the poster refuses, for
// example after its loop stopped, are dropped.
func Marshal(p Poster, l Listener) Listener {
	post := func(fn func()) { _ = p.Post(fn) }

	return Callbacks{
		Ready:   func(d time.Duration) { post(func() { l.OnReady(d) }) },
		Tick:    func(pos, iv time.Duration) { post(func() { l.OnPositionTick(pos, iv) }) },
		End:     func() { post(l.OnEndOfStream) },
		Failure: func(err error) { post(func() { l.OnFailure(err) }) },
	}
}
