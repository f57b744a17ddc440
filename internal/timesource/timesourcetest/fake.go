// Package timesourcetest provides a scriptable in-memory timesource.Provider
// for tests. Nothing happens on its own: tests fire Ready, Tick, End and Fail
// on the loads they care about, synchronously on the calling goroutine.
package timesourcetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alkime/podbook/internal/timesource"
)

// Provider records every Load and hands out Source fakes.
type Provider struct {
	mu      sync.Mutex
	loads   []*Source
	LoadErr error
}

// NewProvider returns an empty fake provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Load implements timesource.Provider.
func (p *Provider) Load(_ context.Context, uri string, l timesource.Listener) (timesource.Source, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.LoadErr != nil {
		return nil, p.LoadErr
	}

	src := &Source{URI: uri, listener: l}
	p.loads = append(p.loads, src)

	return src, nil
}

// Loads returns every source handed out so far, oldest first.
func (p *Provider) Loads() []*Source {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Source, len(p.loads))
	copy(out, p.loads)

	return out
}

// Last returns the most recent load, or nil.
func (p *Provider) Last() *Source {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.loads) == 0 {
		return nil
	}

	return p.loads[len(p.loads)-1]
}

// Source is a fake stream. Commands are recorded, callbacks are fired by the
// test through Ready/Tick/End/Fail.
type Source struct {
	URI string

	mu       sync.Mutex
	listener timesource.Listener
	playing  bool
	closed   bool
	position time.Duration
	seeks    []time.Duration
	plays    int
	pauses   int
}

// Play implements timesource.Source.
func (s *Source) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.plays++
	s.playing = true
}

// Pause implements timesource.Source.
func (s *Source) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pauses++
	s.playing = false
}

// Seek implements timesource.Source.
func (s *Source) Seek(position time.Duration, _ timesource.Tolerance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seeks = append(s.seeks, position)
	s.position = position
}

// Close implements timesource.Source.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return timesource.ErrSourceClosed
	}

	s.closed = true
	s.playing = false

	return nil
}

// Playing reports whether Play was called more recently than Pause.
func (s *Source) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.playing
}

// Closed reports whether Close was called.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// Seeks returns every seek target in call order.
func (s *Source) Seeks() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]time.Duration, len(s.seeks))
	copy(out, s.seeks)

	return out
}

// Position returns the last seek target or tick position.
func (s *Source) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.position
}

// Ready fires OnReady with duration d.
func (s *Source) Ready(d time.Duration) {
	s.listener.OnReady(d)
}

// Tick fires OnPositionTick at position pos with the default interval.
func (s *Source) Tick(pos time.Duration) {
	s.mu.Lock()
	s.position = pos
	s.mu.Unlock()

	s.listener.OnPositionTick(pos, timesource.DefaultTickInterval)
}

// PlayThrough ticks from the current position up to and including until,
// every step, then fires End when until reaches duration.
func (s *Source) PlayThrough(until, step, duration time.Duration) {
	for pos := s.Position() + step; pos <= until; pos += step {
		s.Tick(pos)
	}

	if until >= duration {
		s.End()
	}
}

// End fires OnEndOfStream.
func (s *Source) End() {
	s.listener.OnEndOfStream()
}

// Fail fires OnFailure wrapping err in timesource.ErrSourceLoadFailed.
func (s *Source) Fail(err error) {
	if err == nil {
		err = errors.New("fake failure")
	}

	s.listener.OnFailure(fmt.Errorf("%w: %w", timesource.ErrSourceLoadFailed, err))
}
