// Package clocktest provides a manually advanced clock.Scheduler.
package clocktest

import (
	"sort"
	"sync"
	"time"

	"github.com/alkime/podbook/internal/clock"
)

// Manual is a clock.Scheduler whose time only moves on Advance. Callbacks run
// synchronously inside Advance, on the caller's goroutine.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
	seq    int
}

type timer struct {
	m       *Manual
	at      time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

// NewManual starts the clock at a fixed instant.
func NewManual() *Manual {
	return &Manual{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now implements clock.Scheduler.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.now
}

// AfterFunc implements clock.Scheduler.
func (m *Manual) AfterFunc(d time.Duration, f func()) clock.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &timer{m: m, at: m.now.Add(d), seq: m.seq, f: f}
	m.timers = append(m.timers, t)

	return t
}

func (t *timer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true

	return true
}

// Advance moves time forward by d, firing every due timer in deadline order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDue(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		next.fired = true
		m.now = next.at
		m.mu.Unlock()

		next.f()
	}
}

func (m *Manual) nextDue(target time.Time) *timer {
	pending := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			pending = append(pending, t)
		}
	}
	m.timers = pending

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].at.Equal(pending[j].at) {
			return pending[i].seq < pending[j].seq
		}
		return pending[i].at.Before(pending[j].at)
	})

	if len(pending) == 0 || pending[0].at.After(target) {
		return nil
	}

	return pending[0]
}

// Pending reports how many timers are armed.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}

	return n
}
