// Package clock abstracts timers so components driven from a single
// scheduling context can arm and cancel delayed callbacks, and tests can
// advance time by hand.
package clock

import (
	"time"

	"github.com/alkime/podbook/pkg/channels"
)

// Timer is a pending callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the call stopped the
	// timer before it fired.
	Stop() bool
}

// Scheduler arms delayed callbacks.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

// Real fires callbacks on the runtime timer goroutine.
type Real struct{}

// AfterFunc implements Scheduler.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Now implements Scheduler.
func (Real) Now() time.Time {
	return time.Now()
}

type loopScheduler struct {
	loop *channels.Loop
}

// OnLoop returns a Scheduler whose callbacks run on loop rather than on the
// timer goroutine. A callback that fires after the loop stopped is dropped.
func OnLoop(loop *channels.Loop) Scheduler {
	return loopScheduler{loop: loop}
}

func (s loopScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() {
		_ = s.loop.Post(f)
	})
}

func (loopScheduler) Now() time.Time {
	return time.Now()
}
