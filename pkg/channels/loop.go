package channels

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Loop is a serial executor: every posted function runs on one goroutine, in
// post order. Components that are not safe for concurrent use are driven
// exclusively through a Loop.
//
// The queue is unbounded so functions running on the loop may post further
// work without deadlocking.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	started atomic.Bool
	wg      sync.WaitGroup
}

// NewLoop creates an idle loop. Functions posted before Run are queued.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Run starts the loop goroutine. On context cancellation queued work is
// drained, further posts are rejected and the goroutine exits.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return fmt.Errorf("loop already started")
	}

	l.wg.Go(func() {
		for {
			for _, fn := range l.take() {
				fn()
			}

			select {
			case <-l.wake:
			case <-ctx.Done():
				l.mu.Lock()
				l.stopped = true
				l.mu.Unlock()

				for _, fn := range l.take() {
					fn()
				}
				return
			}
		}
	})

	return nil
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := l.queue
	l.queue = nil

	return batch
}

// Post queues fn. It returns ErrLoopStopped once the loop has shut down.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrLoopStopped
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	return nil
}

// Do runs fn on the loop and waits for it to finish. It must not be called
// from a function already running on the loop.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})

	if err := l.Post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for loop: %w", ctx.Err())
	}
}

// Wait blocks until the loop goroutine has exited.
func (l *Loop) Wait() {
	l.wg.Wait()
}
