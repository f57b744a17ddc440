package channels

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type subscriber[T any] struct {
	id       uint64
	ch       chan<- T
	deliver  func(chan<- T, T) error
	inactive atomic.Bool
	dropped  atomic.Int32
}

func (s *subscriber[T]) send(msg T) {
	if s.inactive.Load() {
		s.dropped.Add(1)
		return
	}
	if err := s.deliver(s.ch, msg); err != nil {
		s.dropped.Add(1)
		// a closed channel never recovers
		if errors.Is(err, ErrChannelClosed) {
			s.inactive.Store(true)
		}
	}
}

// Broadcaster copies every message written to its input channel to each
// subscriber channel. A slow subscriber loses messages rather than holding
// up the others: non-blocking subscribers drop as soon as their channel is
// full, timeout subscribers after waiting up to their timeout.
//
// Subscribers may join and leave while running and only see messages
// broadcast after they joined. Subscriber channels are never closed by the
// broadcaster.
type Broadcaster[T any] struct {
	mu          sync.RWMutex
	subscribers []*subscriber[T]
	nextID      uint64
	started     atomic.Bool
	wg          sync.WaitGroup
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{}
}

// Subscribe adds a non-blocking subscriber. The returned func removes it and
// is safe to call more than once.
func (b *Broadcaster[T]) Subscribe(ch chan<- T) (func(), error) {
	if ch == nil {
		return nil, fmt.Errorf("subscriber channel cannot be nil")
	}

	return b.add(ch, SendNonBlock[T]), nil
}

// SubscribeWithTimeout adds a subscriber that is waited on for up to
// timeout per message.
func (b *Broadcaster[T]) SubscribeWithTimeout(ch chan<- T, timeout time.Duration) (func(), error) {
	if ch == nil {
		return nil, fmt.Errorf("subscriber channel cannot be nil")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", timeout)
	}

	return b.add(ch, func(ch chan<- T, msg T) error {
		return SendWithTimeout(ch, msg, timeout)
	}), nil
}

func (b *Broadcaster[T]) add(ch chan<- T, deliver func(chan<- T, T) error) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subscribers = append(b.subscribers, &subscriber[T]{id: id, ch: ch, deliver: deliver})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Broadcaster[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subscribers {
		if s.id == id {
			// copy so an in-flight broadcast keeps its own snapshot
			b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
			return
		}
	}
}

func (b *Broadcaster[T]) snapshot() []*subscriber[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.subscribers
}

// Run starts broadcasting and returns the input channel, buffered to buffer
// (at least one). When ctx is cancelled the input is closed and whatever is
// still buffered is delivered before Wait returns. Writing to the input
// after cancellation panics, so producers must stop with ctx.
func (b *Broadcaster[T]) Run(ctx context.Context, buffer int) (chan<- T, error) {
	if !b.started.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("broadcaster already started")
	}

	input := make(chan T, max(buffer, 1))

	b.wg.Go(func() {
		for msg := range input {
			for _, s := range b.snapshot() {
				s.send(msg)
			}
		}
	})
	go func() {
		<-ctx.Done()
		close(input)
	}()

	return input, nil
}

// Wait blocks until the broadcast goroutine has drained and exited.
func (b *Broadcaster[T]) Wait() {
	b.wg.Wait()
}

// SubscriberStats are per-subscriber delivery counters.
type SubscriberStats struct {
	Dropped  int
	Inactive bool
}

// Stats reports counters for current subscribers in subscription order.
func (b *Broadcaster[T]) Stats() []SubscriberStats {
	subs := b.snapshot()

	stats := make([]SubscriberStats, len(subs))
	for i, s := range subs {
		stats[i] = SubscriberStats{
			Dropped:  int(s.dropped.Load()),
			Inactive: s.inactive.Load(),
		}
	}

	return stats
}
