package channels_test

import (
	"context"
	"testing"
	"time"

	"github.com/alkime/podbook/pkg/channels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const idle = 10 * time.Millisecond

type running struct {
	b     *channels.Broadcaster[string]
	input chan<- string
	stop  func()
}

// start runs a broadcaster; stop cancels it and waits for the drain.
func start(t *testing.T, b *channels.Broadcaster[string]) running {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	input, err := b.Run(ctx, 4)
	require.NoError(t, err)

	return running{b: b, input: input, stop: func() {
		cancel()
		b.Wait()
	}}
}

func subscribe(t *testing.T, b *channels.Broadcaster[string], ch chan string) func() {
	t.Helper()

	unsubscribe, err := b.Subscribe(ch)
	require.NoError(t, err)

	return unsubscribe
}

func drain(ch chan string) []string {
	close(ch)
	return channels.ReceiveAll(ch, idle, 0)
}

func TestBroadcaster_Validation(t *testing.T) {
	b := channels.NewBroadcaster[string]()

	_, err := b.Subscribe(nil)
	assert.ErrorContains(t, err, "cannot be nil")

	_, err = b.SubscribeWithTimeout(nil, time.Second)
	assert.ErrorContains(t, err, "cannot be nil")

	for _, d := range []time.Duration{0, -time.Second} {
		_, err = b.SubscribeWithTimeout(make(chan string, 1), d)
		assert.ErrorContains(t, err, "must be positive")
	}

	r := start(t, b)
	_, err = b.Run(context.Background(), 1)
	assert.ErrorContains(t, err, "already started")

	// nobody listening
	r.input <- "playback.position"
	r.stop()
}

func TestBroadcaster_FanOut(t *testing.T) {
	b := channels.NewBroadcaster[string]()
	subs := []chan string{make(chan string, 8), make(chan string, 8), make(chan string, 8)}
	for _, ch := range subs {
		subscribe(t, b, ch)
	}

	r := start(t, b)
	for _, ev := range []string{"playback.status", "playback.phase", "transcript.segment"} {
		r.input <- ev
	}
	r.stop()

	for _, ch := range subs {
		assert.Equal(t, []string{"playback.status", "playback.phase", "transcript.segment"}, drain(ch))
	}
}

func TestBroadcaster_SlowSubscribersDrop(t *testing.T) {
	t.Run("non-blocking", func(t *testing.T) {
		b := channels.NewBroadcaster[string]()
		full := make(chan string, 1)
		ready := make(chan string, 8)
		subscribe(t, b, full)
		subscribe(t, b, ready)

		r := start(t, b)
		r.input <- "a"
		r.input <- "b"
		r.input <- "c"
		r.stop()

		assert.Equal(t, []string{"a"}, drain(full))
		assert.Equal(t, []string{"a", "b", "c"}, drain(ready))
		assert.Equal(t, []channels.SubscriberStats{{Dropped: 2}, {}}, b.Stats())
	})

	t.Run("timeout", func(t *testing.T) {
		b := channels.NewBroadcaster[string]()
		sub := make(chan string, 1)
		_, err := b.SubscribeWithTimeout(sub, time.Millisecond)
		require.NoError(t, err)

		r := start(t, b)
		r.input <- "a"
		r.input <- "b"
		r.stop()

		assert.Equal(t, []string{"a"}, drain(sub))
		assert.Equal(t, 1, b.Stats()[0].Dropped)
	})

	t.Run("timeout subscriber that catches up", func(t *testing.T) {
		b := channels.NewBroadcaster[string]()
		sub := make(chan string)
		_, err := b.SubscribeWithTimeout(sub, time.Second)
		require.NoError(t, err)

		r := start(t, b)
		r.input <- "a"
		assert.Equal(t, "a", <-sub)
		r.stop()
		assert.Zero(t, b.Stats()[0].Dropped)
	})
}

func TestBroadcaster_ClosedSubscriberGoesInactive(t *testing.T) {
	b := channels.NewBroadcaster[string]()
	gone := make(chan string, 8)
	close(gone)
	subscribe(t, b, gone)

	r := start(t, b)
	r.input <- "a"
	r.input <- "b"
	r.stop()

	assert.Equal(t, []channels.SubscriberStats{{Dropped: 2, Inactive: true}}, b.Stats())
}

func TestBroadcaster_DrainsOnShutdown(t *testing.T) {
	b := channels.NewBroadcaster[string]()
	sub := make(chan string, 8)
	subscribe(t, b, sub)

	r := start(t, b)
	for range 4 {
		r.input <- "tick"
	}
	r.stop()

	assert.Len(t, drain(sub), 4)
}

func TestBroadcaster_DynamicSubscribers(t *testing.T) {
	t.Run("late subscriber sees only later messages", func(t *testing.T) {
		b := channels.NewBroadcaster[string]()
		early := make(chan string, 8)
		subscribe(t, b, early)

		r := start(t, b)
		r.input <- "1"
		require.Eventually(t, func() bool { return len(early) == 1 }, time.Second, time.Millisecond)

		late := make(chan string, 8)
		subscribe(t, b, late)
		r.input <- "2"
		r.stop()

		assert.Equal(t, []string{"1", "2"}, drain(early))
		assert.Equal(t, []string{"2"}, drain(late))
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		b := channels.NewBroadcaster[string]()
		sub := make(chan string, 8)
		unsubscribe := subscribe(t, b, sub)

		r := start(t, b)
		r.input <- "1"
		require.Eventually(t, func() bool { return len(sub) == 1 }, time.Second, time.Millisecond)

		unsubscribe()
		unsubscribe()
		assert.Empty(t, b.Stats())

		r.input <- "2"
		r.stop()

		assert.Equal(t, []string{"1"}, drain(sub))
	})
}
