package channels

import (
	"errors"
	"time"
)

var (
	ErrChannelClosed  = errors.New("channel closed")
	ErrChannelTimeout = errors.New("send timeout")
	ErrChannelFull    = errors.New("channel full")
	ErrLoopStopped    = errors.New("loop stopped")
)

// ReceiveAll drains ch until it is closed, idle for longer than idle, or max
// messages have been read. A max of zero means no limit.
func ReceiveAll[T any](ch <-chan T, idle time.Duration, max int) []T {
	var out []T

	for max == 0 || len(out) < max {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, msg)
		case <-time.After(idle):
			return out
		}
	}

	return out
}
