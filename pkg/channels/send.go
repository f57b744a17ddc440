package channels

import "time"

// SendNonBlock delivers msg only if ch can take it right away.
func SendNonBlock[T any](ch chan<- T, msg T) error {
	return trySend(ch, msg, nil)
}

// SendWithTimeout waits up to timeout for ch to take msg.
func SendWithTimeout[T any](ch chan<- T, msg T, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()

	return trySend(ch, msg, t.C)
}

// trySend reports a send on a closed channel as ErrChannelClosed. A nil
// expire means do not wait.
func trySend[T any](ch chan<- T, msg T, expire <-chan time.Time) (err error) {
	defer func() {
		if recover() != nil {
			err = ErrChannelClosed
		}
	}()

	if expire == nil {
		select {
		case ch <- msg:
			return nil
		default:
			return ErrChannelFull
		}
	}

	select {
	case ch <- msg:
		return nil
	case <-expire:
		return ErrChannelTimeout
	}
}
