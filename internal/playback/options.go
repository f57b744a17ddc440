package playback

import (
	"log/slog"
	"time"

	"github.com/alkime/podbook/internal/timesource"
)

const DefaultSkipInterval = 15 * time.Second

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithSkipInterval sets the interval used by SkipForward/SkipBackward when
// they are called with a non-positive duration.
func WithSkipInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.skipInterval = d
	}
}

// WithSeekTolerance sets the tolerance passed to every source seek.
func WithSeekTolerance(tol timesource.Tolerance) Option {
	return func(c *Controller) {
		c.tolerance = tol
	}
}

// WithPoster routes every source callback through p, typically a
// channels.Loop, so the controller is only ever touched from one goroutine.
func WithPoster(p timesource.Poster) Option {
	return func(c *Controller) {
		c.poster = p
	}
}

// WithAutoplay makes Load start with the playing intent set.
func WithAutoplay(on bool) Option {
	return func(c *Controller) {
		c.autoplay = on
	}
}
