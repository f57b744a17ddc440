// Package question captures a spoken question from the microphone and turns
// it into text.
package question

import "time"

const (
	DefaultPollInterval     = 500 * time.Millisecond
	DefaultSilenceThreshold = 2 * time.Second
)

// SilenceDetector decides when the listener has finished speaking. It is fed
// a monotonic measure of progress (transcript length, voiced frames) once per
// poll interval and fires once progress has stalled for the threshold. Nothing
// counts as silence until the first progress is seen.
type SilenceDetector struct {
	interval  time.Duration
	threshold time.Duration

	lastLength int
	silentFor  time.Duration
	fired      bool
}

func NewSilenceDetector(interval, threshold time.Duration) *SilenceDetector {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if threshold <= 0 {
		threshold = DefaultSilenceThreshold
	}

	return &SilenceDetector{interval: interval, threshold: threshold}
}

// Observe records one poll and reports whether speech just ended.
func (d *SilenceDetector) Observe(length int) bool {
	if d.fired || length <= 0 {
		return false
	}

	if length != d.lastLength {
		d.lastLength = length
		d.silentFor = 0
		return false
	}

	d.silentFor += d.interval
	if d.silentFor >= d.threshold {
		d.fired = true
		return true
	}

	return false
}

// SilentFor is how long progress has been stalled.
func (d *SilenceDetector) SilentFor() time.Duration {
	return d.silentFor
}

func (d *SilenceDetector) Reset() {
	*d = SilenceDetector{interval: d.interval, threshold: d.threshold}
}
