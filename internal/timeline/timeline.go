package timeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimelineUninitialized is returned when no usable timeline exists:
	// the main phase is missing or the total duration is zero.
	ErrTimelineUninitialized = errors.New("timeline uninitialized")
	// ErrUnknownPhase is returned for phases that are not part of the timeline.
	ErrUnknownPhase = errors.New("phase not in timeline")
)

// Timeline is an immutable, ordered list of present phases with their
// cumulative start offsets. Confirming a duration yields a new Timeline.
type Timeline struct {
	specs   []PhaseSpec
	offsets []time.Duration
	total   time.Duration
}

// New builds a timeline from the given phases. Phases must be in canonical
// order (intro, main, outro), appear at most once and include main.
// Negative durations are treated as zero.
func New(specs ...PhaseSpec) (*Timeline, error) {
	hasMain := false
	prev := Phase(-1)

	for _, s := range specs {
		if !s.Phase.Valid() {
			return nil, fmt.Errorf("invalid phase %d: %w", s.Phase, ErrUnknownPhase)
		}

		if s.Phase <= prev {
			return nil, fmt.Errorf("phase %s out of order", s.Phase)
		}

		prev = s.Phase

		if s.Phase == Main {
			hasMain = true
		}
	}

	if !hasMain {
		return nil, fmt.Errorf("main phase missing: %w", ErrTimelineUninitialized)
	}

	t := &Timeline{
		specs:   make([]PhaseSpec, len(specs)),
		offsets: make([]time.Duration, len(specs)),
	}
	copy(t.specs, specs)
	t.recompute()

	return t, nil
}

func (t *Timeline) recompute() {
	var acc time.Duration

	for i := range t.specs {
		if t.specs[i].Duration < 0 {
			t.specs[i].Duration = 0
		}

		t.offsets[i] = acc
		acc += t.specs[i].Duration
	}

	t.total = acc
}

func (t *Timeline) index(p Phase) int {
	if t == nil {
		return -1
	}

	for i, s := range t.specs {
		if s.Phase == p {
			return i
		}
	}

	return -1
}

func (t *Timeline) ready() error {
	if t == nil || t.total <= 0 || t.index(Main) < 0 {
		return ErrTimelineUninitialized
	}

	return nil
}

// GlobalDuration is the sum of all phase durations.
func (t *Timeline) GlobalDuration() time.Duration {
	if t == nil {
		return 0
	}

	return t.total
}

// Phases returns the present phases in playback order.
func (t *Timeline) Phases() []Phase {
	if t == nil {
		return nil
	}

	out := make([]Phase, len(t.specs))
	for i, s := range t.specs {
		out[i] = s.Phase
	}

	return out
}

// Specs returns a copy of the phase descriptions in playback order.
func (t *Timeline) Specs() []PhaseSpec {
	if t == nil {
		return nil
	}

	out := make([]PhaseSpec, len(t.specs))
	copy(out, t.specs)

	return out
}

// Has reports whether p is present.
func (t *Timeline) Has(p Phase) bool {
	return t.index(p) >= 0
}

// Spec returns the description of phase p.
func (t *Timeline) Spec(p Phase) (PhaseSpec, error) {
	i := t.index(p)
	if i < 0 {
		return PhaseSpec{}, fmt.Errorf("%s: %w", p, ErrUnknownPhase)
	}

	return t.specs[i], nil
}

// Duration returns the current (possibly provisional) duration of phase p.
// Unknown phases report zero.
func (t *Timeline) Duration(p Phase) time.Duration {
	i := t.index(p)
	if i < 0 {
		return 0
	}

	return t.specs[i].Duration
}

// StartOffset returns the global time at which phase p begins.
func (t *Timeline) StartOffset(p Phase) (time.Duration, error) {
	i := t.index(p)
	if i < 0 {
		return 0, fmt.Errorf("%s: %w", p, ErrUnknownPhase)
	}

	return t.offsets[i], nil
}

// First returns the phase playback starts in.
func (t *Timeline) First() Phase {
	if t == nil || len(t.specs) == 0 {
		return Main
	}

	return t.specs[0].Phase
}

// Next returns the phase following p, if any.
func (t *Timeline) Next(p Phase) (Phase, bool) {
	i := t.index(p)
	if i < 0 || i+1 >= len(t.specs) {
		return 0, false
	}

	return t.specs[i+1].Phase, true
}

// Clamp limits g to [0, GlobalDuration].
func (t *Timeline) Clamp(g time.Duration) time.Duration {
	if g < 0 {
		return 0
	}

	if total := t.GlobalDuration(); g > total {
		return total
	}

	return g
}

// Localize resolves a global time to a phase-relative position.
//
// Out-of-range input is clamped. An instant exactly on a boundary belongs to
// the following phase, so the end of the intro is the start of main. The end
// of the whole timeline resolves to the end of the last phase.
func (t *Timeline) Localize(g time.Duration) (Position, error) {
	if err := t.ready(); err != nil {
		return Position{}, err
	}

	g = t.Clamp(g)

	for i, s := range t.specs {
		end := t.offsets[i] + s.Duration
		if g < end {
			return Position{Phase: s.Phase, Local: g - t.offsets[i]}, nil
		}
	}

	last := len(t.specs) - 1
	for last > 0 && t.specs[last].Duration == 0 {
		last--
	}

	return Position{Phase: t.specs[last].Phase, Local: t.specs[last].Duration}, nil
}

// Globalize is the inverse of Localize.
func (t *Timeline) Globalize(p Phase, local time.Duration) (time.Duration, error) {
	if err := t.ready(); err != nil {
		return 0, err
	}

	off, err := t.StartOffset(p)
	if err != nil {
		return 0, err
	}

	return off + local, nil
}

// WithConfirmedDuration returns a copy of the timeline with phase p's
// duration replaced by d and every later offset shifted accordingly.
func (t *Timeline) WithConfirmedDuration(p Phase, d time.Duration) (*Timeline, error) {
	i := t.index(p)
	if i < 0 {
		return nil, fmt.Errorf("%s: %w", p, ErrUnknownPhase)
	}

	specs := t.Specs()
	specs[i].Duration = d
	specs[i].Confirmed = true

	return New(specs...)
}
