// Package uictl holds the small read-only controls UI components poll for
// live values without knowing where the values come from.
package uictl

import "golang.org/x/exp/constraints"

type Number interface {
	constraints.Integer | constraints.Float
}

// Levels is a control that can read multiple levels.
type Levels[N Number] interface {
	Read() []N
}

// LevelsFunc adapts a plain function to Levels.
type LevelsFunc[N Number] func() []N

func (f LevelsFunc[N]) Read() []N {
	return f()
}

// Sampler returns its n most recent samples, oldest first.
type Sampler[N Number] interface {
	ReadSamples(n int) []N
}

// Window reads the n most recent samples from s on every Read.
func Window[N Number](s Sampler[N], n int) Levels[N] {
	if s == nil {
		return nil
	}

	return LevelsFunc[N](func() []N {
		return s.ReadSamples(n)
	})
}
