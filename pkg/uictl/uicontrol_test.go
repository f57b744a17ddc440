package uictl_test

import (
	"testing"

	"github.com/alkime/podbook/pkg/uictl"
	"github.com/stretchr/testify/assert"
)

type ring struct {
	samples []int16
}

func (r *ring) ReadSamples(n int) []int16 {
	if n > len(r.samples) {
		n = len(r.samples)
	}
	return r.samples[len(r.samples)-n:]
}

func TestWindow(t *testing.T) {
	r := &ring{samples: []int16{1, 2, 3, 4, 5}}

	levels := uictl.Window[int16](r, 3)
	assert.Equal(t, []int16{3, 4, 5}, levels.Read())

	r.samples = append(r.samples, 6)
	assert.Equal(t, []int16{4, 5, 6}, levels.Read())
}

func TestWindow_NilSampler(t *testing.T) {
	assert.Nil(t, uictl.Window[int16](nil, 3))
}

func TestLevelsFunc(t *testing.T) {
	var levels uictl.Levels[float64] = uictl.LevelsFunc[float64](func() []float64 {
		return []float64{0.5}
	})

	assert.Equal(t, []float64{0.5}, levels.Read())
}
