package question_test

import (
	"testing"
	"time"

	"github.com/alkime/podbook/internal/question"
	"github.com/stretchr/testify/assert"
)

func TestSilenceDetector(t *testing.T) {
	tests := []struct {
		name    string
		lengths []int
		fireAt  int // index of the observation that fires, -1 for never
	}{
		{
			name:    "nothing heard never fires",
			lengths: []int{0, 0, 0, 0, 0, 0, 0, 0},
			fireAt:  -1,
		},
		{
			name:    "fires after four stalled polls",
			lengths: []int{1, 2, 3, 3, 3, 3, 3, 3},
			fireAt:  6,
		},
		{
			name:    "growth resets the count",
			lengths: []int{1, 1, 1, 2, 2, 2, 2, 2},
			fireAt:  7,
		},
		{
			name:    "still talking",
			lengths: []int{1, 2, 3, 4, 5, 6, 7, 8},
			fireAt:  -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := question.NewSilenceDetector(500*time.Millisecond, 2*time.Second)

			fired := -1
			for i, n := range tt.lengths {
				if d.Observe(n) {
					assert.Equal(t, -1, fired, "fired twice")
					fired = i
				}
			}

			assert.Equal(t, tt.fireAt, fired)
		})
	}
}

func TestSilenceDetector_FiresOnce(t *testing.T) {
	d := question.NewSilenceDetector(time.Second, time.Second)

	assert.False(t, d.Observe(4))
	assert.True(t, d.Observe(4))
	assert.False(t, d.Observe(4))
	assert.Equal(t, time.Second, d.SilentFor())

	d.Reset()
	assert.Zero(t, d.SilentFor())
	assert.False(t, d.Observe(4))
	assert.True(t, d.Observe(4))
}

func TestSilenceDetector_Defaults(t *testing.T) {
	d := question.NewSilenceDetector(0, 0)

	assert.False(t, d.Observe(1))
	for range 3 {
		assert.False(t, d.Observe(1))
	}
	assert.True(t, d.Observe(1))
}
