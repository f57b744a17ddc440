package clocktest_test

import (
	"testing"
	"time"

	"github.com/alkime/podbook/internal/clock/clocktest"
	"github.com/stretchr/testify/assert"
)

func TestManual(t *testing.T) {
	t.Run("fires due timers in order", func(t *testing.T) {
		m := clocktest.NewManual()

		var fired []string
		m.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
		m.AfterFunc(time.Second, func() { fired = append(fired, "a") })
		m.AfterFunc(5*time.Second, func() { fired = append(fired, "c") })

		m.Advance(2 * time.Second)
		assert.Equal(t, []string{"a", "b"}, fired)
		assert.Equal(t, 1, m.Pending())
	})

	t.Run("stopped timers never fire", func(t *testing.T) {
		m := clocktest.NewManual()

		fired := false
		tm := m.AfterFunc(time.Second, func() { fired = true })

		assert.True(t, tm.Stop())
		assert.False(t, tm.Stop())

		m.Advance(time.Minute)
		assert.False(t, fired)
	})

	t.Run("callbacks may arm new timers", func(t *testing.T) {
		m := clocktest.NewManual()
		start := m.Now()

		var at time.Time
		m.AfterFunc(time.Second, func() {
			m.AfterFunc(time.Second, func() { at = m.Now() })
		})

		m.Advance(3 * time.Second)
		assert.Equal(t, start.Add(2*time.Second), at)
		assert.Equal(t, start.Add(3*time.Second), m.Now())
	})
}
