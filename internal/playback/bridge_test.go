package playback_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/alkime/podbook/internal/clock/clocktest"
	"github.com/alkime/podbook/internal/playback"
	"github.com/alkime/podbook/internal/timeline"
	"github.com/alkime/podbook/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptBridge(t *testing.T) {
	ctrl, provider := loaded(t)

	ws := make([]transcript.Word, 50)
	for i := range ws {
		ws[i] = transcript.Word{
			Text:  fmt.Sprintf("w%d", i),
			Start: time.Duration(i) * time.Second,
			End:   time.Duration(i+1) * time.Second,
		}
	}
	engine := transcript.NewSyncEngine(transcript.Group(ws, 10), clocktest.NewManual())

	bridge := playback.NewTranscriptBridge(ctrl, engine)
	defer bridge.Close()

	t.Run("intro positions leave no highlight", func(t *testing.T) {
		provider.Last().Tick(15 * time.Second)
		assert.False(t, engine.State().HasSegment)
	})

	t.Run("main positions use local time", func(t *testing.T) {
		require.NoError(t, ctrl.Seek(30*time.Second+25*time.Second))
		provider.Last().Ready(600 * time.Second)

		state := engine.State()
		assert.True(t, state.HasSegment)
		assert.Equal(t, 2, state.CurrentSegmentID)
	})

	t.Run("segment selection seeks playback", func(t *testing.T) {
		require.NoError(t, engine.UserDidSelectSegment(4))

		assert.Equal(t, timeline.Main, ctrl.State().Phase)
		assert.Equal(t, 40*time.Second, ctrl.State().LocalTime)
		assert.Equal(t, 70*time.Second, ctrl.Snapshot().CombinedPosition)
	})

	t.Run("closed bridge stops forwarding", func(t *testing.T) {
		bridge.Close()

		provider.Last().Tick(5 * time.Second)
		assert.Equal(t, 4, engine.State().CurrentSegmentID)
	})
}
