package playback

import (
	"github.com/alkime/podbook/internal/timeline"
	"github.com/alkime/podbook/internal/transcript"
)

// TranscriptBridge feeds main-phase positions from a Controller into a
// transcript SyncEngine and turns the engine's seek requests into
// controller seeks. Both must live on the same scheduling context.
type TranscriptBridge struct {
	ctrl   *Controller
	engine *transcript.SyncEngine
	unsubs []func()
}

// NewTranscriptBridge wires ctrl and engine together until Close.
func NewTranscriptBridge(ctrl *Controller, engine *transcript.SyncEngine) *TranscriptBridge {
	b := &TranscriptBridge{ctrl: ctrl, engine: engine}

	b.unsubs = append(b.unsubs,
		ctrl.Subscribe(b.onPlayback),
		engine.Subscribe(b.onTranscript),
	)

	return b
}

func (b *TranscriptBridge) onPlayback(ev Event) {
	switch ev.Kind {
	case EventPositionChanged, EventPhaseChanged:
	default:
		return
	}

	if ev.Snapshot.Phase != timeline.Main {
		b.engine.ClearHighlight()
		return
	}

	b.engine.OnPositionUpdate(ev.Snapshot.LocalTime)
}

func (b *TranscriptBridge) onTranscript(ev transcript.SyncEvent) {
	if ev.Kind != transcript.SeekRequested {
		return
	}

	tl := b.ctrl.Timeline()
	if tl == nil {
		return
	}

	g, err := tl.Globalize(timeline.Main, ev.SeekTo)
	if err != nil {
		b.ctrl.logger.Debug("transcript seek dropped", "error", err)
		return
	}

	if err := b.ctrl.Seek(g); err != nil {
		b.ctrl.logger.Debug("transcript seek failed", "error", err)
	}
}

// Close detaches the bridge from both sides.
func (b *TranscriptBridge) Close() {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
}
