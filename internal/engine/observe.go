package engine

import (
	"context"

	"github.com/alkime/podbook/internal/interjection"
	"github.com/alkime/podbook/internal/playback"
	"github.com/alkime/podbook/internal/transcript"
)

// Observer receives engine events on the loop. Nil fields are skipped.
// Callbacks must not block.
type Observer struct {
	Playback     func(playback.Event)
	Transcript   func(transcript.SyncEvent)
	Interjection func(interjection.Event)
}

type observation struct {
	id       uint64
	observer Observer
	unsubs   []func()
	// transcript subscription of the currently open episode
	unsubTranscript func()
}

// Observe registers o for the lifetime of the engine. Transcript callbacks
// follow each newly opened episode. The returned func unregisters o.
func (e *Engine) Observe(ctx context.Context, o Observer) (func(), error) {
	var id uint64
	err := e.Do(ctx, func(c Components) error {
		e.nextObserver++
		id = e.nextObserver

		obs := &observation{id: id, observer: o}
		if o.Playback != nil {
			obs.unsubs = append(obs.unsubs, c.Player.Subscribe(o.Playback))
		}
		if o.Interjection != nil {
			obs.unsubs = append(obs.unsubs, c.Interjection.Subscribe(o.Interjection))
		}
		e.attachTranscript(obs)

		e.observers = append(e.observers, obs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return func() {
		_ = e.loop.Post(func() { e.removeObserver(id) })
	}, nil
}

// attachTranscript subscribes obs to the open transcript. Runs on the loop.
func (e *Engine) attachTranscript(obs *observation) {
	if obs.unsubTranscript != nil {
		obs.unsubTranscript()
		obs.unsubTranscript = nil
	}

	if e.sync != nil && obs.observer.Transcript != nil {
		obs.unsubTranscript = e.sync.Subscribe(obs.observer.Transcript)
	}
}

func (e *Engine) removeObserver(id uint64) {
	for i, obs := range e.observers {
		if obs.id != id {
			continue
		}

		for _, unsub := range obs.unsubs {
			unsub()
		}
		if obs.unsubTranscript != nil {
			obs.unsubTranscript()
		}
		e.observers = append(e.observers[:i], e.observers[i+1:]...)
		return
	}
}
