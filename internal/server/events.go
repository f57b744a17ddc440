package server

import (
	"github.com/alkime/podbook/internal/interjection"
	"github.com/alkime/podbook/internal/playback"
	"github.com/alkime/podbook/internal/transcript"
	"github.com/alkime/podbook/pkg/channels"
)

// Event is one message on the websocket stream.
type Event struct {
	Type string `json:"type"`

	Playback *PlaybackResponse `json:"playback,omitempty"`

	SegmentID  *int `json:"segment_id,omitempty"`
	ScrollBack bool `json:"scroll_back,omitempty"`

	QuestionID string `json:"question_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// PlaybackEvents returns a playback.Controller subscriber that forwards
// events to out. It never blocks; a full out drops the event.
func PlaybackEvents(out chan<- Event) func(playback.Event) {
	return func(ev playback.Event) {
		snap := newPlaybackResponse(ev.Snapshot)
		msg := Event{Type: "playback." + ev.Kind.String(), Playback: &snap}
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}

		_ = channels.SendNonBlock(out, msg)
	}
}

// TranscriptEvents forwards highlight changes and scroll-back requests.
func TranscriptEvents(out chan<- Event) func(transcript.SyncEvent) {
	return func(ev transcript.SyncEvent) {
		var msg Event
		switch ev.Kind {
		case transcript.SegmentChanged:
			msg.Type = "transcript.segment"
		case transcript.ScrollToSegment:
			msg.Type = "transcript.segment"
			msg.ScrollBack = true
		default:
			return
		}

		if ev.HasSegment {
			id := ev.SegmentID
			msg.SegmentID = &id
		}

		_ = channels.SendNonBlock(out, msg)
	}
}

// InterjectionEvents forwards the question lifecycle.
func InterjectionEvents(out chan<- Event) func(interjection.Event) {
	return func(ev interjection.Event) {
		msg := Event{
			Type:       "interjection." + ev.Kind.String(),
			QuestionID: ev.Session.QuestionID,
		}
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}

		_ = channels.SendNonBlock(out, msg)
	}
}
