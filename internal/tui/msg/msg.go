// Package msg defines the messages shared by the TUI screens, and the
// forwarder that turns engine callbacks into messages.
package msg

import (
	"context"
	"log/slog"

	"github.com/alkime/podbook/internal/engine"
	"github.com/alkime/podbook/internal/interjection"
	"github.com/alkime/podbook/internal/playback"
	"github.com/alkime/podbook/internal/timeline"
	"github.com/alkime/podbook/internal/transcript"
	"github.com/alkime/podbook/pkg/channels"
	tea "github.com/charmbracelet/bubbletea"
)

// PlaybackMsg carries a playback controller event.
type PlaybackMsg struct {
	Event playback.Event
}

// TranscriptMsg carries a transcript highlight event.
type TranscriptMsg struct {
	Event transcript.SyncEvent
}

// InterjectionMsg carries a question lifecycle event.
type InterjectionMsg struct {
	Event interjection.Event
}

// LoadedMsg delivers the open episode's layout and transcript.
type LoadedMsg struct {
	Title    string
	Snapshot playback.Snapshot
	Timeline *timeline.Timeline
	Segments []transcript.Segment
}

// TimelineMsg delivers a refreshed phase layout.
type TimelineMsg struct {
	Timeline *timeline.Timeline
}

// ErrMsg reports a failed command.
type ErrMsg struct {
	Err error
}

// AskMsg asks the root model to open the question screen.
type AskMsg struct{}

// QuestionSubmittedMsg signals the question text is on its way.
type QuestionSubmittedMsg struct {
	Text string
}

// QuestionClosedMsg signals the question screen should close.
type QuestionClosedMsg struct{}

// HeardMsg carries the transcribed spoken question.
type HeardMsg struct {
	Text string
	Err  error
}

// Result turns a command error into an ErrMsg, or nil on success.
func Result(err error) tea.Msg {
	if err != nil {
		return ErrMsg{Err: err}
	}

	return nil
}

// Sender is implemented by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Forward returns an engine observer that delivers events to s as
// messages. Callbacks never block the engine loop: events are queued and a
// full queue drops them. Forwarding stops with ctx.
func Forward(ctx context.Context, s Sender, buffer int, logger *slog.Logger) engine.Observer {
	if logger == nil {
		logger = slog.Default()
	}

	queue := make(chan tea.Msg, buffer)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-queue:
				s.Send(m)
			}
		}
	}()

	enqueue := func(m tea.Msg) {
		if err := channels.SendNonBlock(queue, m); err != nil {
			logger.Debug("tui event dropped", "msg", m, "error", err)
		}
	}

	return engine.Observer{
		Playback:     func(ev playback.Event) { enqueue(PlaybackMsg{Event: ev}) },
		Transcript:   func(ev transcript.SyncEvent) { enqueue(TranscriptMsg{Event: ev}) },
		Interjection: func(ev interjection.Event) { enqueue(InterjectionMsg{Event: ev}) },
	}
}
