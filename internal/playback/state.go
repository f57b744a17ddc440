package playback

import (
	"time"

	"github.com/alkime/podbook/internal/timeline"
)

// Status is the coarse state of the controller.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusPlaying
	StatusPaused
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the playback state owned by the controller. IsPlaying is the
// listener's intent and survives phase reloads.
type State struct {
	Status    Status
	Phase     timeline.Phase
	LocalTime time.Duration
	IsPlaying bool
	IsLoading bool
	LastError error
}

// Snapshot is State plus the derived timeline positions.
type Snapshot struct {
	State
	EpisodeID        string
	CombinedPosition time.Duration
	GlobalDuration   time.Duration
	PhaseDuration    time.Duration
}

// EventKind discriminates controller events.
type EventKind int

const (
	EventPositionChanged EventKind = iota
	EventStatusChanged
	EventPhaseChanged
	EventDurationConfirmed
	EventFailed
	EventCompleted
)

func (k EventKind) String() string {
	switch k {
	case EventPositionChanged:
		return "position"
	case EventStatusChanged:
		return "status"
	case EventPhaseChanged:
		return "phase"
	case EventDurationConfirmed:
		return "duration"
	case EventFailed:
		return "failed"
	case EventCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Event is delivered synchronously to subscribers after every state change.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot

	// Phase and Duration are set for EventDurationConfirmed.
	Phase    timeline.Phase
	Duration time.Duration

	// Err is set for EventFailed.
	Err error
}
