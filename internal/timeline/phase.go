// Package timeline maps a single global playback position onto the ordered
// phases (intro, main, outro) an episode is served as.
package timeline

import "time"

// Phase identifies one independently loaded stream of an episode.
type Phase int

const (
	// Intro is the optional lead-in stream.
	Intro Phase = iota
	// Main is the episode body. Every timeline has one.
	Main
	// Outro is the optional closing stream.
	Outro
)

// String returns the human-readable name of the phase.
func (p Phase) String() string {
	switch p {
	case Intro:
		return "Intro"
	case Main:
		return "Episode"
	case Outro:
		return "Outro"
	default:
		return "Unknown"
	}
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	return p >= Intro && p <= Outro
}

// PhaseSpec describes one present phase.
type PhaseSpec struct {
	// Phase is which slot of the episode this stream fills.
	Phase Phase

	// SourceRef is the opaque audio locator (URL or path) for the stream.
	SourceRef string

	// Duration is the nominal duration until the stream confirms it.
	Duration time.Duration

	// Confirmed is set once the loaded stream reported its real duration.
	Confirmed bool
}

// Position is a phase-relative playback position.
type Position struct {
	Phase Phase
	Local time.Duration
}
