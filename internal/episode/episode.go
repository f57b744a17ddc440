// Package episode holds the episode model served by the content API and the
// client that fetches it.
package episode

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/alkime/podbook/internal/timeline"
)

// WordTimestamp is one transcribed word with its main-phase timing in seconds.
type WordTimestamp struct {
	Word      string  `json:"word"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// Episode is a published episode. Intro and outro are optional.
type Episode struct {
	ID          string  `json:"id"`
	SourceID    *string `json:"source_id,omitempty"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Author      string  `json:"author"`
	Category    *string `json:"category,omitempty"`
	ColorTheme  string  `json:"color_theme"`
	CoverURL    *string `json:"cover_url,omitempty"`

	AudioURL        string `json:"audio_url"`
	DurationSeconds int    `json:"duration_seconds"`

	IntroAudioURL        *string `json:"intro_audio_url,omitempty"`
	IntroDurationSeconds *int    `json:"intro_duration_seconds,omitempty"`
	OutroAudioURL        *string `json:"outro_audio_url,omitempty"`
	OutroDurationSeconds *int    `json:"outro_duration_seconds,omitempty"`

	Transcript  []WordTimestamp `json:"transcript"`
	PublishedAt time.Time       `json:"published_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// HasIntro reports whether the episode carries an intro stream.
func (e Episode) HasIntro() bool {
	return e.IntroAudioURL != nil && *e.IntroAudioURL != ""
}

// HasOutro reports whether the episode carries an outro stream.
func (e Episode) HasOutro() bool {
	return e.OutroAudioURL != nil && *e.OutroAudioURL != ""
}

// PhaseSpecs returns the nominal timeline of the episode, intro and outro
// included only when present.
func (e Episode) PhaseSpecs() []timeline.PhaseSpec {
	specs := make([]timeline.PhaseSpec, 0, 3)

	if e.HasIntro() {
		specs = append(specs, timeline.PhaseSpec{
			Phase:     timeline.Intro,
			SourceRef: *e.IntroAudioURL,
			Duration:  seconds(e.IntroDurationSeconds),
		})
	}

	specs = append(specs, timeline.PhaseSpec{
		Phase:     timeline.Main,
		SourceRef: e.AudioURL,
		Duration:  time.Duration(e.DurationSeconds) * time.Second,
	})

	if e.HasOutro() {
		specs = append(specs, timeline.PhaseSpec{
			Phase:     timeline.Outro,
			SourceRef: *e.OutroAudioURL,
			Duration:  seconds(e.OutroDurationSeconds),
		})
	}

	return specs
}

// Timeline builds the nominal timeline for the episode.
func (e Episode) Timeline() (*timeline.Timeline, error) {
	return timeline.New(e.PhaseSpecs()...)
}

// TotalDuration is the nominal length of all phases together.
func (e Episode) TotalDuration() time.Duration {
	var total time.Duration
	for _, s := range e.PhaseSpecs() {
		total += s.Duration
	}

	return total
}

// FormattedDuration renders the main duration as "1 hr 5 m" or "45 m".
func (e Episode) FormattedDuration() string {
	hours := e.DurationSeconds / 3600
	minutes := (e.DurationSeconds % 3600) / 60

	if hours > 0 {
		return fmt.Sprintf("%d hr %d m", hours, minutes)
	}

	return fmt.Sprintf("%d m", minutes)
}

func seconds(s *int) time.Duration {
	if s == nil {
		return 0
	}

	return time.Duration(*s) * time.Second
}

// Seconds converts fractional seconds from the API into a Duration, rounded
// to the nearest millisecond.
func Seconds(s float64) time.Duration {
	return time.Duration(math.Round(s*1000)) * time.Millisecond
}

// LoadFile reads a single episode from a JSON file.
func LoadFile(path string) (Episode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Episode{}, fmt.Errorf("failed to read episode file: %w", err)
	}

	var ep Episode
	if err := json.Unmarshal(data, &ep); err != nil {
		return Episode{}, fmt.Errorf("failed to decode episode file: %w", err)
	}

	if ep.AudioURL == "" {
		return Episode{}, fmt.Errorf("episode %q has no audio_url", ep.ID)
	}

	return ep, nil
}
