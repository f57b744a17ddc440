// Package transcript groups word timings into segments and keeps the
// highlighted segment in step with playback.
package transcript

import (
	"sort"
	"strings"
	"time"

	"github.com/alkime/podbook/internal/episode"
	"github.com/alkime/podbook/pkg/collections"
)

const DefaultWordsPerSegment = 10

// Word is one transcribed word in main-phase time.
type Word struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// Segment is a run of consecutive words. Segments are ordered and do not
// overlap.
type Segment struct {
	ID    int
	Start time.Duration
	End   time.Duration
	Text  string
	Words []Word
}

// Contains reports whether t falls in [Start, End).
func (s Segment) Contains(t time.Duration) bool {
	return t >= s.Start && t < s.End
}

// WordsFromEpisode converts the API word timings.
func WordsFromEpisode(ws []episode.WordTimestamp) []Word {
	return collections.Apply(ws, func(w episode.WordTimestamp) Word {
		return Word{
			Text:  w.Word,
			Start: episode.Seconds(w.StartTime),
			End:   episode.Seconds(w.EndTime),
		}
	})
}

// Group batches words into segments of perSegment words each; the last
// segment takes the remainder. Segment IDs are their index.
func Group(words []Word, perSegment int) []Segment {
	if perSegment <= 0 {
		perSegment = DefaultWordsPerSegment
	}

	chunks := collections.Chunk(words, perSegment)
	segments := make([]Segment, 0, len(chunks))

	for i, chunk := range chunks {
		texts := collections.Apply(chunk, func(w Word) string { return w.Text })

		seg := Segment{
			ID:    i,
			Start: chunk[0].Start,
			End:   chunk[len(chunk)-1].End,
			Text:  strings.Join(texts, " "),
			Words: chunk,
		}

		// keep segments non-overlapping when word timings overlap
		if i > 0 && seg.Start < segments[i-1].End {
			segments[i-1].End = seg.Start
		}

		segments = append(segments, seg)
	}

	return segments
}

// Find returns the index of the segment containing t. A t on the boundary
// between two segments belongs to the later one. Gaps find nothing.
func Find(segments []Segment, t time.Duration) (int, bool) {
	// first segment ending after t
	i := sort.Search(len(segments), func(i int) bool {
		return segments[i].End > t
	})

	if i < len(segments) && segments[i].Contains(t) {
		return i, true
	}

	return 0, false
}
