package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// bytesPerFrame is one stereo S16LE frame, the only layout go-mp3 decodes to.
const bytesPerFrame = 4

var ErrUnknownLength = errors.New("mp3 length unknown")

// MP3Stream decodes an MP3 into PCM S16LE stereo frames and tracks the
// playhead. Read runs on the audio callback goroutine while SeekTo and
// Position are called from the scheduling context, so access is locked.
type MP3Stream struct {
	mu         sync.Mutex
	dec        *mp3.Decoder
	src        io.ReadSeeker
	sampleRate int
	length     int64
	pos        int64
	eof        bool
}

// NewMP3Stream wraps a seekable MP3 source. The stream owns src and closes
// it on Close when src is an io.Closer.
func NewMP3Stream(src io.ReadSeeker) (*MP3Stream, error) {
	dec, err := mp3.NewDecoder(src)
	if err != nil {
		return nil, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	length := dec.Length()
	if length < 0 {
		return nil, ErrUnknownLength
	}

	return &MP3Stream{
		dec:        dec,
		src:        src,
		sampleRate: dec.SampleRate(),
		length:     length,
	}, nil
}

func (s *MP3Stream) SampleRate() int {
	return s.sampleRate
}

// Duration is the decoded length of the stream.
func (s *MP3Stream) Duration() time.Duration {
	return s.bytesToDuration(s.length)
}

// Position is the playhead, advanced by Read and moved by SeekTo.
func (s *MP3Stream) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bytesToDuration(s.pos)
}

// Done reports whether Read has reached the end of the stream.
func (s *MP3Stream) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.eof
}

// SeekTo moves the playhead to the frame nearest d, clamped to the stream.
func (s *MP3Stream) SeekTo(d time.Duration) error {
	off := s.durationToBytes(d)
	off = max(0, min(off, s.length))

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.dec.Seek(off, io.SeekStart)
	if err != nil {
		return fmt.Errorf("failed to seek mp3 to %s: %w", d, err)
	}

	s.pos = n
	s.eof = n >= s.length

	return nil
}

// Read fills p with whole PCM frames.
func (s *MP3Stream) Read(p []byte) (int, error) {
	p = p[:len(p)-len(p)%bytesPerFrame]

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.eof {
		return 0, io.EOF
	}

	n, err := io.ReadFull(s.dec, p)
	s.pos += int64(n)

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		s.eof = true
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}

	if err != nil {
		return n, fmt.Errorf("failed to decode mp3: %w", err)
	}

	return n, nil
}

func (s *MP3Stream) Close() error {
	if c, ok := s.src.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

func (s *MP3Stream) bytesToDuration(n int64) time.Duration {
	if s.sampleRate == 0 {
		return 0
	}

	frames := n / bytesPerFrame

	return time.Duration(frames) * time.Second / time.Duration(s.sampleRate)
}

func (s *MP3Stream) durationToBytes(d time.Duration) int64 {
	frames := int64(d) * int64(s.sampleRate) / int64(time.Second)

	return frames * bytesPerFrame
}
