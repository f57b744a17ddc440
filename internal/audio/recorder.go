package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	mp3encoder "github.com/braheezy/shine-mp3/pkg/mp3"
)

// ErrNoAudio is returned by Wait when the input closed before any PCM arrived.
var ErrNoAudio = errors.New("no audio captured")

// Recorder collects captured S16LE PCM for one spoken question and encodes
// it to MP3 once the input channel closes. Questions are short, so the PCM
// is held in memory.
type Recorder struct {
	config RecorderConfig
	input  <-chan []byte
	logger *slog.Logger

	mu        sync.Mutex
	pcm       bytes.Buffer
	truncated bool
	started   bool
	done      chan struct{}
	err       error
}

type RecorderConfig struct {
	SampleRate int
	Channels   int
	MP3Path    string
	// MaxDuration caps how much audio is kept; zero keeps everything.
	MaxDuration time.Duration
	Logger      *slog.Logger
}

// WithDefaults fills zero fields with the capture defaults.
func (c RecorderConfig) WithDefaults() RecorderConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	return c
}

// NewRecorder reads packets from input until it is closed.
func NewRecorder(config RecorderConfig, input <-chan []byte) (*Recorder, error) {
	switch {
	case input == nil:
		return nil, errors.New("input channel cannot be nil")
	case config.MP3Path == "":
		return nil, errors.New("MP3 path cannot be empty")
	case config.SampleRate <= 0:
		return nil, errors.New("sample rate must be positive")
	case config.Channels <= 0:
		return nil, errors.New("channels must be positive")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		config: config,
		input:  input,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Start collects input in the background. Cancelling ctx stops collecting
// early; what was captured so far is still encoded.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.New("recorder already started")
	}
	r.started = true

	go func() {
		defer close(r.done)

		r.collect(ctx)
		if err := r.encode(); err != nil {
			r.err = err
			r.logger.Error("question recording failed", "error", err)
			return
		}

		r.logger.Debug("question recording complete",
			"output", r.config.MP3Path, "duration", r.Duration(), "truncated", r.Truncated())
	}()

	return nil
}

func (r *Recorder) collect(ctx context.Context) {
	limit := int64(-1)
	if r.config.MaxDuration > 0 {
		limit = r.bytesFor(r.config.MaxDuration)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-r.input:
			if !ok {
				return
			}

			r.mu.Lock()
			if limit >= 0 && int64(r.pcm.Len()+len(data)) > limit {
				data = data[:max(limit-int64(r.pcm.Len()), 0)]
				r.truncated = true
			}
			r.pcm.Write(data)
			r.mu.Unlock()
		}
	}
}

func (r *Recorder) encode() error {
	r.mu.Lock()
	samples := BytesToInt16(r.pcm.Bytes())
	r.mu.Unlock()

	if len(samples) == 0 {
		return ErrNoAudio
	}

	// shine-mp3 mishandles mono input, so mono is duplicated to L=R.
	channels := r.config.Channels
	if channels == 1 {
		samples = MonoToStereo(samples)
		channels = 2
	}

	f, err := os.Create(r.config.MP3Path)
	if err != nil {
		return fmt.Errorf("failed to create MP3 file %s: %w", r.config.MP3Path, err)
	}
	defer f.Close()

	if err := mp3encoder.NewEncoder(r.config.SampleRate, channels).Write(f, samples); err != nil {
		return fmt.Errorf("failed to encode MP3: %w", err)
	}

	return nil
}

// Wait blocks until the MP3 is written or recording failed.
func (r *Recorder) Wait() error {
	<-r.done
	return r.err
}

func (r *Recorder) MP3Path() string {
	return r.config.MP3Path
}

// BytesWritten is the amount of PCM kept so far.
func (r *Recorder) BytesWritten() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return int64(r.pcm.Len())
}

// Duration is how much audio has been kept so far.
func (r *Recorder) Duration() time.Duration {
	perSecond := int64(r.config.SampleRate * r.config.Channels * 2)

	return time.Duration(r.BytesWritten() * int64(time.Second) / perSecond)
}

// Truncated reports whether input beyond MaxDuration was discarded.
func (r *Recorder) Truncated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.truncated
}

// bytesFor rounds down to whole frames.
func (r *Recorder) bytesFor(d time.Duration) int64 {
	frame := int64(r.config.Channels * 2)
	frames := int64(r.config.SampleRate) * int64(d) / int64(time.Second)

	return frames * frame
}
