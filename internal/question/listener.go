package question

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alkime/podbook/internal/audio"
)

var (
	ErrNoSpeech           = errors.New("no speech detected")
	ErrMaxDurationReached = errors.New("max duration reached")
)

const (
	DefaultMaxDuration  = 60 * time.Second
	DefaultNoSpeechWait = 15 * time.Second
	// DefaultVoiceLevel is the RMS level above which a poll counts as speech.
	DefaultVoiceLevel = 0.02
)

// CaptureDevice is the part of audio.Device the listener drives.
type CaptureDevice interface {
	CaptureInto(ctx context.Context, dataC chan audio.DataPacket) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Dealloc(ctx context.Context)
}

type ListenerConfig struct {
	// Dir is where recordings are written.
	Dir              string
	PollInterval     time.Duration
	SilenceThreshold time.Duration
	MaxDuration      time.Duration
	NoSpeechWait     time.Duration
	VoiceLevel       float64
	// KeepRecordings leaves the MP3 on disk after transcription.
	KeepRecordings bool
}

func (c ListenerConfig) WithDefaults() ListenerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = DefaultSilenceThreshold
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.NoSpeechWait <= 0 {
		c.NoSpeechWait = DefaultNoSpeechWait
	}
	if c.VoiceLevel <= 0 {
		c.VoiceLevel = DefaultVoiceLevel
	}

	return c
}

// Listener records one spoken question at a time and transcribes it.
type Listener struct {
	config      ListenerConfig
	device      CaptureDevice
	levels      *audio.SampleRingBuffer
	transcriber Transcriber
	logger      *slog.Logger

	mu    sync.Mutex
	stopC chan struct{}
}

// NewListener builds a listener. levels must be the ring buffer the device
// taps captured samples into.
func NewListener(
	config ListenerConfig,
	device CaptureDevice,
	levels *audio.SampleRingBuffer,
	transcriber Transcriber,
	logger *slog.Logger,
) (*Listener, error) {
	if device == nil {
		return nil, errors.New("capture device cannot be nil")
	}
	if levels == nil {
		return nil, errors.New("levels buffer cannot be nil")
	}
	if transcriber == nil {
		return nil, errors.New("transcriber cannot be nil")
	}
	if config.Dir == "" {
		return nil, errors.New("recordings directory cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{
		config:      config.WithDefaults(),
		device:      device,
		levels:      levels,
		transcriber: transcriber,
		logger:      logger,
	}, nil
}

// Levels exposes the capture meter for display.
func (l *Listener) Levels() *audio.SampleRingBuffer {
	return l.levels
}

// Stop ends the current recording early, as if the speaker had gone quiet.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopC != nil {
		close(l.stopC)
		l.stopC = nil
	}
}

// Listen records until the speaker stops talking, then returns the
// transcribed question.
func (l *Listener) Listen(ctx context.Context) (string, error) {
	path, err := l.record(ctx)
	if err != nil {
		return "", err
	}

	if !l.config.KeepRecordings {
		defer os.Remove(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	text, err := l.transcriber.Transcribe(ctx, f)
	if err != nil {
		return "", err
	}

	l.logger.Info("question transcribed", "chars", len(text))

	return text, nil
}

func (l *Listener) record(ctx context.Context) (string, error) {
	if err := os.MkdirAll(l.config.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recordings directory: %w", err)
	}

	stopC := make(chan struct{})
	l.mu.Lock()
	if l.stopC != nil {
		l.mu.Unlock()
		return "", errors.New("already listening")
	}
	l.stopC = stopC
	l.mu.Unlock()
	defer l.Stop()

	path := filepath.Join(l.config.Dir, fmt.Sprintf("question-%d.mp3", time.Now().UnixMilli()))
	dataC := make(chan audio.DataPacket, 64)

	recorder, err := audio.NewRecorder(audio.RecorderConfig{
		MP3Path:     path,
		MaxDuration: l.config.MaxDuration,
		Logger:      l.logger,
	}.WithDefaults(), dataC)
	if err != nil {
		return "", fmt.Errorf("failed to create recorder: %w", err)
	}

	if err := recorder.Start(context.WithoutCancel(ctx)); err != nil {
		return "", fmt.Errorf("failed to start recorder: %w", err)
	}

	if err := l.device.CaptureInto(ctx, dataC); err != nil {
		close(dataC)
		_ = recorder.Wait()
		os.Remove(path)
		return "", fmt.Errorf("failed to start audio capture: %w", err)
	}

	if err := l.device.Start(ctx); err != nil {
		l.finish(ctx, dataC)
		_ = recorder.Wait()
		os.Remove(path)
		return "", fmt.Errorf("failed to start audio device: %w", err)
	}

	reason := l.poll(ctx, stopC)

	l.finish(ctx, dataC)
	werr := recorder.Wait()

	l.logger.Info("recording stopped", "reason", stopReason(reason), "duration", recorder.Duration())

	switch {
	case errors.Is(reason, ErrNoSpeech), errors.Is(reason, context.Canceled), errors.Is(reason, context.DeadlineExceeded):
		os.Remove(path)
		return "", reason
	case werr != nil:
		os.Remove(path)
		return "", fmt.Errorf("failed to write recording: %w", werr)
	}

	return path, nil
}

// poll samples the level meter until speech ends and returns why it stopped.
// A nil return means silence ended the question.
func (l *Listener) poll(ctx context.Context, stopC <-chan struct{}) error {
	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	detector := NewSilenceDetector(l.config.PollInterval, l.config.SilenceThreshold)
	window := int(time.Duration(audio.DefaultSampleRate) * l.config.PollInterval / time.Second)
	started := time.Now()
	voiced := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopC:
			if voiced == 0 {
				return ErrNoSpeech
			}
			return nil
		case <-ticker.C:
		}

		if audio.Level(l.levels.ReadSamples(window)) >= l.config.VoiceLevel {
			voiced++
		}

		if detector.Observe(voiced) {
			return nil
		}

		elapsed := time.Since(started)
		if voiced == 0 && elapsed >= l.config.NoSpeechWait {
			return ErrNoSpeech
		}
		if elapsed >= l.config.MaxDuration {
			return ErrMaxDurationReached
		}
	}
}

// finish stops capture before closing the packet channel so the device
// callback never sends on a closed channel.
func (l *Listener) finish(ctx context.Context, dataC chan audio.DataPacket) {
	if err := l.device.Stop(ctx); err != nil {
		l.logger.Warn("failed to stop capture device", "error", err)
	}
	l.device.Dealloc(ctx)
	close(dataC)
}

func stopReason(err error) string {
	if err == nil {
		return "silence"
	}
	return err.Error()
}
