package audio

import (
	"log/slog"

	"github.com/gen2brain/malgo"
)

const (
	// DefaultSampleRate is 16kHz, the native sample rate for Whisper.
	DefaultSampleRate = 16000
	// DefaultChannels is mono (1 channel).
	DefaultChannels = 1
	// DefaultLevelWindow holds roughly one second of 16kHz mono samples.
	DefaultLevelWindow = DefaultSampleRate
)

type DeviceConfig struct {
	Format           malgo.FormatType
	CaptureChannels  int
	PlaybackChannels int
	SampleRate       int

	// Levels, when set, receives a copy of every sample the device moves so
	// meters can read recent amplitudes.
	Levels *SampleRingBuffer
	Logger *slog.Logger
}

// CaptureConfig is the microphone setup used for spoken questions.
func CaptureConfig(levels *SampleRingBuffer) *DeviceConfig {
	return &DeviceConfig{
		Format:          malgo.FormatS16,
		CaptureChannels: DefaultChannels,
		SampleRate:      DefaultSampleRate,
		Levels:          levels,
	}
}

// PlaybackConfig matches the decoder output: S16LE stereo at sampleRate.
func PlaybackConfig(sampleRate int, levels *SampleRingBuffer) *DeviceConfig {
	return &DeviceConfig{
		Format:           malgo.FormatS16,
		PlaybackChannels: 2,
		SampleRate:       sampleRate,
		Levels:           levels,
	}
}
