package question

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader) (string, error)
}

// WhisperTranscriber handles Whisper API transcription requests.
type WhisperTranscriber struct {
	apiKey string
	opts   []option.RequestOption
}

func NewWhisperTranscriber(apiKey string, opts ...option.RequestOption) *WhisperTranscriber {
	return &WhisperTranscriber{
		apiKey: apiKey,
		opts:   opts,
	}
}

// Transcribe sends an MP3 recording to the Whisper API.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio io.Reader) (string, error) {
	if t.apiKey == "" {
		return "", errors.New("API key required: set OPENAI_API_KEY or run config set-key openai")
	}

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(t.apiKey)}, t.opts...)...)

	resp, err := client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, "question.mp3", "audio/mpeg"),
		Model: openai.AudioModelWhisper1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create transcription via Whisper API: %w", err)
	}

	return resp.Text, nil
}
