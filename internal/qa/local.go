package qa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
)

// AnswerWriter turns a question into the text of a spoken answer.
type AnswerWriter interface {
	WriteAnswer(ctx context.Context, q Question) (string, error)
}

// Speaker renders text to MP3 audio.
type Speaker interface {
	Speak(ctx context.Context, text string, w io.Writer) error
}

// LocalBackend answers questions in-process and keeps their status in
// memory. Rendered answers are written under dir.
type LocalBackend struct {
	writer  AnswerWriter
	speaker Speaker
	dir     string
	logger  *slog.Logger

	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

type job struct {
	status Status
	cancel context.CancelFunc
}

func NewLocalBackend(writer AnswerWriter, speaker Speaker, dir string, logger *slog.Logger) *LocalBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &LocalBackend{
		writer:  writer,
		speaker: speaker,
		dir:     dir,
		logger:  logger,
		jobs:    make(map[string]*job),
	}
}

func (b *LocalBackend) Submit(ctx context.Context, q Question) (string, error) {
	if q.Text == "" {
		return "", errors.New("question text is empty")
	}

	id := uuid.NewString()
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	b.mu.Lock()
	b.jobs[id] = &job{status: Status{State: Pending}, cancel: cancel}
	b.mu.Unlock()

	b.wg.Go(func() {
		defer cancel()
		b.answer(jobCtx, id, q)
	})

	return id, nil
}

func (b *LocalBackend) answer(ctx context.Context, id string, q Question) {
	text, err := b.writer.WriteAnswer(ctx, q)
	if err != nil {
		b.finish(id, Status{State: Failed, Message: err.Error()})
		return
	}

	path := filepath.Join(b.dir, id+".mp3")
	if err := b.render(ctx, text, path); err != nil {
		b.finish(id, Status{State: Failed, Message: err.Error()})
		return
	}

	b.logger.Debug("answer rendered", "question", id, "path", path)
	b.finish(id, Status{State: Completed, AudioURL: path})
}

func (b *LocalBackend) render(ctx context.Context, text, path string) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create answers directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create answer file: %w", err)
	}

	if err := b.speaker.Speak(ctx, text, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}

	return f.Close()
}

func (b *LocalBackend) finish(id string, st Status) {
	b.mu.Lock()
	defer b.mu.Unlock()

	j, ok := b.jobs[id]
	if !ok || j.status.State != Pending {
		return
	}

	j.status = st
}

func (b *LocalBackend) Status(_ context.Context, id string) (Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	j, ok := b.jobs[id]
	if !ok {
		return Status{}, ErrUnknownQuestion
	}

	return j.status, nil
}

func (b *LocalBackend) Cancel(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	j, ok := b.jobs[id]
	if !ok {
		return ErrUnknownQuestion
	}

	if j.status.State == Pending {
		j.status = Status{State: Failed, Message: ErrQuestionCanceled.Error()}
	}
	j.cancel()

	return nil
}

// Wait blocks until every submitted answer has finished.
func (b *LocalBackend) Wait() {
	b.wg.Wait()
}

const answerSystemPrompt = `You answer a listener's spoken question about the podcast episode they are
listening to. Reply in two to four plain spoken sentences, no lists or markdown, grounded in the
transcript excerpt you are given. If the excerpt does not cover the question, say so briefly.`

// ClaudeWriter writes answers with the Anthropic Messages API.
type ClaudeWriter struct {
	client anthropic.Client
	model  anthropic.Model
}

func NewClaudeWriter(apiKey string, opts ...anthropicopt.RequestOption) *ClaudeWriter {
	return &ClaudeWriter{
		client: anthropic.NewClient(append([]anthropicopt.RequestOption{anthropicopt.WithAPIKey(apiKey)}, opts...)...),
		model:  anthropic.ModelClaudeSonnet4_5_20250929,
	}
}

func (w *ClaudeWriter) WriteAnswer(ctx context.Context, q Question) (string, error) {
	prompt := fmt.Sprintf("Transcript around %s:\n%s\n\nQuestion: %s", q.At.Round(time.Second), q.TranscriptContext, q.Text)

	resp, err := w.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     w.model,
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{
			{Text: answerSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to write answer via Anthropic API: %w", err)
	}

	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok && text.Text != "" {
			return text.Text, nil
		}
	}

	return "", errors.New("empty response from Anthropic API")
}

// OpenAISpeaker renders speech with the OpenAI TTS API.
type OpenAISpeaker struct {
	client openai.Client
	voice  openai.AudioSpeechNewParamsVoice
}

func NewOpenAISpeaker(apiKey string, opts ...openaiopt.RequestOption) *OpenAISpeaker {
	return &OpenAISpeaker{
		client: openai.NewClient(append([]openaiopt.RequestOption{openaiopt.WithAPIKey(apiKey)}, opts...)...),
		voice:  openai.AudioSpeechNewParamsVoiceAlloy,
	}
}

func (s *OpenAISpeaker) Speak(ctx context.Context, text string, w io.Writer) error {
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return fmt.Errorf("failed to render speech via OpenAI API: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read speech audio: %w", err)
	}

	return nil
}
