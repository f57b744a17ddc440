package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alkime/podbook/internal/audio"
	"github.com/alkime/podbook/internal/config"
	"github.com/alkime/podbook/internal/engine"
	"github.com/alkime/podbook/internal/episode"
	"github.com/alkime/podbook/internal/probe"
	"github.com/alkime/podbook/internal/qa"
	"github.com/alkime/podbook/internal/question"
	"github.com/alkime/podbook/internal/store"
	"github.com/alkime/podbook/internal/timesource"
	"github.com/alkime/podbook/internal/workdir"
)

// playbackLevelWindow is how many recent output samples the waveform reads.
const playbackLevelWindow = 2048

type appOptions struct {
	Muted   bool
	LocalQA bool
	Mic     bool
}

// app is one wired engine plus the resources it owns.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	dir    workdir.Dir
	store  *store.Store
	engine *engine.Engine
	levels *audio.SampleRingBuffer

	cancel context.CancelFunc
}

func dataDir(cfg *config.Config) (workdir.Dir, error) {
	dir, err := workdir.Resolve(cfg.DataDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}

	if err := dir.Prep(); err != nil {
		return "", fmt.Errorf("failed to prepare data directory: %w", err)
	}

	return dir, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, dir workdir.Dir, opts appOptions) (*app, error) {
	st, err := store.Open(ctx, dir.Database())
	if err != nil {
		return nil, err
	}

	levels := audio.NewSampleRingBuffer(audio.DefaultLevelWindow)
	providerOpts := []timesource.AudioOption{
		timesource.WithTickInterval(cfg.TickInterval),
		timesource.WithLevels(levels),
		timesource.WithAudioLogger(logger.With("component", "audio")),
	}
	if opts.Muted {
		providerOpts = append(providerOpts, timesource.Muted())
	}

	backend, err := newBackend(cfg, dir, opts.LocalQA, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	deps := engine.Deps{
		Provider: timesource.NewAudioProvider(providerOpts...),
		Store:    st,
		Logger:   logger,
	}
	if backend != nil {
		deps.Backend = backend
	}
	if opts.Mic {
		if l := newListener(cfg, dir, logger); l != nil {
			deps.Listener = l
		}
	}

	eng, err := engine.New(engine.Config{
		SkipInterval:        cfg.SkipInterval,
		SpringBackDelay:     cfg.SpringBackDelay,
		InterjectionTimeout: cfg.InterjectionTimeout,
		WordsPerSegment:     cfg.WordsPerSegment,
		PollInterval:        cfg.PollInterval,
		PollAttempts:        cfg.PollAttempts,
	}, deps)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := eng.Run(runCtx); err != nil {
		cancel()
		_ = st.Close()
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		dir:    dir,
		store:  st,
		engine: eng,
		levels: levels,
		cancel: cancel,
	}, nil
}

// newBackend picks the in-process answerer, the hosted service, or none.
func newBackend(cfg *config.Config, dir workdir.Dir, local bool, logger *slog.Logger) (qa.Backend, error) {
	if local {
		var missing []string
		if cfg.AnthropicAPIKey == "" {
			missing = append(missing, "anthropic")
		}
		if cfg.OpenAIAPIKey == "" {
			missing = append(missing, "openai")
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("missing API keys for --local-qa: %s. Set via environment variables or run 'podbook config set-key'",
				strings.Join(missing, ", "))
		}

		return qa.NewLocalBackend(
			qa.NewClaudeWriter(cfg.AnthropicAPIKey),
			qa.NewOpenAISpeaker(cfg.OpenAIAPIKey),
			dir.Answers(),
			logger.With("component", "local-qa"),
		), nil
	}

	if cfg.QAURL != "" {
		return qa.NewHTTPBackend(cfg.QAURL, cfg.APIKey, nil), nil
	}

	logger.Debug("no question backend configured")
	return nil, nil
}

// newListener returns nil when spoken questions cannot be transcribed.
func newListener(cfg *config.Config, dir workdir.Dir, logger *slog.Logger) *question.Listener {
	if cfg.OpenAIAPIKey == "" {
		logger.Debug("spoken questions disabled", "reason", "no OpenAI API key")
		return nil
	}

	levels := audio.NewSampleRingBuffer(audio.DefaultLevelWindow)
	mic := audio.CaptureConfig(levels)
	mic.Logger = logger.With("component", "mic")

	l, err := question.NewListener(
		question.ListenerConfig{
			Dir:              dir.Recordings(),
			SilenceThreshold: cfg.SilenceThreshold,
		},
		audio.NewDevice(mic),
		levels,
		question.NewWhisperTranscriber(cfg.OpenAIAPIKey),
		logger.With("component", "listener"),
	)
	if err != nil {
		logger.Warn("spoken questions disabled", "error", err)
		return nil
	}

	return l
}

// Close saves the position, stops the engine and closes the store.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := a.engine.Close(ctx)
	a.cancel()
	a.engine.Wait()

	return errors.Join(err, a.store.Close())
}

// loadEpisode reads ref as a JSON file when one exists at that path, and
// otherwise fetches it by ID. Missing durations are probed.
func loadEpisode(ctx context.Context, cfg *config.Config, ref string) (episode.Episode, error) {
	var (
		ep  episode.Episode
		err error
	)

	if _, statErr := os.Stat(ref); statErr == nil {
		ep, err = episode.LoadFile(ref)
	} else {
		if cfg.APIURL == "" {
			return episode.Episode{}, fmt.Errorf("%q is not a file and PODBOOK_API_URL is not set", ref)
		}
		ep, err = episode.NewClient(cfg.APIURL, cfg.APIKey).FetchEpisode(ctx, ref)
	}
	if err != nil {
		return episode.Episode{}, err
	}

	if err := probe.New(nil).Complete(ctx, &ep); err != nil {
		return episode.Episode{}, err
	}

	return ep, nil
}

// parseStart turns the --start flag into an engine start position. Empty
// means resume from the saved position.
func parseStart(s string) (time.Duration, error) {
	if s == "" {
		return -1, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid start %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid start %q: must not be negative", s)
	}

	return d, nil
}
