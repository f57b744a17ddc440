package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/alkime/podbook/internal/config"
	"github.com/alkime/podbook/internal/engine"
	"github.com/alkime/podbook/internal/logger"
	"github.com/alkime/podbook/internal/server"
	"github.com/alkime/podbook/pkg/channels"
)

const eventBuffer = 256

// ServeCmd plays an episode without a terminal UI and exposes it over HTTP.
type ServeCmd struct {
	Episode string `arg:"" help:"Episode ID, or path to an episode JSON file"`
	Start   string `flag:"" optional:"" help:"Start position (default: resume where you left off)"`
	Muted   bool   `flag:"" help:"Keep time without sending audio to the speakers"`
	LocalQA bool   `flag:"" name:"local-qa" help:"Answer questions in-process with Claude and OpenAI TTS"`
}

// questioner starts an interjection at the current position for each
// question posted to the API.
type questioner struct {
	engine *engine.Engine
}

func (q questioner) Ask(ctx context.Context, text string) error {
	return q.engine.AskNow(ctx, text)
}

// Run executes the serve command.
func (c *ServeCmd) Run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.SetupLogger(cfg)
	log.Info("Starting podbook server",
		"env", cfg.Env,
		"port", cfg.Port,
		"episode", c.Episode,
	)

	start, err := parseStart(c.Start)
	if err != nil {
		return err
	}

	dir, err := dataDir(cfg)
	if err != nil {
		return err
	}

	ep, err := loadEpisode(ctx, cfg, c.Episode)
	if err != nil {
		return fmt.Errorf("failed to load episode: %w", err)
	}

	a, err := newApp(ctx, cfg, log, dir, appOptions{Muted: c.Muted, LocalQA: c.LocalQA})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to shut down cleanly", "error", err)
		}
	}()

	if err := a.engine.Open(ctx, ep, start); err != nil {
		return fmt.Errorf("failed to open episode: %w", err)
	}

	events := channels.NewBroadcaster[server.Event]()
	in, err := events.Run(ctx, eventBuffer)
	if err != nil {
		return fmt.Errorf("failed to start event broadcaster: %w", err)
	}
	defer events.Wait()

	unsub, err := a.engine.Observe(ctx, engine.Observer{
		Playback:     server.PlaybackEvents(in),
		Transcript:   server.TranscriptEvents(in),
		Interjection: server.InterjectionEvents(in),
	})
	if err != nil {
		return fmt.Errorf("failed to observe engine: %w", err)
	}
	defer unsub()

	se := server.Engine{
		Loop:      a.engine.Loop(),
		Events:    events,
		Questions: questioner{engine: a.engine},
	}
	err = a.engine.Do(ctx, func(comp engine.Components) error {
		se.Player = comp.Player
		if comp.Transcript != nil {
			se.Transcript = comp.Transcript
		}
		return nil
	})
	if err != nil {
		return err
	}

	return server.Run(ctx, server.New(cfg, log, se))
}
