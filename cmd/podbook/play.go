package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/alkime/podbook/internal/config"
	"github.com/alkime/podbook/internal/logger"
	"github.com/alkime/podbook/internal/tui"
	"github.com/alkime/podbook/pkg/uictl"
)

// PlayCmd is the default command that runs the terminal player.
type PlayCmd struct {
	Episode string `arg:"" help:"Episode ID, or path to an episode JSON file"`
	Start   string `flag:"" optional:"" help:"Start position, e.g. 12m30s (default: resume where you left off)"`
	Muted   bool   `flag:"" help:"Keep time without sending audio to the speakers"`
	LocalQA bool   `flag:"" name:"local-qa" help:"Answer questions in-process with Claude and OpenAI TTS"`
	NoMic   bool   `flag:"" name:"no-mic" help:"Disable spoken questions"`
}

// Run executes the play command.
func (c *PlayCmd) Run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start, err := parseStart(c.Start)
	if err != nil {
		return err
	}

	dir, err := dataDir(cfg)
	if err != nil {
		return err
	}

	// The terminal belongs to the TUI; logs go to a file.
	log, logFile, err := logger.SetupFileLogger(cfg, dir.Logs())
	if err != nil {
		return err
	}
	defer logFile.Close()

	ep, err := loadEpisode(ctx, cfg, c.Episode)
	if err != nil {
		return fmt.Errorf("failed to load episode: %w", err)
	}

	a, err := newApp(ctx, cfg, log, dir, appOptions{Muted: c.Muted, LocalQA: c.LocalQA, Mic: !c.NoMic})
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

	log.Info("playing episode", "episode", ep.ID, "title", ep.Title)

	err = tui.Run(ctx, a.engine, tui.Config{
		Title:  ep.Title,
		Levels: uictl.Window(a.levels, playbackLevelWindow),
		Logger: log,
	})
	if err != nil {
		return err
	}

	fmt.Println("\nfinished. bye!")

	return nil
}
