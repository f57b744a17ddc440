package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alkime/podbook/internal/audio"
	"github.com/alkime/podbook/internal/config"
	"github.com/alkime/podbook/internal/engine"
	"github.com/alkime/podbook/internal/episode"
	"github.com/alkime/podbook/internal/interjection"
	"github.com/alkime/podbook/internal/playback"
	"github.com/alkime/podbook/internal/probe"
	"github.com/alkime/podbook/internal/transcript"
	"github.com/alkime/podbook/internal/tui/components/timebar"
	"github.com/alkime/podbook/pkg/channels"
)

// ProbeCmd prints the duration of an audio source.
type ProbeCmd struct {
	URI string `arg:"" help:"MP3 file, MP3 URL or HLS playlist URL"`
}

// Run executes the probe command.
func (c *ProbeCmd) Run() error {
	d, err := probe.New(nil).Duration(context.Background(), c.URI)
	if err != nil {
		return err
	}

	fmt.Printf("%s\t%s\n", timebar.FormatDuration(d), d)

	return nil
}

// SegmentsCmd prints the grouped transcript of an episode.
type SegmentsCmd struct {
	Episode string `arg:"" help:"Episode ID, or path to an episode JSON file"`
	Words   int    `flag:"" default:"0" help:"Words per segment (default: WORDS_PER_SEGMENT)"`
}

// Run executes the segments command.
func (c *SegmentsCmd) Run(cfg *config.Config) error {
	ep, err := loadEpisode(context.Background(), cfg, c.Episode)
	if err != nil {
		return fmt.Errorf("failed to load episode: %w", err)
	}

	if len(ep.Transcript) == 0 {
		return fmt.Errorf("episode %q has no word timings", ep.ID)
	}

	words := c.Words
	if words <= 0 {
		words = cfg.WordsPerSegment
	}

	for _, seg := range transcript.Group(transcript.WordsFromEpisode(ep.Transcript), words) {
		fmt.Printf("%4d  [%s - %s]  %s\n", seg.ID,
			timebar.FormatDuration(seg.Start), timebar.FormatDuration(seg.End), seg.Text)
	}

	return nil
}

// AskCmd runs one question round trip without a UI: it opens the episode at
// the given time, asks, plays the answer and exits when the episode would
// have resumed.
type AskCmd struct {
	Episode  string        `arg:"" help:"Episode ID, or path to an episode JSON file"`
	Question string        `arg:"" help:"The question to ask"`
	At       time.Duration `flag:"" default:"0s" help:"Episode position the question is asked at"`
	Muted    bool          `flag:"" help:"Do not play the answer aloud"`
	LocalQA  bool          `flag:"" name:"local-qa" help:"Answer in-process with Claude and OpenAI TTS"`
	Timeout  time.Duration `flag:"" default:"5m" help:"Give up after this long"`
}

// Run executes the ask command.
func (c *AskCmd) Run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	log := slog.Default()

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

	ready := make(chan error, 1)
	done := make(chan interjection.Event, 1)
	unsub, err := a.engine.Observe(ctx, engine.Observer{
		Playback: func(ev playback.Event) {
			switch {
			case ev.Kind == playback.EventFailed:
				_ = channels.SendNonBlock(ready, ev.Err)
			case !ev.Snapshot.IsLoading && ev.Snapshot.Status != playback.StatusLoading:
				_ = channels.SendNonBlock(ready, nil)
			}
		},
		Interjection: func(ev interjection.Event) {
			switch ev.Kind {
			case interjection.AnswerPlaying:
				log.Info("playing answer", "question", ev.Session.QuestionID)
			case interjection.Resumed, interjection.Failed:
				_ = channels.SendNonBlock(done, ev)
			}
		},
	})
	if err != nil {
		return err
	}
	defer unsub()

	if err := a.engine.Open(ctx, ep, c.At); err != nil {
		return fmt.Errorf("failed to open episode: %w", err)
	}

	select {
	case err := <-ready:
		if err != nil {
			return fmt.Errorf("failed to load episode audio: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	log.Info("asking", "episode", ep.ID, "at", c.At, "question", c.Question)
	if err := a.engine.AskNow(ctx, c.Question); err != nil {
		return err
	}

	select {
	case ev := <-done:
		if ev.Kind == interjection.Failed {
			return fmt.Errorf("question failed: %w", ev.Err)
		}
		log.Info("answer finished")
		return nil
	case <-ctx.Done():
		return errors.Join(ctx.Err(), a.engine.CancelQuestion(context.WithoutCancel(ctx)))
	}
}

// DevicesCmd lists capture and playback devices.
type DevicesCmd struct{}

func (c *DevicesCmd) Run() error {
	devices, err := audio.EnumerateDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	printDevices(os.Stdout, devices)

	return nil
}

func printDevices(w io.Writer, devices []audio.Info) {
	kind := ""
	for _, dev := range devices {
		if dev.Kind != kind {
			kind = dev.Kind
			fmt.Fprintf(w, "%s devices:\n", kind)
		}

		mark := " "
		if dev.IsDefault {
			mark = "*"
		}
		fmt.Fprintf(w, " %s %s\n", mark, dev.Name)
		for _, f := range dev.Formats {
			fmt.Fprintf(w, "     %s\n", f)
		}
	}
}

// EpisodesCmd lists the published episodes, newest first.
type EpisodesCmd struct{}

func (c *EpisodesCmd) Run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return listEpisodes(ctx, cfg, os.Stdout)
}

func listEpisodes(ctx context.Context, cfg *config.Config, w io.Writer) error {
	if cfg.APIURL == "" {
		return errors.New("PODBOOK_API_URL is not set")
	}

	episodes, err := episode.NewClient(cfg.APIURL, cfg.APIKey).FetchEpisodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch episodes: %w", err)
	}

	if len(episodes) == 0 {
		fmt.Fprintln(w, "No episodes published yet.")
		return nil
	}

	for _, ep := range episodes {
		published := "-"
		if !ep.PublishedAt.IsZero() {
			published = ep.PublishedAt.Format(time.DateOnly)
		}

		fmt.Fprintf(w, "%s  %s  %s  %s", ep.ID, published, timebar.FormatDuration(ep.TotalDuration()), ep.Title)
		if ep.Author != "" {
			fmt.Fprintf(w, " (%s)", ep.Author)
		}
		fmt.Fprintln(w)
	}

	return nil
}
