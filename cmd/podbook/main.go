package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/alkime/podbook/internal/config"
	"github.com/alkime/podbook/internal/logger"
)

// CLI defines the podbook command structure.
type CLI struct {
	// Default command (runs when no subcommand given)
	Play PlayCmd `cmd:"" default:"withargs" help:"Play an episode in the terminal player"`

	Episodes EpisodesCmd `cmd:"" help:"List published episodes, newest first"`
	Serve    ServeCmd    `cmd:"" help:"Play an episode headless behind the remote control API"`
	Ask      AskCmd      `cmd:"" help:"Ask one question at a point in an episode and play the answer"`
	Segments SegmentsCmd `cmd:"" help:"Print an episode's transcript segments"`
	Probe    ProbeCmd    `cmd:"" help:"Print the duration of an audio source"`
	Devices  DevicesCmd  `cmd:"" help:"List available audio devices"`
	Config   ConfigCmd   `cmd:"" help:"Manage configuration"`
}

func main() {
	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("podbook"),
		kong.Description("Listen to podcast episodes and ask questions about what you hear."),
		kong.UsageOnError(),
	)

	cfg, err := config.LoadConfig()
	ctx.FatalIfErrorf(err)

	slog.SetDefault(logger.SetupCLILogger(cfg, os.Stderr))

	err = ctx.Run(cfg)
	ctx.FatalIfErrorf(err)
	os.Exit(0)
}
