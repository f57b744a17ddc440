package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alkime/podbook/internal/config"
)

// Level maps ENV and LOG_LEVEL to a slog level.
func Level(cfg *config.Config) slog.Level {
	logLevel := slog.LevelInfo
	if cfg.Env == config.EnvDevelopment {
		logLevel = slog.LevelDebug
	}

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	return logLevel
}

// SetupLogger configures structured JSON logging for the server.
func SetupLogger(cfg *config.Config) *slog.Logger {
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: Level(cfg),
	})

	logger := slog.New(handler)

	// Set as default logger
	slog.SetDefault(logger)

	return logger
}

// SetupCLILogger writes human readable logs to w.
func SetupCLILogger(cfg *config.Config, w io.Writer) *slog.Logger {
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: Level(cfg),
	}))
	slog.SetDefault(logger)

	return logger
}

// SetupFileLogger sends logs to a file under dir so they do not corrupt a
// full screen terminal UI. The returned closer flushes the file.
func SetupFileLogger(cfg *config.Config, dir string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, "podbook.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	return SetupCLILogger(cfg, f), f, nil
}
