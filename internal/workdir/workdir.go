// Package workdir lays out the podbook data directory: the database, rendered
// answers, recorded questions and logs.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AnswersDir    = "answers"
	RecordingsDir = "recordings"
	LogsDir       = "logs"
	DatabaseFile  = "podbook.sqlite"
)

// Root returns the default data directory:
//
//	$HOME/.local/share/podbook
func Root() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "podbook"), nil
}

// Dir is a resolved data directory.
type Dir string

// Resolve returns override when set, otherwise Root.
func Resolve(override string) (Dir, error) {
	if override != "" {
		return Dir(override), nil
	}

	root, err := Root()
	if err != nil {
		return "", err
	}

	return Dir(root), nil
}

// Path joins elem onto the data directory.
func (d Dir) Path(elem ...string) string {
	return filepath.Join(append([]string{string(d)}, elem...)...)
}

func (d Dir) Database() string {
	return d.Path(DatabaseFile)
}

func (d Dir) Answers() string {
	return d.Path(AnswersDir)
}

func (d Dir) Recordings() string {
	return d.Path(RecordingsDir)
}

func (d Dir) Logs() string {
	return d.Path(LogsDir)
}

// Prep ensures the data directory and its subdirectories exist.
func (d Dir) Prep() error {
	for _, p := range []string{string(d), d.Answers(), d.Recordings(), d.Logs()} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory %s: %w", p, err)
		}
	}

	return nil
}
