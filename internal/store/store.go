// Package store persists resume positions and in-flight interjections in a
// local SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alkime/podbook/internal/interjection"
	"github.com/alkime/podbook/internal/timeline"

	_ "modernc.org/sqlite"
)

// Memory opens a private in-memory database.
const Memory = ":memory:"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS positions (
		episode_id  TEXT PRIMARY KEY,
		position_ms INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS interjections (
		slot        INTEGER PRIMARY KEY CHECK (slot = 1),
		episode_id  TEXT NOT NULL,
		question_id TEXT NOT NULL DEFAULT '',
		captured_ms INTEGER NOT NULL,
		phase       INTEGER NOT NULL,
		was_playing INTEGER NOT NULL,
		started_at  INTEGER NOT NULL
	)`,
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ interjection.SessionStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection keeps an in-memory database alive and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for i, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SavePosition records the global position an episode was left at.
func (s *Store) SavePosition(ctx context.Context, episodeID string, global time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (episode_id, position_ms, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (episode_id) DO UPDATE SET
			position_ms = excluded.position_ms,
			updated_at  = excluded.updated_at
	`, episodeID, global.Milliseconds(), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}

	return nil
}

// Position returns the saved position of an episode, if any.
func (s *Store) Position(ctx context.Context, episodeID string) (time.Duration, bool, error) {
	var ms int64

	err := s.db.QueryRowContext(ctx,
		`SELECT position_ms FROM positions WHERE episode_id = ?`, episodeID,
	).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query position: %w", err)
	}

	return time.Duration(ms) * time.Millisecond, true, nil
}

// SaveInterjection stores the single in-flight interjection, replacing any
// earlier one.
func (s *Store) SaveInterjection(ctx context.Context, sess interjection.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interjections (slot, episode_id, question_id, captured_ms, phase, was_playing, started_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (slot) DO UPDATE SET
			episode_id  = excluded.episode_id,
			question_id = excluded.question_id,
			captured_ms = excluded.captured_ms,
			phase       = excluded.phase,
			was_playing = excluded.was_playing,
			started_at  = excluded.started_at
	`, sess.EpisodeID, sess.QuestionID, sess.CapturedGlobalTime.Milliseconds(),
		int(sess.OriginalPhase), sess.WasPlaying, sess.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save interjection: %w", err)
	}

	return nil
}

// PendingInterjection returns the stored interjection, if any.
func (s *Store) PendingInterjection(ctx context.Context) (interjection.Session, bool, error) {
	var (
		sess       interjection.Session
		capturedMS int64
		phase      int
		startedMS  int64
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT episode_id, question_id, captured_ms, phase, was_playing, started_at
		FROM interjections WHERE slot = 1
	`).Scan(&sess.EpisodeID, &sess.QuestionID, &capturedMS, &phase, &sess.WasPlaying, &startedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return interjection.Session{}, false, nil
	}
	if err != nil {
		return interjection.Session{}, false, fmt.Errorf("query interjection: %w", err)
	}

	sess.CapturedGlobalTime = time.Duration(capturedMS) * time.Millisecond
	sess.OriginalPhase = timeline.Phase(phase)
	sess.StartedAt = time.UnixMilli(startedMS)

	if !sess.OriginalPhase.Valid() {
		return interjection.Session{}, false, fmt.Errorf("stored interjection has phase %d: %w", phase, timeline.ErrUnknownPhase)
	}

	return sess, true, nil
}

func (s *Store) ClearInterjection(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM interjections`); err != nil {
		return fmt.Errorf("clear interjection: %w", err)
	}

	return nil
}
