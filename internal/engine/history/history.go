// Package history keeps a local SQLite audit log of answered questions.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anatolykoptev/go_vidqa/internal/engine"
	_ "modernc.org/sqlite"
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is an append-only log of asks. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("history: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS asks (
		id          TEXT PRIMARY KEY,
		video_url   TEXT NOT NULL,
		video_id    TEXT,
		question    TEXT NOT NULL,
		answer      TEXT,
		error_kind  TEXT,
		language    TEXT,
		passages    INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS asks_created_at ON asks(created_at)`)
	return err
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Record implements engine.Recorder.
func (s *Store) Record(ctx context.Context, rec engine.AskRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO asks (id, video_url, video_id, question, answer, error_kind, language, passages, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.VideoURL, rec.VideoID, rec.Question, rec.Answer, string(rec.ErrorKind),
		rec.Language, rec.Passages, rec.Duration.Milliseconds(), rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
// limit outside 1..100 falls back to 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]engine.AskRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, video_url, video_id, question, answer, error_kind, language, passages, duration_ms, created_at
		 FROM asks ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	recs := []engine.AskRecord{}
	for rows.Next() {
		var r engine.AskRecord
		var videoID, answer, errKind, lang, ts sql.NullString
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.VideoURL, &videoID, &r.Question, &answer, &errKind,
			&lang, &r.Passages, &durationMS, &ts); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		r.VideoID = videoID.String
		r.Answer = answer.String
		r.ErrorKind = engine.ErrorKind(errKind.String)
		r.Language = lang.String
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.CreatedAt, _ = time.Parse(timeLayout, ts.String)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
