package bench

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS trials (
	run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	algorithm TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	nanos     INTEGER NOT NULL,
	reread    INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

// ErrNoRuns is returned by LatestRun on an empty store.
var ErrNoRuns = errors.New("no benchmark runs recorded")

// Store keeps benchmark runs in a SQLite database.
type Store struct {
	db *sql.DB
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// OpenStore opens or creates the database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records trials under runID in a single transaction.
func (s *Store) Save(ctx context.Context, runID string, trials []Trial) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, created_at) VALUES (?, ?)`, runID, time.Now().UnixNano()); err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO trials (run_id, seq, algorithm, file_size, nanos, reread) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, t := range trials {
			if _, err := stmt.ExecContext(ctx, runID, i, t.Algorithm, t.FileSize, int64(t.Duration), boolFlag(t.Reread)); err != nil {
				return fmt.Errorf("failed to insert trial: %w", err)
			}
		}
		return nil
	})
}

// Trials returns the trials of runID in recorded order.
func (s *Store) Trials(ctx context.Context, runID string) ([]Trial, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT algorithm, file_size, nanos, reread FROM trials WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trials []Trial
	for rows.Next() {
		var t Trial
		var nanos int64
		var reread int
		if err := rows.Scan(&t.Algorithm, &t.FileSize, &nanos, &reread); err != nil {
			return nil, err
		}
		t.Duration = time.Duration(nanos)
		t.Reread = reread == 1
		trials = append(trials, t)
	}
	return trials, rows.Err()
}

// LatestRun returns the id of the most recent run.
func (s *Store) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRuns
	}
	return id, err
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
