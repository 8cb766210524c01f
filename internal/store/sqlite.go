package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists controller state in a single-row SQLite table.
// The whole snapshot is replaced in one statement, which gives the
// atomic replace semantics the Store contract requires.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS agent_state (
	id    INTEGER PRIMARY KEY CHECK (id = 1),
	state TEXT NOT NULL
);`

// NewSQLiteStore opens (or creates) a SQLite database at path and
// enforces production-safe defaults: WAL journal mode and a 5-second
// busy timeout. The connection is verified with a ping before use.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	ctx := context.Background()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema on %s: %w", path, err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save replaces the persisted snapshot in a single upsert.
func (s *SQLiteStore) Save(state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal agent state: %w", err)
	}

	_, err = s.db.ExecContext(context.Background(),
		`INSERT INTO agent_state (id, state) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET state = excluded.state`, string(data))
	if err != nil {
		return fmt.Errorf("save agent state: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot. Returns (nil, nil) when nothing
// has been saved yet.
func (s *SQLiteStore) Load() (*State, error) {
	var data string
	err := s.db.QueryRowContext(context.Background(),
		`SELECT state FROM agent_state WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load agent state: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("unmarshal agent state: %w", err)
	}
	return &state, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
