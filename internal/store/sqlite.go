package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"solus.com/command-relay/internal/state"
)

// SQLiteStore persists the client's state snapshot. Each snapshot lives
// under a single named key and is replaced wholesale on save.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS snapshots (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL, -- JSON encoded state.Snapshot
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// SaveSnapshot stores snap under key, replacing any previous value.
func (s *SQLiteStore) SaveSnapshot(key string, snap state.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	stmt, err := s.db.Prepare(`INSERT INTO snapshots (key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot upsert: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(key, string(data), time.Now()); err != nil {
		return fmt.Errorf("failed to execute snapshot upsert: %w", err)
	}
	return nil
}

// LoadSnapshot returns the snapshot stored under key, or nil if there is none.
func (s *SQLiteStore) LoadSnapshot(key string) (*state.Snapshot, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM snapshots WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	var snap state.Snapshot
	if err := json.Unmarshal([]byte(value), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %q: %w", key, err)
	}
	return &snap, nil
}

func (s *SQLiteStore) DeleteSnapshot(key string) error {
	_, err := s.db.Exec("DELETE FROM snapshots WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Load restores the app state from key. A missing snapshot leaves app untouched.
func (s *SQLiteStore) Load(app *state.AppState, key string) error {
	snap, err := s.LoadSnapshot(key)
	if err != nil {
		return err
	}
	if snap != nil {
		app.Restore(*snap)
	}
	return nil
}

// Save persists the app state under key.
func (s *SQLiteStore) Save(app *state.AppState, key string) error {
	return s.SaveSnapshot(key, app.Snapshot())
}
