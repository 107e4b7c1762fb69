// Package sqlite implements store.CompletionStore using SQLite.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ssbridge/ssbridge/pkg/model"
)

// Store manages completion and event persistence in SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS completions (
			id                TEXT PRIMARY KEY,
			model             TEXT NOT NULL,
			prompt            TEXT NOT NULL,
			status            TEXT NOT NULL DEFAULT 'pending',
			execution_id      TEXT NOT NULL DEFAULT '',
			content           TEXT NOT NULL DEFAULT '',
			error             TEXT NOT NULL DEFAULT '',
			prompt_tokens     INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			duration_ms       INTEGER NOT NULL DEFAULT 0,
			created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
			updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS completion_events (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			completion_id TEXT NOT NULL,
			type          TEXT NOT NULL,
			data          TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (completion_id) REFERENCES completions(id)
		);

		CREATE INDEX IF NOT EXISTS idx_events_completion_id
			ON completion_events(completion_id);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateCompletion inserts a new completion.
func (s *Store) CreateCompletion(c *model.Completion) error {
	if c.Status == "" {
		c.Status = model.StatusPending
	}
	_, err := s.db.Exec(
		`INSERT INTO completions (id, model, prompt, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Model, c.Prompt, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetCompletion retrieves a completion by ID.
func (s *Store) GetCompletion(id string) (*model.Completion, error) {
	row := s.db.QueryRow(
		`SELECT id, model, prompt, status, execution_id, content, error,
		        prompt_tokens, completion_tokens, duration_ms, created_at, updated_at
		 FROM completions WHERE id = ?`, id,
	)
	return scanCompletion(row)
}

// ListCompletions returns all completions ordered by creation time (newest first).
func (s *Store) ListCompletions() ([]*model.Completion, error) {
	rows, err := s.db.Query(
		`SELECT id, model, prompt, status, execution_id, content, error,
		        prompt_tokens, completion_tokens, duration_ms, created_at, updated_at
		 FROM completions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var completions []*model.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

// UpdateCompletion updates mutable fields of a completion.
func (s *Store) UpdateCompletion(c *model.Completion) error {
	c.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE completions SET
			status = ?, execution_id = ?, content = ?, error = ?,
			prompt_tokens = ?, completion_tokens = ?, duration_ms = ?, updated_at = ?
		 WHERE id = ?`,
		c.Status, c.ExecutionID, c.Content, c.Error,
		c.PromptTokens, c.CompletionTokens, c.DurationMS, c.UpdatedAt, c.ID,
	)
	return err
}

// AddEvent inserts a new event and returns its ID.
func (s *Store) AddEvent(event *model.Event) error {
	result, err := s.db.Exec(
		`INSERT INTO completion_events (completion_id, type, data, created_at)
		 VALUES (?, ?, ?, ?)`,
		event.CompletionID, event.Type, event.Data, event.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = id
	return nil
}

// GetEvents returns events for a completion, optionally after a given event ID.
func (s *Store) GetEvents(completionID string, afterID int64) ([]*model.Event, error) {
	rows, err := s.db.Query(
		`SELECT id, completion_id, type, data, created_at
		 FROM completion_events
		 WHERE completion_id = ? AND id > ?
		 ORDER BY id ASC`,
		completionID, afterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		e := &model.Event{}
		if err := rows.Scan(&e.ID, &e.CompletionID, &e.Type, &e.Data, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanCompletion(row scannable) (*model.Completion, error) {
	c := &model.Completion{}
	err := row.Scan(
		&c.ID, &c.Model, &c.Prompt, &c.Status, &c.ExecutionID, &c.Content,
		&c.Error, &c.PromptTokens, &c.CompletionTokens, &c.DurationMS,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
