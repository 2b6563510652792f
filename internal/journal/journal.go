// Package journal records the navigation history of viewer sessions.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/apiview/internal/db"
	"github.com/ziadkadry99/apiview/internal/history"
)

// Entry is one history action of one session.
type Entry struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Action     history.Action `json:"action"`
	Path       string         `json:"path"`
	RawQuery   string         `json:"raw_query,omitempty"`
	GroupID    string         `json:"group_id,omitempty"`
	DocumentID string         `json:"document_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Store appends and reads journal entries.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Log inserts an entry. Empty ID and zero CreatedAt are filled in.
func (s *Store) Log(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO navigation_events (
			id, session_id, action, path, raw_query, group_id, document_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.SessionID,
		string(e.Action),
		e.Path,
		e.RawQuery,
		e.GroupID,
		e.DocumentID,
		e.CreatedAt.UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("inserting navigation event: %w", err)
	}
	return nil
}

// List returns the latest entries of a session, newest first. A limit of
// zero or less returns every entry.
func (s *Store) List(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	query := `SELECT id, session_id, action, path, raw_query, group_id, document_id, created_at
		FROM navigation_events WHERE session_id = ?
		ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying navigation events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune removes entries older than before and returns how many were deleted.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM navigation_events WHERE created_at < ?",
		before.UTC().Format(time.DateTime),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting old navigation events: %w", err)
	}
	return res.RowsAffected()
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e      Entry
		action string
		ts     string
	)
	if err := rows.Scan(&e.ID, &e.SessionID, &action, &e.Path, &e.RawQuery, &e.GroupID, &e.DocumentID, &ts); err != nil {
		return Entry{}, fmt.Errorf("scanning navigation event: %w", err)
	}
	e.Action = history.Action(action)
	if t, err := time.Parse(time.DateTime, ts); err == nil {
		e.CreatedAt = t
	} else if t, err := time.Parse(time.RFC3339, ts); err == nil {
		e.CreatedAt = t
	}
	return e, nil
}
