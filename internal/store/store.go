// Package store keeps the history of consumption events in SQLite and
// restores the lifetime total at startup.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit and MaxLimit bound List.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// Record is one stored consumption event.
type Record struct {
	ID          string    `json:"id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Consumed    int       `json:"consumed"`
	Consumption int       `json:"consumption"`
	Delivered   bool      `json:"delivered"`
}

// Store reads and writes consumption history.
type Store struct {
	db *sql.DB
}

// New wraps an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts an event, filling in the ID and time when empty.
func (s *Store) Append(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.OccurredAt.IsZero() {
		r.OccurredAt = time.Now()
	}
	r.OccurredAt = r.OccurredAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consumption_events (id, occurred_at, consumed, consumption, delivered)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.OccurredAt, r.Consumed, r.Consumption, r.Delivered)
	if err != nil {
		return r, fmt.Errorf("insert consumption event: %w", err)
	}
	return r, nil
}

// Total returns the lifetime consumption: the negated sum of all deltas.
func (s *Store) Total(ctx context.Context) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(-SUM(consumed), 0) FROM consumption_events`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("query total: %w", err)
	}
	return total, nil
}

// List returns up to limit events, newest first. A non-positive limit uses
// DefaultLimit.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurred_at, consumed, consumption, delivered
		FROM consumption_events
		ORDER BY occurred_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query consumption events: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.OccurredAt, &r.Consumed, &r.Consumption, &r.Delivered); err != nil {
			return nil, fmt.Errorf("scan consumption event: %w", err)
		}
		r.OccurredAt = r.OccurredAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
