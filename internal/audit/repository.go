// Package audit records one-time-code verification attempts in SQLite.
//
// The submitted code is never stored, only the outcome and where the
// attempt came from.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome is the result of a verification attempt.
type Outcome string

const (
	OutcomeGranted Outcome = "granted"
	OutcomeDenied  Outcome = "denied"
	OutcomeError   Outcome = "error"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// Fixed-width so created_at sorts correctly as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// ErrInvalidEntry is returned when an entry is missing its outcome or source.
var ErrInvalidEntry = errors.New("audit: invalid entry")

// Entry is a single access attempt.
type Entry struct {
	ID        string    `json:"id"`
	Outcome   Outcome   `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Source    string    `json:"source"`
	RequestID string    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Outcome Outcome // optional
	Limit   int     // default 50, max 200
}

// Repository defines the access log operations.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// SQLiteRepository stores entries in the access_log table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an already-migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	switch e.Outcome {
	case OutcomeGranted, OutcomeDenied, OutcomeError:
	default:
		return fmt.Errorf("%w: outcome %q", ErrInvalidEntry, e.Outcome)
	}
	if e.Source == "" {
		return fmt.Errorf("%w: source is empty", ErrInvalidEntry)
	}

	if e.ID == "" {
		e.ID = "acc-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_log (id, outcome, reason, source, request_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Outcome), nullableString(e.Reason), e.Source,
		nullableString(e.RequestID), e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting access log entry: %w", err)
	}
	return nil
}

// nullableString maps "" to SQL NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}

	query := `SELECT id, outcome, reason, source, request_id, created_at FROM access_log`
	var args []any
	if filter.Outcome != "" {
		query += ` WHERE outcome = ?`
		args = append(args, string(filter.Outcome))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying access log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var outcome, createdAt string
		var reason, requestID sql.NullString

		if err := rows.Scan(&e.ID, &outcome, &reason, &e.Source, &requestID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning access log entry: %w", err)
		}
		e.Outcome = Outcome(outcome)
		e.Reason = reason.String
		e.RequestID = requestID.String

		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing access log timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating access log: %w", err)
	}

	return entries, nil
}
