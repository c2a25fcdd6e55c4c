// Package timelog stores time log entries attributed to team members and
// retargets them after a roster merge changes member ids or initials.
package timelog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtuma/processdash-sub018/internal/db"
)

// DateLayout is the format of Entry.Date.
const DateLayout = "2006-01-02"

// ErrInvalidEntry is returned for entries that cannot be stored.
var ErrInvalidEntry = errors.New("invalid time log entry")

// Entry is one block of logged time.
type Entry struct {
	UUID     string `json:"uuid" yaml:"uuid"`
	MemberID int    `json:"member_id" yaml:"member_id"`
	Initials string `json:"initials" yaml:"initials"`
	Date     string `json:"date" yaml:"date"`
	Minutes  int    `json:"minutes" yaml:"minutes"`
	Note     string `json:"note,omitempty" yaml:"note,omitempty"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	MemberID *int
	Initials string
}

// Store persists time log entries.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// New creates a Store on an opened, migrated database.
func New(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// withTx executes fn within a transaction. If fn returns nil, the transaction
// is committed; otherwise it is rolled back.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Add stores a new entry and returns it with its UUID filled in. An empty
// Date means today.
func (s *Store) Add(ctx context.Context, e Entry) (Entry, error) {
	if e.Date == "" {
		e.Date = s.now().Format(DateLayout)
	}
	if err := validate(e); err != nil {
		return Entry{}, err
	}
	if e.UUID == "" {
		e.UUID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO time_entries (uuid, member_id, initials, work_date, minutes, note)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.UUID, e.MemberID, e.Initials, e.Date, e.Minutes, e.Note)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to insert time entry: %w", err)
	}
	return e, nil
}

func validate(e Entry) error {
	if strings.TrimSpace(e.Initials) == "" {
		return fmt.Errorf("%w: initials are required", ErrInvalidEntry)
	}
	if e.Minutes < 0 {
		return fmt.Errorf("%w: minutes must not be negative", ErrInvalidEntry)
	}
	if _, err := time.Parse(DateLayout, e.Date); err != nil {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidEntry, e.Date)
	}
	return nil
}

// List returns matching entries ordered by date, then insertion order.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT uuid, member_id, initials, work_date, minutes, note FROM time_entries WHERE 1=1`
	var args []any
	if f.MemberID != nil {
		query += ` AND member_id = ?`
		args = append(args, *f.MemberID)
	}
	if f.Initials != "" {
		query += ` AND initials = ?`
		args = append(args, f.Initials)
	}
	query += ` ORDER BY work_date, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UUID, &e.MemberID, &e.Initials, &e.Date, &e.Minutes, &e.Note); err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating time entries: %w", err)
	}
	return out, nil
}
