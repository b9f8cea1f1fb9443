// Package audit keeps an append-only history of registration events in
// SQLite. The history is for operators; it is never used to rebuild the
// in-memory registry.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeFormat is fixed-width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// Pagination limits.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry is one row of the registration_events table.
type Entry struct {
	ID          string    `json:"id"`
	Event       string    `json:"event"`
	Reason      string    `json:"reason,omitempty"`
	Endpoint    string    `json:"endpoint"`
	Location    string    `json:"location"`
	Lifetime    uint32    `json:"lifetime"`
	Binding     string    `json:"binding"`
	Version     string    `json:"lwm2m_version"`
	SMSNumber   string    `json:"sms_number,omitempty"`
	ObjectCount int       `json:"object_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Event    string    // optional: registered, updated or deregistered
	Endpoint string    // optional: exact endpoint name
	Location string    // optional: exact location handle
	Since    time.Time // optional: entries at or after this time
	Limit    int       // default 50, max 200
	Offset   int       // pagination offset
}

// ListResult contains one page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores and queries registration history.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository implements Repository on the registration_events table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry. ID and CreatedAt are generated when empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "evt-" + uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO registration_events
			(id, event, reason, endpoint, location, lifetime, binding, version, sms_number, object_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Event, entry.Reason, entry.Endpoint, entry.Location,
		int64(entry.Lifetime), entry.Binding, entry.Version, entry.SMSNumber, entry.ObjectCount,
		entry.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting registration event: %w", err)
	}
	return nil
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Event != "" {
		conditions = append(conditions, "event = ?")
		args = append(args, filter.Event)
	}
	if filter.Endpoint != "" {
		conditions = append(conditions, "endpoint = ?")
		args = append(args, filter.Endpoint)
	}
	if filter.Location != "" {
		conditions = append(conditions, "location = ?")
		args = append(args, filter.Location)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeFormat))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM registration_events " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting registration events: %w", err)
	}

	query := `SELECT id, event, reason, endpoint, location, lifetime, binding, version, sms_number, object_count, created_at
		FROM registration_events ` + where + ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?` //nolint:gosec // WHERE built from parameterised conditions
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying registration events: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var lifetime int64
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Event, &e.Reason, &e.Endpoint, &e.Location, &lifetime,
			&e.Binding, &e.Version, &e.SMSNumber, &e.ObjectCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning registration event: %w", err)
		}
		e.Lifetime = uint32(lifetime) //nolint:gosec // stored from a uint32
		if e.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("parsing registration event timestamp %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating registration events: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
