// Package history is the append-only audit trail for sync, import and
// dispatch runs. Entries are never mutated after creation.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Entry kinds.
const (
	KindScheduleSync     = "schedule_sync"
	KindDispatchRun      = "dispatch_run"
	KindDispatchItem     = "dispatch_item"
	KindAttendanceImport = "attendance_import"
	KindFollowupRun      = "followup_run"
)

// Entry is one audit record.
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	Kind      string         `json:"kind"`
	UploadID  string         `json:"upload_id,omitempty"`
	Counts    map[string]int `json:"counts,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store appends and lists audit entries.
type Store struct {
	db DB
}

// NewStore creates a history store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Append inserts one audit entry. The entry ID and timestamp are assigned
// here when absent.
func (s *Store) Append(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	counts, err := json.Marshal(e.Counts)
	if err != nil {
		return fmt.Errorf("history: encode counts: %w", err)
	}
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return fmt.Errorf("history: encode detail: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO history (id, kind, upload_id, counts, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Kind, e.UploadID, counts, detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("history: append %s: %w", e.Kind, err)
	}
	return nil
}

// List returns the newest entries, optionally filtered by kind.
func (s *Store) List(ctx context.Context, kind string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var (
		rows pgx.Rows
		err  error
	)
	if kind != "" {
		rows, err = s.db.Query(ctx, `
			SELECT id, kind, upload_id, counts, detail, created_at
			FROM history WHERE kind = $1
			ORDER BY created_at DESC LIMIT $2`, kind, limit)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT id, kind, upload_id, counts, detail, created_at
			FROM history
			ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var (
			e      Entry
			counts []byte
			detail []byte
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.UploadID, &counts, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if len(counts) > 0 {
			_ = json.Unmarshal(counts, &e.Counts)
		}
		if len(detail) > 0 {
			_ = json.Unmarshal(detail, &e.Detail)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
