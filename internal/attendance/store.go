package attendance

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists attendance log entries keyed by their dedup key, so a
// re-upload merges instead of duplicating.
type Store struct {
	db DB
}

// NewStore creates an attendance store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Upsert writes one entry at its dedup key. An existing row only loses to an
// incoming one with an equal or greater updated-at, mirroring the in-memory
// newest-wins rule.
func (s *Store) Upsert(ctx context.Context, e *Entry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO attendance_log (key, patient_id, phone, iso_date, start_time, professional, service, location, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (key) DO UPDATE SET
			phone = EXCLUDED.phone,
			service = EXCLUDED.service,
			location = EXCLUDED.location,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		WHERE attendance_log.updated_at <= EXCLUDED.updated_at`,
		e.Key(), e.PatientID, e.Phone, e.ISODate, e.Time, e.Professional,
		e.Service, e.Location, string(e.Status), e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("attendance: upsert %s: %w", e.Key(), err)
	}
	return nil
}

// ListRange returns entries within [fromDate, toDate] ordered by date/time.
func (s *Store) ListRange(ctx context.Context, fromDate, toDate string) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT patient_id, phone, iso_date, start_time, professional, service, location, status, updated_at
		FROM attendance_log
		WHERE iso_date >= $1 AND iso_date <= $2
		ORDER BY iso_date, start_time, updated_at`, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("attendance: list range: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.PatientID, &e.Phone, &e.ISODate, &e.Time,
			&e.Professional, &e.Service, &e.Location, &status, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("attendance: scan: %w", err)
		}
		e.Status = Status(status)
		result = append(result, e)
	}
	return result, rows.Err()
}
