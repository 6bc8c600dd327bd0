package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides persistence for appointments.
type Store struct {
	db DB
}

// NewStore creates a new appointment store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const appointmentColumns = `id, patient_name, phone, phone_e164, iso_date, start_time, professional, external_id, service, location, status, cancel_reason, upload_id, updated_at`

// Upsert writes or merges one appointment at its deterministic ID, stamping
// the upload and forcing the status back to scheduled.
func (s *Store) Upsert(ctx context.Context, a *Appointment) error {
	a.UpdatedAt = time.Now().UTC()
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO appointments (id, patient_name, phone, phone_e164, iso_date, start_time, professional, external_id, service, location, status, cancel_reason, upload_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, '', $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			patient_name = EXCLUDED.patient_name,
			phone_e164 = EXCLUDED.phone_e164,
			professional = EXCLUDED.professional,
			external_id = EXCLUDED.external_id,
			service = EXCLUDED.service,
			location = EXCLUDED.location,
			status = EXCLUDED.status,
			cancel_reason = '',
			upload_id = EXCLUDED.upload_id,
			updated_at = EXCLUDED.updated_at`,
		a.ID, a.PatientName, a.Phone, a.PhoneE164, a.ISODate, a.Time, a.Professional,
		a.ExternalID, a.Service, a.Location, string(a.Status), a.UploadID, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("appointments: upsert %s: %w", a.ID, err)
	}
	return nil
}

// ListActiveByPhones returns non-cancelled, non-done appointments on or after
// fromDate for the given phones. Callers chunk the phone list; the store
// issues a single IN query per call.
func (s *Store) ListActiveByPhones(ctx context.Context, phones []string, fromDate string) ([]Appointment, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE phone = ANY($1) AND iso_date >= $2 AND status NOT IN ('cancelled', 'done')
		ORDER BY iso_date, start_time`, phones, fromDate)
	if err != nil {
		return nil, fmt.Errorf("appointments: list active by phones: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// ListScheduledRange returns scheduled appointments within [fromDate, toDate],
// optionally filtered by professional.
func (s *Store) ListScheduledRange(ctx context.Context, fromDate, toDate, professional string) ([]Appointment, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if professional != "" {
		rows, err = s.db.Query(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE iso_date >= $1 AND iso_date <= $2 AND status = 'scheduled' AND professional = $3
			ORDER BY iso_date, start_time`, fromDate, toDate, professional)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE iso_date >= $1 AND iso_date <= $2 AND status = 'scheduled'
			ORDER BY iso_date, start_time`, fromDate, toDate)
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: list scheduled range: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// Cancel soft-cancels one appointment with the given reason. Rows already
// cancelled or done are left alone.
func (s *Store) Cancel(ctx context.Context, id, reason string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE appointments SET status = 'cancelled', cancel_reason = $1, updated_at = $2
		WHERE id = $3 AND status NOT IN ('cancelled', 'done')`,
		reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("appointments: cancel %s: %w", id, err)
	}
	return nil
}

// MarkStatus sets a terminal attendance status (done / no_show) on an appointment.
func (s *Store) MarkStatus(ctx context.Context, id string, status Status) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("appointments: mark status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointments: mark status: no appointment with id %s", id)
	}
	return nil
}

// Get fetches one appointment by ID, returning nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("appointments: get %s: %w", id, err)
	}
	defer rows.Close()
	list, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		var a Appointment
		var status string
		err := rows.Scan(
			&a.ID, &a.PatientName, &a.Phone, &a.PhoneE164, &a.ISODate, &a.Time,
			&a.Professional, &a.ExternalID, &a.Service, &a.Location,
			&status, &a.CancelReason, &a.UploadID, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		a.Status = Status(status)
		result = append(result, a)
	}
	return result, rows.Err()
}
