package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultChunkSize caps the number of phones per IN query.
const DefaultChunkSize = 50

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads subscriber and patient records from Postgres.
type Store struct {
	db        DB
	chunkSize int
}

// NewStore creates a directory store with the default phone chunk size.
func NewStore(db DB) *Store {
	return &Store{db: db, chunkSize: DefaultChunkSize}
}

// WithChunkSize overrides the per-query phone cap.
func (s *Store) WithChunkSize(n int) *Store {
	if n > 0 {
		s.chunkSize = n
	}
	return s
}

// Resolve fetches subscribers and patients for the given canonical phones,
// one IN query per chunk per table.
func (s *Store) Resolve(ctx context.Context, phones []string) (*Snapshot, error) {
	snap := &Snapshot{
		subscribers: make(map[string]Subscriber),
		patients:    make(map[string]Patient),
	}
	for _, chunk := range Chunk(dedupe(phones), s.chunkSize) {
		if err := s.loadSubscribers(ctx, chunk, snap); err != nil {
			return nil, err
		}
		if err := s.loadPatients(ctx, chunk, snap); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// UpsertSubscriber registers or refreshes a push subscription.
func (s *Store) UpsertSubscriber(ctx context.Context, sub Subscriber) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO subscribers (phone, active, push_token, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (phone) DO UPDATE SET
			active = EXCLUDED.active,
			push_token = EXCLUDED.push_token,
			updated_at = now()`,
		sub.Phone, sub.Active, sub.PushToken)
	if err != nil {
		return fmt.Errorf("directory: upsert subscriber %s: %w", sub.Phone, err)
	}
	return nil
}

func (s *Store) loadSubscribers(ctx context.Context, phones []string, snap *Snapshot) error {
	rows, err := s.db.Query(ctx, `
		SELECT phone, active, push_token, updated_at
		FROM subscribers WHERE phone = ANY($1)`, phones)
	if err != nil {
		return fmt.Errorf("directory: load subscribers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sub Subscriber
		if err := rows.Scan(&sub.Phone, &sub.Active, &sub.PushToken, &sub.UpdatedAt); err != nil {
			return fmt.Errorf("directory: scan subscriber: %w", err)
		}
		snap.subscribers[sub.Phone] = sub
	}
	return rows.Err()
}

func (s *Store) loadPatients(ctx context.Context, phones []string, snap *Snapshot) error {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, phone, active
		FROM patients WHERE phone = ANY($1)`, phones)
	if err != nil {
		return fmt.Errorf("directory: load patients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.Active); err != nil {
			return fmt.Errorf("directory: scan patient: %w", err)
		}
		snap.patients[p.Phone] = p
	}
	return rows.Err()
}

// Chunk splits values into groups of at most size, preserving order.
func Chunk(values []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks [][]string
	for len(values) > 0 {
		n := size
		if len(values) < n {
			n = len(values)
		}
		chunks = append(chunks, values[:n])
		values = values[n:]
	}
	return chunks
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
