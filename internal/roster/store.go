package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SettingsStore persists the single-row reminder configuration.
type SettingsStore struct {
	db               DB
	fallbackTemplate string
}

// NewSettingsStore creates a settings store.
func NewSettingsStore(db DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// WithDefaultTemplate sets the deployment-level message template used when
// no default has been stored.
func (s *SettingsStore) WithDefaultTemplate(template string) *SettingsStore {
	s.fallbackTemplate = template
	return s
}

// Get loads the reminder settings, falling back to defaults when none are
// configured yet. Missing configuration is not an error for pipeline runs.
func (s *SettingsStore) Get(ctx context.Context) (*Settings, error) {
	row := s.db.QueryRow(ctx, `
		SELECT offsets, slot_templates, present_template, absent_template, default_template, contract_version
		FROM reminder_settings WHERE id = 1`)

	var (
		offsets      []int
		templatesRaw []byte
		settings     Settings
	)
	err := row.Scan(&offsets, &templatesRaw, &settings.PresentTemplate,
		&settings.AbsentTemplate, &settings.DefaultTemplate, &settings.ContractVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		return (&Settings{DefaultTemplate: s.fallbackTemplate}).normalized(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("roster: load settings: %w", err)
	}

	settings.Offsets = offsets
	settings.SlotTemplates, err = decodeSlotTemplates(templatesRaw)
	if err != nil {
		return nil, fmt.Errorf("roster: load settings: %w", err)
	}
	if settings.DefaultTemplate == "" {
		settings.DefaultTemplate = s.fallbackTemplate
	}
	return settings.normalized(), nil
}

// Put replaces the reminder settings and bumps the contract version.
func (s *SettingsStore) Put(ctx context.Context, settings *Settings) error {
	settings = settings.normalized()
	templatesRaw, err := json.Marshal(encodeSlotTemplates(settings.SlotTemplates))
	if err != nil {
		return fmt.Errorf("roster: encode templates: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO reminder_settings (id, offsets, slot_templates, present_template, absent_template, default_template, contract_version, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, 1, now())
		ON CONFLICT (id) DO UPDATE SET
			offsets = EXCLUDED.offsets,
			slot_templates = EXCLUDED.slot_templates,
			present_template = EXCLUDED.present_template,
			absent_template = EXCLUDED.absent_template,
			default_template = EXCLUDED.default_template,
			contract_version = reminder_settings.contract_version + 1,
			updated_at = now()`,
		settings.Offsets, templatesRaw, settings.PresentTemplate,
		settings.AbsentTemplate, settings.DefaultTemplate)
	if err != nil {
		return fmt.Errorf("roster: save settings: %w", err)
	}
	return nil
}

// Slot templates live in JSONB with string keys; convert both ways.
func decodeSlotTemplates(raw []byte) (map[int]string, error) {
	out := map[int]string{}
	if len(raw) == 0 {
		return out, nil
	}
	var byKey map[string]string
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, err
	}
	for k, v := range byKey {
		offset, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[offset] = v
	}
	return out, nil
}

func encodeSlotTemplates(templates map[int]string) map[string]string {
	out := make(map[string]string, len(templates))
	for offset, tmpl := range templates {
		out[strconv.Itoa(offset)] = tmpl
	}
	return out
}
