package attendance

import (
	"context"

	"github.com/clinicware/attend-platform/internal/history"
	"github.com/clinicware/attend-platform/internal/normalize"
	"github.com/clinicware/attend-platform/pkg/logging"
)

type entryUpserter interface {
	Upsert(ctx context.Context, e *Entry) error
}

// ImportResult is the structured outcome of one attendance import.
type ImportResult struct {
	UploadID string   `json:"upload_id,omitempty"`
	Rows     int      `json:"rows"`
	Deduped  int      `json:"deduped"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// Importer normalizes, deduplicates and persists uploaded attendance rows.
// Re-uploading the same rows converges: dedup keys collapse in memory first
// and the store upsert is newest-wins at the same key.
type Importer struct {
	store       entryUpserter
	hist        historyAppender
	countryCode string
	logger      *logging.Logger
}

// NewImporter creates an attendance importer.
func NewImporter(store entryUpserter, hist historyAppender, logger *logging.Logger) *Importer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Importer{store: store, hist: hist, countryCode: normalize.DefaultCountryCode, logger: logger}
}

// WithCountryCode sets the country code applied when canonicalizing phones.
func (im *Importer) WithCountryCode(code string) *Importer {
	if code != "" {
		im.countryCode = code
	}
	return im
}

// Import cleans and persists one batch of attendance rows. Row-level
// failures are recorded and do not abort the batch.
func (im *Importer) Import(ctx context.Context, rows []Entry, uploadID string) (*ImportResult, error) {
	result := &ImportResult{UploadID: uploadID, Rows: len(rows)}

	cleaned := make([]Entry, 0, len(rows))
	for _, row := range rows {
		row.Phone = normalize.CanonicalPhoneWithCountry(row.Phone, im.countryCode)
		row.ISODate = normalize.Date(row.ISODate)
		row.Time = normalize.Time(row.Time)
		if !row.Valid() {
			result.Skipped++
			continue
		}
		cleaned = append(cleaned, row)
	}

	deduped := Dedupe(cleaned)
	result.Deduped = len(deduped)

	for i := range deduped {
		if err := im.store.Upsert(ctx, &deduped[i]); err != nil {
			result.Failed++
			if len(result.Errors) < maxErrorSamples {
				result.Errors = append(result.Errors, err.Error())
			}
			im.logger.Error("attendance row import failed",
				"key", deduped[i].Key(), "error", err)
			continue
		}
		result.Imported++
	}

	im.appendImportHistory(ctx, result)
	im.logger.Info("attendance import complete",
		"upload_id", uploadID, "rows", result.Rows, "imported", result.Imported,
		"skipped", result.Skipped, "failed", result.Failed,
	)
	return result, nil
}

func (im *Importer) appendImportHistory(ctx context.Context, result *ImportResult) {
	if im.hist == nil {
		return
	}
	entry := &history.Entry{
		Kind:     history.KindAttendanceImport,
		UploadID: result.UploadID,
		Counts: map[string]int{
			"rows":     result.Rows,
			"deduped":  result.Deduped,
			"imported": result.Imported,
			"skipped":  result.Skipped,
			"failed":   result.Failed,
		},
	}
	if err := im.hist.Append(ctx, entry); err != nil {
		im.logger.Error("attendance import history append failed", "error", err)
	}
}
