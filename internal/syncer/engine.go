// Package syncer keeps the persisted appointment set convergent with the
// latest uploaded schedule: every upload is merge-upserted at deterministic
// IDs, then future appointments missing from the upload are soft-cancelled.
package syncer

import (
	"context"
	"time"

	"github.com/clinicware/attend-platform/internal/appointments"
	"github.com/clinicware/attend-platform/internal/directory"
	"github.com/clinicware/attend-platform/internal/history"
	"github.com/clinicware/attend-platform/internal/observability/metrics"
	"github.com/clinicware/attend-platform/internal/roster"
	"github.com/clinicware/attend-platform/pkg/logging"
)

// maxErrorSamples bounds the error list carried back to the caller.
const maxErrorSamples = 10

type appointmentStore interface {
	Upsert(ctx context.Context, a *appointments.Appointment) error
	ListActiveByPhones(ctx context.Context, phones []string, fromDate string) ([]appointments.Appointment, error)
	Cancel(ctx context.Context, id, reason string) error
}

type historyAppender interface {
	Append(ctx context.Context, e *history.Entry) error
}

// Engine runs the upsert-then-cancel reconciliation. It is the only
// component allowed to transition appointment lifecycle status during a sync.
type Engine struct {
	store     appointmentStore
	history   historyAppender
	metrics   *metrics.PipelineMetrics
	logger    *logging.Logger
	chunkSize int
	now       func() time.Time
}

// NewEngine creates a reconciliation engine.
func NewEngine(store appointmentStore, hist historyAppender, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:     store,
		history:   hist,
		logger:    logger,
		chunkSize: directory.DefaultChunkSize,
		now:       time.Now,
	}
}

// WithChunkSize overrides the per-phase phone chunk size.
func (e *Engine) WithChunkSize(n int) *Engine {
	if n > 0 {
		e.chunkSize = n
	}
	return e
}

// WithMetrics attaches pipeline metrics.
func (e *Engine) WithMetrics(m *metrics.PipelineMetrics) *Engine {
	e.metrics = m
	return e
}

// WithClock injects the time source (tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// Result is the structured outcome of one sync run.
type Result struct {
	UploadID  string   `json:"upload_id"`
	Upserted  int      `json:"upserted"`
	Cancelled int      `json:"cancelled"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

func (r *Result) recordError(err error) {
	r.Failed++
	if len(r.Errors) < maxErrorSamples {
		r.Errors = append(r.Errors, err.Error())
	}
}

// Sync reconciles one parsed upload against the persisted appointment set.
// Work proceeds per phone chunk: the chunk's upserts must all commit before
// its cancel query runs, and a failed chunk never reaches its cancel phase.
// Chunks are disjoint by phone, so cross-chunk ordering does not matter.
// Running the same upload twice converges to the same final state.
func (e *Engine) Sync(ctx context.Context, candidates []roster.Candidate, uploadID string) (*Result, error) {
	result := &Result{UploadID: uploadID}
	started := e.now()
	today := started.Format("2006-01-02")

	// Identity sets for the whole upload: a persisted appointment survives if
	// either its deterministic ID or its external ID is still referenced.
	writtenIDs := make(map[string]struct{}, len(candidates))
	externalIDs := make(map[string]struct{})
	byPhone := make(map[string][]roster.Candidate)
	var phones []string
	for _, c := range candidates {
		a := c.Appointment
		if a.Phone == "" || a.ISODate == "" {
			result.Skipped++
			continue
		}
		if _, seen := byPhone[a.Phone]; !seen {
			phones = append(phones, a.Phone)
		}
		byPhone[a.Phone] = append(byPhone[a.Phone], c)
		writtenIDs[a.ID] = struct{}{}
		if a.ExternalID != "" {
			externalIDs[a.ExternalID] = struct{}{}
		}
	}

	for _, chunk := range directory.Chunk(phones, e.chunkSize) {
		e.syncChunk(ctx, chunk, byPhone, writtenIDs, externalIDs, today, uploadID, result)
	}

	e.metrics.ObserveSync(result.Upserted, result.Cancelled, e.now().Sub(started).Seconds())
	e.appendHistory(ctx, uploadID, result)

	e.logger.Info("schedule sync complete",
		"upload_id", uploadID,
		"upserted", result.Upserted,
		"cancelled", result.Cancelled,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

func (e *Engine) syncChunk(ctx context.Context, phones []string, byPhone map[string][]roster.Candidate, writtenIDs, externalIDs map[string]struct{}, today, uploadID string, result *Result) {
	chunkFailed := false
	for _, phone := range phones {
		for _, c := range byPhone[phone] {
			a := c.Appointment
			a.Status = appointments.StatusScheduled
			a.UploadID = uploadID
			if err := e.store.Upsert(ctx, &a); err != nil {
				e.logger.Error("sync upsert failed", "id", a.ID, "error", err)
				result.recordError(err)
				chunkFailed = true
				continue
			}
			result.Upserted++
		}
	}
	if chunkFailed {
		// The write phase did not fully commit for this chunk; running the
		// cancel diff now could cancel appointments that are still in the
		// upload. A retry converges because upserts are idempotent.
		e.logger.Warn("skipping cancel phase for failed chunk", "phones", len(phones))
		return
	}

	persisted, err := e.store.ListActiveByPhones(ctx, phones, today)
	if err != nil {
		e.logger.Error("sync cancel query failed", "error", err)
		result.recordError(err)
		return
	}
	for _, a := range persisted {
		if _, ok := writtenIDs[a.ID]; ok {
			continue
		}
		if a.ExternalID != "" {
			if _, ok := externalIDs[a.ExternalID]; ok {
				continue
			}
		}
		if err := e.store.Cancel(ctx, a.ID, appointments.CancelReasonRemoved); err != nil {
			e.logger.Error("sync cancel failed", "id", a.ID, "error", err)
			result.recordError(err)
			continue
		}
		result.Cancelled++
	}
}

func (e *Engine) appendHistory(ctx context.Context, uploadID string, result *Result) {
	if e.history == nil {
		return
	}
	entry := &history.Entry{
		Kind:     history.KindScheduleSync,
		UploadID: uploadID,
		Counts: map[string]int{
			"upserted":  result.Upserted,
			"cancelled": result.Cancelled,
			"skipped":   result.Skipped,
			"failed":    result.Failed,
		},
	}
	if err := e.history.Append(ctx, entry); err != nil {
		e.logger.Error("sync history append failed", "error", err)
	}
}
