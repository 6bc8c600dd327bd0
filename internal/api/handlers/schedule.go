package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/attend-platform/internal/roster"
	"github.com/clinicware/attend-platform/internal/syncer"
	"github.com/clinicware/attend-platform/pkg/logging"
)

type scheduleSyncer interface {
	Sync(ctx context.Context, candidates []roster.Candidate, uploadID string) (*syncer.Result, error)
}

type settingsLoader interface {
	Get(ctx context.Context) (*roster.Settings, error)
}

type syncNotifier interface {
	NotifySyncOutcome(ctx context.Context, result *syncer.Result)
}

// ScheduleHandler ingests schedule uploads and reconciles the appointment set.
type ScheduleHandler struct {
	engine      scheduleSyncer
	settings    settingsLoader
	notifier    syncNotifier
	location    *time.Location
	countryCode string
	logger      *logging.Logger
}

// NewScheduleHandler creates a schedule sync handler.
func NewScheduleHandler(engine scheduleSyncer, settings settingsLoader, notifier syncNotifier, loc *time.Location, logger *logging.Logger) *ScheduleHandler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ScheduleHandler{
		engine:   engine,
		settings: settings,
		notifier: notifier,
		location: loc,
		logger:   logger,
	}
}

// WithCountryCode sets the country code applied when canonicalizing phones.
func (h *ScheduleHandler) WithCountryCode(code string) *ScheduleHandler {
	h.countryCode = code
	return h
}

// SyncRequest is the schedule upload payload.
type SyncRequest struct {
	// Raw is the pasted spreadsheet text, one appointment per line.
	Raw      string `json:"raw"`
	UploadID string `json:"upload_id,omitempty"`
}

// SyncResponse wraps the reconciliation outcome with parse-level counts.
type SyncResponse struct {
	*syncer.Result
	ParsedRows  int `json:"parsed_rows"`
	SkippedRows int `json:"skipped_rows"`
}

// Sync handles POST /admin/schedule/sync.
func (h *ScheduleHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Raw) == "" {
		writeError(w, http.StatusBadRequest, "raw schedule text required")
		return
	}
	if req.UploadID == "" {
		req.UploadID = uuid.NewString()
	}

	settings, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.Error("schedule sync settings load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}

	parsed := roster.Parse(roster.ParseInput{
		Raw:         req.Raw,
		Settings:    settings,
		Now:         time.Now(),
		Location:    h.location,
		UploadID:    req.UploadID,
		CountryCode: h.countryCode,
	})

	result, err := h.engine.Sync(r.Context(), parsed.Candidates, req.UploadID)
	if err != nil {
		h.logger.Error("schedule sync failed", "upload_id", req.UploadID, "error", err)
		writeError(w, http.StatusInternalServerError, "schedule sync failed")
		return
	}
	if h.notifier != nil {
		h.notifier.NotifySyncOutcome(r.Context(), result)
	}

	writeJSON(w, http.StatusOK, SyncResponse{
		Result:      result,
		ParsedRows:  len(parsed.Candidates),
		SkippedRows: parsed.Skipped,
	})
}
