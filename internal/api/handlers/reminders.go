package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/clinicware/attend-platform/internal/dispatch"
	"github.com/clinicware/attend-platform/pkg/logging"
)

type previewBuilder interface {
	Build(ctx context.Context, filter dispatch.Filter) (*dispatch.Preview, error)
}

type reminderDispatcher interface {
	Dispatch(ctx context.Context, filter dispatch.Filter) (*dispatch.RunResult, error)
}

type dispatchNotifier interface {
	NotifyDispatchOutcome(ctx context.Context, result *dispatch.RunResult)
}

// RemindersHandler exposes the preview / dispatch pair. Dispatch only acts
// on a preview generated for the exact same filter; anything else is stale.
type RemindersHandler struct {
	builder    previewBuilder
	dispatcher reminderDispatcher
	notifier   dispatchNotifier
	logger     *logging.Logger
}

// NewRemindersHandler creates a reminders handler.
func NewRemindersHandler(builder previewBuilder, dispatcher reminderDispatcher, notifier dispatchNotifier, logger *logging.Logger) *RemindersHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &RemindersHandler{
		builder:    builder,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// FilterRequest is the shared preview/dispatch filter payload.
type FilterRequest struct {
	FromDate     string `json:"from_date"`
	ToDate       string `json:"to_date"`
	Professional string `json:"professional,omitempty"`
}

func (req *FilterRequest) filter() dispatch.Filter {
	return dispatch.Filter{
		FromDate:     req.FromDate,
		ToDate:       req.ToDate,
		Professional: req.Professional,
	}
}

// Preview handles POST /admin/reminders/preview.
func (h *RemindersHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FromDate == "" || req.ToDate == "" {
		writeError(w, http.StatusBadRequest, "from_date and to_date required")
		return
	}

	preview, err := h.builder.Build(r.Context(), req.filter())
	if err != nil {
		h.logger.Error("preview build failed", "error", err)
		writeError(w, http.StatusInternalServerError, "preview build failed")
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// Dispatch handles POST /admin/reminders/dispatch.
func (h *RemindersHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FromDate == "" || req.ToDate == "" {
		writeError(w, http.StatusBadRequest, "from_date and to_date required")
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), req.filter())
	if errors.Is(err, dispatch.ErrStalePreview) {
		writeError(w, http.StatusConflict, "no fresh preview for this filter; preview again before dispatching")
		return
	}
	if err != nil {
		h.logger.Error("dispatch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "dispatch failed")
		return
	}
	if h.notifier != nil {
		h.notifier.NotifyDispatchOutcome(r.Context(), result)
	}
	writeJSON(w, http.StatusOK, result)
}
