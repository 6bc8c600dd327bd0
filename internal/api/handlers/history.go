package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/clinicware/attend-platform/internal/history"
	"github.com/clinicware/attend-platform/pkg/logging"
)

type historyLister interface {
	List(ctx context.Context, kind string, limit int) ([]history.Entry, error)
}

// HistoryHandler serves the audit trail read side.
type HistoryHandler struct {
	store  historyLister
	logger *logging.Logger
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(store historyLister, logger *logging.Logger) *HistoryHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &HistoryHandler{store: store, logger: logger}
}

// ListResponse wraps the history listing.
type ListResponse struct {
	Entries []history.Entry `json:"entries"`
	Count   int             `json:"count"`
}

// List handles GET /admin/history?kind=&limit=.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	entries, err := h.store.List(r.Context(), kind, limit)
	if err != nil {
		h.logger.Error("history list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Entries: entries, Count: len(entries)})
}
