package handlers

import (
	"context"
	"net/http"

	"github.com/clinicware/attend-platform/internal/roster"
	"github.com/clinicware/attend-platform/pkg/logging"
)

type settingsStore interface {
	Get(ctx context.Context) (*roster.Settings, error)
	Put(ctx context.Context, settings *roster.Settings) error
}

// SettingsHandler reads and replaces the clinic's reminder configuration.
type SettingsHandler struct {
	store  settingsStore
	logger *logging.Logger
}

// NewSettingsHandler creates a settings handler.
func NewSettingsHandler(store settingsStore, logger *logging.Logger) *SettingsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SettingsHandler{store: store, logger: logger}
}

// Get handles GET /admin/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("settings load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Put handles PUT /admin/settings. The stored contract version advances on
// every write; clients resend to recover from a lost race, not to merge.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var settings roster.Settings
	if !decodeJSON(w, r, &settings) {
		return
	}
	for _, offset := range settings.Offsets {
		if offset <= 0 {
			writeError(w, http.StatusBadRequest, "offsets must be positive hours")
			return
		}
	}

	if err := h.store.Put(r.Context(), &settings); err != nil {
		h.logger.Error("settings save failed", "error", err)
		writeError(w, http.StatusInternalServerError, "settings save failed")
		return
	}

	updated, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("settings reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
