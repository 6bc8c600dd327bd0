package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/clinicware/attend-platform/internal/attendance"
	"github.com/clinicware/attend-platform/pkg/logging"
)

type attendanceImporter interface {
	Import(ctx context.Context, rows []attendance.Entry, uploadID string) (*attendance.ImportResult, error)
}

type followupRunner interface {
	Run(ctx context.Context, fromDate, toDate string, dryRun bool) (*attendance.Result, error)
}

// AttendanceHandler ingests attendance logs and runs follow-up selection.
type AttendanceHandler struct {
	importer attendanceImporter
	selector followupRunner
	logger   *logging.Logger
}

// NewAttendanceHandler creates an attendance handler.
func NewAttendanceHandler(importer attendanceImporter, selector followupRunner, logger *logging.Logger) *AttendanceHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AttendanceHandler{importer: importer, selector: selector, logger: logger}
}

// ImportRequest is the attendance upload payload.
type ImportRequest struct {
	Rows     []attendance.Entry `json:"rows"`
	UploadID string             `json:"upload_id,omitempty"`
}

// Import handles POST /admin/attendance/import.
func (h *AttendanceHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "rows required")
		return
	}
	if req.UploadID == "" {
		req.UploadID = uuid.NewString()
	}

	result, err := h.importer.Import(r.Context(), req.Rows, req.UploadID)
	if err != nil {
		h.logger.Error("attendance import failed", "upload_id", req.UploadID, "error", err)
		writeError(w, http.StatusInternalServerError, "attendance import failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// FollowupsRequest selects the attendance date range; DryRun renders
// previews without sending anything.
type FollowupsRequest struct {
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
	DryRun   bool   `json:"dry_run"`
}

// Followups handles POST /admin/attendance/followups.
func (h *AttendanceHandler) Followups(w http.ResponseWriter, r *http.Request) {
	var req FollowupsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FromDate == "" || req.ToDate == "" {
		writeError(w, http.StatusBadRequest, "from_date and to_date required")
		return
	}

	result, err := h.selector.Run(r.Context(), req.FromDate, req.ToDate, req.DryRun)
	if err != nil {
		h.logger.Error("followup run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "followup run failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
