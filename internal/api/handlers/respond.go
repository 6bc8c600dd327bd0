// Package handlers contains the admin HTTP handlers for the reminder and
// attendance pipelines. Every pipeline endpoint answers with a structured
// outcome body; raw errors never leak past here.
package handlers

import (
	"encoding/json"
	"net/http"
)

const maxBodyBytes = 4 << 20 // uploads are pasted spreadsheets, not files

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
