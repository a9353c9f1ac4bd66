package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"printvault/internal/database"
	"printvault/internal/ingest"
	"printvault/internal/logging"
	"printvault/internal/placement"
)

// ImportFolder enqueues a folder-import job. Strategy and hierarchy pattern
// are validated here, before anything is queued.
func (h *Handlers) ImportFolder(w http.ResponseWriter, r *http.Request) {
	var req ingest.FolderJob
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	job, err := h.orch.EnqueueFolderImport(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, placement.ErrUnknownStrategy), errors.Is(err, ingest.ErrInvalidPattern):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, database.ErrNotFound):
			writeJSONError(w, "unknown library", http.StatusNotFound)
		default:
			logging.Error("Failed to enqueue folder import: %v", err)
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"jobId": job.ID})
}
