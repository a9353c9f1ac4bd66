package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"printvault/internal/database"
	"printvault/internal/logging"
	"printvault/internal/pathtemplate"
)

// CreateLibraryRequest is the body for POST /api/libraries.
type CreateLibraryRequest struct {
	Name         string `json:"name"`
	RootPath     string `json:"rootPath"`
	PathTemplate string `json:"pathTemplate"`
}

// CreateLibrary registers a new library root. The path template is validated
// here, at configuration time, so ingestion never sees a malformed one.
func (h *Handlers) CreateLibrary(w http.ResponseWriter, r *http.Request) {
	var req CreateLibraryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.RootPath) == "" {
		writeJSONError(w, "name and rootPath are required", http.StatusBadRequest)
		return
	}
	if err := pathtemplate.Validate(req.PathTemplate); err != nil {
		if errors.Is(err, pathtemplate.ErrInvalidTemplate) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSONError(w, "failed to validate template", http.StatusInternalServerError)
		return
	}

	lib := &database.Library{
		Name:         req.Name,
		RootPath:     req.RootPath,
		PathTemplate: req.PathTemplate,
	}
	if err := h.db.CreateLibrary(r.Context(), lib); err != nil {
		logging.Error("Failed to create library: %v", err)
		writeJSONError(w, "failed to create library", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, lib)
}

// ListLibraries returns all configured libraries.
func (h *Handlers) ListLibraries(w http.ResponseWriter, r *http.Request) {
	libs, err := h.db.ListLibraries(r.Context())
	if err != nil {
		logging.Error("Failed to list libraries: %v", err)
		writeJSONError(w, "failed to list libraries", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, libs)
}
