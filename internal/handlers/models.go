package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"printvault/internal/database"
	"printvault/internal/ingest"
	"printvault/internal/logging"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// maxUploadSize caps multipart parsing memory; larger bodies spill to disk.
const maxUploadSize = 32 << 20

// UploadResponse is returned on successful enqueue of an archive upload.
type UploadResponse struct {
	ModelID string `json:"modelId"`
	JobID   string `json:"jobId"`
	Slug    string `json:"slug"`
	Status  string `json:"status"`
}

// UploadModel accepts a multipart archive upload, spools it to the upload
// directory, creates the model row and enqueues the ingestion job. Returns
// 202 immediately; all heavy work happens on a worker.
func (h *Handlers) UploadModel(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSONError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("archive")
	if err != nil {
		writeJSONError(w, "missing archive file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}
	libraryID := strings.TrimSpace(r.FormValue("libraryId"))
	if libraryID == "" {
		writeJSONError(w, "libraryId is required", http.StatusBadRequest)
		return
	}

	// metadata.<slug> form fields feed the path resolver later
	metadata := make(map[string]string)
	for key, values := range r.MultipartForm.Value {
		if slug, ok := strings.CutPrefix(key, "metadata."); ok && len(values) > 0 {
			metadata[slug] = values[0]
		}
	}

	archivePath := filepath.Join(h.uploadDir, uuid.NewString()+".zip")
	if err := spoolUpload(file, archivePath); err != nil {
		logging.Error("Failed to spool upload: %v", err)
		writeJSONError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	model, job, err := h.orch.EnqueueArchive(r.Context(), ingest.ArchiveRequest{
		Name:        name,
		Slug:        r.FormValue("slug"),
		OwnerID:     r.FormValue("ownerId"),
		LibraryID:   libraryID,
		ArchivePath: archivePath,
		Metadata:    metadata,
	})
	if err != nil {
		os.Remove(archivePath)
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "unknown library", http.StatusNotFound)
			return
		}
		logging.Error("Failed to enqueue archive: %v", err)
		writeJSONError(w, "failed to enqueue ingestion", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, UploadResponse{
		ModelID: model.ID,
		JobID:   job.ID,
		Slug:    model.Slug,
		Status:  string(model.Status),
	})
}

func spoolUpload(src io.Reader, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to write upload: %w", err)
	}
	return out.Close()
}

// ModelResponse is the full model read model: row plus files and thumbnails.
type ModelResponse struct {
	Model      *database.Model      `json:"model"`
	Files      []database.ModelFile `json:"files"`
	Thumbnails []database.Thumbnail `json:"thumbnails"`
}

// GetModel returns a model with its files and thumbnails.
func (h *Handlers) GetModel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	model, err := h.db.GetModelByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "model not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to load model %s: %v", id, err)
		writeJSONError(w, "failed to load model", http.StatusInternalServerError)
		return
	}

	files, err := h.db.GetModelFiles(r.Context(), id)
	if err != nil {
		logging.Error("Failed to load files for model %s: %v", id, err)
		writeJSONError(w, "failed to load model files", http.StatusInternalServerError)
		return
	}
	thumbs, err := h.db.GetThumbnailsForModel(r.Context(), id)
	if err != nil {
		logging.Error("Failed to load thumbnails for model %s: %v", id, err)
		writeJSONError(w, "failed to load thumbnails", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ModelResponse{Model: model, Files: files, Thumbnails: thumbs})
}

// GetJob returns the status of a queued or completed job on either lane.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var lane = h.archiveLane
	switch vars["lane"] {
	case "archive":
	case "folder":
		lane = h.folderLane
	default:
		writeJSONError(w, "unknown lane", http.StatusNotFound)
		return
	}

	job, ok, err := lane.GetJob(r.Context(), vars["id"])
	if err != nil {
		logging.Error("Failed to load job %s: %v", vars["id"], err)
		writeJSONError(w, "failed to load job", http.StatusInternalServerError)
		return
	}
	if !ok {
		writeJSONError(w, "job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, job)
}
