package handlers

import (
	"time"

	"printvault/internal/database"
	"printvault/internal/ingest"
	"printvault/internal/queue"

	"github.com/gorilla/mux"
)

type Handlers struct {
	db          *database.Database
	orch        *ingest.Orchestrator
	archiveLane *queue.Lane
	folderLane  *queue.Lane
	uploadDir   string
	startedAt   time.Time
}

func New(db *database.Database, orch *ingest.Orchestrator, archiveLane, folderLane *queue.Lane, uploadDir string) *Handlers {
	return &Handlers{
		db:          db,
		orch:        orch,
		archiveLane: archiveLane,
		folderLane:  folderLane,
		uploadDir:   uploadDir,
		startedAt:   time.Now(),
	}
}

// RegisterRoutes attaches all API routes to the router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/models", h.UploadModel).Methods("POST")
	api.HandleFunc("/models/{id}", h.GetModel).Methods("GET")
	api.HandleFunc("/imports/folder", h.ImportFolder).Methods("POST")
	api.HandleFunc("/jobs/{lane}/{id}", h.GetJob).Methods("GET")
	api.HandleFunc("/libraries", h.CreateLibrary).Methods("POST")
	api.HandleFunc("/libraries", h.ListLibraries).Methods("GET")

	router.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	router.HandleFunc("/readyz", h.ReadyCheck).Methods("GET")
}
