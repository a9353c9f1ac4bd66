package database

import (
	"time"

	"printvault/internal/modeltypes"
)

// ModelStatus is the lifecycle state of a model.
type ModelStatus string

const (
	// StatusProcessing means an ingestion job owns the model.
	StatusProcessing ModelStatus = "processing"
	// StatusReady means ingestion completed and aggregates are final.
	StatusReady ModelStatus = "ready"
	// StatusError means ingestion failed terminally.
	StatusError ModelStatus = "error"
)

// ModelSource records how a model entered the system.
type ModelSource string

const (
	SourceArchiveUpload ModelSource = "archive_upload"
	SourceFolderImport  ModelSource = "folder_import"
	SourceManual        ModelSource = "manual"
)

// Model is one ingested unit: a named set of files placed in a library.
type Model struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Slug          string      `json:"slug"`
	OwnerID       string      `json:"ownerId"`
	Source        ModelSource `json:"source"`
	Status        ModelStatus `json:"status"`
	TotalSize     int64       `json:"totalSizeBytes"`
	FileCount     int         `json:"fileCount"`
	FileHash      string      `json:"fileHash,omitempty"`
	LibraryID     string      `json:"libraryId,omitempty"`
	CollectionID  string      `json:"collectionId,omitempty"`
	PreviewFileID string      `json:"previewFileId,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// ModelFile is one file belonging to a model. Rows are written in a single
// batch once placement succeeds and are immutable afterwards.
type ModelFile struct {
	ID          string              `json:"id"`
	ModelID     string              `json:"modelId"`
	Filename    string              `json:"filename"`
	RelPath     string              `json:"relPath"`
	FileType    modeltypes.FileType `json:"fileType"`
	MimeType    string              `json:"mimeType"`
	Size        int64               `json:"size"`
	StoragePath string              `json:"storagePath"`
	SHA256      string              `json:"sha256"`
}

// Thumbnail is a rendered preview owned by exactly one image-typed ModelFile.
type Thumbnail struct {
	ID          string `json:"id"`
	FileID      string `json:"fileId"`
	StoragePath string `json:"storagePath"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Format      string `json:"format"`
}

// Library is an administrator-configured storage root plus the path template
// describing how models are laid out beneath it.
type Library struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	RootPath     string    `json:"rootPath"`
	PathTemplate string    `json:"pathTemplate"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Collection groups models; folder imports may assign one per model.
type Collection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StatusUpdate carries the optional aggregates written together with a model
// status transition.
type StatusUpdate struct {
	TotalSize *int64
	FileCount *int
	FileHash  *string
}
