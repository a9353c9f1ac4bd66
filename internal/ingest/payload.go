package ingest

// Lane names for the two job streams.
const (
	ArchiveLane = "ingest:archive"
	FolderLane  = "ingest:folder"
)

// ArchiveJob is the durable payload for a single-archive ingestion job. The
// model row already exists in the processing state when the job is enqueued.
type ArchiveJob struct {
	ModelID     string `json:"modelId"`
	ArchivePath string `json:"archivePath"`
	OwnerID     string `json:"ownerId"`
	LibraryID   string `json:"libraryId"`
}

// FolderJob is the durable payload for a folder-import job. Models are
// discovered and created by the worker as it walks the source tree.
type FolderJob struct {
	SourceDir string `json:"sourceDir"`
	Pattern   string `json:"pattern"`
	Strategy  string `json:"strategy"`
	OwnerID   string `json:"ownerId"`
	LibraryID string `json:"libraryId"`
}
