package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"printvault/internal/archive"
	"printvault/internal/database"
	"printvault/internal/filesystem"
	"printvault/internal/logging"
	"printvault/internal/metrics"
	"printvault/internal/modeltypes"
	"printvault/internal/pathtemplate"
	"printvault/internal/placement"
	"printvault/internal/queue"
	"printvault/internal/thumbnails"

	"github.com/google/uuid"
)

// Orchestrator drives models through processing to ready or error. It is the
// only writer of model status after creation.
type Orchestrator struct {
	db          *database.Database
	thumbs      *thumbnails.Generator
	archiveLane *queue.Lane
	folderLane  *queue.Lane
	// scratchDir holds per-job extraction directories, one per job ID.
	scratchDir string
	// onProgress, when set, observes every checkpoint in emission order.
	onProgress func(jobID string, pct int)
}

func New(db *database.Database, thumbs *thumbnails.Generator, archiveLane, folderLane *queue.Lane, scratchDir string) (*Orchestrator, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	o := &Orchestrator{
		db:          db,
		thumbs:      thumbs,
		archiveLane: archiveLane,
		folderLane:  folderLane,
		scratchDir:  scratchDir,
	}
	archiveLane.SetOnExhausted(o.OnArchiveExhausted)
	return o, nil
}

// Start launches the worker pools on both lanes.
func (o *Orchestrator) Start(ctx context.Context, archiveWorkers, folderWorkers int) {
	o.archiveLane.Start(ctx, archiveWorkers, o.HandleArchiveJob)
	// One folder worker: a folder job already fans out over many models and
	// parallel jobs would contend on the same destination directories.
	if folderWorkers != 1 {
		folderWorkers = 1
	}
	o.folderLane.Start(ctx, folderWorkers, o.HandleFolderJob)
}

// ArchiveRequest describes a single-archive ingestion to enqueue.
type ArchiveRequest struct {
	Name        string
	Slug        string
	OwnerID     string
	LibraryID   string
	ArchivePath string
	Metadata    map[string]string
}

// EnqueueArchive creates the model row in the processing state, records any
// initial metadata, and enqueues the job. The caller gets identifiers back
// immediately; all heavy work happens on a worker.
func (o *Orchestrator) EnqueueArchive(ctx context.Context, req ArchiveRequest) (*database.Model, queue.Job, error) {
	if _, err := o.db.GetLibraryByID(ctx, req.LibraryID); err != nil {
		return nil, queue.Job{}, fmt.Errorf("failed to load library %s: %w", req.LibraryID, err)
	}

	model := &database.Model{
		Name:      req.Name,
		Slug:      req.Slug,
		OwnerID:   req.OwnerID,
		Source:    database.SourceArchiveUpload,
		LibraryID: req.LibraryID,
	}
	if err := o.db.CreateModel(ctx, model); err != nil {
		return nil, queue.Job{}, err
	}
	for slug, value := range req.Metadata {
		if err := o.db.SetMetadataValue(ctx, model.ID, slug, value); err != nil {
			return nil, queue.Job{}, err
		}
	}

	payload, err := json.Marshal(ArchiveJob{
		ModelID:     model.ID,
		ArchivePath: req.ArchivePath,
		OwnerID:     req.OwnerID,
		LibraryID:   req.LibraryID,
	})
	if err != nil {
		return nil, queue.Job{}, err
	}

	job, err := o.archiveLane.Enqueue(ctx, string(payload))
	if err != nil {
		o.failModel(ctx, model.ID, err)
		return nil, queue.Job{}, fmt.Errorf("failed to enqueue archive job: %w", err)
	}

	logging.Info("Enqueued archive ingestion for model %s (job %s)", model.ID, job.ID)
	return model, job, nil
}

// EnqueueFolderImport validates the request and enqueues a folder-import
// job. Strategy and pattern problems are rejected here, before any
// filesystem mutation.
func (o *Orchestrator) EnqueueFolderImport(ctx context.Context, req FolderJob) (queue.Job, error) {
	if _, err := placement.ForName(req.Strategy); err != nil {
		return queue.Job{}, err
	}
	if _, err := parseHierarchy(req.Pattern); err != nil {
		return queue.Job{}, err
	}
	if _, err := o.db.GetLibraryByID(ctx, req.LibraryID); err != nil {
		return queue.Job{}, fmt.Errorf("failed to load library %s: %w", req.LibraryID, err)
	}
	info, err := filesystem.StatWithRetry(req.SourceDir, filesystem.DefaultRetryConfig())
	if err != nil {
		return queue.Job{}, fmt.Errorf("failed to stat source directory: %w", err)
	}
	if !info.IsDir() {
		return queue.Job{}, fmt.Errorf("source path %s is not a directory", req.SourceDir)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return queue.Job{}, err
	}
	job, err := o.folderLane.Enqueue(ctx, string(payload))
	if err != nil {
		return queue.Job{}, fmt.Errorf("failed to enqueue folder job: %w", err)
	}

	logging.Info("Enqueued folder import of %s (job %s)", req.SourceDir, job.ID)
	return job, nil
}

// HandleArchiveJob is the worker body for the archive lane. A retry re-runs
// the whole pipeline, so the model is put back into processing first.
func (o *Orchestrator) HandleArchiveJob(ctx context.Context, job queue.Job) error {
	var p ArchiveJob
	if err := json.Unmarshal([]byte(job.Payload), &p); err != nil {
		return fmt.Errorf("malformed archive job payload: %w", err)
	}

	o.progress(ctx, o.archiveLane, job.ID, 0)
	if err := o.db.UpdateModelStatus(ctx, p.ModelID, database.StatusProcessing, database.StatusUpdate{}); err != nil {
		return fmt.Errorf("failed to claim model %s: %w", p.ModelID, err)
	}

	if err := o.runArchiveJob(ctx, job, p); err != nil {
		o.failModel(ctx, p.ModelID, err)
		return err
	}
	return nil
}

func (o *Orchestrator) runArchiveJob(ctx context.Context, job queue.Job, p ArchiveJob) error {
	lib, err := o.db.GetLibraryByID(ctx, p.LibraryID)
	if err != nil {
		return fmt.Errorf("failed to load library %s: %w", p.LibraryID, err)
	}
	model, err := o.db.GetModelByID(ctx, p.ModelID)
	if err != nil {
		return fmt.Errorf("failed to load model %s: %w", p.ModelID, err)
	}

	// Archive-level content hash, recorded for future dedup detection
	fileHash, err := archive.HashFile(p.ArchivePath)
	if err != nil {
		return fmt.Errorf("failed to hash archive: %w", err)
	}

	extractDir := filepath.Join(o.scratchDir, job.ID)
	defer os.RemoveAll(extractDir)

	manifest, err := archive.ProcessArchive(p.ArchivePath, extractDir)
	if err != nil {
		return err
	}
	o.progress(ctx, o.archiveLane, job.ID, 20)

	err = o.ingestManifest(ctx, model, lib, manifest, placement.Copy, fileHash, func(pct int) {
		o.progress(ctx, o.archiveLane, job.ID, pct)
	})
	if err != nil {
		return err
	}

	o.progress(ctx, o.archiveLane, job.ID, 100)
	if err := os.Remove(p.ArchivePath); err != nil {
		logging.Warn("Failed to remove uploaded archive %s: %v", p.ArchivePath, err)
	}
	logging.Info("Model %s ingested: %d file(s), %d bytes", model.ID, len(manifest.Entries), manifest.TotalSize)
	return nil
}

// HandleFolderJob is the worker body for the folder lane. Per-model failures
// are recorded on the model and do not fail the job.
func (o *Orchestrator) HandleFolderJob(ctx context.Context, job queue.Job) error {
	var p FolderJob
	if err := json.Unmarshal([]byte(job.Payload), &p); err != nil {
		return fmt.Errorf("malformed folder job payload: %w", err)
	}

	strategy, err := placement.ForName(p.Strategy)
	if err != nil {
		return err
	}
	segments, err := parseHierarchy(p.Pattern)
	if err != nil {
		return err
	}
	lib, err := o.db.GetLibraryByID(ctx, p.LibraryID)
	if err != nil {
		return fmt.Errorf("failed to load library %s: %w", p.LibraryID, err)
	}

	models, err := discoverModels(p.SourceDir, segments)
	if err != nil {
		return err
	}
	logging.Info("Folder import discovered %d model(s) under %s", len(models), p.SourceDir)
	o.progress(ctx, o.folderLane, job.ID, 0)

	failed := 0
	for i, md := range models {
		if err := o.importFolderModel(ctx, lib, p, md, strategy); err != nil {
			failed++
			logging.Error("Folder import of %s failed: %v", md.Path, err)
		}
		o.progress(ctx, o.folderLane, job.ID, (i+1)*100/len(models))
	}
	if failed > 0 {
		logging.Warn("Folder import finished with %d of %d model(s) failed", failed, len(models))
	}
	return nil
}

func (o *Orchestrator) importFolderModel(ctx context.Context, lib *database.Library, p FolderJob, md discoveredModel, strategy placement.Strategy) error {
	model := &database.Model{
		Name:      md.Name,
		OwnerID:   p.OwnerID,
		Source:    database.SourceFolderImport,
		LibraryID: p.LibraryID,
	}
	if md.Collection != "" {
		coll, err := o.db.EnsureCollection(ctx, md.Collection)
		if err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", md.Collection, err)
		}
		model.CollectionID = coll.ID
	}
	if err := o.db.CreateModel(ctx, model); err != nil {
		return err
	}
	for slug, value := range md.Metadata {
		if err := o.db.SetMetadataValue(ctx, model.ID, slug, value); err != nil {
			o.failModel(ctx, model.ID, err)
			return err
		}
	}

	manifest, err := archive.ProcessDirectory(md.Path)
	if err != nil {
		o.failModel(ctx, model.ID, err)
		return err
	}
	if err := o.ingestManifest(ctx, model, lib, manifest, strategy, "", func(int) {}); err != nil {
		o.failModel(ctx, model.ID, err)
		return err
	}
	return nil
}

// ingestManifest runs the shared pipeline tail: resolve the destination,
// place every file, render thumbnails for images, then commit rows and mark
// the model ready in one pass. progress receives the 50 and 75 checkpoints.
func (o *Orchestrator) ingestManifest(ctx context.Context, model *database.Model, lib *database.Library, manifest *archive.Manifest, strategy placement.Strategy, fileHash string, progress func(int)) error {
	metadata, err := o.db.GetMetadataValues(ctx, model.ID)
	if err != nil {
		return fmt.Errorf("failed to load metadata for model %s: %w", model.ID, err)
	}

	destDir, err := pathtemplate.Resolve(lib.PathTemplate, lib.RootPath, lib.Name, model.Name, metadata)
	if err != nil {
		return err
	}

	files := make([]database.ModelFile, 0, len(manifest.Entries))
	for _, entry := range manifest.Entries {
		dst := filepath.Join(destDir, filepath.FromSlash(entry.RelPath))
		if err := placement.Place(strategy, entry.LocalPath, dst); err != nil {
			return fmt.Errorf("failed to place %s: %w", entry.RelPath, err)
		}
		files = append(files, database.ModelFile{
			ID:          uuid.NewString(),
			ModelID:     model.ID,
			Filename:    entry.Filename,
			RelPath:     entry.RelPath,
			FileType:    entry.FileType,
			MimeType:    entry.MimeType,
			Size:        entry.Size,
			StoragePath: dst,
			SHA256:      entry.SHA256,
		})
		metrics.FilesIngestedTotal.WithLabelValues(string(entry.FileType)).Inc()
		metrics.BytesIngestedTotal.Add(float64(entry.Size))
	}
	progress(50)

	var thumbs []database.Thumbnail
	var previewFileID string
	for _, f := range files {
		if f.FileType != modeltypes.FileTypeImage {
			continue
		}
		results, err := o.thumbs.Generate(model.ID, f.ID, f.StoragePath)
		if err != nil {
			// Per-file skip, never fatal to the model
			logging.Warn("Thumbnail generation failed for %s: %v", f.RelPath, err)
			continue
		}
		if previewFileID == "" {
			previewFileID = f.ID
		}
		for _, r := range results {
			thumbs = append(thumbs, database.Thumbnail{
				FileID:      f.ID,
				StoragePath: r.StoragePath,
				Width:       r.Width,
				Height:      r.Height,
				Format:      r.Format,
			})
		}
	}
	progress(75)

	batch, err := o.db.BeginBatch()
	if err != nil {
		return err
	}
	batchErr := o.db.CreateModelFiles(batch, files)
	if batchErr == nil && len(thumbs) > 0 {
		batchErr = o.db.CreateThumbnails(batch, thumbs)
	}
	if err := o.db.EndBatch(batch, batchErr); err != nil {
		return err
	}

	if previewFileID != "" {
		if err := o.db.SetModelPreview(ctx, model.ID, previewFileID); err != nil {
			logging.Warn("Failed to set preview for model %s: %v", model.ID, err)
		}
	}

	fileCount := len(files)
	update := database.StatusUpdate{
		TotalSize: &manifest.TotalSize,
		FileCount: &fileCount,
	}
	if fileHash != "" {
		update.FileHash = &fileHash
	}
	if err := o.db.UpdateModelStatus(ctx, model.ID, database.StatusReady, update); err != nil {
		return fmt.Errorf("failed to mark model %s ready: %w", model.ID, err)
	}
	metrics.ModelsByOutcome.WithLabelValues("ready").Inc()
	return nil
}

// OnArchiveExhausted is the archive lane's safety net: after the final
// failed attempt the model is forced to error even if the worker never
// reached its own error path, so nothing sticks in processing forever.
func (o *Orchestrator) OnArchiveExhausted(ctx context.Context, job queue.Job) {
	var p ArchiveJob
	if err := json.Unmarshal([]byte(job.Payload), &p); err != nil {
		logging.Error("Safety net cannot parse payload for job %s: %v", job.ID, err)
		return
	}

	model, err := o.db.GetModelByID(ctx, p.ModelID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logging.Error("Safety net failed to load model %s: %v", p.ModelID, err)
		}
		return
	}
	if model.Status != database.StatusError {
		logging.Warn("Safety net forcing model %s to error after exhausted attempts", p.ModelID)
		o.failModel(ctx, p.ModelID, errors.New(job.ErrorMessage))
	}
	if p.ArchivePath != "" {
		os.Remove(p.ArchivePath)
	}
}

func (o *Orchestrator) failModel(ctx context.Context, modelID string, cause error) {
	logging.Error("Ingestion failed for model %s: %v", modelID, cause)
	if err := o.db.UpdateModelStatus(ctx, modelID, database.StatusError, database.StatusUpdate{}); err != nil && !errors.Is(err, database.ErrNotFound) {
		logging.Error("Failed to mark model %s as error: %v", modelID, err)
	}
	metrics.ModelsByOutcome.WithLabelValues("error").Inc()
}

func (o *Orchestrator) progress(ctx context.Context, lane *queue.Lane, jobID string, pct int) {
	if err := lane.UpdateProgress(ctx, jobID, pct); err != nil {
		logging.Warn("Failed to update progress for job %s: %v", jobID, err)
	}
	if o.onProgress != nil {
		o.onProgress(jobID, pct)
	}
}
