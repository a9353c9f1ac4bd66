package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CreateModel inserts a new model row. The ID and slug are assigned here:
// the ID is a fresh UUID and the slug is derived from the requested slug (or
// the name when empty), uniquified with a numeric suffix on collision.
func (d *Database) CreateModel(ctx context.Context, m *Model) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_model", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = StatusProcessing
	}

	base := m.Slug
	if base == "" {
		base = m.Name
	}
	m.Slug, err = d.uniqueSlug(ctx, Slugify(base))
	if err != nil {
		return fmt.Errorf("failed to derive slug: %w", err)
	}

	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO models (id, name, slug, owner_id, source, status, total_size, file_count,
			file_hash, library_id, collection_id, preview_file_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Slug, m.OwnerID, m.Source, m.Status, m.TotalSize, m.FileCount,
		nullable(m.FileHash), nullable(m.LibraryID), nullable(m.CollectionID),
		nullable(m.PreviewFileID), now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert model: %w", err)
	}
	return nil
}

// uniqueSlug appends -2, -3, ... until the slug does not collide.
// Must be called with d.mu held.
func (d *Database) uniqueSlug(ctx context.Context, slug string) (string, error) {
	candidate := slug
	for i := 2; ; i++ {
		var exists bool
		err := d.db.QueryRowContext(ctx,
			"SELECT COUNT(*) > 0 FROM models WHERE slug = ?", candidate).Scan(&exists)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", slug, i)
	}
}

// GetModelByID retrieves a single model.
func (d *Database) GetModelByID(ctx context.Context, id string) (*Model, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_model", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT id, name, slug, owner_id, source, status, total_size, file_count,
			COALESCE(file_hash, ''), COALESCE(library_id, ''), COALESCE(collection_id, ''),
			COALESCE(preview_file_id, ''), created_at, updated_at
		FROM models WHERE id = ?`, id)

	m, scanErr := scanModel(row)
	if scanErr != nil {
		err = scanErr
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, scanErr
	}
	return m, nil
}

// GetModelBySlug retrieves a single model by its URL slug.
func (d *Database) GetModelBySlug(ctx context.Context, slug string) (*Model, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_model_by_slug", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT id, name, slug, owner_id, source, status, total_size, file_count,
			COALESCE(file_hash, ''), COALESCE(library_id, ''), COALESCE(collection_id, ''),
			COALESCE(preview_file_id, ''), created_at, updated_at
		FROM models WHERE slug = ?`, slug)

	m, scanErr := scanModel(row)
	if scanErr != nil {
		err = scanErr
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, scanErr
	}
	return m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModel(row rowScanner) (*Model, error) {
	var m Model
	var createdAt, updatedAt int64

	err := row.Scan(&m.ID, &m.Name, &m.Slug, &m.OwnerID, &m.Source, &m.Status,
		&m.TotalSize, &m.FileCount, &m.FileHash, &m.LibraryID, &m.CollectionID,
		&m.PreviewFileID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	m.CreatedAt = time.Unix(createdAt, 0)
	m.UpdatedAt = time.Unix(updatedAt, 0)
	return &m, nil
}

// UpdateModelStatus transitions a model's lifecycle status, optionally writing
// aggregates in the same statement. This is the only mutation the pipeline
// performs on a model after creation.
func (d *Database) UpdateModelStatus(ctx context.Context, id string, status ModelStatus, update StatusUpdate) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_model_status", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := "UPDATE models SET status = ?, updated_at = strftime('%s', 'now')"
	args := []any{status}

	if update.TotalSize != nil {
		query += ", total_size = ?"
		args = append(args, *update.TotalSize)
	}
	if update.FileCount != nil {
		query += ", file_count = ?"
		args = append(args, *update.FileCount)
	}
	if update.FileHash != nil {
		query += ", file_hash = ?"
		args = append(args, *update.FileHash)
	}

	query += " WHERE id = ?"
	args = append(args, id)

	var result sql.Result
	result, err = d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update model status: %w", err)
	}
	if rows, rowsErr := result.RowsAffected(); rowsErr == nil && rows == 0 {
		err = ErrNotFound
		return ErrNotFound
	}
	return nil
}

// SetModelPreview records which file serves as the model's preview image.
func (d *Database) SetModelPreview(ctx context.Context, modelID, fileID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_model_preview", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		"UPDATE models SET preview_file_id = ?, updated_at = strftime('%s', 'now') WHERE id = ?",
		fileID, modelID)
	return err
}

// CreateModelFiles inserts a batch of file rows within a transaction.
// IDs are assigned to entries that lack one.
func (d *Database) CreateModelFiles(b *Batch, files []ModelFile) error {
	for i := range files {
		if files[i].ID == "" {
			files[i].ID = uuid.NewString()
		}
		_, err := b.tx.ExecContext(context.Background(), `
			INSERT INTO model_files (id, model_id, filename, rel_path, file_type, mime_type, size, storage_path, sha256)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			files[i].ID, files[i].ModelID, files[i].Filename, files[i].RelPath,
			files[i].FileType, files[i].MimeType, files[i].Size,
			files[i].StoragePath, files[i].SHA256,
		)
		if err != nil {
			return fmt.Errorf("failed to insert file %s: %w", files[i].RelPath, err)
		}
	}
	return nil
}

// CreateThumbnails inserts a batch of thumbnail rows within a transaction.
func (d *Database) CreateThumbnails(b *Batch, thumbs []Thumbnail) error {
	for i := range thumbs {
		if thumbs[i].ID == "" {
			thumbs[i].ID = uuid.NewString()
		}
		_, err := b.tx.ExecContext(context.Background(), `
			INSERT INTO thumbnails (id, file_id, storage_path, width, height, format)
			VALUES (?, ?, ?, ?, ?, ?)`,
			thumbs[i].ID, thumbs[i].FileID, thumbs[i].StoragePath,
			thumbs[i].Width, thumbs[i].Height, thumbs[i].Format,
		)
		if err != nil {
			return fmt.Errorf("failed to insert thumbnail for file %s: %w", thumbs[i].FileID, err)
		}
	}
	return nil
}

// GetModelFiles returns all file rows for a model.
func (d *Database) GetModelFiles(ctx context.Context, modelID string) ([]ModelFile, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_model_files", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, model_id, filename, rel_path, file_type, mime_type, size, storage_path, sha256
		FROM model_files WHERE model_id = ? ORDER BY rel_path`, modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []ModelFile
	for rows.Next() {
		var f ModelFile
		if err = rows.Scan(&f.ID, &f.ModelID, &f.Filename, &f.RelPath, &f.FileType,
			&f.MimeType, &f.Size, &f.StoragePath, &f.SHA256); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	err = rows.Err()
	return files, err
}

// GetThumbnailsForModel returns all thumbnail rows attached to a model's files.
func (d *Database) GetThumbnailsForModel(ctx context.Context, modelID string) ([]Thumbnail, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_thumbnails", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT t.id, t.file_id, t.storage_path, t.width, t.height, t.format
		FROM thumbnails t
		JOIN model_files f ON f.id = t.file_id
		WHERE f.model_id = ?`, modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var thumbs []Thumbnail
	for rows.Next() {
		var t Thumbnail
		if err = rows.Scan(&t.ID, &t.FileID, &t.StoragePath, &t.Width, &t.Height, &t.Format); err != nil {
			return nil, err
		}
		thumbs = append(thumbs, t)
	}
	err = rows.Err()
	return thumbs, err
}

// CountModelsByStatus returns how many models are in each lifecycle status.
func (d *Database) CountModelsByStatus(ctx context.Context) (map[ModelStatus]int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_models_by_status", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM models GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[ModelStatus]int)
	for rows.Next() {
		var status ModelStatus
		var count int
		if err = rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	err = rows.Err()
	return counts, err
}

// ListStaleProcessing returns models still in processing whose last update
// predates cutoff. These are candidates left behind by a crashed worker.
func (d *Database) ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]Model, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_stale_processing", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, slug, owner_id, source, status, total_size, file_count,
			COALESCE(file_hash, ''), COALESCE(library_id, ''), COALESCE(collection_id, ''),
			COALESCE(preview_file_id, ''), created_at, updated_at
		FROM models WHERE status = ? AND updated_at < ? ORDER BY updated_at`,
		StatusProcessing, cutoff.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		m, scanErr := scanModel(rows)
		if scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		models = append(models, *m)
	}
	err = rows.Err()
	return models, err
}

// nullable maps the empty string to NULL for optional columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
