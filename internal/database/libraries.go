package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CreateLibrary inserts a library. The caller is expected to have validated
// the path template already; the schema does not enforce template syntax.
func (d *Database) CreateLibrary(ctx context.Context, lib *Library) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_library", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if lib.ID == "" {
		lib.ID = uuid.NewString()
	}
	lib.CreatedAt = time.Now()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO libraries (id, name, root_path, path_template, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		lib.ID, lib.Name, lib.RootPath, lib.PathTemplate, lib.CreatedAt.Unix(),
	)
	return err
}

// GetLibraryByID retrieves a library configuration.
func (d *Database) GetLibraryByID(ctx context.Context, id string) (*Library, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_library", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var lib Library
	var createdAt int64
	err = d.db.QueryRowContext(ctx, `
		SELECT id, name, root_path, path_template, created_at
		FROM libraries WHERE id = ?`, id).
		Scan(&lib.ID, &lib.Name, &lib.RootPath, &lib.PathTemplate, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	lib.CreatedAt = time.Unix(createdAt, 0)
	return &lib, nil
}

// ListLibraries returns all configured libraries.
func (d *Database) ListLibraries(ctx context.Context) ([]Library, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_libraries", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT id, name, root_path, path_template, created_at FROM libraries ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var libs []Library
	for rows.Next() {
		var lib Library
		var createdAt int64
		if err = rows.Scan(&lib.ID, &lib.Name, &lib.RootPath, &lib.PathTemplate, &createdAt); err != nil {
			return nil, err
		}
		lib.CreatedAt = time.Unix(createdAt, 0)
		libs = append(libs, lib)
	}
	err = rows.Err()
	return libs, err
}

// EnsureCollection returns the collection with the given name, creating it if
// it does not exist. Name matching is case-insensitive.
func (d *Database) EnsureCollection(ctx context.Context, name string) (*Collection, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("ensure_collection", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var c Collection
	err = d.db.QueryRowContext(ctx,
		"SELECT id, name FROM collections WHERE name = ?", name).Scan(&c.ID, &c.Name)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	c = Collection{ID: uuid.NewString(), Name: name}
	_, err = d.db.ExecContext(ctx,
		"INSERT INTO collections (id, name) VALUES (?, ?)", c.ID, c.Name)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SetMetadataValue upserts one metadata value for a model.
func (d *Database) SetMetadataValue(ctx context.Context, modelID, slug, value string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_metadata", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO model_metadata (model_id, slug, value) VALUES (?, ?, ?)
		ON CONFLICT(model_id, slug) DO UPDATE SET value = excluded.value`,
		modelID, slug, value)
	return err
}

// GetMetadataValues returns the metadata map for a model, keyed by field slug.
// This is the read-only view the path resolver consumes.
func (d *Database) GetMetadataValues(ctx context.Context, modelID string) (map[string]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_metadata", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT slug, value FROM model_metadata WHERE model_id = ?", modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var slug, value string
		if err = rows.Scan(&slug, &value); err != nil {
			return nil, err
		}
		values[slug] = value
	}
	err = rows.Err()
	return values, err
}
