package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"printvault/internal/logging"
	"printvault/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database manages all persistence for the ingestion pipeline.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (or creates) the SQLite database at dbPath and initializes the
// schema. dbPath must be the full path to the database file and its parent
// directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// WAL mode and a busy timeout keep concurrent workers from tripping
	// over "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS models (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		owner_id TEXT NOT NULL,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		total_size INTEGER NOT NULL DEFAULT 0,
		file_count INTEGER NOT NULL DEFAULT 0,
		file_hash TEXT,
		library_id TEXT,
		collection_id TEXT,
		preview_file_id TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_models_status ON models(status);
	CREATE INDEX IF NOT EXISTS idx_models_owner ON models(owner_id);
	CREATE INDEX IF NOT EXISTS idx_models_library ON models(library_id);
	CREATE INDEX IF NOT EXISTS idx_models_file_hash ON models(file_hash);

	CREATE TABLE IF NOT EXISTS model_files (
		id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		rel_path TEXT NOT NULL,
		file_type TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		storage_path TEXT NOT NULL,
		sha256 TEXT NOT NULL,
		FOREIGN KEY (model_id) REFERENCES models(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_model_files_model ON model_files(model_id);
	CREATE INDEX IF NOT EXISTS idx_model_files_type ON model_files(file_type);

	CREATE TABLE IF NOT EXISTS thumbnails (
		id TEXT PRIMARY KEY,
		file_id TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		format TEXT NOT NULL,
		FOREIGN KEY (file_id) REFERENCES model_files(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_thumbnails_file ON thumbnails(file_id);

	CREATE TABLE IF NOT EXISTS libraries (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		root_path TEXT NOT NULL,
		path_template TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS collections (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE
	);

	CREATE TABLE IF NOT EXISTS model_metadata (
		model_id TEXT NOT NULL,
		slug TEXT NOT NULL,
		value TEXT NOT NULL,
		UNIQUE(model_id, slug),
		FOREIGN KEY (model_id) REFERENCES models(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_model_metadata_model ON model_metadata(model_id);
	`

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping verifies the database connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Batch is an open batch transaction. The start time travels with the batch
// so concurrent workers never share timing state.
type Batch struct {
	tx    *sql.Tx
	start time.Time
}

// BeginBatch starts a transaction for batch operations.
// The caller is responsible for calling EndBatch when done.
func (d *Database) BeginBatch() (*Batch, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Background context: transaction lifetime is managed by EndBatch, not a
	// timeout. A deferred cancel here would kill the transaction on return.
	tx, err := d.db.BeginTx(context.Background(), nil)
	if err != nil {
		return nil, err
	}

	return &Batch{tx: tx, start: time.Now()}, nil
}

// EndBatch commits or rolls back a batch transaction.
func (d *Database) EndBatch(b *Batch, err error) error {
	duration := time.Since(b.start).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		rbErr := b.tx.Rollback()
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return b.tx.Commit()
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
