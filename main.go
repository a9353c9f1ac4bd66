package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"printvault/internal/database"
	"printvault/internal/handlers"
	"printvault/internal/ingest"
	"printvault/internal/logging"
	"printvault/internal/middleware"
	"printvault/internal/pathtemplate"
	"printvault/internal/queue"
	"printvault/internal/startup"
	"printvault/internal/thumbnails"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()
	ctx := context.Background()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Initialize thumbnail pipeline
	if err := thumbnails.InitVips(); err != nil {
		logging.Warn("libvips initialization failed: %v", err)
	}
	defer thumbnails.ShutdownVips()
	startup.LogThumbnailInit(thumbnails.IsVipsAvailable())

	thumbs, err := thumbnails.NewGenerator(config.ThumbnailDir)
	if err != nil {
		logging.Fatal("Failed to initialize thumbnail generator: %v", err)
	}

	// Initialize job queue lanes
	archiveLane, err := queue.NewLane(queue.Config{
		Addr:        config.RedisAddr,
		Password:    config.RedisPassword,
		Lane:        ingest.ArchiveLane,
		MaxAttempts: config.MaxJobAttempts,
		RetryDelay:  config.RetryDelay,
	})
	if err != nil {
		logging.Fatal("Failed to initialize archive lane: %v", err)
	}
	defer archiveLane.Close()

	folderLane, err := queue.NewLane(queue.Config{
		Addr:        config.RedisAddr,
		Password:    config.RedisPassword,
		Lane:        ingest.FolderLane,
		MaxAttempts: config.MaxJobAttempts,
		RetryDelay:  config.RetryDelay,
	})
	if err != nil {
		logging.Fatal("Failed to initialize folder lane: %v", err)
	}
	defer folderLane.Close()
	startup.LogQueueInit(config.RedisAddr, ingest.ArchiveLane, ingest.FolderLane)

	// Initialize ingestion orchestrator
	orch, err := ingest.New(db, thumbs, archiveLane, folderLane, config.ScratchDir)
	if err != nil {
		logging.Fatal("Failed to initialize orchestrator: %v", err)
	}

	// Bootstrap a default library on first start
	if err := bootstrapLibrary(ctx, db, config); err != nil {
		logging.Fatal("Failed to bootstrap default library: %v", err)
	}

	// Start workers
	workerCtx, stopWorkers := context.WithCancel(ctx)
	orch.Start(workerCtx, config.ArchiveWorkers, 1)

	// Initialize handlers and router
	h := handlers.New(db, orch, archiveLane, folderLane, config.UploadDir)
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	startup.LogHTTPRoutes(router)

	// Apply metrics and logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Metrics server on its own port so scrapes bypass the API middleware
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:        ":" + config.MetricsPort,
			Handler:     metricsMux,
			ReadTimeout: 15 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, stopWorkers)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

// bootstrapLibrary creates the default library when no library exists yet,
// so a fresh install can accept uploads without manual setup.
func bootstrapLibrary(ctx context.Context, db *database.Database, config *startup.Config) error {
	libs, err := db.ListLibraries(ctx)
	if err != nil {
		return err
	}
	if len(libs) > 0 {
		return nil
	}

	if err := pathtemplate.Validate(config.DefaultLibraryTemplate); err != nil {
		return err
	}
	lib := &database.Library{
		Name:         config.DefaultLibraryName,
		RootPath:     config.DefaultLibraryPath,
		PathTemplate: config.DefaultLibraryTemplate,
	}
	if err := db.CreateLibrary(ctx, lib); err != nil {
		return err
	}
	logging.Info("  [OK] Created default library %q at %s", lib.Name, lib.RootPath)
	return nil
}

func handleShutdown(srv, metricsSrv *http.Server, stopWorkers context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping workers")
	stopWorkers()
	startup.LogShutdownStepComplete("Workers stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
