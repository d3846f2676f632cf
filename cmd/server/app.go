package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/wikicite/archiver/internal/api"
	"github.com/wikicite/archiver/internal/archive"
	"github.com/wikicite/archiver/internal/citetemplates"
	"github.com/wikicite/archiver/internal/config"
	"github.com/wikicite/archiver/internal/events"
	"github.com/wikicite/archiver/internal/hub"
	"github.com/wikicite/archiver/internal/platform/logger"
	"github.com/wikicite/archiver/internal/platform/postgres"
	"github.com/wikicite/archiver/internal/service"
	"github.com/wikicite/archiver/internal/store"
	"github.com/wikicite/archiver/internal/task"
	"github.com/wikicite/archiver/internal/wiki"
)

const (
	// migrationsDir is resolved relative to the server's working directory.
	migrationsDir = "migrations"

	dbPingTimeout     = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	httpClientTimeout = 30 * time.Second
)

// application bundles everything that has to be started and stopped
// together: the HTTP server, the background workers, the queues that
// feed them and the event hub behind the websocket streams.
type application struct {
	cfg    *config.Config
	logger *slog.Logger

	server        *http.Server
	analyzeQueue  *task.AnalyzeQueue
	writeQueue    *task.WriteQueue
	analyzeWorker *task.AnalyzeWorker
	writeWorker   *task.WriteWorker
	eventHub      *hub.Hub
	taskService   service.TaskService
}

// run loads configuration, wires the application together and serves
// until an interrupt or termination signal arrives.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	db, err := openDatabase(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}()

	if err := runMigrations(db, log); err != nil {
		return err
	}

	app, err := newApplication(cfg, db, log)
	if err != nil {
		return err
	}

	return app.serve()
}

func openDatabase(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func runMigrations(db *sql.DB, log *slog.Logger) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Info("database migrations applied")
	return nil
}

// newApplication builds the full dependency graph. Construction only;
// nothing is started here.
func newApplication(cfg *config.Config, db *sql.DB, log *slog.Logger) (*application, error) {
	taskStore := postgres.NewPostgresTaskStore(db, log)
	sourceStore := postgres.NewPostgresSourceStore(db, log)
	txRunner := store.NewSQLTxRunner(db)

	httpClient := &http.Client{Timeout: httpClientTimeout}
	wikiClient := wiki.NewMediaWikiClient(cfg.Wiki.APIURL, cfg.Wiki.UserAgent, httpClient, log)
	archiveClient := archive.NewTimetravelClient(cfg.Archive.BaseURL, httpClient, log)
	verifier := archive.NewSnapshotVerifier(httpClient, log)
	registry := citetemplates.NewRegistry()

	emitter := events.NewInMemoryEventEmitter(log)
	analyzeQueue := task.NewAnalyzeQueue(cfg.Worker.AnalyzeQueueSize, log)
	writeQueue := task.NewWriteQueue(cfg.Worker.WriteQueueSize, log)

	taskService, err := service.NewTaskService(
		txRunner,
		taskStore,
		sourceStore,
		wikiClient,
		archiveClient,
		registry,
		analyzeQueue,
		emitter,
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	eventHub := hub.New(log)

	// Handler order matters: the status handler runs first so that by
	// the time hub subscribers see a source event, the derived task
	// transition (if any) has already been emitted too.
	emitter.RegisterHandler(task.NewStatusEventHandler(taskService, writeQueue, log))
	emitter.RegisterHandler(eventHub)

	analyzeWorker := task.NewAnalyzeWorker(
		analyzeQueue,
		verifier,
		taskService,
		cfg.Worker.AnalyzeConcurrency,
		log,
	)
	writeWorker := task.NewWriteWorker(writeQueue, taskService, wikiClient, registry, log)

	taskHandler := api.NewTaskHandler(taskService, log)
	streamHandler := api.NewStreamHandler(taskService, eventHub, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(taskHandler, streamHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &application{
		cfg:           cfg,
		logger:        log,
		server:        server,
		analyzeQueue:  analyzeQueue,
		writeQueue:    writeQueue,
		analyzeWorker: analyzeWorker,
		writeWorker:   writeWorker,
		eventHub:      eventHub,
		taskService:   taskService,
	}, nil
}

// serve starts the workers and the HTTP server, then blocks until a
// shutdown signal arrives and tears everything down in reverse order.
func (a *application) serve() error {
	a.analyzeWorker.Start()
	a.writeWorker.Start()

	// Requeue tasks that finished verification before a restart so
	// their write-back is not lost.
	if err := task.Reconcile(context.Background(), a.taskService, a.writeQueue, a.logger); err != nil {
		a.logger.Error("startup reconciliation failed", "error", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		a.shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown failed", "error", err)
	}

	a.shutdown()
	a.logger.Info("server stopped")
	return nil
}

// shutdown stops accepting new work, then waits for in-flight jobs.
func (a *application) shutdown() {
	a.analyzeQueue.Close()
	a.writeQueue.Close()
	a.analyzeWorker.Stop()
	a.writeWorker.Stop()
	a.eventHub.Close()
}
