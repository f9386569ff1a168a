package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fieldsync/internal/backend"
	"fieldsync/internal/cache"
	"fieldsync/internal/config"
	"fieldsync/internal/database"
	"fieldsync/internal/engine"
	"fieldsync/internal/media"
	"fieldsync/internal/queue"
	"fieldsync/internal/syncer"
	"fieldsync/internal/upload"
)

// App is the application layer between the CLI and the engine service.
// It constructs all dependencies from config and manages the database and
// sync coordinator lifecycle on Close.
type App struct {
	cfg     *config.Config
	db      *sql.DB
	service *engine.Service
	coord   *syncer.Coordinator
	logFile *os.File
}

// NewApp creates a fully wired App from the given config. The caller must
// call Close when done. The sync coordinator is constructed but not
// started; call StartSync to begin background probing.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, logFile, err := newLogger(cfg.LogDir, cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	closeOnFail := func(db *sql.DB) {
		if db != nil {
			db.Close()
		}
		logFile.Close()
	}

	clock := engine.RealClock{}
	idgen := engine.UUIDGenerator{}

	var (
		db    *sql.DB
		store queue.Store
		snaps engine.SnapshotCache
		blobs engine.BlobStore
	)
	ttl := time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour

	switch cfg.Database.Type {
	case "", "sqlite":
		dbPath := filepath.Join(cfg.Database.DataDir, "fieldsync.db")
		db, err = database.Open(dbPath)
		if err != nil {
			closeOnFail(nil)
			return nil, fmt.Errorf("opening database: %w", err)
		}
		store = queue.NewSQLiteStore(db)
		snaps = cache.NewSQLiteCache(db, ttl, clock)
		blobDir := cfg.Media.BlobDir
		if blobDir == "" {
			blobDir = filepath.Join(cfg.BaseDir, "media")
		}
		blobs, err = media.NewFileSystemBlobStore(blobDir)
		if err != nil {
			closeOnFail(db)
			return nil, fmt.Errorf("creating blob store: %w", err)
		}
	case "memory":
		store = queue.NewMemoryStore()
		snaps = cache.NewMemoryCache(ttl, clock)
		blobs = media.NewMemoryBlobStore()
	default:
		closeOnFail(nil)
		return nil, fmt.Errorf("unknown database type: %s", cfg.Database.Type)
	}

	client := backend.NewClient(
		cfg.Backend.BaseURL,
		cfg.Backend.Token,
		time.Duration(cfg.Backend.TimeoutSeconds)*time.Second,
	)

	uploader, err := upload.NewUploaderFromConfig(ctx, cfg.Media, client, idgen, clock)
	if err != nil {
		closeOnFail(db)
		return nil, fmt.Errorf("creating uploader: %w", err)
	}

	policy := queue.Policy{MaxAttempts: cfg.Queue.MaxAttempts}
	if cfg.Queue.BackoffBaseSeconds > 0 && cfg.Queue.BackoffMaxSeconds > 0 {
		policy.Backoff = queue.ExponentialBackoff(
			time.Duration(cfg.Queue.BackoffBaseSeconds)*time.Second,
			time.Duration(cfg.Queue.BackoffMaxSeconds)*time.Second,
		)
	}
	pending := queue.New(store, policy, clock)

	limits := media.Limits{
		PhotoMaxBytes: cfg.Media.PhotoMaxBytes,
		VideoMaxBytes: cfg.Media.VideoMaxBytes,
	}

	svc := engine.NewService(client, pending, snaps, blobs, uploader, limits, log, clock, idgen)

	interval := time.Duration(cfg.Sync.ProbeIntervalSeconds) * time.Second
	coord := syncer.New(syncer.NewHTTPProbe(client), svc, log, interval)
	svc.SetOnlineCheck(coord.Online)

	return &App{
		cfg:     cfg,
		db:      db,
		service: svc,
		coord:   coord,
		logFile: logFile,
	}, nil
}

// Service exposes the engine for CLI commands.
func (a *App) Service() *engine.Service {
	return a.service
}

// StartSync begins connectivity probing. The initial probe runs before it
// returns, so the service sees a settled online state.
func (a *App) StartSync(ctx context.Context) {
	a.coord.Start(ctx)
}

// Sync forces one connectivity check, flushing the queue and refreshing
// tracked jobs if the check comes back online.
func (a *App) Sync(ctx context.Context) bool {
	return a.coord.Check(ctx)
}

// Online reports the last observed connectivity state.
func (a *App) Online() bool {
	return a.coord.Online()
}

// Close stops the coordinator and closes all resources.
func (a *App) Close() error {
	var firstErr error

	a.coord.Stop()

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
