// Package app is the composition root. Open runs the explicit
// initialization phase: storage, the settings store, the one-shot legacy
// migration and the optional startup agent detection, in that order.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/soyeahso/enso/internal/config"
	"github.com/soyeahso/enso/internal/db"
	"github.com/soyeahso/enso/internal/detect"
	"github.com/soyeahso/enso/internal/gateway"
	"github.com/soyeahso/enso/internal/hooks"
	"github.com/soyeahso/enso/internal/legacy"
	"github.com/soyeahso/enso/internal/logging"
	"github.com/soyeahso/enso/internal/migrate"
	"github.com/soyeahso/enso/internal/settings"
	"github.com/soyeahso/enso/internal/storage"
	"github.com/soyeahso/enso/internal/store"
	"github.com/soyeahso/enso/internal/todo"
)

// App holds every long-lived component of a running engine.
type App struct {
	Config config.Config
	Paths  config.Paths
	Log    *logging.Logger

	DB       *db.DB
	Backend  storage.Backend
	Settings *storage.Adapter
	Hooks    *hooks.Manager
	Queue    *hooks.Queue
	Store    *store.Store
	Todos    *todo.Service
	Detector *detect.Detector

	Report migrate.Report
	Legacy legacy.Result

	cancel context.CancelFunc
	done   chan struct{}
}

// Option adjusts Open.
type Option func(*options)

type options struct {
	runner     detect.Runner
	skipLegacy bool
	detect     *bool
}

// WithRunner replaces the process runner used by agent detection.
func WithRunner(r detect.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithoutLegacyMigration skips the one-shot legacy todo import.
func WithoutLegacyMigration() Option {
	return func(o *options) { o.skipLegacy = true }
}

// WithStartupDetection overrides detect.onStartup from the config.
func WithStartupDetection(enabled bool) Option {
	return func(o *options) { o.detect = &enabled }
}

// NewLogger builds the root logger described by cfg. When a log file is
// configured the returned closer must be closed on shutdown.
func NewLogger(cfg config.LoggingConfig) (*logging.Logger, io.Closer, error) {
	if cfg.File == "" {
		return logging.NewStyled(nil, cfg.Level, cfg.ConsoleStyle), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return logging.NewStyled(f, cfg.Level, logging.StyleJSON), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenBackend opens the settings storage backend selected by cfg. The
// returned database is nil unless the sqlite backend was chosen.
func OpenBackend(cfg config.Config, paths config.Paths, log *logging.Logger) (storage.Backend, *db.DB, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		database, err := db.Open(cfg.DatabaseFile(paths), log)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewSQLiteBackend(database), database, nil
	case "memory":
		return storage.NewMemoryBackend(), nil, nil
	case "file", "":
		return storage.NewFileBackend(cfg.SettingsFile(paths)), nil, nil
	default:
		return nil, nil, &config.ConfigError{Message: "unknown storage backend: " + cfg.Storage.Backend}
	}
}

// Open wires and initializes the engine. The settings store is Ready when
// Open returns. Close must be called to flush pending writes.
func Open(ctx context.Context, cfg config.Config, paths config.Paths, log *logging.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating directories: %w", err)
	}

	a := &App{Config: cfg, Paths: paths, Log: log}

	backend, database, err := OpenBackend(cfg, paths, log)
	if err != nil {
		return nil, err
	}
	a.Backend = backend

	// the todo service always needs sql, even when settings live elsewhere
	if database == nil {
		dbPath := cfg.DatabaseFile(paths)
		if cfg.Storage.Backend == "memory" {
			dbPath = ":memory:"
		}
		database, err = db.Open(dbPath, log)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}
	a.DB = database
	a.Todos = todo.NewService(database, log)

	a.Hooks = hooks.NewManager(log)
	a.Queue = hooks.NewQueue(a.Hooks, log, 0)
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		a.Queue.Run(runCtx)
	}()

	a.Settings = storage.NewAdapter(backend, cfg.Storage.Key)
	a.Store = store.New(a.Settings, a.Queue, log, store.WithPlatform(cfg.Platform))
	a.Report, err = a.Store.Init(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("initializing settings: %w", err)
	}
	log.Info().
		Str("backend", cfg.Storage.Backend).
		Bool("firstRun", a.Report.FirstRun).
		Int("legacyKeys", len(a.Report.LegacyKeys)).
		Int("repairs", len(a.Report.Repairs)).
		Msg("settings ready")

	if !o.skipLegacy {
		a.Legacy = a.MigrateLegacyTodos(ctx)
	}

	a.Detector = detect.New(o.runner, log,
		detect.WithTimeout(cfg.Detect.Timeout()),
		detect.WithConcurrency(cfg.Detect.Concurrency),
	)
	runDetect := cfg.Detect.OnStartup
	if o.detect != nil {
		runDetect = *o.detect
	}
	if runDetect {
		a.DetectAgents(ctx)
	}

	return a, nil
}

// MigrateLegacyTodos runs the one-shot legacy todo import and publishes
// its result.
func (a *App) MigrateLegacyTodos(ctx context.Context) legacy.Result {
	src := storage.NewAdapter(a.Backend, legacy.TodosKey)
	res := legacy.MigrateTodos(ctx, src, a.Todos, a.Log)
	if res.Status != legacy.StatusSkipped {
		a.Queue.Enqueue(hooks.EventLegacyTodosMigrate, res.Payload())
	}
	return res
}

// DetectAgents probes every configured agent CLI, records the results in
// the store and publishes them.
func (a *App) DetectAgents(ctx context.Context) map[string]settings.AgentDetectionInfo {
	results := a.Detector.Refresh(ctx, a.Store.Snapshot(), a.Store)
	a.Queue.Enqueue(hooks.EventAgentsDetected, map[string]any{"agents": results})
	return results
}

// Gateway builds the host bridge over the store and hook manager.
func (a *App) Gateway() *gateway.Server {
	return gateway.New(a.Config.Gateway, a.Store, a.Log,
		gateway.WithHooks(a.Hooks),
		gateway.WithDetector(a.Detector),
	)
}

// Close flushes settings, delivers queued events and releases storage.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing settings: %w", err))
		}
	}
	if a.Queue != nil {
		if err := a.Queue.Drain(ctx); err != nil {
			errs = append(errs, fmt.Errorf("draining events: %w", err))
		}
	}
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
	if a.Backend != nil {
		if err := a.Backend.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	// the sqlite backend does not own its database
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
