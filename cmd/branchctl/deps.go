package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ardentforge/branchctl/pkg/branch"
	"github.com/ardentforge/branchctl/pkg/config"
	"github.com/ardentforge/branchctl/pkg/logging"
	"github.com/ardentforge/branchctl/pkg/merge"
	"github.com/ardentforge/branchctl/pkg/parallel"
	"github.com/ardentforge/branchctl/pkg/session"
	"github.com/ardentforge/branchctl/pkg/storage"
	"github.com/ardentforge/branchctl/pkg/telemetry"
)

// app bundles the orchestrator's wired subsystems for the lifetime of one
// CLI invocation.
type app struct {
	cfg      *config.Config
	store    *storage.Store
	sessions *session.NativeManager
	registry *merge.Registry
	branches *branch.Manager
	engine   *parallel.Engine
	logger   *logging.Logger
	tracer   *telemetry.TracerProvider
}

// initDependencies loads configuration and constructs every subsystem the
// CLI's subcommands depend on. Callers must call app.Close when done.
func initDependencies() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Dir, session.DefaultSessionID())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.SetMinLevel(logging.Level(cfg.Log.Level))

	store, err := storage.New(cfg.Storage.DSN)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	store.AddObserver(storage.ObserverFunc(func(e storage.Event) {
		_ = logger.Info(logging.CategoryStorage, string(e.Type), "", map[string]any{"entity_id": e.EntityID, "session_id": e.SessionID})
	}))

	sessions, err := session.NewNativeManager(cfg.Session.Root)
	if err != nil {
		store.Close()
		logger.Close()
		return nil, fmt.Errorf("init session manager: %w", err)
	}

	fs := newOSFileSystem()
	registry := merge.NewRegistry(fs)

	branches := branch.NewManager(store, sessions, registry, cfg.Orchestrator.MaxBranches)
	branches.AddObserver(branch.ObserverFunc(func(e branch.Event) {
		_ = logger.Info(logging.CategoryBranch, string(e.Type), "", map[string]any{"branch_id": e.BranchID, "merge_request_id": e.MergeRequestID})
	}))

	dispatcher := newSubprocessDispatcher()
	engine := parallel.NewEngine(branches, dispatcher, cfg.Orchestrator.DefaultTimeout)

	var tracer *telemetry.TracerProvider
	if cfg.Tracing.Enabled {
		tracer, err = telemetry.NewTracerProvider(cfg.Tracing.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
	}

	return &app{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		registry: registry,
		branches: branches,
		engine:   engine,
		logger:   logger,
		tracer:   tracer,
	}, nil
}

func loadConfig() (*config.Config, error) {
	if configPathFlag != "" {
		return config.LoadFromPath(configPathFlag)
	}
	return config.Load()
}

// Close releases every resource initDependencies acquired, in reverse order.
func (a *app) Close() error {
	var errs []error
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.logger.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing dependencies: %v", errs)
	}
	return nil
}

// parseDuration parses a Go duration string, falling back to the
// orchestrator's configured default timeout when s is empty.
func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

func stderrf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
}
