package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/noot-app/recipebox/internal/auth"
	"github.com/noot-app/recipebox/internal/backend"
	"github.com/noot-app/recipebox/internal/config"
	"github.com/noot-app/recipebox/internal/dataset"
	"github.com/noot-app/recipebox/internal/draft"
	"github.com/noot-app/recipebox/internal/nutrition"
	"github.com/noot-app/recipebox/internal/query"
	"github.com/noot-app/recipebox/internal/session"
	"github.com/noot-app/recipebox/internal/telemetry"
)

// HealthChecker reports whether the recipe backend is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Runtime is everything a transport needs to serve one recipe session
type Runtime struct {
	Session *session.Session
	Health  HealthChecker

	engine query.IngredientEngine
	log    *slog.Logger
}

// Close flushes the draft and releases storage and the lookup engine
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if err := r.Session.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.engine != nil {
		if err := r.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close ingredient engine: %w", err))
		}
	}
	r.log.Info("Runtime closed")
	return errors.Join(errs...)
}

// Initializer handles the startup shared by every transport
type Initializer struct {
	config      *config.Config
	log         *slog.Logger
	dataManager *dataset.Manager
}

// NewInitializer creates a new initializer
func NewInitializer(cfg *config.Config, logger *slog.Logger) *Initializer {
	return &Initializer{
		config:      cfg,
		log:         logger,
		dataManager: dataset.NewManager(cfg, config.Component(logger, "dataset")),
	}
}

// Initialize builds the backend, the nutrition lookup and the draft storage
// selected by configuration, then starts a session over them. A backend that
// cannot list recipes at startup is logged, not fatal.
func (i *Initializer) Initialize(ctx context.Context) (*Runtime, error) {
	start := time.Now()
	i.log.Info("Initializing recipebox...", "nutrition_source", i.config.NutritionSource)

	if i.config.IsDevelopment() {
		i.log.Warn("🚧 DEVELOPMENT MODE ENABLED 🚧",
			"environment", i.config.Environment,
			"note", "Detailed error messages will be returned to clients")
	}

	if err := os.MkdirAll(filepath.Dir(i.config.DraftDBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create draft directory: %w", err)
	}
	storage, err := draft.OpenSQLite(i.config.DraftDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open draft storage: %w", err)
	}

	rt, err := i.build(ctx, storage)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}

	if err := rt.Session.Start(ctx); err != nil {
		i.log.Warn("Starting with an empty recipe list", "error", err)
	}

	i.log.Info("Recipebox initialized successfully", "duration", time.Since(start))
	return rt, nil
}

func (i *Initializer) build(ctx context.Context, storage draft.Storage) (*Runtime, error) {
	opts := session.Options{
		Storage:          storage,
		Concurrency:      i.config.LookupConcurrency,
		AutosaveInterval: i.config.AutosaveInterval(),
	}
	rt := &Runtime{log: i.log}

	switch i.config.NutritionSource {
	case config.SourceMock:
		mock := backend.NewMockBackend()
		engine := query.NewMockEngine(config.Component(i.log, "query"))
		opts.Backend = mock
		opts.Lookup = engine
		rt.Health = mock
		rt.engine = engine
		i.log.Warn("Using in-memory mock backend; nothing is persisted remotely")

	case config.SourceParquet:
		client := i.newBackendClient()
		engine, err := i.openEngine(ctx)
		if err != nil {
			return nil, err
		}
		opts.Backend = client
		opts.Lookup = engine
		rt.Health = client
		rt.engine = engine
		i.startRefreshLoop(ctx)

	default:
		client := i.newBackendClient()
		opts.Backend = client
		opts.Lookup = client
		rt.Health = client
	}

	opts.Backend = telemetry.WrapBackend(opts.Backend)
	opts.Lookup = telemetry.WrapLookup(opts.Lookup)
	rt.Session = session.New(opts, i.log)
	return rt, nil
}

func (i *Initializer) newBackendClient() *backend.Client {
	return backend.NewClient(
		i.config.BackendURL,
		config.Component(i.log, "backend"),
		backend.WithHTTPClient(&http.Client{Timeout: i.config.BackendTimeout()}),
		backend.WithCredentials(auth.BasicCredentials{
			User:     i.config.IngredientAPIUser,
			Password: i.config.IngredientAPIPassword,
		}),
		backend.WithRetry(i.config.BackendRetryMaxElapsed()),
	)
}

func (i *Initializer) openEngine(ctx context.Context) (query.IngredientEngine, error) {
	if err := i.dataManager.EnsureDataset(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure dataset: %w", err)
	}

	engine, err := query.NewIngredientEngine(i.config, config.Component(i.log, "query"))
	if err != nil {
		return nil, fmt.Errorf("failed to create ingredient engine: %w", err)
	}

	if err := engine.TestConnection(ctx); err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("failed to test connection: %w", err)
	}
	return engine, nil
}

// RefreshDataset downloads or updates the parquet dataset
func (i *Initializer) RefreshDataset(ctx context.Context) error {
	return i.dataManager.EnsureDataset(ctx)
}

// startRefreshLoop re-checks the dataset in the background until ctx is done.
// The engine reads the parquet file on every query, so a refreshed file is
// picked up without reopening it.
func (i *Initializer) startRefreshLoop(ctx context.Context) {
	interval := i.config.RefreshInterval()
	if interval <= 0 {
		return
	}
	i.log.Info("Starting refresh loop", "interval", interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				i.log.Info("Refresh loop stopping due to context cancellation")
				return
			case <-ticker.C:
				i.log.Info("Refresh tick: checking dataset")
				if err := i.dataManager.EnsureDataset(ctx); err != nil {
					i.log.Error("Refresh failed", "error", err)
				} else {
					i.log.Info("Refresh completed successfully")
				}
			}
		}
	}()
}

var _ nutrition.Lookup = (*backend.Client)(nil)
