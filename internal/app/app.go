// Package app wires the storage janitor together: the registration store,
// the volume backend, the cleanup scheduler, label discovery, and the HTTP
// control plane. It owns component lifecycle and graceful shutdown.
package app

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"storman/internal/api"
	"storman/internal/config"
	"storman/internal/discovery"
	"storman/internal/docker"
	"storman/internal/logger"
	"storman/internal/resolver"
	"storman/internal/scheduler"
	"storman/internal/store"
)

const shutdownTimeout = 10 * time.Second

// App is the assembled service.
type App struct {
	config *config.Config
	logger *logger.Logger

	store  *store.Store
	engine *docker.EngineClient
	sched  *scheduler.Scheduler
	syncer *discovery.Syncer
	server *http.Server

	mu      sync.Mutex
	started bool
}

// New creates an App from validated configuration. Components are built in
// Initialize.
func New(cfg *config.Config, log *logger.Logger) *App {
	return &App{
		config: cfg,
		logger: log,
	}
}

// Initialize builds every component. An unreachable container engine is not
// fatal: the control plane and store keep working, registrations simply stay
// unresolved until the engine comes back.
func (a *App) Initialize() error {
	st, err := store.Open(a.config.Storage.DBPath)
	if err != nil {
		return err
	}
	a.store = st

	engine, err := docker.New()
	if err != nil {
		a.logger.Warn("container engine unavailable, volume resolution disabled",
			logger.Field{Key: "error", Value: err.Error()},
		)
	} else {
		a.engine = engine
	}

	var metrics *scheduler.Metrics
	if a.config.Metrics.Enabled {
		metrics = scheduler.InitMetrics(a.config.Metrics.Namespace, nil)
	}

	var inspector resolver.VolumeInspector
	if a.engine != nil {
		inspector = a.engine
	}
	interval := time.Duration(a.config.Storage.CheckIntervalSeconds) * time.Second
	a.sched = scheduler.New(a.store, resolver.New(inspector), interval, a.logger, metrics)

	if a.config.Discovery.Enabled && a.engine != nil {
		a.syncer = discovery.NewSyncer(a.engine, a.store, a.logger)
	}

	var lister api.VolumeLister
	if a.engine != nil {
		lister = a.engine
	}
	handler := api.NewHandler(a.store, lister, a.sched, a.logger)

	a.server = &http.Server{
		Addr:              net.JoinHostPort(a.config.API.Host, strconv.Itoa(a.config.API.Port)),
		Handler:           api.NewRouter(handler, a.logger, a.config.Metrics.Enabled),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return nil
}

// Run starts the scheduler, discovery, and the HTTP server, then blocks
// until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.mu.Unlock()

	a.sched.Start(ctx)

	if a.syncer != nil {
		if count, err := a.syncer.SyncOnce(ctx); err != nil {
			a.logger.Warn("startup label discovery failed",
				logger.Field{Key: "error", Value: err.Error()},
			)
		} else {
			a.logger.Info("startup label discovery complete",
				logger.Field{Key: "registrations", Value: count},
			)
		}
		if err := a.syncer.Start(ctx, a.config.Discovery.SyncSchedule); err != nil {
			a.logger.Error("failed to schedule label discovery", err,
				logger.Field{Key: "schedule", Value: a.config.Discovery.SyncSchedule},
			)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("control plane listening",
			logger.Field{Key: "addr", Value: a.server.Addr},
		)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown requested")
		return a.Shutdown()
	case err := <-errCh:
		a.logger.Error("control plane failed", err)
		_ = a.Shutdown()
		return err
	}
}

// Shutdown stops components in reverse start order.
func (a *App) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var firstErr error
	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("control plane shutdown failed", err)
			firstErr = err
		}
	}

	if a.syncer != nil {
		a.syncer.Stop()
	}
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.engine != nil {
		if err := a.engine.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	a.logger.Info("shutdown complete")
	return firstErr
}
