// Package scheduler drives periodic cleanup of registered targets. Every
// interval it snapshots the registration store, resolves each target and
// applies its policy. Failures are contained per registration: one broken
// target never stops the rest of the tick, and nothing thrown during a tick
// can take the process down.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"storman/internal/algorithms"
	"storman/internal/logger"
	"storman/internal/store"
)

// DefaultInterval is used when no check interval is configured.
const DefaultInterval = 300 * time.Second

// TargetResolver maps a registration onto its concrete filesystem path.
type TargetResolver interface {
	Resolve(ctx context.Context, volumeName, relativePath string) (string, error)
}

// Scheduler periodically evaluates every registration in the store.
type Scheduler struct {
	store    *store.Store
	resolver TargetResolver
	interval time.Duration
	logger   *logger.Logger
	metrics  *Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc

	// tickMu is the non-overlap guard: a tick still in flight when the
	// timer fires again causes the new tick to be skipped.
	tickMu sync.Mutex
}

// New creates a scheduler. metrics may be nil.
func New(st *store.Store, res TargetResolver, interval time.Duration, log *logger.Logger, metrics *Metrics) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		store:    st,
		resolver: res,
		interval: interval,
		logger:   log,
		metrics:  metrics,
	}
}

// Start begins periodic evaluation. Starting an already-running scheduler is
// a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.metrics.SetRunning(true)

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce(runCtx)
			case <-runCtx.Done():
				s.logger.Info("cleanup scheduler stopped")
				return
			}
		}
	}()

	s.logger.Info("cleanup scheduler started",
		logger.Field{Key: "interval", Value: s.interval.String()})
}

// Stop halts periodic evaluation. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()
	s.running = false
	s.metrics.SetRunning(false)
}

// IsRunning reports whether the periodic timer is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunOnce evaluates a snapshot of every current registration. If a previous
// tick is still in flight the call returns immediately.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.tickMu.TryLock() {
		s.logger.Warn("previous cleanup tick still running, skipping")
		s.metrics.RecordSkippedTick()
		return
	}
	defer s.tickMu.Unlock()

	started := time.Now()
	log := s.logger.With(logger.Field{Key: "run_id", Value: uuid.NewString()})

	registrations, err := s.store.List(ctx)
	if err != nil {
		log.Error("failed to load registrations for tick", err)
		return
	}

	for _, reg := range registrations {
		s.evaluate(ctx, log, reg)
	}

	s.metrics.RecordTick(time.Since(started).Seconds())
	log.Debug("cleanup tick finished",
		logger.Field{Key: "registrations", Value: len(registrations)},
		logger.Field{Key: "duration_ms", Value: time.Since(started).Milliseconds()})
}

// evaluate runs a single registration through its policy. All failures are
// logged and absorbed here so the remaining registrations still run.
func (s *Scheduler) evaluate(ctx context.Context, log *logger.Logger, reg store.Registration) {
	target := log.With(
		logger.Field{Key: "volume", Value: reg.VolumeName},
		logger.Field{Key: "path", Value: reg.Path})

	defer func() {
		if r := recover(); r != nil {
			target.Warn("cleanup panicked for registration",
				logger.Field{Key: "panic", Value: r})
			s.metrics.RecordOutcome(OutcomeError)
		}
	}()

	alg, ok := algorithms.Lookup(reg.Algorithm)
	if !ok {
		target.Warn("unknown cleanup algorithm, skipping registration",
			logger.Field{Key: "algorithm", Value: reg.Algorithm})
		s.metrics.RecordOutcome(OutcomeUnknownAlgorithm)
		return
	}

	targetPath, err := s.resolver.Resolve(ctx, reg.VolumeName, reg.Path)
	if err != nil {
		target.Warn("target not resolvable this tick",
			logger.Field{Key: "reason", Value: err.Error()})
		s.metrics.RecordOutcome(OutcomeUnresolved)
		return
	}

	should, err := alg.ShouldClean(targetPath, reg.Params)
	if err != nil {
		target.Error("cleanup evaluation failed", err,
			logger.Field{Key: "algorithm", Value: reg.Algorithm})
		s.metrics.RecordOutcome(OutcomeError)
		return
	}
	if !should {
		s.metrics.RecordOutcome(OutcomeCompliant)
		return
	}

	result, err := alg.Clean(targetPath, reg.Params)
	if err != nil {
		target.Error("cleanup failed", err,
			logger.Field{Key: "algorithm", Value: reg.Algorithm})
		s.metrics.RecordOutcome(OutcomeError)
		return
	}

	if err := s.store.MarkRunResult(ctx, reg.VolumeName, reg.Path, result.FilesRemoved); err != nil {
		target.Error("failed to persist cleanup result", err)
	}

	s.metrics.RecordOutcome(OutcomeCleaned)
	s.metrics.RecordCleanup(result)
	target.Info("cleanup completed",
		logger.Field{Key: "algorithm", Value: reg.Algorithm},
		logger.Field{Key: "files_removed", Value: result.FilesRemoved},
		logger.Field{Key: "bytes_freed", Value: result.BytesFreed})
}
