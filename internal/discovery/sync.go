package discovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/moby/moby/api/types/container"
	"github.com/robfig/cron/v3"

	"storman/internal/algorithms"
	"storman/internal/logger"
)

// ContainerLister supplies the containers whose labels are scanned.
type ContainerLister interface {
	ListContainers(ctx context.Context) ([]container.Summary, error)
}

// Registrar receives discovered registrations. The registration store
// satisfies this.
type Registrar interface {
	Upsert(ctx context.Context, volumeName, path, algorithm string, params algorithms.Params, description string) error
}

// Syncer scans container labels and upserts the discovered registrations,
// once at startup and periodically on a cron schedule.
type Syncer struct {
	containers ContainerLister
	registrar  Registrar
	logger     *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
}

func NewSyncer(containers ContainerLister, registrar Registrar, log *logger.Logger) *Syncer {
	return &Syncer{
		containers: containers,
		registrar:  registrar,
		logger:     log,
	}
}

// SyncOnce scans all containers and upserts every valid candidate, returning
// how many registrations were written. Individual upsert failures are logged
// and do not fail the sync.
func (s *Syncer) SyncOnce(ctx context.Context) (int, error) {
	containers, err := s.containers.ListContainers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list containers for discovery: %w", err)
	}

	synced := 0
	for _, ctr := range containers {
		for _, candidate := range ParseLabels(ctr.Labels) {
			err := s.registrar.Upsert(ctx, candidate.VolumeName, candidate.Path,
				candidate.Algorithm, candidate.Params, candidate.Description)
			if err != nil {
				s.logger.Error("failed to upsert discovered registration", err,
					logger.Field{Key: "volume", Value: candidate.VolumeName},
					logger.Field{Key: "path", Value: candidate.Path})
				continue
			}
			synced++
		}
	}

	s.logger.Debug("label discovery sync finished",
		logger.Field{Key: "containers", Value: len(containers)},
		logger.Field{Key: "registrations", Value: synced})
	return synced, nil
}

// Start schedules periodic re-syncs. Starting an already-started syncer is a
// no-op.
func (s *Syncer) Start(ctx context.Context, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := s.SyncOnce(ctx); err != nil {
			s.logger.Warn("scheduled label discovery failed",
				logger.Field{Key: "reason", Value: err.Error()})
		}
	})
	if err != nil {
		return fmt.Errorf("invalid discovery sync schedule %q: %w", schedule, err)
	}

	c.Start()
	s.cron = c
	s.started = true
	s.logger.Info("label discovery scheduled",
		logger.Field{Key: "schedule", Value: schedule})
	return nil
}

// Stop cancels periodic re-syncs.
func (s *Syncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.cron.Stop()
	s.started = false
}
