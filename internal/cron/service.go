package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
)

const defaultTick = time.Minute

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	// Lock is required once any ScopeShared job is registered.
	Lock    Lock
	Metrics *metrics.CronJobMetrics
	// Tick defaults to the shortest registered cadence.
	Tick time.Duration
}

// Service runs due jobs on every tick. Instance jobs run unconditionally;
// shared jobs run only on the replica holding the lock.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	tick     time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	if registry.hasShared() && params.Lock == nil {
		return nil, fmt.Errorf("lock required for shared jobs")
	}
	tick := params.Tick
	if tick <= 0 {
		tick = registry.shortestCadence()
	}
	if tick <= 0 {
		tick = defaultTick
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		tick:     tick,
		now:      time.Now,
	}, nil
}

// Run executes a cycle immediately and then once per tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = s.logg.WithField(ctx, "component", "cron")
	s.cycle(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopped")
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Service) cycle(ctx context.Context) {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	now := s.now()
	slack := s.tick / 2

	for _, entry := range s.registry.due(now, ScopeInstance, slack) {
		s.runJob(ctx, entry, now)
	}

	shared := s.registry.due(now, ScopeShared, slack)
	if len(shared) == 0 {
		return nil
	}
	release, ok, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !ok {
		// left unmarked so the next tick tries again
		for _, entry := range shared {
			s.metrics.IncSkipped(entry.Job.Name())
		}
		s.logg.Info(ctx, "shared jobs held by another instance; skipping")
		return nil
	}
	defer func() {
		if relErr := release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()
	for _, entry := range shared {
		s.runJob(ctx, entry, now)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, entry *scheduled, now time.Time) {
	name := entry.Job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{
		"job":   name,
		"scope": entry.Scope.String(),
		"event": "cron.job",
	})
	entry.lastRun = now

	start := time.Now()
	err := entry.Job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(name, duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(name)
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(name)
}
