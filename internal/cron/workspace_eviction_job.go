package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

const defaultWorkspaceIdleTTL = 2 * time.Hour

type WorkspaceEvictionJobParams struct {
	Logger   *logger.Logger
	Registry workspaceEvictor
	IdleTTL  time.Duration
}

type workspaceEvictor interface {
	Evict(ctx context.Context, idleFor time.Duration) int
	Count() int
}

// NewWorkspaceEvictionJob drops storefront workspaces nobody touched within
// IdleTTL from process memory.
func NewWorkspaceEvictionJob(params WorkspaceEvictionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("workspace registry required")
	}
	idle := params.IdleTTL
	if idle <= 0 {
		idle = defaultWorkspaceIdleTTL
	}
	return &workspaceEvictionJob{
		logg:     params.Logger,
		registry: params.Registry,
		idle:     idle,
	}, nil
}

type workspaceEvictionJob struct {
	logg     *logger.Logger
	registry workspaceEvictor
	idle     time.Duration
}

func (j *workspaceEvictionJob) Name() string { return "workspace-eviction" }

func (j *workspaceEvictionJob) Run(ctx context.Context) error {
	evicted := j.registry.Evict(ctx, j.idle)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"idle_ttl":  j.idle.String(),
		"evicted":   evicted,
		"remaining": j.registry.Count(),
	})
	j.logg.Info(logCtx, "workspace eviction complete")
	return nil
}
