package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeLock struct {
	held     bool
	acquires int
	releases int
}

func (f *fakeLock) Acquire(context.Context) (func(context.Context) error, bool, error) {
	f.acquires++
	if f.held {
		return nil, false, nil
	}
	f.held = true
	return func(context.Context) error {
		f.held = false
		f.releases++
		return nil
	}, true, nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, lock Lock, entries ...Entry) *Service {
	t.Helper()
	registry := NewRegistry()
	for _, entry := range entries {
		if err := registry.Register(entry); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: registry, Lock: lock})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestServiceRunsEveryDueJobEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "success"}
	bad := &testJob{name: "fail", err: errors.New("boom")}
	service := newTestService(t, &fakeLock{},
		Entry{Job: ok, Every: time.Minute},
		Entry{Job: bad, Every: time.Minute},
	)
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if ok.runs != 1 || bad.runs != 1 {
		t.Fatalf("expected both jobs once, got %d and %d", ok.runs, bad.runs)
	}
}

func TestServiceInstanceJobsIgnoreLock(t *testing.T) {
	eviction := &testJob{name: "workspace-eviction"}
	retention := &testJob{name: "receipt-retention"}
	lock := &fakeLock{held: true}
	reg := prometheus.NewRegistry()
	registry := NewRegistry()
	_ = registry.Register(Entry{Job: eviction, Every: 10 * time.Minute, Scope: ScopeInstance})
	_ = registry.Register(Entry{Job: retention, Every: 24 * time.Hour, Scope: ScopeShared})
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if eviction.runs != 1 {
		t.Fatalf("instance job must run while the lock is held elsewhere, ran %d", eviction.runs)
	}
	if retention.runs != 0 {
		t.Fatalf("shared job must skip while the lock is held elsewhere, ran %d", retention.runs)
	}

	// lock frees up: the skipped shared job is still due on the next tick
	lock.held = false
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if retention.runs != 1 || lock.releases != 1 {
		t.Fatalf("expected retention once and one release, got runs=%d releases=%d", retention.runs, lock.releases)
	}
	if service.tick != 10*time.Minute {
		t.Fatalf("expected tick from shortest cadence, got %s", service.tick)
	}
}

func TestServiceWaitsForCadence(t *testing.T) {
	job := &testJob{name: "workspace-eviction"}
	lock := &fakeLock{}
	service := newTestService(t, lock, Entry{Job: job, Every: 10 * time.Minute})
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	_ = service.runCycle(context.Background())
	now = now.Add(2 * time.Minute)
	_ = service.runCycle(context.Background())
	if job.runs != 1 {
		t.Fatalf("expected a single run inside the cadence, got %d", job.runs)
	}
	now = now.Add(8 * time.Minute)
	_ = service.runCycle(context.Background())
	if job.runs != 2 {
		t.Fatalf("expected a second run after the cadence, got %d", job.runs)
	}
	if lock.acquires != 0 {
		t.Fatalf("instance-only cycles must not touch the lock, got %d acquires", lock.acquires)
	}
}

func TestNewServiceRequiresLockForSharedJobs(t *testing.T) {
	registry := NewRegistry()
	_ = registry.Register(Entry{Job: &testJob{name: "receipt-retention"}, Every: time.Hour, Scope: ScopeShared})
	if _, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: registry}); err == nil {
		t.Fatal("expected lock error")
	}
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected logger error")
	}
	service, err := NewService(ServiceParams{Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("empty registry: %v", err)
	}
	if service.tick != defaultTick {
		t.Fatalf("expected default tick, got %s", service.tick)
	}
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "workspace-eviction"}
	service := newTestService(t, nil, Entry{Job: job, Every: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected the initial cycle to run, got %d", job.runs)
	}
}
