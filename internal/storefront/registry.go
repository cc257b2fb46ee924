package storefront

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/tourbook-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/angelmondragon/tourbook-backend/pkg/redis"
	"github.com/google/uuid"
)

const defaultSnapshotTTL = 7 * 24 * time.Hour

// Registry owns the live workspaces of this process.
type Registry interface {
	Create(ctx context.Context) (*Workspace, error)
	Get(ctx context.Context, id string) (*Workspace, error)
	Persist(ctx context.Context, ws *Workspace) error
	Evict(ctx context.Context, idleFor time.Duration) int
	Count() int
}

// RegistryParams configure NewRegistry.
type RegistryParams struct {
	Snapshots   redis.CartSnapshotStore
	Logger      *logger.Logger
	Metrics     *metrics.StorefrontMetrics
	Location    *time.Location
	SnapshotTTL time.Duration
	Clock       func() time.Time
}

type registry struct {
	snapshots   redis.CartSnapshotStore
	logg        *logger.Logger
	metrics     *metrics.StorefrontMetrics
	location    *time.Location
	snapshotTTL time.Duration
	now         func() time.Time

	mu         sync.RWMutex
	workspaces map[string]*Workspace
}

// NewRegistry builds an in-memory registry whose carts are mirrored to the
// snapshot store.
func NewRegistry(params RegistryParams) (Registry, error) {
	if params.Snapshots == nil {
		return nil, fmt.Errorf("cart snapshot store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	ttl := params.SnapshotTTL
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &registry{
		snapshots:   params.Snapshots,
		logg:        params.Logger,
		metrics:     params.Metrics,
		location:    loc,
		snapshotTTL: ttl,
		now:         clock,
		workspaces:  make(map[string]*Workspace),
	}, nil
}

func (r *registry) newStore() *cart.Store {
	return cart.NewStore(
		cart.WithClock(r.now),
		cart.WithLocation(r.location),
		cart.WithChangeListener(r.metrics.IncCartMutation),
	)
}

func (r *registry) Create(ctx context.Context) (*Workspace, error) {
	ws := newWorkspace(uuid.NewString(), r.newStore(), r.now())

	r.mu.Lock()
	r.workspaces[ws.ID] = ws
	count := len(r.workspaces)
	r.mu.Unlock()

	r.metrics.SetWorkspaces(count)
	r.logg.Info(r.logg.WithSessionID(ctx, ws.ID), "storefront session created")
	return ws, nil
}

// Get returns the live workspace, rebuilding it from its cart snapshot when
// this process has not seen it yet. A valid id with no snapshot yields an
// empty workspace.
func (r *registry) Get(ctx context.Context, id string) (*Workspace, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "storefront session not found")
	}

	// touch under the read lock so Evict cannot drop a workspace being handed out
	r.mu.RLock()
	ws, ok := r.workspaces[id]
	if ok {
		ws.touch(r.now())
	}
	r.mu.RUnlock()
	if ok {
		return ws, nil
	}

	restored, err := r.restore(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.workspaces[id]; ok {
		existing.touch(r.now())
		r.mu.Unlock()
		return existing, nil
	}
	r.workspaces[id] = restored
	count := len(r.workspaces)
	r.mu.Unlock()

	r.metrics.SetWorkspaces(count)
	return restored, nil
}

func (r *registry) restore(ctx context.Context, id string) (*Workspace, error) {
	ws := newWorkspace(id, r.newStore(), r.now())
	ctx = r.logg.WithSessionID(ctx, id)

	payload, err := r.snapshots.LoadCartSnapshot(ctx, id)
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return ws, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart snapshot")
	}
	if err := ws.Cart.UnmarshalSnapshot(payload); err != nil {
		// unreadable snapshots are dropped and the shopper starts with an empty cart
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "discarding unreadable cart snapshot")
		return ws, nil
	}
	r.logg.Info(r.logg.WithField(ctx, "lines", ws.Cart.Len()), "cart restored from snapshot")
	return ws, nil
}

// Persist writes the cart snapshot of ws. A workspace evicted while a
// request still held it is skipped, since a newer workspace may already
// own the snapshot.
func (r *registry) Persist(ctx context.Context, ws *Workspace) error {
	if ws == nil {
		return nil
	}
	ws.persistMu.Lock()
	defer ws.persistMu.Unlock()

	if ws.evicted {
		r.logg.Warn(r.logg.WithSessionID(ctx, ws.ID), "skipping snapshot of evicted storefront session")
		return nil
	}

	payload, err := ws.Cart.MarshalSnapshot()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart snapshot")
	}
	if err := r.snapshots.SaveCartSnapshot(ctx, ws.ID, payload, r.snapshotTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart snapshot")
	}
	return nil
}

// Evict drops workspaces idle for at least idleFor. Their snapshots stay in
// redis, so a returning shopper gets the cart back. A workspace with a
// snapshot write in flight is still in use and is kept.
func (r *registry) Evict(ctx context.Context, idleFor time.Duration) int {
	cutoff := r.now().Add(-idleFor)

	r.mu.Lock()
	evicted := 0
	for id, ws := range r.workspaces {
		if ws.LastSeen().After(cutoff) {
			continue
		}
		if !ws.persistMu.TryLock() {
			continue
		}
		ws.evicted = true
		ws.persistMu.Unlock()
		delete(r.workspaces, id)
		evicted++
	}
	count := len(r.workspaces)
	r.mu.Unlock()

	r.metrics.SetWorkspaces(count)
	if evicted > 0 {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{"evicted": evicted, "remaining": count}), "idle storefront sessions evicted")
	}
	return evicted
}

func (r *registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workspaces)
}
