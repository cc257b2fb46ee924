package storefront

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/tourbook-backend/internal/cart"
	"github.com/angelmondragon/tourbook-backend/internal/selection"
)

// Workspace is one shopper's storefront state: a single cart and at most one
// ticket-selection session per tour.
type Workspace struct {
	ID   string
	Cart *cart.Store

	lastSeen atomic.Int64

	mu       sync.Mutex
	sessions map[string]*selection.Session

	// persistMu orders snapshot writes so an older cart never overwrites a newer one.
	persistMu sync.Mutex
	// evicted is guarded by persistMu. An evicted workspace no longer owns its snapshot.
	evicted bool
}

func newWorkspace(id string, store *cart.Store, now time.Time) *Workspace {
	ws := &Workspace{
		ID:       id,
		Cart:     store,
		sessions: make(map[string]*selection.Session),
	}
	ws.touch(now)
	return ws
}

// LastSeen is the time of the most recent request for the workspace.
func (w *Workspace) LastSeen() time.Time {
	return time.Unix(0, w.lastSeen.Load()).UTC()
}

func (w *Workspace) touch(now time.Time) {
	w.lastSeen.Store(now.UnixNano())
}

func (w *Workspace) session(tourID string) (*selection.Session, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.sessions[tourID]
	return s, ok
}

// adoptSession stores s unless another request opened a session for the
// same tour first, in which case the existing one wins.
func (w *Workspace) adoptSession(tourID string, s *selection.Session) *selection.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	if existing, ok := w.sessions[tourID]; ok {
		return existing
	}
	w.sessions[tourID] = s
	return s
}
