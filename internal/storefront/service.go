package storefront

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/angelmondragon/tourbook-backend/internal/cart"
	"github.com/angelmondragon/tourbook-backend/internal/selection"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	"github.com/angelmondragon/tourbook-backend/pkg/auth"
	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
)

// SessionGrant is returned when a shopper opens a storefront session.
type SessionGrant struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SelectionChange reports whether a selection operation changed anything.
type SelectionChange struct {
	Changed   bool           `json:"changed"`
	Selection selection.View `json:"selection"`
}

// DateSelection is the outcome of choosing a day.
type DateSelection struct {
	Outcome   enums.SelectOutcome `json:"outcome"`
	Selection selection.View      `json:"selection"`
}

// CartChange reports whether a cart operation changed anything.
type CartChange struct {
	Changed bool      `json:"changed"`
	Removed []string  `json:"removed,omitempty"`
	Cart    cart.View `json:"cart"`
}

// Service exposes the storefront operations keyed by session id.
type Service interface {
	StartSession(ctx context.Context) (SessionGrant, error)

	AvailableDates(ctx context.Context, sessionID, tourID string) ([]civil.Date, error)
	Selection(ctx context.Context, sessionID, tourID string) (selection.View, error)
	SelectDate(ctx context.Context, sessionID, tourID string, day civil.Date) (DateSelection, error)
	AdjustQuantity(ctx context.Context, sessionID, tourID, ticketTypeID string, direction enums.QuantityDirection) (SelectionChange, error)
	TogglePackage(ctx context.Context, sessionID, tourID string) (SelectionChange, error)
	Commit(ctx context.Context, sessionID, tourID string) (cart.View, error)
	ClearSelection(ctx context.Context, sessionID, tourID string) (selection.View, error)

	Cart(ctx context.Context, sessionID string) (cart.View, error)
	RemoveLine(ctx context.Context, sessionID, tourScheduleID string) (CartChange, error)
	RemoveSelectedLines(ctx context.Context, sessionID string) (CartChange, error)
	ToggleSelect(ctx context.Context, sessionID, tourScheduleID string, selected bool) (CartChange, error)
	ToggleSelectAll(ctx context.Context, sessionID string, selected bool) (CartChange, error)
	AdjustTicketQuantity(ctx context.Context, sessionID, tourScheduleID, ticketTypeID string, direction enums.QuantityDirection) (CartChange, error)
	SelectForPayment(ctx context.Context, sessionID, tourScheduleID string) (CartChange, error)
	ClearPaymentTarget(ctx context.Context, sessionID string) (CartChange, error)

	// UpdateCart runs fn against the session's cart and persists the result.
	UpdateCart(ctx context.Context, sessionID string, fn func(*cart.Store) error) error
}

// ServiceParams configure NewService.
type ServiceParams struct {
	Registry Registry
	Fetcher  tours.Fetcher
	Logger   *logger.Logger
	Metrics  *metrics.StorefrontMetrics
	Tokens   config.SessionConfig
	Clock    func() time.Time
}

type service struct {
	registry Registry
	fetcher  tours.Fetcher
	logg     *logger.Logger
	metrics  *metrics.StorefrontMetrics
	tokens   config.SessionConfig
	now      func() time.Time
}

// NewService wires the storefront service.
func NewService(params ServiceParams) (Service, error) {
	if params.Registry == nil {
		return nil, fmt.Errorf("workspace registry required")
	}
	if params.Fetcher == nil {
		return nil, fmt.Errorf("tour fetcher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tokens.Secret == "" {
		return nil, fmt.Errorf("session secret required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		registry: params.Registry,
		fetcher:  params.Fetcher,
		logg:     params.Logger,
		metrics:  params.Metrics,
		tokens:   params.Tokens,
		now:      clock,
	}, nil
}

func (s *service) StartSession(ctx context.Context) (SessionGrant, error) {
	ws, err := s.registry.Create(ctx)
	if err != nil {
		return SessionGrant{}, err
	}
	minted, err := auth.MintSessionToken(s.tokens, s.now(), ws.ID)
	if err != nil {
		return SessionGrant{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint session token")
	}
	return SessionGrant{SessionID: ws.ID, Token: minted.Token, ExpiresAt: minted.ExpiresAt}, nil
}

// session returns the workspace's selection session for tourID, opening one
// on first use.
func (s *service) session(ctx context.Context, sessionID, tourID string) (*Workspace, *selection.Session, error) {
	tourID = strings.TrimSpace(tourID)
	if tourID == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "tour id is required")
	}
	ws, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if existing, ok := ws.session(tourID); ok {
		return ws, existing, nil
	}

	tour, err := s.fetcher.FetchTour(ctx, tourID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, nil, err
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "could not load tour")
	}
	opened, err := selection.New(tour, s.fetcher, selection.WithLogger(s.logg), selection.WithMetrics(s.metrics))
	if err != nil {
		return nil, nil, err
	}
	return ws, ws.adoptSession(tourID, opened), nil
}

func (s *service) AvailableDates(ctx context.Context, sessionID, tourID string) ([]civil.Date, error) {
	_, sess, err := s.session(ctx, sessionID, tourID)
	if err != nil {
		return nil, err
	}
	return sess.AvailableDates(ctx)
}

func (s *service) Selection(ctx context.Context, sessionID, tourID string) (selection.View, error) {
	_, sess, err := s.session(ctx, sessionID, tourID)
	if err != nil {
		return selection.View{}, err
	}
	return sess.View(), nil
}

func (s *service) SelectDate(ctx context.Context, sessionID, tourID string, day civil.Date) (DateSelection, error) {
	_, sess, err := s.session(ctx, sessionID, tourID)
	if err != nil {
		return DateSelection{}, err
	}
	outcome, err := sess.SelectDate(ctx, day)
	if err != nil {
		return DateSelection{}, err
	}
	return DateSelection{Outcome: outcome, Selection: sess.View()}, nil
}

func (s *service) AdjustQuantity(ctx context.Context, sessionID, tourID, ticketTypeID string, direction enums.QuantityDirection) (SelectionChange, error) {
	if !direction.IsValid() {
		return SelectionChange{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid direction %q", direction)
	}
	_, sess, err := s.session(ctx, sessionID, tourID)
	if err != nil {
		return SelectionChange{}, err
	}
	changed := sess.AdjustQuantity(ticketTypeID, direction)
	return SelectionChange{Changed: changed, Selection: sess.View()}, nil
}

func (s *service) TogglePackage(ctx context.Context, sessionID, tourID string) (SelectionChange, error) {
	_, sess, err := s.session(ctx, sessionID, tourID)
	if err != nil {
		return SelectionChange{}, err
	}
	sess.TogglePackage()
	return SelectionChange{Changed: true, Selection: sess.View()}, nil
}

func (s *service) Commit(ctx context.Context, sessionID, tourID string) (cart.View, error) {
	ws, sess, err := s.session(ctx, sessionID, tourID)
	if err != nil {
		return cart.View{}, err
	}
	line, err := sess.Commit()
	if err != nil {
		return cart.View{}, err
	}
	if err := ws.Cart.AddOrReplace(line); err != nil {
		return cart.View{}, err
	}
	logCtx := s.logg.WithFields(s.logg.WithSessionID(ctx, ws.ID), map[string]any{
		"tour_id":          line.Tour.ID,
		"tour_schedule_id": line.TourScheduleID,
		"total_price":      line.TotalPrice.StringFixed(2),
	})
	s.logg.Info(logCtx, "selection committed to cart")
	s.persist(ctx, ws)
	return ws.Cart.View(), nil
}

func (s *service) ClearSelection(ctx context.Context, sessionID, tourID string) (selection.View, error) {
	_, sess, err := s.session(ctx, sessionID, tourID)
	if err != nil {
		return selection.View{}, err
	}
	sess.Clear()
	return sess.View(), nil
}

func (s *service) Cart(ctx context.Context, sessionID string) (cart.View, error) {
	ws, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return cart.View{}, err
	}
	return ws.Cart.View(), nil
}

// mutateCart applies fn and persists the cart when fn reports a change.
func (s *service) mutateCart(ctx context.Context, sessionID string, fn func(*cart.Store) (bool, []string)) (CartChange, error) {
	ws, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return CartChange{}, err
	}
	changed, removed := fn(ws.Cart)
	if changed {
		s.persist(ctx, ws)
	}
	return CartChange{Changed: changed, Removed: removed, Cart: ws.Cart.View()}, nil
}

func (s *service) RemoveLine(ctx context.Context, sessionID, tourScheduleID string) (CartChange, error) {
	return s.mutateCart(ctx, sessionID, func(store *cart.Store) (bool, []string) {
		if store.RemoveLine(tourScheduleID) {
			return true, []string{tourScheduleID}
		}
		return false, nil
	})
}

func (s *service) RemoveSelectedLines(ctx context.Context, sessionID string) (CartChange, error) {
	return s.mutateCart(ctx, sessionID, func(store *cart.Store) (bool, []string) {
		removed := store.RemoveSelectedLines()
		return len(removed) > 0, removed
	})
}

func (s *service) ToggleSelect(ctx context.Context, sessionID, tourScheduleID string, selected bool) (CartChange, error) {
	return s.mutateCart(ctx, sessionID, func(store *cart.Store) (bool, []string) {
		return store.ToggleSelect(tourScheduleID, selected), nil
	})
}

func (s *service) ToggleSelectAll(ctx context.Context, sessionID string, selected bool) (CartChange, error) {
	return s.mutateCart(ctx, sessionID, func(store *cart.Store) (bool, []string) {
		if store.Len() == 0 {
			return false, nil
		}
		store.ToggleSelectAll(selected)
		return true, nil
	})
}

func (s *service) AdjustTicketQuantity(ctx context.Context, sessionID, tourScheduleID, ticketTypeID string, direction enums.QuantityDirection) (CartChange, error) {
	if !direction.IsValid() {
		return CartChange{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid direction %q", direction)
	}
	return s.mutateCart(ctx, sessionID, func(store *cart.Store) (bool, []string) {
		return store.AdjustTicketQuantity(tourScheduleID, ticketTypeID, direction), nil
	})
}

func (s *service) SelectForPayment(ctx context.Context, sessionID, tourScheduleID string) (CartChange, error) {
	return s.mutateCart(ctx, sessionID, func(store *cart.Store) (bool, []string) {
		return store.SelectForPayment(tourScheduleID), nil
	})
}

func (s *service) ClearPaymentTarget(ctx context.Context, sessionID string) (CartChange, error) {
	return s.mutateCart(ctx, sessionID, func(store *cart.Store) (bool, []string) {
		_, had := store.PaymentTarget()
		store.ClearPaymentTarget()
		return had, nil
	})
}

func (s *service) UpdateCart(ctx context.Context, sessionID string, fn func(*cart.Store) error) error {
	ws, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := fn(ws.Cart); err != nil {
		return err
	}
	s.persist(ctx, ws)
	return nil
}

// persist mirrors the cart to redis. The in-memory cart stays authoritative,
// so a failed write is logged and the request still succeeds.
func (s *service) persist(ctx context.Context, ws *Workspace) {
	if err := s.registry.Persist(ctx, ws); err != nil {
		s.logg.Error(s.logg.WithSessionID(ctx, ws.ID), "failed to persist cart snapshot", err)
	}
}
