package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/tourbook-backend/internal/cart"
	"github.com/angelmondragon/tourbook-backend/internal/receipts"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/angelmondragon/tourbook-backend/pkg/pagination"
	"github.com/angelmondragon/tourbook-backend/pkg/tourapi"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
	"github.com/go-playground/validator/v10"
)

// MsgNoPaymentTarget is returned when checkout runs without a targeted line.
const MsgNoPaymentTarget = "no cart line selected for payment"

const (
	resultSucceeded = "succeeded"
	resultRejected  = "rejected"
	resultFailed    = "failed"
)

var validate = validator.New()

// OrderSubmitter places orders with the tour operator.
type OrderSubmitter interface {
	CreateOrder(ctx context.Context, req tourapi.OrderRequest) (*tourapi.OrderConfirmation, error)
}

// CartAccess is the slice of the storefront the checkout needs.
type CartAccess interface {
	UpdateCart(ctx context.Context, sessionID string, fn func(*cart.Store) error) error
}

// Service pays for the cart line targeted for payment.
type Service interface {
	Checkout(ctx context.Context, sessionID string, contact Contact) (ReceiptDTO, error)
	ListReceipts(ctx context.Context, sessionID string, params pagination.Params) (ReceiptPage, error)
}

type service struct {
	carts    CartAccess
	orders   OrderSubmitter
	receipts receipts.Repository
	logg     *logger.Logger
	metrics  *metrics.StorefrontMetrics
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(carts CartAccess, orders OrderSubmitter, repo receipts.Repository, logg *logger.Logger, m *metrics.StorefrontMetrics) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart access required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order submitter required")
	}
	if repo == nil {
		return nil, fmt.Errorf("receipts repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		carts:    carts,
		orders:   orders,
		receipts: repo,
		logg:     logg,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// Checkout submits the payment target exactly once. The target is claimed
// before the order goes out, so a concurrent checkout of the same cart finds
// nothing to pay. A failed submission hands the target back; the caller
// decides whether to try again.
func (s *service) Checkout(ctx context.Context, sessionID string, contact Contact) (ReceiptDTO, error) {
	contact = normalizeContact(contact)
	if err := validate.Struct(contact); err != nil {
		s.metrics.IncCheckout(resultRejected)
		return ReceiptDTO{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contact details")
	}

	var (
		line cart.Line
		ok   bool
	)
	if err := s.carts.UpdateCart(ctx, sessionID, func(store *cart.Store) error {
		line, ok = store.ClaimPaymentTarget()
		return nil
	}); err != nil {
		return ReceiptDTO{}, err
	}
	if !ok {
		s.metrics.IncCheckout(resultRejected)
		return ReceiptDTO{}, pkgerrors.New(pkgerrors.CodeStateConflict, MsgNoPaymentTarget)
	}

	ctx = s.logg.WithFields(s.logg.WithSessionID(ctx, sessionID), map[string]any{
		"tour_schedule_id": line.TourScheduleID,
		"total_price":      line.TotalPrice.StringFixed(2),
	})

	req := orderRequest(line, contact)
	if len(req.Tickets) == 0 {
		s.releaseTarget(ctx, sessionID, line)
		s.metrics.IncCheckout(resultRejected)
		return ReceiptDTO{}, pkgerrors.New(pkgerrors.CodeStateConflict, "payment target has no tickets")
	}

	start := s.now()
	confirmation, err := s.orders.CreateOrder(ctx, req)
	s.metrics.ObserveFetch("create_order", s.now().Sub(start))
	if err != nil {
		s.releaseTarget(ctx, sessionID, line)
		s.metrics.IncCheckout(resultFailed)
		s.logg.Error(ctx, "order submission failed", err)
		if pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
			return ReceiptDTO{}, err
		}
		return ReceiptDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order submission failed")
	}
	if confirmation == nil || strings.TrimSpace(confirmation.OrderID) == "" {
		s.releaseTarget(ctx, sessionID, line)
		s.metrics.IncCheckout(resultFailed)
		return ReceiptDTO{}, pkgerrors.New(pkgerrors.CodeDependency, "order service returned no order id")
	}
	ctx = s.logg.WithField(ctx, "order_id", confirmation.OrderID)

	var removed bool
	if err := s.carts.UpdateCart(ctx, sessionID, func(store *cart.Store) error {
		removed = store.RemoveLineIf(line.TourScheduleID, line.SameContents)
		return nil
	}); err != nil {
		s.logg.Error(ctx, "failed to remove purchased line from cart", err)
	} else if !removed {
		s.logg.Warn(ctx, "cart line changed during checkout; left in cart")
	}

	record := s.storeReceipt(ctx, receiptRecord(sessionID, line, contact, confirmation))

	s.metrics.IncCheckout(resultSucceeded)
	s.logg.Info(ctx, "checkout completed")
	return receiptFromModel(record), nil
}

// releaseTarget hands a claimed line back after a failed submission.
func (s *service) releaseTarget(ctx context.Context, sessionID string, line cart.Line) {
	var restored bool
	if err := s.carts.UpdateCart(ctx, sessionID, func(store *cart.Store) error {
		restored = store.RestorePaymentTarget(line)
		return nil
	}); err != nil {
		s.logg.Error(ctx, "failed to restore payment target", err)
		return
	}
	if !restored {
		s.logg.Warn(ctx, "payment target not restored; cart changed during checkout")
	}
}

// storeReceipt records the receipt. An order already recorded returns the
// stored row; any other failure still returns the receipt since the order
// exists upstream.
func (s *service) storeReceipt(ctx context.Context, record models.CheckoutReceipt) models.CheckoutReceipt {
	err := s.receipts.Create(ctx, &record)
	if err == nil {
		return record
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		existing, findErr := s.receipts.FindByOrderID(ctx, record.OrderID)
		if findErr == nil && existing != nil {
			s.logg.Warn(ctx, "receipt already recorded for order")
			return *existing
		}
		if findErr != nil {
			err = findErr
		}
	}
	s.logg.Error(ctx, "failed to store checkout receipt", err)
	record.CreatedAt = s.now().UTC()
	return record
}

func (s *service) ListReceipts(ctx context.Context, sessionID string, params pagination.Params) (ReceiptPage, error) {
	page, err := s.receipts.ListBySession(ctx, sessionID, params)
	if err != nil {
		return ReceiptPage{}, err
	}
	out := ReceiptPage{Receipts: make([]ReceiptDTO, 0, len(page.Rows)), NextCursor: page.NextCursor}
	for _, row := range page.Rows {
		out.Receipts = append(out.Receipts, receiptFromModel(row))
	}
	return out, nil
}

func normalizeContact(c Contact) Contact {
	return Contact{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
		Phone: strings.TrimSpace(c.Phone),
	}
}

// orderRequest carries only ticket types with a positive quantity.
func orderRequest(line cart.Line, contact Contact) tourapi.OrderRequest {
	tickets := make([]tourapi.OrderTicket, 0, len(line.Tickets))
	for _, ticket := range line.Tickets {
		if ticket.Quantity <= 0 {
			continue
		}
		tickets = append(tickets, tourapi.OrderTicket{
			TicketTypeID: ticket.TicketTypeID,
			TicketKind:   tours.WireTicketKind(ticket.Kind),
			Quantity:     ticket.Quantity,
			NetCost:      ticket.NetCost,
		})
	}
	return tourapi.OrderRequest{
		TourID:         line.Tour.ID,
		TourScheduleID: line.TourScheduleID,
		Day:            line.Day.String(),
		Tickets:        tickets,
		TotalPrice:     line.TotalPrice,
		Contact: tourapi.OrderContact{
			Name:  contact.Name,
			Email: contact.Email,
			Phone: contact.Phone,
		},
	}
}

func receiptRecord(sessionID string, line cart.Line, contact Contact, confirmation *tourapi.OrderConfirmation) models.CheckoutReceipt {
	tickets := make([]models.ReceiptTicket, 0, len(line.Tickets))
	for _, ticket := range line.Tickets {
		if ticket.Quantity <= 0 {
			continue
		}
		tickets = append(tickets, models.ReceiptTicket{
			TicketTypeID: ticket.TicketTypeID,
			Kind:         ticket.Kind,
			Quantity:     ticket.Quantity,
			NetCost:      ticket.NetCost,
		})
	}
	return models.CheckoutReceipt{
		SessionID:      sessionID,
		OrderID:        confirmation.OrderID,
		OrderStatus:    confirmation.Status,
		TourScheduleID: line.TourScheduleID,
		Day:            types.NewDate(line.Day),
		Tickets:        tickets,
		TotalPrice:     line.TotalPrice,
		ContactName:    contact.Name,
		ContactEmail:   contact.Email,
		ContactPhone:   contact.Phone,
	}
}
