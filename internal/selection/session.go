package selection

import (
	"context"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/angelmondragon/tourbook-backend/internal/cart"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Messages returned with VALIDATION_ERROR from Commit.
const (
	MsgNoDateSelected    = "no date selected"
	MsgNoTicketsSelected = "no tickets selected"
)

// Session holds the in-progress ticket choice for one tour. It is safe for
// concurrent use; the schedule fetch runs without holding the lock, and a
// generation counter discards fetches overtaken by a later SelectDate.
type Session struct {
	tour    tours.TourSummary
	fetcher tours.Fetcher
	logg    *logger.Logger
	metrics *metrics.StorefrontMetrics

	mu             sync.Mutex
	generation     uint64
	scheduled      map[civil.Date]struct{}
	chosenDate     civil.Date
	scheduleID     string
	options        []tours.TicketOption
	quantities     map[string]int
	totalPrice     decimal.Decimal
	packageToggled bool
	loading        bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger attaches a logger.
func WithLogger(logg *logger.Logger) Option {
	return func(s *Session) {
		if logg != nil {
			s.logg = logg
		}
	}
}

// WithMetrics attaches storefront metrics.
func WithMetrics(m *metrics.StorefrontMetrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// New starts an empty session for a tour.
func New(tour tours.TourSummary, fetcher tours.Fetcher, opts ...Option) (*Session, error) {
	if fetcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ticket schedule fetcher required")
	}
	if tour.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tour id is required")
	}
	s := &Session{
		tour:       tour.Clone(),
		fetcher:    fetcher,
		logg:       logger.Nop(),
		quantities: make(map[string]int),
		totalPrice: decimal.Zero,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Tour returns the tour the session belongs to.
func (s *Session) Tour() tours.TourSummary {
	return s.tour.Clone()
}

// AvailableDates fetches the tour schedule and remembers which days may be
// selected.
func (s *Session) AvailableDates(ctx context.Context) ([]civil.Date, error) {
	schedule, err := s.fetcher.FetchTicketSchedule(ctx, s.tour.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "could not load tour schedule")
	}
	dates := schedule.Dates()

	s.mu.Lock()
	s.rememberScheduleLocked(schedule)
	s.mu.Unlock()
	return dates, nil
}

// SelectDate loads the ticket options of a scheduled day. Days outside the
// known schedule are rejected without error. When another SelectDate starts
// before this one's fetch returns, this call reports SelectStale and leaves
// the newer state alone.
func (s *Session) SelectDate(ctx context.Context, day civil.Date) (enums.SelectOutcome, error) {
	s.mu.Lock()
	if s.scheduled != nil {
		if _, ok := s.scheduled[day]; !ok {
			s.mu.Unlock()
			s.metrics.IncSelection(string(enums.SelectRejected))
			return enums.SelectRejected, nil
		}
	}
	s.generation++
	token := s.generation
	s.chosenDate = day
	s.scheduleID = ""
	s.options = nil
	s.quantities = make(map[string]int)
	s.totalPrice = decimal.Zero
	s.loading = true
	s.mu.Unlock()

	schedule, fetchErr := s.fetcher.FetchTicketSchedule(ctx, s.tour.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.generation {
		s.metrics.IncSelection(string(enums.SelectStale))
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{"tour_id": s.tour.ID, "date": day.String()}), "discarding stale ticket fetch")
		return enums.SelectStale, nil
	}
	s.loading = false

	if fetchErr != nil {
		s.metrics.IncSelection(string(enums.SelectFailed))
		return enums.SelectFailed, pkgerrors.Wrap(pkgerrors.CodeDependency, fetchErr, "could not load ticket options")
	}

	s.rememberScheduleLocked(schedule)
	entry, ok := schedule.Lookup(day)
	if !ok {
		s.chosenDate = civil.Date{}
		s.metrics.IncSelection(string(enums.SelectRejected))
		return enums.SelectRejected, nil
	}
	s.scheduleID = entry.TourScheduleID
	s.options = entry.Tickets
	s.metrics.IncSelection(string(enums.SelectApplied))
	return enums.SelectApplied, nil
}

// AdjustQuantity moves one ticket quantity a single step within
// [0, availableTicket]. Out-of-range steps are no-ops.
func (s *Session) AdjustQuantity(ticketTypeID string, direction enums.QuantityDirection) bool {
	delta := direction.Delta()
	if delta == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	option, ok := s.optionLocked(ticketTypeID)
	if !ok {
		return false
	}
	next := s.quantities[ticketTypeID] + delta
	if next < 0 || next > option.AvailableTicket {
		return false
	}
	if next == 0 {
		delete(s.quantities, ticketTypeID)
	} else {
		s.quantities[ticketTypeID] = next
	}
	s.totalPrice = s.computeTotalLocked()
	return true
}

// TogglePackage flips the combined-tour flag. Quantities are untouched.
func (s *Session) TogglePackage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packageToggled = !s.packageToggled
	return s.packageToggled
}

// TotalPrice is the sum of net cost times quantity over the chosen tickets.
func (s *Session) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalPrice
}

// Commit turns the current choice into a cart line and resets the session.
func (s *Session) Commit() (cart.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chosenDate.IsZero() {
		return cart.Line{}, pkgerrors.New(pkgerrors.CodeValidation, MsgNoDateSelected)
	}
	var tickets []cart.TicketLine
	for _, option := range s.options {
		qty := s.quantities[option.TicketTypeID]
		if qty <= 0 {
			continue
		}
		tickets = append(tickets, cart.TicketLine{
			TicketTypeID:    option.TicketTypeID,
			Kind:            option.Kind,
			NetCost:         option.NetCost,
			Quantity:        qty,
			AvailableTicket: option.AvailableTicket,
		})
	}
	if len(tickets) == 0 {
		return cart.Line{}, pkgerrors.New(pkgerrors.CodeValidation, MsgNoTicketsSelected)
	}

	line := cart.Line{
		TourScheduleID: s.scheduleID,
		Day:            s.chosenDate,
		Tour:           s.tour.Clone(),
		Tickets:        tickets,
		TotalPrice:     s.totalPrice,
	}
	s.resetLocked()
	s.metrics.IncCommit()
	return line, nil
}

// Clear resets the session unconditionally. Any fetch in flight is discarded.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.generation++
	s.chosenDate = civil.Date{}
	s.scheduleID = ""
	s.options = nil
	s.quantities = make(map[string]int)
	s.totalPrice = decimal.Zero
	s.packageToggled = false
	s.loading = false
}

func (s *Session) rememberScheduleLocked(schedule tours.Schedule) {
	s.scheduled = make(map[civil.Date]struct{}, len(schedule))
	for day := range schedule {
		s.scheduled[day] = struct{}{}
	}
}

func (s *Session) optionLocked(ticketTypeID string) (tours.TicketOption, bool) {
	for _, option := range s.options {
		if option.TicketTypeID == ticketTypeID {
			return option, true
		}
	}
	return tours.TicketOption{}, false
}

func (s *Session) computeTotalLocked() decimal.Decimal {
	total := decimal.Zero
	for _, option := range s.options {
		if qty := s.quantities[option.TicketTypeID]; qty > 0 {
			total = total.Add(option.NetCost.Mul(decimal.NewFromInt(int64(qty))))
		}
	}
	return total
}
