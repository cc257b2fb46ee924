package cart

import (
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Operation names passed to change listeners.
const (
	OpAddOrReplace        = "add_or_replace"
	OpRemoveLine          = "remove_line"
	OpRemoveSelectedLines = "remove_selected_lines"
	OpToggleSelect        = "toggle_select"
	OpToggleSelectAll     = "toggle_select_all"
	OpAdjustQuantity      = "adjust_ticket_quantity"
	OpSelectForPayment    = "select_for_payment"
	OpClearPaymentTarget  = "clear_payment_target"
	OpRestore             = "restore"
)

// Store owns the cart lines of one storefront session together with the bulk
// selection set and the single payment target. It is safe for concurrent use;
// derived values are consistent whenever the lock is released.
type Store struct {
	mu       sync.Mutex
	lines    []Line
	selected map[string]struct{}
	target   string

	now      func() time.Time
	location *time.Location
	onChange func(operation string)
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the timezone in which "today" is evaluated.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithChangeListener registers a callback invoked after every state change,
// outside the store lock.
func WithChangeListener(fn func(operation string)) Option {
	return func(s *Store) {
		s.onChange = fn
	}
}

// NewStore builds an empty cart.
func NewStore(opts ...Option) *Store {
	s := &Store{
		selected: make(map[string]struct{}),
		now:      time.Now,
		location: time.UTC,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// AddOrReplace inserts a line, replacing in place any line with the same
// TourScheduleID. TotalPrice is recomputed from the tickets.
func (s *Store) AddOrReplace(line Line) error {
	if err := validateLine(line); err != nil {
		return err
	}
	line = line.Clone()
	line.TotalPrice = TotalOf(line.Tickets)

	s.mu.Lock()
	if idx := s.indexOf(line.TourScheduleID); idx >= 0 {
		s.lines[idx] = line
	} else {
		s.lines = append(s.lines, line)
	}
	s.mu.Unlock()

	s.notify(OpAddOrReplace)
	return nil
}

// RemoveLine deletes a line and any selection or payment target pointing at it.
func (s *Store) RemoveLine(tourScheduleID string) bool {
	s.mu.Lock()
	idx := s.indexOf(tourScheduleID)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	delete(s.selected, tourScheduleID)
	if s.target == tourScheduleID {
		s.target = ""
	}
	s.mu.Unlock()

	s.notify(OpRemoveLine)
	return true
}

// RemoveLineIf deletes a line only when match accepts its current contents.
// match runs under the cart lock on a copy and must not call back into s.
func (s *Store) RemoveLineIf(tourScheduleID string, match func(Line) bool) bool {
	s.mu.Lock()
	idx := s.indexOf(tourScheduleID)
	if idx < 0 || !match(s.lines[idx].Clone()) {
		s.mu.Unlock()
		return false
	}
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	delete(s.selected, tourScheduleID)
	if s.target == tourScheduleID {
		s.target = ""
	}
	s.mu.Unlock()

	s.notify(OpRemoveLine)
	return true
}

// RemoveSelectedLines deletes every selected line, empties the selection and
// returns the removed ids in cart order.
func (s *Store) RemoveSelectedLines() []string {
	s.mu.Lock()
	if len(s.selected) == 0 {
		s.mu.Unlock()
		return nil
	}
	kept := s.lines[:0:0]
	var removed []string
	for _, line := range s.lines {
		if _, ok := s.selected[line.TourScheduleID]; ok {
			removed = append(removed, line.TourScheduleID)
			if s.target == line.TourScheduleID {
				s.target = ""
			}
			continue
		}
		kept = append(kept, line)
	}
	s.lines = kept
	s.selected = make(map[string]struct{})
	s.mu.Unlock()

	s.notify(OpRemoveSelectedLines)
	return removed
}

// ToggleSelect adds or removes one line from the bulk selection. Unknown ids
// are ignored.
func (s *Store) ToggleSelect(tourScheduleID string, selected bool) bool {
	s.mu.Lock()
	if s.indexOf(tourScheduleID) < 0 {
		s.mu.Unlock()
		return false
	}
	_, already := s.selected[tourScheduleID]
	if already == selected {
		s.mu.Unlock()
		return false
	}
	if selected {
		s.selected[tourScheduleID] = struct{}{}
	} else {
		delete(s.selected, tourScheduleID)
	}
	s.mu.Unlock()

	s.notify(OpToggleSelect)
	return true
}

// ToggleSelectAll selects every line or clears the selection.
func (s *Store) ToggleSelectAll(selected bool) {
	s.mu.Lock()
	s.selected = make(map[string]struct{}, len(s.lines))
	if selected {
		for _, line := range s.lines {
			s.selected[line.TourScheduleID] = struct{}{}
		}
	}
	s.mu.Unlock()

	s.notify(OpToggleSelectAll)
}

// SelectAll reports whether every line is selected. An empty cart is never
// all-selected.
func (s *Store) SelectAll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectAllLocked()
}

// AdjustTicketQuantity moves one ticket quantity a single step within
// [0, captured availability]. Lines whose quantities reach zero are kept.
func (s *Store) AdjustTicketQuantity(tourScheduleID, ticketTypeID string, direction enums.QuantityDirection) bool {
	delta := direction.Delta()
	if delta == 0 {
		return false
	}

	s.mu.Lock()
	idx := s.indexOf(tourScheduleID)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	line := s.lines[idx]
	changed := false
	tickets := append([]TicketLine(nil), line.Tickets...)
	for i := range tickets {
		if tickets[i].TicketTypeID != ticketTypeID {
			continue
		}
		next := tickets[i].Quantity + delta
		if next < 0 || next > tickets[i].AvailableTicket {
			break
		}
		tickets[i].Quantity = next
		changed = true
		break
	}
	if changed {
		line.Tickets = tickets
		line.TotalPrice = TotalOf(tickets)
		s.lines[idx] = line
	}
	s.mu.Unlock()

	if changed {
		s.notify(OpAdjustQuantity)
	}
	return changed
}

// SelectForPayment makes the line the payment target, replacing any previous
// target. Missing and expired lines are rejected.
func (s *Store) SelectForPayment(tourScheduleID string) bool {
	s.mu.Lock()
	idx := s.indexOf(tourScheduleID)
	if idx < 0 || s.expiredLocked(s.lines[idx]) {
		s.mu.Unlock()
		return false
	}
	if s.target == tourScheduleID {
		s.mu.Unlock()
		return true
	}
	s.target = tourScheduleID
	s.mu.Unlock()

	s.notify(OpSelectForPayment)
	return true
}

// ClearPaymentTarget unsets the payment target.
func (s *Store) ClearPaymentTarget() {
	s.mu.Lock()
	had := s.target != ""
	s.target = ""
	s.mu.Unlock()

	if had {
		s.notify(OpClearPaymentTarget)
	}
}

// ClaimPaymentTarget returns a copy of the targeted line and clears the
// target in the same step, so only one caller can hold it.
func (s *Store) ClaimPaymentTarget() (Line, bool) {
	s.mu.Lock()
	s.dropExpiredTargetLocked()
	idx := s.indexOf(s.target)
	if idx < 0 {
		s.mu.Unlock()
		return Line{}, false
	}
	line := s.lines[idx].Clone()
	s.target = ""
	s.mu.Unlock()

	s.notify(OpClearPaymentTarget)
	return line, true
}

// RestorePaymentTarget hands a claimed line back as the payment target. It
// does nothing when another target was set meanwhile, or when the line was
// removed, changed or has expired since the claim.
func (s *Store) RestorePaymentTarget(line Line) bool {
	s.mu.Lock()
	idx := s.indexOf(line.TourScheduleID)
	if s.target != "" || idx < 0 || s.expiredLocked(s.lines[idx]) || !s.lines[idx].SameContents(line) {
		s.mu.Unlock()
		return false
	}
	s.target = line.TourScheduleID
	s.mu.Unlock()

	s.notify(OpSelectForPayment)
	return true
}

// PaymentTarget returns the id of the targeted line, if any.
func (s *Store) PaymentTarget() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpiredTargetLocked()
	return s.target, s.target != ""
}

// TotalForPayment is the stored TotalPrice of the targeted line, or zero.
func (s *Store) TotalForPayment() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpiredTargetLocked()
	return s.totalForPaymentLocked()
}

// Eligibility reports whether a line can be paid for right now.
func (s *Store) Eligibility(tourScheduleID string) (enums.PaymentEligibility, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpiredTargetLocked()
	idx := s.indexOf(tourScheduleID)
	if idx < 0 {
		return "", false
	}
	return s.eligibilityLocked(s.lines[idx]), true
}

// Line returns a copy of one line.
func (s *Store) Line(tourScheduleID string) (Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(tourScheduleID); idx >= 0 {
		return s.lines[idx].Clone(), true
	}
	return Line{}, false
}

// Lines returns copies of all lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, 0, len(s.lines))
	for _, line := range s.lines {
		out = append(out, line.Clone())
	}
	return out
}

// Len returns the number of lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// IsSelected reports whether the line is in the bulk selection.
func (s *Store) IsSelected(tourScheduleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.selected[tourScheduleID]
	return ok
}

func (s *Store) indexOf(tourScheduleID string) int {
	if tourScheduleID == "" {
		return -1
	}
	for i, line := range s.lines {
		if line.TourScheduleID == tourScheduleID {
			return i
		}
	}
	return -1
}

func (s *Store) selectAllLocked() bool {
	if len(s.lines) == 0 {
		return false
	}
	for _, line := range s.lines {
		if _, ok := s.selected[line.TourScheduleID]; !ok {
			return false
		}
	}
	return true
}

func (s *Store) today() civil.Date {
	return civil.DateOf(s.now().In(s.location))
}

func (s *Store) expiredLocked(line Line) bool {
	return line.Day.Before(s.today())
}

func (s *Store) eligibilityLocked(line Line) enums.PaymentEligibility {
	switch {
	case s.expiredLocked(line):
		return enums.PaymentEligibilityExpired
	case line.TourScheduleID == s.target:
		return enums.PaymentTargetedForPayment
	default:
		return enums.PaymentEligible
	}
}

// dropExpiredTargetLocked clears a target whose line has expired since it was
// selected.
func (s *Store) dropExpiredTargetLocked() {
	if s.target == "" {
		return
	}
	idx := s.indexOf(s.target)
	if idx < 0 || s.expiredLocked(s.lines[idx]) {
		s.target = ""
	}
}

func (s *Store) totalForPaymentLocked() decimal.Decimal {
	if idx := s.indexOf(s.target); idx >= 0 {
		return s.lines[idx].TotalPrice
	}
	return decimal.Zero
}

func (s *Store) notify(operation string) {
	if s.onChange != nil {
		s.onChange(operation)
	}
}
