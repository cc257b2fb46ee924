package cart

import (
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// LineView is a line as rendered on the cart page.
type LineView struct {
	Line
	Selected    bool                     `json:"selected"`
	Eligibility enums.PaymentEligibility `json:"payment_eligibility"`
}

// View is a consistent read of the whole cart.
type View struct {
	Lines           []LineView      `json:"lines"`
	SelectedCount   int             `json:"selected_count"`
	SelectAll       bool            `json:"select_all"`
	PaymentTarget   string          `json:"payment_target,omitempty"`
	TotalForPayment decimal.Decimal `json:"total_for_payment"`
}

// View snapshots the cart for presentation, evaluating expiry against today.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpiredTargetLocked()

	lines := make([]LineView, 0, len(s.lines))
	for _, line := range s.lines {
		_, selected := s.selected[line.TourScheduleID]
		lines = append(lines, LineView{
			Line:        line.Clone(),
			Selected:    selected,
			Eligibility: s.eligibilityLocked(line),
		})
	}
	return View{
		Lines:           lines,
		SelectedCount:   len(s.selected),
		SelectAll:       s.selectAllLocked(),
		PaymentTarget:   s.target,
		TotalForPayment: s.totalForPaymentLocked(),
	}
}
