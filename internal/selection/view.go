package selection

import (
	"cloud.google.com/go/civil"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// OptionView is a ticket option with the quantity chosen so far.
type OptionView struct {
	TicketTypeID    string           `json:"ticket_type_id"`
	Kind            enums.TicketKind `json:"ticket_kind"`
	NetCost         decimal.Decimal  `json:"net_cost"`
	AvailableTicket int              `json:"available_ticket"`
	Quantity        int              `json:"quantity"`
	// GroupSize is the number of travellers one ticket admits.
	GroupSize int `json:"group_size"`
}

// View is a consistent read of the session.
type View struct {
	Tour           tours.TourSummary `json:"tour"`
	ChosenDate     *civil.Date       `json:"chosen_date"`
	TourScheduleID string            `json:"tour_schedule_id,omitempty"`
	Loading        bool              `json:"loading"`
	Options        []OptionView      `json:"options"`
	TotalPrice     decimal.Decimal   `json:"total_price"`
	PackageToggled bool              `json:"package_toggled"`
}

// View snapshots the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := View{
		Tour:           s.tour.Clone(),
		TourScheduleID: s.scheduleID,
		Loading:        s.loading,
		Options:        make([]OptionView, 0, len(s.options)),
		TotalPrice:     s.totalPrice,
		PackageToggled: s.packageToggled,
	}
	if !s.chosenDate.IsZero() {
		d := s.chosenDate
		view.ChosenDate = &d
	}
	for _, option := range s.options {
		view.Options = append(view.Options, OptionView{
			TicketTypeID:    option.TicketTypeID,
			Kind:            option.Kind,
			NetCost:         option.NetCost,
			AvailableTicket: option.AvailableTicket,
			Quantity:        s.quantities[option.TicketTypeID],
			GroupSize:       option.Kind.GroupSize(),
		})
	}
	return view
}
