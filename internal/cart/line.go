package cart

import (
	"cloud.google.com/go/civil"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// TicketLine is one ticket type inside a cart line. NetCost and
// AvailableTicket are captured when the line is added and never refreshed.
type TicketLine struct {
	TicketTypeID    string           `json:"ticket_type_id"`
	Kind            enums.TicketKind `json:"ticket_kind"`
	NetCost         decimal.Decimal  `json:"net_cost"`
	Quantity        int              `json:"quantity"`
	AvailableTicket int              `json:"available_ticket"`
}

// Subtotal is NetCost times Quantity.
func (t TicketLine) Subtotal() decimal.Decimal {
	return t.NetCost.Mul(decimal.NewFromInt(int64(t.Quantity)))
}

// Line is the tickets chosen for one tour schedule.
type Line struct {
	TourScheduleID string            `json:"tour_schedule_id"`
	Day            civil.Date        `json:"day"`
	Tour           tours.TourSummary `json:"tour"`
	Tickets        []TicketLine      `json:"tickets"`
	// TotalPrice is derived from Tickets by the store; callers never set it.
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Clone returns a deep copy.
func (l Line) Clone() Line {
	out := l
	out.Tour = l.Tour.Clone()
	out.Tickets = append([]TicketLine(nil), l.Tickets...)
	return out
}

// SameContents reports whether other holds the same schedule, day, tickets
// and total as l. Tour details are not compared.
func (l Line) SameContents(other Line) bool {
	if l.TourScheduleID != other.TourScheduleID || l.Day != other.Day {
		return false
	}
	if !l.TotalPrice.Equal(other.TotalPrice) || len(l.Tickets) != len(other.Tickets) {
		return false
	}
	for i, ticket := range l.Tickets {
		o := other.Tickets[i]
		if ticket.TicketTypeID != o.TicketTypeID || ticket.Kind != o.Kind || ticket.Quantity != o.Quantity || !ticket.NetCost.Equal(o.NetCost) {
			return false
		}
	}
	return true
}

// Quantity returns the quantity of a ticket type, zero when absent.
func (l Line) Quantity(ticketTypeID string) int {
	for _, ticket := range l.Tickets {
		if ticket.TicketTypeID == ticketTypeID {
			return ticket.Quantity
		}
	}
	return 0
}

// TotalOf sums NetCost times Quantity over tickets.
func TotalOf(tickets []TicketLine) decimal.Decimal {
	total := decimal.Zero
	for _, ticket := range tickets {
		total = total.Add(ticket.Subtotal())
	}
	return total
}

func validateLine(line Line) error {
	if line.TourScheduleID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "tour schedule id is required")
	}
	if line.Day.IsZero() || !line.Day.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "line day is invalid")
	}
	seen := make(map[string]struct{}, len(line.Tickets))
	for _, ticket := range line.Tickets {
		if ticket.TicketTypeID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "ticket type id is required")
		}
		if _, dup := seen[ticket.TicketTypeID]; dup {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "duplicate ticket type %s", ticket.TicketTypeID)
		}
		seen[ticket.TicketTypeID] = struct{}{}
		if ticket.NetCost.IsNegative() {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "ticket %s has a negative net cost", ticket.TicketTypeID)
		}
		if ticket.Quantity < 0 || ticket.Quantity > ticket.AvailableTicket {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "ticket %s quantity %d outside [0, %d]", ticket.TicketTypeID, ticket.Quantity, ticket.AvailableTicket)
		}
	}
	return nil
}
