package tours

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// TourSummary is the catalogue data shown next to a cart line. The booking
// logic never inspects it.
type TourSummary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
}

// Clone returns a deep copy.
func (t TourSummary) Clone() TourSummary {
	out := t
	if t.Images != nil {
		out.Images = append([]string(nil), t.Images...)
	}
	return out
}

// TicketOption is a purchasable ticket type on one scheduled date.
type TicketOption struct {
	TicketTypeID    string           `json:"ticket_type_id"`
	Kind            enums.TicketKind `json:"ticket_kind"`
	NetCost         decimal.Decimal  `json:"net_cost"`
	AvailableTicket int              `json:"available_ticket"`
}

// ScheduledDate is one day on which a tour runs.
type ScheduledDate struct {
	TourScheduleID string         `json:"tour_schedule_id"`
	Date           civil.Date     `json:"date"`
	Tickets        []TicketOption `json:"tickets"`
}

// Schedule indexes a tour's scheduled dates by calendar day.
type Schedule map[civil.Date]ScheduledDate

// Dates returns the scheduled days in ascending order.
func (s Schedule) Dates() []civil.Date {
	dates := make([]civil.Date, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Lookup returns the schedule entry for a day with a private copy of its tickets.
func (s Schedule) Lookup(day civil.Date) (ScheduledDate, bool) {
	entry, ok := s[day]
	if !ok {
		return ScheduledDate{}, false
	}
	entry.Tickets = append([]TicketOption(nil), entry.Tickets...)
	return entry, true
}
