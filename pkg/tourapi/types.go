package tourapi

import "github.com/shopspring/decimal"

// Tour is the catalogue summary of a tour.
type Tour struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
}

// Schedule is one date on which a tour runs.
type Schedule struct {
	TourScheduleID string   `json:"tourScheduleId"`
	Date           string   `json:"date"`
	Tickets        []Ticket `json:"tickets"`
}

// Ticket is a purchasable ticket type on a schedule. TicketKind is passed
// through verbatim; callers map it to their own enum.
type Ticket struct {
	TicketTypeID    string          `json:"ticketTypeId"`
	TicketKind      string          `json:"ticketKind"`
	NetCost         decimal.Decimal `json:"netCost"`
	AvailableTicket int             `json:"availableTicket"`
}

// OrderRequest is the payload posted to create an order.
type OrderRequest struct {
	TourID         string          `json:"tourId"`
	TourScheduleID string          `json:"tourScheduleId"`
	Day            string          `json:"day"`
	Tickets        []OrderTicket   `json:"tickets"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	Contact        OrderContact    `json:"contact"`
}

type OrderTicket struct {
	TicketTypeID string          `json:"ticketTypeId"`
	TicketKind   string          `json:"ticketKind"`
	Quantity     int             `json:"quantity"`
	NetCost      decimal.Decimal `json:"netCost"`
}

type OrderContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// OrderConfirmation is returned once the order API accepted an order.
type OrderConfirmation struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}
