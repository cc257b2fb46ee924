package checkout

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Contact is the purchaser submitted with an order.
type Contact struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email,max=320"`
	Phone string `json:"phone" validate:"required,min=5,max=40"`
}

// ReceiptTicketDTO is one purchased ticket type.
type ReceiptTicketDTO struct {
	TicketTypeID string           `json:"ticket_type_id"`
	Kind         enums.TicketKind `json:"ticket_kind"`
	Quantity     int              `json:"quantity"`
	NetCost      decimal.Decimal  `json:"net_cost"`
}

// ReceiptDTO describes a completed checkout.
type ReceiptDTO struct {
	ID             string             `json:"id"`
	OrderID        string             `json:"order_id"`
	OrderStatus    string             `json:"order_status"`
	TourScheduleID string             `json:"tour_schedule_id"`
	Day            civil.Date         `json:"day"`
	Tickets        []ReceiptTicketDTO `json:"tickets"`
	TotalPrice     decimal.Decimal    `json:"total_price"`
	CreatedAt      time.Time          `json:"created_at"`
}

// ReceiptPage is a page of receipts plus the cursor for the next one.
type ReceiptPage struct {
	Receipts   []ReceiptDTO `json:"receipts"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func receiptFromModel(m models.CheckoutReceipt) ReceiptDTO {
	tickets := make([]ReceiptTicketDTO, 0, len(m.Tickets))
	for _, t := range m.Tickets {
		tickets = append(tickets, ReceiptTicketDTO(t))
	}
	return ReceiptDTO{
		ID:             m.ID.String(),
		OrderID:        m.OrderID,
		OrderStatus:    m.OrderStatus,
		TourScheduleID: m.TourScheduleID,
		Day:            m.Day.Date,
		Tickets:        tickets,
		TotalPrice:     m.TotalPrice,
		CreatedAt:      m.CreatedAt,
	}
}
