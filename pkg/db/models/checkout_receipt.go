package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// ReceiptTicket is a ticket snapshot stored inside CheckoutReceipt.Tickets.
type ReceiptTicket struct {
	TicketTypeID string           `json:"ticket_type_id"`
	Kind         enums.TicketKind `json:"ticket_kind"`
	Quantity     int              `json:"quantity"`
	NetCost      decimal.Decimal  `json:"net_cost"`
}

// CheckoutReceipt records an order accepted by the tour API for a storefront session.
type CheckoutReceipt struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SessionID      string          `gorm:"column:session_id;not null;index:idx_checkout_receipts_session_id,priority:1"`
	OrderID        string          `gorm:"column:order_id;not null;uniqueIndex:idx_checkout_receipts_order_id"`
	OrderStatus    string          `gorm:"column:order_status;not null"`
	TourScheduleID string          `gorm:"column:tour_schedule_id;not null"`
	Day            types.Date      `gorm:"column:day;type:date;not null"`
	Tickets        []ReceiptTicket `gorm:"column:tickets;type:jsonb;serializer:json;not null"`
	TotalPrice     decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null"`
	ContactName    string          `gorm:"column:contact_name;not null"`
	ContactEmail   string          `gorm:"column:contact_email;not null"`
	ContactPhone   string          `gorm:"column:contact_phone;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime;index:idx_checkout_receipts_session_id,priority:2"`
}

func (CheckoutReceipt) TableName() string { return "checkout_receipts" }
