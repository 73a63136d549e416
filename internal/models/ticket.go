package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketStatusReserved TicketStatus = "reserved"
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusPaid     TicketStatus = "paid"
	TicketStatusFailed   TicketStatus = "failed"
	TicketStatusExpired  TicketStatus = "expired"
	TicketStatusCanceled TicketStatus = "canceled"
	TicketStatusRefunded TicketStatus = "refunded"
)

// IsTerminal reports whether a ticket may never change status again.
func (s TicketStatus) IsTerminal() bool {
	switch s {
	case TicketStatusPaid, TicketStatusFailed, TicketStatusExpired, TicketStatusCanceled, TicketStatusRefunded:
		return true
	}
	return false
}

// Ticket snapshots category name/price and event location/date at issue
// time, so an order's priced contents never move when the category is
// edited later. A non-nil OrderID means the ticket already consumed one
// unit of category inventory.
type Ticket struct {
	ID         string          `json:"id" db:"id"`
	EventID    string          `json:"event_id" db:"event_id"`
	CategoryID string          `json:"category_id" db:"category_id"`
	UserID     string          `json:"user_id" db:"user_id"`
	OrderID    *string         `json:"order_id,omitempty" db:"order_id"`
	Status     TicketStatus    `json:"status" db:"status"`
	Category   string          `json:"category" db:"category_name"`
	Price      decimal.Decimal `json:"price" db:"price"`
	Location   string          `json:"location" db:"event_location"`
	EventDate  time.Time       `json:"event_date" db:"event_date"`
	EmittedAt  time.Time       `json:"emitted_at" db:"emitted_at"`
}
