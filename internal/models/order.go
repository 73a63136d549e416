package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusCanceled       OrderStatus = "canceled"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCanceled
}

// Order groups tickets for a single payment. Price is always the sum of
// the tickets' snapshotted prices, never edited independently. The
// ticket set is the Ticket side of the relationship (order_id foreign
// key); Tickets here is a view loaded by query.
type Order struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	UserEmail string          `json:"user_email" db:"user_email"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Status    OrderStatus     `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	Tickets   []Ticket        `json:"tickets,omitempty" db:"-"`
}
