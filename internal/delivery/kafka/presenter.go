package kafka

import (
	"time"

	"github.com/shopspring/decimal"
)

// Events published BY the settlement service

type PaymentRequestEvent struct {
	OrderID     string               `json:"order_id"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	Items       []PaymentRequestItem `json:"items"`
	UserEmail   string               `json:"user_email"`
	Timestamp   time.Time            `json:"timestamp"`
}

type PaymentRequestItem struct {
	CategoryName string          `json:"category_name"`
	Price        decimal.Decimal `json:"price"`
	TicketID     string          `json:"ticket_id"`
}

// Events consumed BY the settlement service (from the payment gateway
// integration)

type OrderPaidEvent struct {
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
}

type PaymentFailedEvent struct {
	OrderID   string    `json:"order_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
