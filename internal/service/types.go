package service

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/models"
)

type CreateEventInput struct {
	Name       string                `json:"name" validate:"required"`
	Date       time.Time             `json:"date" validate:"required"`
	Location   string                `json:"location"`
	Categories []CreateCategoryInput `json:"categories" validate:"required,min=1"`
}

type CreateCategoryInput struct {
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Capacity int             `json:"capacity" validate:"gte=0"`
}

type IssueTicketInput struct {
	EventID    string `json:"event_id" validate:"required"`
	CategoryID string `json:"category_id" validate:"required"`
	UserID     string `json:"user_id" validate:"required"`
}

type CreateOrderInput struct {
	TicketIDs []string `json:"ticket_ids" validate:"required,min=1"`
	UserID    string   `json:"user_id" validate:"required"`
	UserEmail string   `json:"user_email" validate:"required,email"`
}

type OrderPaidInput struct {
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
}

type PaymentFailedInput struct {
	OrderID   string    `json:"order_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type ListUserOrdersInput struct {
	UserID   string `json:"user_id" validate:"required"`
	Page     int    `json:"page" validate:"gte=1"`
	PageSize int    `json:"page_size" validate:"gte=1,lte=100"`
}

type SweepResult struct {
	Scanned int `json:"scanned"`
	Expired int `json:"expired"`
}

type TrendingResult struct {
	Events   int            `json:"events"`
	Trending []models.Event `json:"trending"`
	Counts   map[string]int `json:"counts"`
}
