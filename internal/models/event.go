package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	ID                      string    `json:"id" db:"id"`
	Name                    string    `json:"name" db:"name"`
	Date                    time.Time `json:"date" db:"date"`
	Location                string    `json:"location" db:"location"`
	AvailableTickets        int       `json:"available_tickets" db:"available_tickets"`
	OriginalAmountOfTickets int       `json:"original_amount_of_tickets" db:"original_amount_of_tickets"`
	IsTrending              bool      `json:"is_trending" db:"is_trending"`
	TicketsEmittedRecently  int       `json:"tickets_emitted_recently" db:"tickets_emitted_recently"`
	CreatedAt               time.Time `json:"created_at" db:"created_at"`
}

type TicketCategory struct {
	ID                       string          `json:"id" db:"id"`
	EventID                  string          `json:"event_id" db:"event_id"`
	Name                     string          `json:"name" db:"name"`
	Price                    decimal.Decimal `json:"price" db:"price"`
	AvailableCategoryTickets int             `json:"available_category_tickets" db:"available_category_tickets"`
}

// RemainingTickets is the derived read model cached under
// remaining-tickets:{eventID}.
type RemainingTickets struct {
	EventID     string         `json:"event_id"`
	Event       int            `json:"event"`
	PerCategory map[string]int `json:"per_category"`
}
