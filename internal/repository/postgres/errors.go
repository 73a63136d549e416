package repository

import "errors"

var (
	ErrNotFound = errors.New("record not found")

	// ErrTicketConflict means at least one ticket in the batch already
	// belonged to an order when the attach statement ran.
	ErrTicketConflict = errors.New("ticket already attached to an order")
)
