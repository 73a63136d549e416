package service

import "errors"

var (
	// ErrCategorySoldOut covers both exhaustion cases: the category
	// counter and the event counter are decremented in one reservation,
	// and a caller cannot buy from either once the reservation fails.
	ErrCategorySoldOut    = errors.New("ticket category sold out")
	ErrCategoryNotInEvent = errors.New("category does not belong to event")

	ErrEventNotFound  = errors.New("event not found")
	ErrTicketNotFound = errors.New("ticket not found")
	ErrOrderNotFound  = errors.New("order not found")

	ErrTicketAlreadyOrdered = errors.New("ticket already belongs to an order")
)
