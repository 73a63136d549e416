package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vogiaan1904/ticketbottle-settlement/internal/cache"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/models"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/monitoring"
	repo "github.com/vogiaan1904/ticketbottle-settlement/internal/repository/postgres"
	pkgLog "github.com/vogiaan1904/ticketbottle-settlement/pkg/logger"
)

// SettlementService applies the asynchronous payment outcome to a
// pending order. Both handlers are idempotent per order id: the broker
// delivers at least once, and the expiration sweeper races them for the
// same orders.
type SettlementService interface {
	HandleOrderPaid(ctx context.Context, in OrderPaidInput) error
	HandlePaymentFailed(ctx context.Context, in PaymentFailedInput) error

	// ExpireOrder is the sweeper's entry into the same compensation
	// path; a no-op when the order is already terminal.
	ExpireOrder(ctx context.Context, orderID string) error
}

type settlementService struct {
	tRepo repo.TicketRepository
	oRepo repo.OrderRepository
	oSvc  OrderService
	cch   cache.Cache
	l     pkgLog.Logger
}

func NewSettlementService(
	tRepo repo.TicketRepository,
	oRepo repo.OrderRepository,
	oSvc OrderService,
	cch cache.Cache,
	l pkgLog.Logger,
) SettlementService {
	return &settlementService{
		tRepo: tRepo,
		oRepo: oRepo,
		oSvc:  oSvc,
		cch:   cch,
		l:     l,
	}
}

// HandleOrderPaid confirms the order. Inventory was already committed
// at ticket-issue time, so no counter moves here.
func (s *settlementService) HandleOrderPaid(ctx context.Context, in OrderPaidInput) error {
	o, err := s.oRepo.Get(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// A paid event for an order that does not exist is a data
			// integrity problem; surface it so the message reaches the
			// dead-letter path instead of being retried forever.
			return fmt.Errorf("%w: order %s", ErrOrderNotFound, in.OrderID)
		}
		return fmt.Errorf("failed to load order: %w", err)
	}

	// The PENDING_PAYMENT guard in the WHERE clause decides the race: a
	// duplicate delivery, or a paid message arriving after the sweeper
	// already canceled the order, moves zero rows and stops here.
	moved, err := s.oRepo.UpdateStatusIf(ctx, in.OrderID, models.OrderStatusPendingPayment, models.OrderStatusPaid)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if !moved {
		s.l.Warn(ctx, "Paid event for terminal order, skipping",
			"order_id", in.OrderID,
			"status", o.Status,
		)
		return nil
	}

	if err := s.tRepo.UpdateStatusByOrder(ctx, in.OrderID, models.TicketStatusPaid); err != nil {
		return fmt.Errorf("failed to update ticket statuses: %w", err)
	}

	if err := s.cch.EvictUserOrders(ctx, o.UserID); err != nil {
		s.l.Warnf(ctx, "service.settlementService.HandleOrderPaid: cache eviction failed: %v", err)
	}

	monitoring.SettlementEvents.WithLabelValues("paid").Inc()
	s.l.Info(ctx, "Order settled as paid",
		"order_id", in.OrderID,
		"tickets", len(o.Tickets),
	)

	return nil
}

// HandlePaymentFailed cancels the order and compensates: tickets are
// marked failed, detached, and their inventory is released.
func (s *settlementService) HandlePaymentFailed(ctx context.Context, in PaymentFailedInput) error {
	o, err := s.oRepo.Get(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: order %s", ErrOrderNotFound, in.OrderID)
		}
		return fmt.Errorf("failed to load order: %w", err)
	}

	canceled, err := s.cancelOrder(ctx, o, models.TicketStatusFailed)
	if err != nil {
		return err
	}
	if !canceled {
		s.l.Warn(ctx, "Payment-failed event for terminal order, skipping",
			"order_id", in.OrderID,
			"status", o.Status,
		)
		return nil
	}

	monitoring.SettlementEvents.WithLabelValues("failed").Inc()
	monitoring.OrdersCanceled.WithLabelValues("payment_failed").Inc()
	s.l.Info(ctx, "Order canceled after payment failure",
		"order_id", in.OrderID,
		"reason", in.Reason,
		"tickets", len(o.Tickets),
	)

	return nil
}

func (s *settlementService) ExpireOrder(ctx context.Context, orderID string) error {
	o, err := s.oRepo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: order %s", ErrOrderNotFound, orderID)
		}
		return fmt.Errorf("failed to load order: %w", err)
	}

	canceled, err := s.cancelOrder(ctx, o, models.TicketStatusExpired)
	if err != nil {
		return err
	}
	if !canceled {
		// Already terminal, nothing to compensate.
		return nil
	}

	monitoring.OrdersCanceled.WithLabelValues("expired").Inc()
	s.l.Info(ctx, "Order expired",
		"order_id", orderID,
		"tickets", len(o.Tickets),
	)

	return nil
}

// cancelOrder is the shared compensation: order becomes CANCELED, its
// tickets take the given terminal status and lose their order
// reference, and every consumed unit goes back to the ledger. The
// transition is a single conditional UPDATE guarded by PENDING_PAYMENT,
// so of any number of racing cancellers (sweeper vs duplicate broker
// delivery) exactly one wins the row and proceeds to detach and
// release; the rest report false and must not compensate.
func (s *settlementService) cancelOrder(ctx context.Context, o *models.Order, ts models.TicketStatus) (bool, error) {
	moved, err := s.oRepo.UpdateStatusIf(ctx, o.ID, models.OrderStatusPendingPayment, models.OrderStatusCanceled)
	if err != nil {
		return false, fmt.Errorf("failed to cancel order: %w", err)
	}
	if !moved {
		return false, nil
	}

	if err := s.tRepo.DetachFromOrder(ctx, o.ID, ts); err != nil {
		return false, fmt.Errorf("failed to detach tickets: %w", err)
	}

	if err := s.oSvc.ReleaseOrderInventory(ctx, o.Tickets); err != nil {
		return false, err
	}

	for _, eventID := range distinctEventIDs(o.Tickets) {
		if err := s.cch.EvictRemainingTickets(ctx, eventID); err != nil {
			s.l.Warnf(ctx, "service.settlementService.cancelOrder: cache eviction failed: %v", err)
		}
	}
	if err := s.cch.EvictUserOrders(ctx, o.UserID); err != nil {
		s.l.Warnf(ctx, "service.settlementService.cancelOrder: cache eviction failed: %v", err)
	}

	return true, nil
}

func distinctEventIDs(tickets []models.Ticket) []string {
	seen := map[string]bool{}
	var out []string
	for i := range tickets {
		if !seen[tickets[i].EventID] {
			seen[tickets[i].EventID] = true
			out = append(out, tickets[i].EventID)
		}
	}
	return out
}
