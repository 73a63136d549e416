package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/cache"
	kafka "github.com/vogiaan1904/ticketbottle-settlement/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/models"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/monitoring"
	repo "github.com/vogiaan1904/ticketbottle-settlement/internal/repository/postgres"
	pkgLog "github.com/vogiaan1904/ticketbottle-settlement/pkg/logger"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListUserOrders(ctx context.Context, in ListUserOrdersInput) ([]models.Order, error)

	// ReleaseOrderInventory gives back one unit per ticket of the order.
	// Shared by every compensation path: deletion, payment failure and
	// expiration.
	ReleaseOrderInventory(ctx context.Context, tickets []models.Ticket) error
}

type orderService struct {
	eRepo repo.EventRepository
	tRepo repo.TicketRepository
	oRepo repo.OrderRepository
	cch   cache.Cache
	prod  producer.Producer
	l     pkgLog.Logger
}

func NewOrderService(
	eRepo repo.EventRepository,
	tRepo repo.TicketRepository,
	oRepo repo.OrderRepository,
	cch cache.Cache,
	prod producer.Producer,
	l pkgLog.Logger,
) OrderService {
	return &orderService{
		eRepo: eRepo,
		tRepo: tRepo,
		oRepo: oRepo,
		cch:   cch,
		prod:  prod,
		l:     l,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	tickets, err := s.tRepo.GetBatch(ctx, in.TicketIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets: %w", err)
	}
	if len(tickets) != len(in.TicketIDs) {
		s.l.Warn(ctx, "Order refers to missing tickets",
			"requested", len(in.TicketIDs),
			"found", len(tickets),
		)
		return nil, ErrTicketNotFound
	}

	// Exclusivity is checked before any mutation so a half-applied
	// order is never persisted; the attach statement enforces it again
	// under the transaction.
	for i := range tickets {
		if tickets[i].OrderID != nil {
			return nil, ErrTicketAlreadyOrdered
		}
	}

	price := decimal.Zero
	for i := range tickets {
		price = price.Add(tickets[i].Price)
	}

	o := &models.Order{
		UserID:    in.UserID,
		UserEmail: in.UserEmail,
		Price:     price,
	}
	if err := s.oRepo.CreateWithTickets(ctx, o, in.TicketIDs); err != nil {
		if errors.Is(err, repo.ErrTicketConflict) {
			return nil, ErrTicketAlreadyOrdered
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// The snapshots were fetched before the attach; stamp them so the
	// returned order reflects the committed rows.
	for i := range tickets {
		oid := o.ID
		tickets[i].OrderID = &oid
		tickets[i].Status = models.TicketStatusPending
	}
	o.Tickets = tickets

	s.evictOrderCaches(ctx, in.UserID, tickets)

	items := make([]kafka.PaymentRequestItem, 0, len(tickets))
	for i := range tickets {
		items = append(items, kafka.PaymentRequestItem{
			CategoryName: tickets[i].Category,
			Price:        tickets[i].Price,
			TicketID:     tickets[i].ID,
		})
	}

	// Fire-and-forget: a publish failure leaves the committed order
	// PENDING_PAYMENT for the expiration sweeper to reconcile.
	if err := s.prod.PublishPaymentRequest(ctx, kafka.PaymentRequestEvent{
		OrderID:     o.ID,
		TotalAmount: o.Price,
		Items:       items,
		UserEmail:   in.UserEmail,
	}); err != nil {
		s.l.Errorf(ctx, "service.orderService.CreateOrder: publish payment request: %v", err)
	}

	monitoring.OrdersCreated.Inc()
	s.l.Info(ctx, "Order created",
		"order_id", o.ID,
		"user_id", in.UserID,
		"tickets", len(tickets),
		"price", o.Price.String(),
	)

	return o, nil
}

// DeleteOrder is the compensating counterpart to CreateOrder: it
// releases exactly the inventory the order's tickets consumed, then
// removes the order.
func (s *orderService) DeleteOrder(ctx context.Context, orderID string) error {
	o, err := s.oRepo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to load order: %w", err)
	}

	if err := s.ReleaseOrderInventory(ctx, o.Tickets); err != nil {
		return err
	}

	if err := s.tRepo.DetachFromOrder(ctx, orderID, models.TicketStatusCanceled); err != nil {
		return fmt.Errorf("failed to detach tickets: %w", err)
	}

	if err := s.oRepo.Delete(ctx, orderID); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	s.evictOrderCaches(ctx, o.UserID, o.Tickets)

	monitoring.OrdersCanceled.WithLabelValues("deleted").Inc()
	s.l.Info(ctx, "Order deleted",
		"order_id", orderID,
		"tickets", len(o.Tickets),
	)

	return nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := s.oRepo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	return o, nil
}

func (s *orderService) ListUserOrders(ctx context.Context, in ListUserOrdersInput) ([]models.Order, error) {
	orders, err := s.cch.GetUserOrders(ctx, in.UserID, in.Page, in.PageSize)
	if err == nil {
		return orders, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.l.Warnf(ctx, "service.orderService.ListUserOrders: cache read failed: %v", err)
	}

	orders, err = s.oRepo.ListByUser(ctx, in.UserID, in.Page, in.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	if err := s.cch.SetUserOrders(ctx, in.UserID, in.Page, in.PageSize, orders); err != nil {
		s.l.Warnf(ctx, "service.orderService.ListUserOrders: cache write failed: %v", err)
	}

	return orders, nil
}

func (s *orderService) ReleaseOrderInventory(ctx context.Context, tickets []models.Ticket) error {
	for i := range tickets {
		if err := s.eRepo.Release(ctx, tickets[i].EventID, tickets[i].CategoryID); err != nil {
			return fmt.Errorf("failed to release inventory for ticket %s: %w", tickets[i].ID, err)
		}
	}
	return nil
}

// evictOrderCaches drops the remaining-tickets entry of every distinct
// event touched plus the user's order pages. Failed evictions never
// abort the mutation that triggered them.
func (s *orderService) evictOrderCaches(ctx context.Context, userID string, tickets []models.Ticket) {
	seen := map[string]bool{}
	for i := range tickets {
		if seen[tickets[i].EventID] {
			continue
		}
		seen[tickets[i].EventID] = true

		if err := s.cch.EvictRemainingTickets(ctx, tickets[i].EventID); err != nil {
			s.l.Warnf(ctx, "service.orderService.evictOrderCaches: %v", err)
		}
	}

	if err := s.cch.EvictUserOrders(ctx, userID); err != nil {
		s.l.Warnf(ctx, "service.orderService.evictOrderCaches: %v", err)
	}
}
