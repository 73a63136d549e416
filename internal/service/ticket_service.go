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

type TicketService interface {
	IssueTicket(ctx context.Context, in IssueTicketInput) (*models.Ticket, error)
	DeleteTicket(ctx context.Context, ticketID string) error
}

type ticketService struct {
	eRepo repo.EventRepository
	tRepo repo.TicketRepository
	cch   cache.Cache
	l     pkgLog.Logger
}

func NewTicketService(
	eRepo repo.EventRepository,
	tRepo repo.TicketRepository,
	cch cache.Cache,
	l pkgLog.Logger,
) TicketService {
	return &ticketService{
		eRepo: eRepo,
		tRepo: tRepo,
		cch:   cch,
		l:     l,
	}
}

// IssueTicket reserves one unit of inventory and only then persists the
// ticket, snapshotting the category name/price and event location/date
// at that instant. Reserving after the insert would reintroduce the
// oversell race the ledger exists to prevent.
func (s *ticketService) IssueTicket(ctx context.Context, in IssueTicketInput) (*models.Ticket, error) {
	cat, err := s.eRepo.GetCategory(ctx, in.CategoryID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCategoryNotInEvent
		}
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	if cat.EventID != in.EventID {
		s.l.Warnf(ctx, "service.ticketService.IssueTicket: %v", ErrCategoryNotInEvent)
		return nil, ErrCategoryNotInEvent
	}

	e, err := s.eRepo.Get(ctx, in.EventID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	ok, err := s.eRepo.Reserve(ctx, in.EventID, in.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve inventory: %w", err)
	}
	if !ok {
		monitoring.SoldOutRejections.WithLabelValues(in.EventID).Inc()
		return nil, ErrCategorySoldOut
	}

	t := &models.Ticket{
		EventID:    in.EventID,
		CategoryID: in.CategoryID,
		UserID:     in.UserID,
		Status:     models.TicketStatusReserved,
		Category:   cat.Name,
		Price:      cat.Price,
		Location:   e.Location,
		EventDate:  e.Date,
	}
	if err := s.tRepo.Create(ctx, t); err != nil {
		// The unit was consumed but the ticket row never existed; give
		// the unit back before surfacing the failure.
		if relErr := s.eRepo.Release(ctx, in.EventID, in.CategoryID); relErr != nil {
			s.l.Errorf(ctx, "service.ticketService.IssueTicket: release after failed insert: %v", relErr)
		}
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	if err := s.cch.EvictRemainingTickets(ctx, in.EventID); err != nil {
		s.l.Warnf(ctx, "service.ticketService.IssueTicket: cache eviction failed: %v", err)
	}

	monitoring.TicketsIssued.WithLabelValues(in.EventID).Inc()
	s.l.Info(ctx, "Ticket issued",
		"ticket_id", t.ID,
		"event_id", in.EventID,
		"category_id", in.CategoryID,
		"user_id", in.UserID,
	)

	return t, nil
}

// DeleteTicket removes an unordered ticket and releases its inventory.
func (s *ticketService) DeleteTicket(ctx context.Context, ticketID string) error {
	ts, err := s.tRepo.GetBatch(ctx, []string{ticketID})
	if err != nil {
		return fmt.Errorf("failed to load ticket: %w", err)
	}
	if len(ts) == 0 {
		return ErrTicketNotFound
	}
	t := ts[0]

	if t.OrderID != nil {
		return ErrTicketAlreadyOrdered
	}

	if err := s.tRepo.Delete(ctx, ticketID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTicketNotFound
		}
		return fmt.Errorf("failed to delete ticket: %w", err)
	}

	if err := s.eRepo.Release(ctx, t.EventID, t.CategoryID); err != nil {
		return fmt.Errorf("failed to release inventory: %w", err)
	}

	if err := s.cch.EvictRemainingTickets(ctx, t.EventID); err != nil {
		s.l.Warnf(ctx, "service.ticketService.DeleteTicket: cache eviction failed: %v", err)
	}

	return nil
}
