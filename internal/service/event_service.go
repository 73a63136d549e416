package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vogiaan1904/ticketbottle-settlement/internal/cache"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/models"
	repo "github.com/vogiaan1904/ticketbottle-settlement/internal/repository/postgres"
	pkgLog "github.com/vogiaan1904/ticketbottle-settlement/pkg/logger"
)

type EventService interface {
	CreateEvent(ctx context.Context, in CreateEventInput) (*models.Event, error)
	GetRemainingTickets(ctx context.Context, eventID string) (*models.RemainingTickets, error)
	ListTrendingEvents(ctx context.Context) ([]models.Event, error)
}

type eventService struct {
	eRepo repo.EventRepository
	cch   cache.Cache
	l     pkgLog.Logger
}

func NewEventService(eRepo repo.EventRepository, cch cache.Cache, l pkgLog.Logger) EventService {
	return &eventService{
		eRepo: eRepo,
		cch:   cch,
		l:     l,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, in CreateEventInput) (*models.Event, error) {
	e := &models.Event{
		Name:     in.Name,
		Date:     in.Date,
		Location: in.Location,
	}

	cats := make([]models.TicketCategory, 0, len(in.Categories))
	for _, c := range in.Categories {
		cats = append(cats, models.TicketCategory{
			Name:                     c.Name,
			Price:                    c.Price,
			AvailableCategoryTickets: c.Capacity,
		})
	}

	if err := s.eRepo.Create(ctx, e, cats); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.l.Info(ctx, "Event created",
		"event_id", e.ID,
		"name", e.Name,
		"capacity", e.OriginalAmountOfTickets,
	)

	return e, nil
}

// GetRemainingTickets reads through the cache: hits serve the cached
// counts, misses recompute from the ledger and repopulate the entry.
func (s *eventService) GetRemainingTickets(ctx context.Context, eventID string) (*models.RemainingTickets, error) {
	rem, err := s.cch.GetRemainingTickets(ctx, eventID)
	if err == nil {
		return rem, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.l.Warnf(ctx, "service.eventService.GetRemainingTickets: cache read failed: %v", err)
	}

	rem, err = s.eRepo.RemainingTickets(ctx, eventID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to compute remaining tickets: %w", err)
	}

	if err := s.cch.SetRemainingTickets(ctx, rem); err != nil {
		s.l.Warnf(ctx, "service.eventService.GetRemainingTickets: cache write failed: %v", err)
	}

	return rem, nil
}

func (s *eventService) ListTrendingEvents(ctx context.Context) ([]models.Event, error) {
	events, err := s.cch.GetTrendingEvents(ctx)
	if err == nil {
		return events, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.l.Warnf(ctx, "service.eventService.ListTrendingEvents: cache read failed: %v", err)
	}

	events, err = s.eRepo.ListTrending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list trending events: %w", err)
	}

	if err := s.cch.SetTrendingEvents(ctx, events); err != nil {
		s.l.Warnf(ctx, "service.eventService.ListTrendingEvents: cache write failed: %v", err)
	}

	return events, nil
}
