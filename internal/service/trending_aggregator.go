package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/vogiaan1904/ticketbottle-settlement/internal/cache"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/models"
	repo "github.com/vogiaan1904/ticketbottle-settlement/internal/repository/postgres"
	"github.com/vogiaan1904/ticketbottle-settlement/pkg/logger"
)

// TrendingAggregator periodically recomputes which events are trending
// from recent ticket emissions and evicts the trending cache entry.
type TrendingAggregator interface {
	Start(ctx context.Context) error
	Stop() error
	RecomputeOnce(ctx context.Context) (*TrendingResult, error)
}

type TrendingConfig struct {
	Interval time.Duration // how often to recompute
	Window   time.Duration // rolling emission window
	TopN     int           // how many events get the flag
}

type trendingAggregator struct {
	eRepo repo.EventRepository
	tRepo repo.TicketRepository
	cch   cache.Cache
	l     logger.Logger

	cfg TrendingConfig

	mu        sync.Mutex
	isRunning bool
	stopCh    chan struct{}
	ticker    *time.Ticker
	wg        sync.WaitGroup
}

func NewTrendingAggregator(
	eRepo repo.EventRepository,
	tRepo repo.TicketRepository,
	cch cache.Cache,
	l logger.Logger,
	cfg TrendingConfig,
) TrendingAggregator {
	return &trendingAggregator{
		eRepo:  eRepo,
		tRepo:  tRepo,
		cch:    cch,
		l:      l,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

func (a *trendingAggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.isRunning {
		return errors.New("trending aggregator is already running")
	}

	a.l.Info(ctx, "Starting trending aggregator",
		"interval", a.cfg.Interval,
		"window", a.cfg.Window,
		"top_n", a.cfg.TopN,
	)

	a.isRunning = true
	a.ticker = time.NewTicker(a.cfg.Interval)

	a.wg.Add(1)
	go a.loop(ctx)

	return nil
}

func (a *trendingAggregator) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isRunning {
		return errors.New("trending aggregator is not running")
	}

	close(a.stopCh)
	a.ticker.Stop()
	a.wg.Wait()
	a.isRunning = false

	return nil
}

func (a *trendingAggregator) loop(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			a.l.Info(ctx, "Trending aggregator stopped due to context cancellation")
			return
		case <-a.stopCh:
			return
		case <-a.ticker.C:
			if _, err := a.RecomputeOnce(ctx); err != nil {
				a.l.Error(ctx, "Trending recompute failed", "error", err)
			}
		}
	}
}

// RecomputeOnce counts emissions inside the rolling window per event,
// stores the counts, flags the top-N, and evicts the trending cache.
// Ties break by event id; the ordering is display-only.
func (a *trendingAggregator) RecomputeOnce(ctx context.Context) (*TrendingResult, error) {
	events, err := a.eRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := a.tRepo.CountEmittedSince(ctx, time.Now().Add(-a.cfg.Window))
	if err != nil {
		return nil, err
	}

	// Events with no recent emissions still get their counter reset.
	full := make(map[string]int, len(events))
	for i := range events {
		full[events[i].ID] = counts[events[i].ID]
	}

	ranked := make([]models.Event, len(events))
	copy(ranked, events)
	sort.SliceStable(ranked, func(i, j int) bool {
		ci, cj := full[ranked[i].ID], full[ranked[j].ID]
		if ci != cj {
			return ci > cj
		}
		return ranked[i].ID < ranked[j].ID
	})

	n := a.cfg.TopN
	if n > len(ranked) {
		n = len(ranked)
	}

	trendingIDs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		trendingIDs = append(trendingIDs, ranked[i].ID)
	}

	if err := a.eRepo.UpdateTrending(ctx, full, trendingIDs); err != nil {
		return nil, err
	}

	if err := a.cch.EvictTrendingEvents(ctx); err != nil {
		a.l.Warnf(ctx, "service.trendingAggregator.RecomputeOnce: cache eviction failed: %v", err)
	}

	trending := ranked[:n]
	for i := range trending {
		trending[i].IsTrending = true
		trending[i].TicketsEmittedRecently = full[trending[i].ID]
	}

	a.l.Info(ctx, "Trending recomputed",
		"events", len(events),
		"trending", len(trending),
	)

	return &TrendingResult{
		Events:   len(events),
		Trending: trending,
		Counts:   full,
	}, nil
}
