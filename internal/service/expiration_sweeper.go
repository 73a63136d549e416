package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vogiaan1904/ticketbottle-settlement/internal/monitoring"
	repo "github.com/vogiaan1904/ticketbottle-settlement/internal/repository/postgres"
	"github.com/vogiaan1904/ticketbottle-settlement/pkg/logger"
)

// ExpirationSweeper cancels orders stuck in PENDING_PAYMENT past the
// TTL, closing the gap where a payment session is abandoned and no
// broker message ever arrives.
type ExpirationSweeper interface {
	Start(ctx context.Context) error
	Stop() error
	SweepOnce(ctx context.Context) (*SweepResult, error)
	GetStatus() SweeperStatus
}

type SweeperStatus struct {
	IsRunning    bool      `json:"is_running"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	LastSweep    time.Time `json:"last_sweep,omitempty"`
	TotalExpired int64     `json:"total_expired"`
	ErrorCount   int64     `json:"error_count"`
}

type SweeperConfig struct {
	Interval   time.Duration // how often to sweep
	PendingTTL time.Duration // how long an order may stay pending
	BatchSize  int           // max orders expired per sweep
}

type expirationSweeper struct {
	oRepo  repo.OrderRepository
	stlSvc SettlementService
	l      logger.Logger

	cfg SweeperConfig

	mu        sync.RWMutex
	isRunning bool
	startedAt time.Time
	stopCh    chan struct{}
	ticker    *time.Ticker
	wg        sync.WaitGroup

	lastSweep    time.Time
	totalExpired int64
	errorCount   int64
}

func NewExpirationSweeper(
	oRepo repo.OrderRepository,
	stlSvc SettlementService,
	l logger.Logger,
	cfg SweeperConfig,
) ExpirationSweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	return &expirationSweeper{
		oRepo:  oRepo,
		stlSvc: stlSvc,
		l:      l,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

func (sw *expirationSweeper) Start(ctx context.Context) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.isRunning {
		return errors.New("expiration sweeper is already running")
	}

	sw.l.Info(ctx, "Starting expiration sweeper",
		"interval", sw.cfg.Interval,
		"pending_ttl", sw.cfg.PendingTTL,
		"batch_size", sw.cfg.BatchSize,
	)

	sw.isRunning = true
	sw.startedAt = time.Now()
	sw.ticker = time.NewTicker(sw.cfg.Interval)

	sw.wg.Add(1)
	go sw.sweepLoop(ctx)

	return nil
}

func (sw *expirationSweeper) Stop() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if !sw.isRunning {
		return errors.New("expiration sweeper is not running")
	}

	close(sw.stopCh)
	sw.ticker.Stop()
	sw.wg.Wait()
	sw.isRunning = false

	return nil
}

func (sw *expirationSweeper) sweepLoop(ctx context.Context) {
	defer sw.wg.Done()

	for {
		select {
		case <-ctx.Done():
			sw.l.Info(ctx, "Expiration sweeper stopped due to context cancellation")
			return
		case <-sw.stopCh:
			return
		case <-sw.ticker.C:
			if _, err := sw.SweepOnce(ctx); err != nil {
				sw.incrementErrorCount()
				sw.l.Error(ctx, "Sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce expires one batch of overdue pending orders. Each order is
// handled in its own bounded unit of work so a long backlog never holds
// locks across the whole sweep; a second run right after is a no-op.
func (sw *expirationSweeper) SweepOnce(ctx context.Context) (*SweepResult, error) {
	cutoff := time.Now().Add(-sw.cfg.PendingTTL)

	orders, err := sw.oRepo.ListExpiredPending(ctx, cutoff, sw.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	res := &SweepResult{Scanned: len(orders)}
	for i := range orders {
		if err := sw.stlSvc.ExpireOrder(ctx, orders[i].ID); err != nil {
			sw.incrementErrorCount()
			sw.l.Error(ctx, "Failed to expire order",
				"order_id", orders[i].ID,
				"error", err,
			)
			// Keep going; the next sweep retries whatever is left.
			continue
		}
		res.Expired++
	}

	sw.mu.Lock()
	sw.lastSweep = time.Now()
	sw.totalExpired += int64(res.Expired)
	sw.mu.Unlock()

	if res.Expired > 0 {
		monitoring.OrdersExpired.Add(float64(res.Expired))
		sw.l.Info(ctx, "Sweep completed",
			"scanned", res.Scanned,
			"expired", res.Expired,
		)
	}

	return res, nil
}

func (sw *expirationSweeper) incrementErrorCount() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.errorCount++
}

func (sw *expirationSweeper) GetStatus() SweeperStatus {
	sw.mu.RLock()
	defer sw.mu.RUnlock()

	return SweeperStatus{
		IsRunning:    sw.isRunning,
		StartedAt:    sw.startedAt,
		LastSweep:    sw.lastSweep,
		TotalExpired: sw.totalExpired,
		ErrorCount:   sw.errorCount,
	}
}
