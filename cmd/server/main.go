package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vogiaan1904/ticketbottle-settlement/config"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/cache"
	httpDelivery "github.com/vogiaan1904/ticketbottle-settlement/internal/delivery/http"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/delivery/kafka/consumer"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/delivery/kafka/producer"
	infraPostgres "github.com/vogiaan1904/ticketbottle-settlement/internal/infra/postgres"
	infraRedis "github.com/vogiaan1904/ticketbottle-settlement/internal/infra/redis"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/monitoring"
	repo "github.com/vogiaan1904/ticketbottle-settlement/internal/repository/postgres"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/service"
	pkgKafka "github.com/vogiaan1904/ticketbottle-settlement/pkg/kafka"
	pkgLog "github.com/vogiaan1904/ticketbottle-settlement/pkg/logger"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	db, err := infraPostgres.Connect(ctx, cfg.Postgres)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Postgres: %v", err)
	}
	defer infraPostgres.Disconnect(db)

	redisCli, err := infraRedis.Connect(ctx, cfg.Redis)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer infraRedis.Disconnect(redisCli)

	eRepo := repo.NewEventRepository(db, l)
	tRepo := repo.NewTicketRepository(db, l)
	oRepo := repo.NewOrderRepository(db, tRepo, l)
	cch := cache.New(redisCli, l)

	// Initialize Kafka producer
	kafkaSyncProd, err := pkgKafka.NewProducer(cfg.Kafka)
	if err != nil {
		l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
	}

	// Initialize Kafka consumer
	kafkaConsGr, err := pkgKafka.NewConsumerGroup(cfg.Kafka)
	if err != nil {
		l.Fatalf(ctx, "Failed to initialize Kafka consumer: %v", err)
	}

	prod := producer.NewProducer(kafkaSyncProd, l)
	defer prod.Close()

	// Initialize services
	evtSvc := service.NewEventService(eRepo, cch, l)
	tktSvc := service.NewTicketService(eRepo, tRepo, cch, l)
	ordSvc := service.NewOrderService(eRepo, tRepo, oRepo, cch, prod, l)
	stlSvc := service.NewSettlementService(tRepo, oRepo, ordSvc, cch, l)

	// Settlement consumer
	cons := consumer.NewConsumer(kafkaConsGr, stlSvc, prod, l)
	if err := cons.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start settlement consumer: %v", err)
	}
	defer cons.Close()

	// Background jobs
	sweeper := service.NewExpirationSweeper(oRepo, stlSvc, l, service.SweeperConfig{
		Interval:   cfg.Sweeper.Interval,
		PendingTTL: cfg.Sweeper.PendingTTL,
		BatchSize:  cfg.Sweeper.BatchSize,
	})
	if err := sweeper.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start expiration sweeper: %v", err)
	}
	defer sweeper.Stop()

	aggregator := service.NewTrendingAggregator(eRepo, tRepo, cch, l, service.TrendingConfig{
		Interval: cfg.Trending.Interval,
		Window:   cfg.Trending.Window,
		TopN:     cfg.Trending.TopN,
	})
	if err := aggregator.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start trending aggregator: %v", err)
	}
	defer aggregator.Stop()

	// HTTP API
	mux := http.NewServeMux()
	httpDelivery.NewHTTPHandler(evtSvc, tktSvc, ordSvc, l).Register(mux)

	apiSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Metrics listener
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: monitoring.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Infof(gctx, "HTTP server listening on port: %d", cfg.Server.Port)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		l.Infof(gctx, "Metrics listening on port: %d", cfg.Metrics.Port)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info(ctx, "Server shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiSrv.Shutdown(shutdownCtx)
	metricsSrv.Shutdown(shutdownCtx)

	if err := g.Wait(); err != nil {
		l.Errorf(ctx, "HTTP server error: %v", err)
	}

	l.Info(ctx, "Server exited")
}
