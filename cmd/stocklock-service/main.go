package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/api"
	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/application"
	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/config"
	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/infrastructure/db"
	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/infrastructure/memory"
	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/infrastructure/messaging"
	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/infrastructure/metrics"
	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/infrastructure/outbox"
	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/infrastructure/scheduler"
	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)
	log.Info().Str("port", cfg.HttpPort).Int("pool_size", cfg.PoolSize).
		Int64("initial_stock", cfg.InitialStock).Msg("Starting stocklock service")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.JaegerEndpoint != "" {
		tp, err := tracing.InitTracerProvider(cfg.ServiceName, cfg.JaegerEndpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize tracer provider")
		}
		defer func() {
			shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("tracer provider shutdown error")
			}
		}()
	}

	// Pool + coordinator
	pool := domain.NewResourcePool()
	if err := pool.Initialize(cfg.PoolSize, cfg.InitialStock); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize resource pool")
	}
	stats := application.NewReservationStats()
	coordinator := application.NewReservationCoordinator(pool, stats)

	// Repositories
	var (
		outboxRepo   domain.OutboxRepository   = memory.NewOutboxRepository()
		snapshotRepo domain.SnapshotRepository = memory.NewSnapshotRepository()
	)
	if cfg.PgDsn != "" {
		dbConn, err := sql.Open("pgx", cfg.PgDsn)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open postgres")
		}
		defer dbConn.Close()

		if err := dbConn.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping postgres")
		}
		if err := db.EnsureSchema(ctx, dbConn); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare schema")
		}
		outboxRepo = db.NewPgOutboxRepository(dbConn)
		if cfg.PersistSnapshots {
			snapshotRepo = db.NewPgSnapshotRepository(dbConn)
		}
	}
	ledger := memory.NewReservationLedger()

	// Application services
	outboxWriter := application.NewOutboxWriter(outboxRepo)
	reserveSvc := application.NewReserveStockService(pool, coordinator, ledger, outboxWriter, cfg.ReservationTimeout)
	releaseSvc := application.NewReleaseReservationService(pool, coordinator, ledger, outboxWriter, cfg.ReservationTimeout)
	simulator := application.NewSimulationRunner(pool, coordinator, application.SimulationLimits{
		MaxOrders:   cfg.SimulationMaxOrders,
		MaxCartSize: cfg.SimulationMaxCartSize,
	})

	// Messaging
	if cfg.RabbitUri != "" {
		buses := messaging.NewBuses(cfg.RabbitUri, cfg.QueuePrefix)

		dispatcher := outbox.NewDispatcher(outboxRepo, buses.Producer, cfg.OutboxMaxRetry, cfg.OutboxBatchSize)
		scheduler.New(dispatcher, cfg.OutboxInterval).Start(ctx)

		if err := messaging.RegisterOrderSubscriptions(
			ctx,
			buses.Orders,
			application.NewOrderPlacedHandler(reserveSvc),
			application.NewOrderCancelledHandler(releaseSvc),
		); err != nil {
			log.Fatal().Err(err).Msg("failed to start orders subscriptions")
		}
		if err := messaging.RegisterCatalogSubscriptions(
			ctx,
			buses.Catalog,
			application.NewProductCreatedHandler(pool, coordinator, outboxWriter, cfg.ReservationTimeout),
		); err != nil {
			log.Fatal().Err(err).Msg("failed to start catalog subscriptions")
		}
	} else {
		log.Warn().Msg("RABBITMQ_URI not set, events are kept in the outbox only")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)
	sampler := metrics.NewSampler(pool, stats, collector, snapshotRepo)
	scheduler.New(sampler, cfg.SnapshotInterval).Start(ctx)

	// HTTP API
	apiServer := api.NewServer(cfg, pool, stats, reserveSvc, releaseSvc, ledger, simulator, registry)
	httpSrv := &http.Server{
		Addr:              ":" + cfg.HttpPort,
		Handler:           apiServer.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("HTTP listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down stocklock service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}
	if err := pool.VerifyQuiescent(); err != nil {
		log.Error().Err(err).Msg("resource guards still held at shutdown")
	}
	log.Info().Int64("total_stock", pool.TotalStock()).Msg("stocklock service stopped")
}

func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName).Logger()
}
