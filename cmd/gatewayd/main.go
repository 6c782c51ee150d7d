package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/superproxy/relay-gateway/internal/api"
	"github.com/superproxy/relay-gateway/internal/core/ports"
	"github.com/superproxy/relay-gateway/internal/core/service"
	mongodb "github.com/superproxy/relay-gateway/internal/infrastructure/db/mongo"
	redisdb "github.com/superproxy/relay-gateway/internal/infrastructure/db/redis"
	"github.com/superproxy/relay-gateway/internal/infrastructure/health"
	"github.com/superproxy/relay-gateway/internal/infrastructure/relay"
	"github.com/superproxy/relay-gateway/internal/pkg/config"
	"github.com/superproxy/relay-gateway/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to mongodb")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("ensuring mongodb indexes")
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to redis")
	}
	defer rdb.Close()

	// --- Repositories ---
	nodeRepo := mongodb.NewNodeRepository(db)
	allocationRepo := mongodb.NewAllocationRepository(db)
	domainRepo := mongodb.NewDomainRepository(db)
	usageRepo := mongodb.NewUsageRepository(db)
	accountRepo := mongodb.NewAccountRepository(db)

	// --- Core services ---
	codec := service.NewSessionCodec(cfg.Session.TokenSecret, cfg.Session.TokenTTL)
	usageMeter := service.NewUsageService(usageRepo, accountRepo, log)
	allocator := service.NewAllocatorService(nodeRepo, allocationRepo, domainRepo, service.AllocatorConfig{
		PortRangeStart: cfg.Gateway.PortRangeStart,
		PortRangeEnd:   cfg.Gateway.PortRangeEnd,
		Shards:         cfg.Gateway.AllocatorShards,
	}, log)
	allocator.Start(ctx)
	agentService := service.NewAgentSyncService(nodeRepo, allocationRepo, accountRepo, usageRepo, log)
	subscriptionService := service.NewSubscriptionResolver(accountRepo, usageMeter, allocator, domainRepo, nodeRepo, codec, log)

	// --- Relay plane ---
	dialer := relay.NewWSDialer(cfg.Gateway.BackendScheme, cfg.Gateway.BackendPath, cfg.Gateway.DialTimeout)
	reporter := relay.NewReporter(usageSinkFunc(usageMeter.Report), redisdb.NewReportDedup(rdb), log)
	registry := relay.NewRegistry(dialer, reporter, log)

	// --- Domain health monitor ---
	failover := health.NewFailoverController(domainRepo, nil, log)
	monitor := health.NewMonitor(health.MonitorConfig{
		Interval:    cfg.Probe.Interval,
		Timeout:     cfg.Probe.Timeout,
		AgentSecret: cfg.Gateway.AgentSecret,
	}, domainRepo, failover, log)
	go monitor.Run(ctx)

	// --- HTTP ---
	e := api.NewRouter(api.Dependencies{
		Codec:         codec,
		Usage:         usageMeter,
		Agents:        agentService,
		Subscriptions: subscriptionService,
		Allocator:     allocator,
		Nodes:         nodeRepo,
		Domains:       domainRepo,
		Accounts:      accountRepo,
		Allocations:   allocationRepo,
		Registry:      registry,
		Mongo:         db,
		Redis:         rdb,
		JWTSecret:     cfg.JWTSecret,
		AgentSecret:   cfg.Gateway.AgentSecret,
		UsageSecret:   cfg.Gateway.UsageSecret,
		Log:           log,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("relay gateway started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	// Let in-flight usage reports land before the process exits; every byte
	// already counted belongs to someone's bill.
	reporter.Wait()
	log.Info().Msg("shutdown complete")
}

// usageSinkFunc adapts the usage meter's Report method to the relay package's
// UsageSink without dragging the ports package into relay.
type usageSinkFunc func(ctx context.Context, userID string, bytesUsed int64) (ports.UsageStatus, error)

func (f usageSinkFunc) ReportUsage(ctx context.Context, userID string, bytesUsed int64) error {
	_, err := f(ctx, userID, bytesUsed)
	return err
}
