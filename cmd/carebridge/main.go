package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/carebridge/carebridge/pkg/api"
	"github.com/carebridge/carebridge/pkg/authz"
	"github.com/carebridge/carebridge/pkg/config"
	"github.com/carebridge/carebridge/pkg/isolation"
	"github.com/carebridge/carebridge/pkg/observability"
	"github.com/carebridge/carebridge/pkg/records"
	"github.com/carebridge/carebridge/pkg/storage/postgres"
	"github.com/carebridge/carebridge/pkg/tenants"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, nil)
	logger.Info("starting carebridge")

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	// Database connections. The primary takes every write; replicas, when
	// configured, serve scope resolution and monitor reads.
	connMgr, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: postgres.ParseReplicaURLs(cfg.Database.ReplicaURLs),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Apply pending migrations before serving. The engine refuses to start
	// if a migration references a composite key that was never declared, or
	// if a backfill cannot place every row.
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 5*time.Minute)
	engine := postgres.NewEngine(connMgr.Primary(), logger)
	if err := engine.Run(migrateCtx, postgres.Migrations()); err != nil {
		cancelMigrate()
		log.Fatalf("Failed to run migrations: %v", err)
	}
	cancelMigrate()

	// Redis backs the write breaker. Without it the breaker still trips,
	// but only per process.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		opts.DB = cfg.Redis.DB
		redisClient = redis.NewClient(opts)

		pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, breaker running in local mode")
		}
		cancelPing()
	} else {
		logger.Warn("CARE_REDIS_URL not set, breaker state will not survive restarts")
	}

	breaker := isolation.NewBreaker(redisClient, int64(cfg.Isolation.BreakerThreshold), cfg.Isolation.BreakerWindow, logger, metrics)
	recorder := isolation.NewRecorder(logger, metrics, breaker)
	monitor := isolation.NewMonitor(connMgr.Replica(), isolation.DefaultOrphanChecks(), recorder, logger, metrics)

	// A dirty database is a refusal to serve, not a warning.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := monitor.VerifyAtStartup(startupCtx); err != nil {
		cancelStartup()
		log.Fatalf("Startup isolation audit failed: %v", err)
	}
	cancelStartup()

	authzStore := authz.NewStore(connMgr.Replica())
	authzService := authz.NewService(authz.NewStoreResolver(authzStore, metrics), metrics)
	recordsService := records.NewService(authzService, records.NewStore(connMgr.Primary()), recorder, breaker, logger)
	tenantStore := tenants.NewStore(connMgr.Primary(), logger)

	server := api.NewServer(api.Config{
		Authz:        authzService,
		Records:      recordsService,
		Tenants:      tenantStore,
		Monitor:      monitor,
		Breaker:      breaker,
		Logger:       logger,
		Metrics:      metrics,
		Authenticate: authz.SessionMiddleware(authzStore, logger),
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate listener so probes stay off the
	// public port.
	health := observability.NewHealthChecker(connMgr.Primary(), redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", health.Liveness)
	healthMux.HandleFunc("/readyz", health.Readiness)
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
	go func() {
		logger.WithField("port", cfg.Server.HealthPort).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		if redisClient != nil {
			return redisClient.Close()
		}
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return connMgr.Close()
	})

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("api server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
	}
	logger.Info("carebridge stopped")
}
