package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/carebridge/carebridge/pkg/isolation"
	"github.com/carebridge/carebridge/pkg/observability"
)

var (
	dbURL            = flag.String("db-url", getEnv("CARE_POSTGRES_URL", "postgres://localhost/carebridge?sslmode=disable"), "PostgreSQL connection URL")
	redisURL         = flag.String("redis-url", getEnv("CARE_REDIS_URL", ""), "Redis URL for the write breaker (empty for local-only mode)")
	auditSchedule    = flag.String("audit-schedule", getEnv("CARE_ISOLATION_AUDIT_SCHEDULE", "*/30 * * * *"), "Cron schedule for isolation audits (default: every 30 minutes)")
	breakerThreshold = flag.Int64("breaker-threshold", 10, "Anomalies within the window before a tenant's writes halt")
	breakerWindow    = flag.Duration("breaker-window", 10*time.Minute, "Sliding window for breaker anomaly counts")
	runOnce          = flag.Bool("run-once", false, "Run one audit and exit (for testing or on-demand checks)")
	auditTimeout     = flag.Duration("audit-timeout", 5*time.Minute, "Timeout for a single audit run")
)

func main() {
	flag.Parse()

	logger := observability.NewLogger(observability.InfoLevel, nil)

	// Connect to database
	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// The breaker shares its Redis keys with the API servers, so an
	// anomaly found here halts writes everywhere.
	var redisClient *redis.Client
	if *redisURL != "" {
		opts, err := redis.ParseURL(*redisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	breaker := isolation.NewBreaker(redisClient, *breakerThreshold, *breakerWindow, logger, nil)
	recorder := isolation.NewRecorder(logger, nil, breaker)
	monitor := isolation.NewMonitor(db, isolation.DefaultOrphanChecks(), recorder, logger, nil)

	// Run once mode (for testing or on-demand verification)
	if *runOnce {
		ctx, cancel := context.WithTimeout(context.Background(), *auditTimeout)
		defer cancel()

		report, err := monitor.RunAudit(ctx, "operator")
		if err != nil {
			log.Fatalf("Audit failed: %v", err)
		}
		printReport(report)
		if !report.Clean() {
			os.Exit(1)
		}
		return
	}

	// Scheduled mode
	c := cron.New()

	_, err = c.AddFunc(*auditSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), *auditTimeout)
		defer cancel()

		report, err := monitor.RunAudit(ctx, "schedule")
		if err != nil {
			log.Printf("Scheduled audit failed: %v", err)
			return
		}
		if report.Clean() {
			log.Println("Scheduled audit completed: clean")
		} else {
			log.Printf("Scheduled audit found %d orphan rows across tenants %v", report.OrphanCount, report.TenantsAffected)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule audits: %v", err)
	}

	c.Start()
	log.Println("Carebridge Isolation Auditor started")
	log.Printf("Audit schedule: %s", *auditSchedule)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	ctx := c.Stop()
	<-ctx.Done()
	log.Println("Carebridge Isolation Auditor stopped")
}

func printReport(report isolation.Report) {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Printf("Audit report: %+v", report)
		return
	}
	log.Printf("Audit report:\n%s", out)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
