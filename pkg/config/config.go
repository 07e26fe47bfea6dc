package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/carebridge/carebridge/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Isolation     IsolationConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL         string
	ReplicaURLs string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// RedisConfig holds Redis configuration for the isolation write breaker.
// An empty URL puts the breaker in local (per-process) mode.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// IsolationConfig holds isolation monitor settings
type IsolationConfig struct {
	// AuditSchedule is a cron expression for periodic audits
	AuditSchedule string

	// BreakerThreshold is the number of anomalies within BreakerWindow
	// after which a tenant's write path is halted
	BreakerThreshold int
	BreakerWindow    time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CARE_HOST", "0.0.0.0"),
			Port:            getEnv("CARE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("CARE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CARE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CARE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CARE_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("CARE_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:         getEnv("CARE_POSTGRES_URL", ""),
			ReplicaURLs: getEnv("CARE_POSTGRES_REPLICA_URLS", ""),
			MaxConns:    getEnvInt("CARE_POSTGRES_MAX_CONNS", 25),
			MinConns:    getEnvInt("CARE_POSTGRES_MIN_CONNS", 5),
			Timeout:     getEnvDuration("CARE_POSTGRES_TIMEOUT", 10*time.Second),
			MaxLifetime: getEnvDuration("CARE_POSTGRES_MAX_LIFETIME", 30*time.Minute),
			MaxIdleTime: getEnvDuration("CARE_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getEnv("CARE_REDIS_URL", ""),
			Password: getEnv("CARE_REDIS_PASSWORD", ""),
			DB:       getEnvInt("CARE_REDIS_DB", 0),
		},
		Isolation: IsolationConfig{
			AuditSchedule:    getEnv("CARE_ISOLATION_AUDIT_SCHEDULE", "*/30 * * * *"),
			BreakerThreshold: getEnvInt("CARE_ISOLATION_BREAKER_THRESHOLD", 10),
			BreakerWindow:    getEnvDuration("CARE_ISOLATION_BREAKER_WINDOW", 10*time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:       parseLogLevel(getEnv("CARE_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("CARE_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("postgres min connections (%d) exceeds max connections (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Isolation.BreakerThreshold <= 0 {
		return fmt.Errorf("isolation breaker threshold must be positive")
	}
	if c.Isolation.BreakerWindow <= 0 {
		return fmt.Errorf("isolation breaker window must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
