package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/carebridge/pkg/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CARE_POSTGRES_URL", "postgres://localhost/carebridge?sslmode=disable")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 25, cfg.Database.MaxConns)
	assert.Equal(t, 10, cfg.Isolation.BreakerThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Isolation.BreakerWindow)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("CARE_POSTGRES_URL", "postgres://db:5432/care")
	t.Setenv("CARE_PORT", "8888")
	t.Setenv("CARE_LOG_LEVEL", "debug")
	t.Setenv("CARE_ISOLATION_BREAKER_THRESHOLD", "3")
	t.Setenv("CARE_ISOLATION_BREAKER_WINDOW", "1m")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, 3, cfg.Isolation.BreakerThreshold)
	assert.Equal(t, time.Minute, cfg.Isolation.BreakerWindow)
}

func TestLoadConfigRequiresPostgresURL(t *testing.T) {
	t.Setenv("CARE_POSTGRES_URL", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidateRejectsPortCollision(t *testing.T) {
	t.Setenv("CARE_POSTGRES_URL", "postgres://db:5432/care")
	t.Setenv("CARE_PORT", "9090")
	t.Setenv("CARE_HEALTH_PORT", "9090")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidateRejectsNonPositiveBreaker(t *testing.T) {
	t.Setenv("CARE_POSTGRES_URL", "postgres://db:5432/care")
	t.Setenv("CARE_ISOLATION_BREAKER_THRESHOLD", "0")

	_, err := LoadConfig()
	assert.Error(t, err)
}
