package isolation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	client := newTestRedis(t)
	breaker := NewBreaker(client, 3, time.Minute, nil, nil)
	ctx := context.Background()

	breaker.RecordAnomaly(ctx, 5)
	breaker.RecordAnomaly(ctx, 5)
	assert.NoError(t, breaker.Allow(ctx, 5))

	breaker.RecordAnomaly(ctx, 5)
	assert.ErrorIs(t, breaker.Allow(ctx, 5), ErrWritesHalted)
}

func TestBreakerIsolatesTenants(t *testing.T) {
	client := newTestRedis(t)
	breaker := NewBreaker(client, 1, time.Minute, nil, nil)
	ctx := context.Background()

	breaker.RecordAnomaly(ctx, 5)

	assert.ErrorIs(t, breaker.Allow(ctx, 5), ErrWritesHalted)
	assert.NoError(t, breaker.Allow(ctx, 6))
}

// The anomaly window expires; the halted flag does not.
func TestBreakerHaltPersistsPastWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	breaker := NewBreaker(client, 2, time.Minute, nil, nil)
	ctx := context.Background()

	breaker.RecordAnomaly(ctx, 5)
	breaker.RecordAnomaly(ctx, 5)
	require.ErrorIs(t, breaker.Allow(ctx, 5), ErrWritesHalted)

	mr.FastForward(2 * time.Minute)

	assert.ErrorIs(t, breaker.Allow(ctx, 5), ErrWritesHalted)
}

func TestBreakerWindowExpiryResetsCount(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	breaker := NewBreaker(client, 3, time.Minute, nil, nil)
	ctx := context.Background()

	breaker.RecordAnomaly(ctx, 5)
	breaker.RecordAnomaly(ctx, 5)

	mr.FastForward(2 * time.Minute)

	// A fresh window: two old anomalies no longer count.
	breaker.RecordAnomaly(ctx, 5)
	assert.NoError(t, breaker.Allow(ctx, 5))
}

func TestBreakerOperatorReset(t *testing.T) {
	client := newTestRedis(t)
	breaker := NewBreaker(client, 1, time.Minute, nil, nil)
	ctx := context.Background()

	breaker.RecordAnomaly(ctx, 5)
	require.ErrorIs(t, breaker.Allow(ctx, 5), ErrWritesHalted)

	require.NoError(t, breaker.Reset(ctx, 5))
	assert.NoError(t, breaker.Allow(ctx, 5))
}

// When Redis goes away after a trip, the local state keeps the breaker
// closed rather than failing open.
func TestBreakerFailsClosedWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	breaker := NewBreaker(client, 1, time.Minute, nil, nil)
	ctx := context.Background()

	mr.Close()

	// Redis unreachable: the anomaly lands in the local fallback and still
	// trips the breaker.
	breaker.RecordAnomaly(ctx, 5)
	assert.ErrorIs(t, breaker.Allow(ctx, 5), ErrWritesHalted)
}

func TestBreakerLocalOnly(t *testing.T) {
	breaker := NewBreaker(nil, 2, time.Minute, nil, nil)
	ctx := context.Background()

	breaker.RecordAnomaly(ctx, 5)
	assert.NoError(t, breaker.Allow(ctx, 5))
	breaker.RecordAnomaly(ctx, 5)
	assert.ErrorIs(t, breaker.Allow(ctx, 5), ErrWritesHalted)

	require.NoError(t, breaker.Reset(ctx, 5))
	assert.NoError(t, breaker.Allow(ctx, 5))
}
