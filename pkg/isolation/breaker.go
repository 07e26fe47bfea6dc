package isolation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/carebridge/carebridge/pkg/observability"
)

// ErrWritesHalted is returned on write attempts for a tenant whose
// breaker is open. Writes stay halted until an operator resets the
// breaker; there is no automatic half-open probe.
var ErrWritesHalted = errors.New("writes halted: isolation breaker open")

const (
	anomalyKeyPrefix = "isolation:anomalies:"
	haltedKeyPrefix  = "isolation:halted:"
)

// Breaker halts a tenant's write path after repeated isolation anomalies.
// Counters live in Redis so all instances trip together; a local fallback
// keeps the breaker fail-closed when Redis is unreachable.
type Breaker struct {
	client    *redis.Client
	threshold int64
	window    time.Duration
	logger    *observability.Logger
	metrics   *observability.Metrics

	mu          sync.Mutex
	localCounts map[int64]*localWindow
	localHalted map[int64]bool
	degraded    bool
}

type localWindow struct {
	count   int64
	expires time.Time
}

// NewBreaker creates a write breaker. A nil Redis client selects local
// in-process counting only.
func NewBreaker(client *redis.Client, threshold int64, window time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Breaker {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Breaker{
		client:      client,
		threshold:   threshold,
		window:      window,
		logger:      logger,
		metrics:     metrics,
		localCounts: make(map[int64]*localWindow),
		localHalted: make(map[int64]bool),
	}
}

// RecordAnomaly counts one isolation anomaly against the tenant and trips
// the breaker when the windowed count reaches the threshold.
func (b *Breaker) RecordAnomaly(ctx context.Context, tenantID int64) {
	if b.client != nil {
		if err := b.recordRemote(ctx, tenantID); err == nil {
			return
		} else {
			b.noteDegraded(err)
		}
	}
	b.recordLocal(tenantID)
}

func (b *Breaker) recordRemote(ctx context.Context, tenantID int64) error {
	key := anomalyKeyPrefix + strconv.FormatInt(tenantID, 10)

	count, err := b.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		if err := b.client.Expire(ctx, key, b.window).Err(); err != nil {
			return err
		}
	}

	if count >= b.threshold {
		// The halted flag has no TTL: only an operator reset clears it.
		if err := b.client.Set(ctx, haltedKeyPrefix+strconv.FormatInt(tenantID, 10), "1", 0).Err(); err != nil {
			return err
		}
		b.trip(tenantID, count)
	}
	return nil
}

func (b *Breaker) recordLocal(tenantID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	w := b.localCounts[tenantID]
	if w == nil || now.After(w.expires) {
		w = &localWindow{expires: now.Add(b.window)}
		b.localCounts[tenantID] = w
	}
	w.count++

	if w.count >= b.threshold && !b.localHalted[tenantID] {
		b.localHalted[tenantID] = true
		b.trip(tenantID, w.count)
	}
}

func (b *Breaker) trip(tenantID, count int64) {
	b.logger.WithFields(map[string]interface{}{
		"tenant_id": tenantID,
		"anomalies": count,
		"threshold": b.threshold,
	}).Error("isolation breaker opened, tenant writes halted")

	if b.metrics != nil {
		b.metrics.WriteBreakerOpen.WithLabelValues(strconv.FormatInt(tenantID, 10)).Set(1)
	}
}

// Allow reports whether writes for the tenant may proceed. When Redis is
// unreachable the local state decides, so a tripped breaker never resets
// itself by way of an outage.
func (b *Breaker) Allow(ctx context.Context, tenantID int64) error {
	if b.client != nil {
		halted, err := b.client.Get(ctx, haltedKeyPrefix+strconv.FormatInt(tenantID, 10)).Result()
		switch {
		case err == redis.Nil:
			// Not halted remotely; still honor a local trip.
		case err != nil:
			b.noteDegraded(err)
		case halted == "1":
			return fmt.Errorf("%w (tenant %d)", ErrWritesHalted, tenantID)
		}
	}

	b.mu.Lock()
	halted := b.localHalted[tenantID]
	b.mu.Unlock()

	if halted {
		return fmt.Errorf("%w (tenant %d)", ErrWritesHalted, tenantID)
	}
	return nil
}

// Reset clears the breaker for a tenant. Operator action only.
func (b *Breaker) Reset(ctx context.Context, tenantID int64) error {
	if b.client != nil {
		suffix := strconv.FormatInt(tenantID, 10)
		if err := b.client.Del(ctx, anomalyKeyPrefix+suffix, haltedKeyPrefix+suffix).Err(); err != nil {
			return fmt.Errorf("failed to reset breaker for tenant %d: %w", tenantID, err)
		}
	}

	b.mu.Lock()
	delete(b.localCounts, tenantID)
	delete(b.localHalted, tenantID)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.WriteBreakerOpen.WithLabelValues(strconv.FormatInt(tenantID, 10)).Set(0)
	}

	b.logger.WithTenant(tenantID).Info("isolation breaker reset")
	return nil
}

func (b *Breaker) noteDegraded(err error) {
	b.mu.Lock()
	first := !b.degraded
	b.degraded = true
	b.mu.Unlock()

	if first {
		b.logger.WithError(err).Error("breaker running degraded: redis unreachable, using local counters")
	}
}
