package supplier

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Metrics records supplier performance counters into rolling hourly buckets
// and reads them back over a window.
type Metrics interface {
	RecordOrderSent(ctx context.Context, supplierID uuid.UUID) error
	RecordConfirmation(ctx context.Context, supplierID uuid.UUID, processing time.Duration) error
	RecordDelivery(ctx context.Context, supplierID uuid.UUID, onTime bool) error
	Snapshot(ctx context.Context, supplierID uuid.UUID, window time.Duration) (PerfSnapshot, error)
}

// PerfSnapshot aggregates one supplier's counters over a window.
type PerfSnapshot struct {
	OrdersSent      int64
	Confirmations   int64
	ProcessingTotal time.Duration
	Deliveries      int64
	OnTime          int64
}

// RedisMetrics keeps one counter key per (supplier, metric, hour bucket).
// Keys expire at twice the largest window so the set stays bounded without
// a cleanup job.
type RedisMetrics struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedisMetrics(rc *redis.Client) *RedisMetrics {
	return &RedisMetrics{rc: rc, ttl: 14 * 24 * time.Hour}
}

func ordersKey(id uuid.UUID, bucket int64) string {
	return fmt.Sprintf("flowbot:supplier:%s:orders:%d", id, bucket)
}

func confirmationsKey(id uuid.UUID, bucket int64) string {
	return fmt.Sprintf("flowbot:supplier:%s:confirmations:%d", id, bucket)
}

func processingMsKey(id uuid.UUID, bucket int64) string {
	return fmt.Sprintf("flowbot:supplier:%s:processing_ms:%d", id, bucket)
}

func deliveriesKey(id uuid.UUID, bucket int64) string {
	return fmt.Sprintf("flowbot:supplier:%s:deliveries:%d", id, bucket)
}

func onTimeKey(id uuid.UUID, bucket int64) string {
	return fmt.Sprintf("flowbot:supplier:%s:ontime:%d", id, bucket)
}

func currentBucket() int64 { return time.Now().Unix() / 3600 }

func (m *RedisMetrics) incr(ctx context.Context, key string, by int64) error {
	pipe := m.rc.TxPipeline()
	pipe.IncrBy(ctx, key, by)
	pipe.Expire(ctx, key, m.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (m *RedisMetrics) RecordOrderSent(ctx context.Context, supplierID uuid.UUID) error {
	return m.incr(ctx, ordersKey(supplierID, currentBucket()), 1)
}

func (m *RedisMetrics) RecordConfirmation(ctx context.Context, supplierID uuid.UUID, processing time.Duration) error {
	b := currentBucket()
	if err := m.incr(ctx, confirmationsKey(supplierID, b), 1); err != nil {
		return err
	}
	return m.incr(ctx, processingMsKey(supplierID, b), processing.Milliseconds())
}

func (m *RedisMetrics) RecordDelivery(ctx context.Context, supplierID uuid.UUID, onTime bool) error {
	b := currentBucket()
	if err := m.incr(ctx, deliveriesKey(supplierID, b), 1); err != nil {
		return err
	}
	if onTime {
		return m.incr(ctx, onTimeKey(supplierID, b), 1)
	}
	return nil
}

// sumCounters adds up MGET results. Absent keys come back nil and count as
// zero; a key holding a non-integer is corrupt and surfaces as an error
// rather than silently skewing the SLA numbers.
func sumCounters(keys []string, vals []any) (int64, error) {
	var total int64
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("counter %s holds %q: %w", keys[i], s, err)
		}
		total += n
	}
	return total, nil
}

// Snapshot sums each counter across the buckets covering the window. MGET
// over absent keys yields nils, which count as zero.
func (m *RedisMetrics) Snapshot(ctx context.Context, supplierID uuid.UUID, window time.Duration) (PerfSnapshot, error) {
	buckets := int64(window / time.Hour)
	if buckets < 1 {
		buckets = 1
	}
	now := currentBucket()

	sum := func(keyFn func(uuid.UUID, int64) string) (int64, error) {
		keys := make([]string, 0, buckets)
		for b := now - buckets + 1; b <= now; b++ {
			keys = append(keys, keyFn(supplierID, b))
		}
		vals, err := m.rc.MGet(ctx, keys...).Result()
		if err != nil {
			return 0, err
		}
		return sumCounters(keys, vals)
	}

	var snap PerfSnapshot
	var err error
	if snap.OrdersSent, err = sum(ordersKey); err != nil {
		return snap, err
	}
	if snap.Confirmations, err = sum(confirmationsKey); err != nil {
		return snap, err
	}
	var processingMs int64
	if processingMs, err = sum(processingMsKey); err != nil {
		return snap, err
	}
	snap.ProcessingTotal = time.Duration(processingMs) * time.Millisecond
	if snap.Deliveries, err = sum(deliveriesKey); err != nil {
		return snap, err
	}
	if snap.OnTime, err = sum(onTimeKey); err != nil {
		return snap, err
	}
	return snap, nil
}
