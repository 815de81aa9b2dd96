package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// MarkerTTL bounds how long a Redis marker lives; longer than any billing period.
const MarkerTTL = 45 * 24 * time.Hour

// Marker records which buckets were already notified.
type Marker interface {
	// Mark records the bucket for the tenant and period. first is true only
	// for the call that recorded it.
	Mark(ctx context.Context, tenantID uuid.UUID, periodStart time.Time, bucket Bucket) (first bool, err error)
	// Unmark forgets the bucket so a later Mark records it again.
	Unmark(ctx context.Context, tenantID uuid.UUID, periodStart time.Time, bucket Bucket) error
}

type markKey struct {
	tenant uuid.UUID
	period int64
	bucket Bucket
}

// MemoryMarker is a process-local Marker.
type MemoryMarker struct {
	mu   sync.Mutex
	seen map[markKey]struct{}
}

// NewMemoryMarker returns an empty MemoryMarker.
func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{seen: make(map[markKey]struct{})}
}

func (m *MemoryMarker) Mark(_ context.Context, tenantID uuid.UUID, periodStart time.Time, bucket Bucket) (bool, error) {
	k := markKey{tenant: tenantID, period: periodStart.Unix(), bucket: bucket}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[k]; ok {
		return false, nil
	}
	m.seen[k] = struct{}{}
	return true, nil
}

func (m *MemoryMarker) Unmark(_ context.Context, tenantID uuid.UUID, periodStart time.Time, bucket Bucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, markKey{tenant: tenantID, period: periodStart.Unix(), bucket: bucket})
	return nil
}

// RedisMarker stores markers with SETNX so every instance shares them.
type RedisMarker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisMarker returns a RedisMarker writing keys under prefix.
// Panics if client is nil.
func NewRedisMarker(client redis.UniversalClient, prefix string) *RedisMarker {
	if client == nil {
		panic("notify: redis client is required")
	}
	if prefix == "" {
		prefix = "notified"
	}
	return &RedisMarker{client: client, prefix: prefix, ttl: MarkerTTL}
}

func (m *RedisMarker) key(tenantID uuid.UUID, periodStart time.Time, bucket Bucket) string {
	return fmt.Sprintf("%s:%s:%s:%d", m.prefix, tenantID, strconv.FormatInt(periodStart.Unix(), 10), bucket)
}

func (m *RedisMarker) Mark(ctx context.Context, tenantID uuid.UUID, periodStart time.Time, bucket Bucket) (bool, error) {
	ok, err := m.client.SetNX(ctx, m.key(tenantID, periodStart, bucket), "1", m.ttl).Result()
	if err != nil {
		return false, errors.Join(ErrMarkerFailure, err)
	}
	return ok, nil
}

func (m *RedisMarker) Unmark(ctx context.Context, tenantID uuid.UUID, periodStart time.Time, bucket Bucket) error {
	if err := m.client.Del(ctx, m.key(tenantID, periodStart, bucket)).Err(); err != nil {
		return errors.Join(ErrMarkerFailure, err)
	}
	return nil
}
