package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"learnhub.io/notifier/internal/domain"
)

// Deduper claims idempotency keys for a bounded window.
type Deduper interface {
	// Claim returns true when key was not claimed within ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops a claim so the key can be claimed again.
	Release(ctx context.Context, key string) error
}

func dedupKey(t domain.NotificationType, recipientID, key string) string {
	return fmt.Sprintf("notify:dedup:%s:%s:%s", t, recipientID, key)
}

// RedisDeduper shares claims across instances with SET NX.
type RedisDeduper struct {
	client redis.UniversalClient
}

// NewRedisDeduper creates a deduper over client.
func NewRedisDeduper(client redis.UniversalClient) *RedisDeduper {
	return &RedisDeduper{client: client}
}

// Claim sets key if absent with ttl.
func (d *RedisDeduper) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Release deletes key.
func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// MemoryDeduper keeps claims in process memory.
type MemoryDeduper struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryDeduper creates an empty deduper.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{expires: make(map[string]time.Time), now: time.Now}
}

// Claim records key until now+ttl.
func (d *MemoryDeduper) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if until, ok := d.expires[key]; ok && now.Before(until) {
		return false, nil
	}
	d.expires[key] = now.Add(ttl)

	// opportunistic sweep keeps the map bounded by live keys
	if len(d.expires)%256 == 0 {
		for k, until := range d.expires {
			if !now.Before(until) {
				delete(d.expires, k)
			}
		}
	}
	return true, nil
}

// Release forgets key.
func (d *MemoryDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.expires, key)
	return nil
}

var (
	_ Deduper = (*RedisDeduper)(nil)
	_ Deduper = (*MemoryDeduper)(nil)
)
