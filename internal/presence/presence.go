// Package presence tracks which participants are online. Entries expire
// unless refreshed, so a client that disappears without saying goodbye
// drops offline after one TTL.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const DefaultTTL = 90 * time.Second

// Tracker is what the transports write to and the engine reads from.
type Tracker interface {
	IsOnline(ctx context.Context, participantID string) bool
	MarkOnline(ctx context.Context, participantID string) error
	MarkOffline(ctx context.Context, participantID string) error
}

// RedisTracker shares presence across engine instances.
type RedisTracker struct {
	redis redis.Cmdable
	ttl   time.Duration
}

// NewRedisTracker creates a tracker whose online marks expire after ttl.
func NewRedisTracker(client redis.Cmdable, ttl time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisTracker{redis: client, ttl: ttl}
}

func key(participantID string) string {
	return "presence:" + participantID
}

// IsOnline treats a redis failure as offline; the sweep will retry.
func (r *RedisTracker) IsOnline(ctx context.Context, participantID string) bool {
	n, err := r.redis.Exists(ctx, key(participantID)).Result()
	if err != nil {
		log.WithError(err).WithField("participant", participantID).Warn("[PRESENCE] lookup failed")
		return false
	}
	return n > 0
}

func (r *RedisTracker) MarkOnline(ctx context.Context, participantID string) error {
	return r.redis.Set(ctx, key(participantID), time.Now().UTC().Unix(), r.ttl).Err()
}

func (r *RedisTracker) MarkOffline(ctx context.Context, participantID string) error {
	return r.redis.Del(ctx, key(participantID)).Err()
}

// MemoryTracker is the single-instance tracker.
type MemoryTracker struct {
	mu      sync.RWMutex
	seen    map[string]time.Time
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewMemoryTracker creates an in-process tracker. A nil now uses time.Now.
func NewMemoryTracker(ttl time.Duration, now func() time.Time) *MemoryTracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryTracker{seen: make(map[string]time.Time), ttl: ttl, nowFunc: now}
}

func (m *MemoryTracker) IsOnline(_ context.Context, participantID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.seen[participantID]
	return ok && m.nowFunc().Sub(at) < m.ttl
}

func (m *MemoryTracker) MarkOnline(_ context.Context, participantID string) error {
	m.mu.Lock()
	m.seen[participantID] = m.nowFunc()
	m.mu.Unlock()
	return nil
}

func (m *MemoryTracker) MarkOffline(_ context.Context, participantID string) error {
	m.mu.Lock()
	delete(m.seen, participantID)
	m.mu.Unlock()
	return nil
}
