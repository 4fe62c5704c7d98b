package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultLeaderKey is the lock that makes one engine instance the writer.
const DefaultLeaderKey = "championship:leader"

// Leadership is a held leader lock.
type Leadership struct {
	key    string
	lost   chan struct{}
	once   sync.Once
	resign func()
}

// Lost is closed when the lock could not be kept alive. The instance must
// stop writing once it fires.
func (ld *Leadership) Lost() <-chan struct{} {
	return ld.lost
}

// Resign releases the lock so a standby can take over.
func (ld *Leadership) Resign() {
	ld.resign()
	log.Printf("[LEADER] Resigned %s", ld.key)
}

func (ld *Leadership) markLost() {
	ld.once.Do(func() { close(ld.lost) })
}

// Campaign blocks until this instance holds the leader lock for key or ctx
// is done. Standbys poll at a third of the lock TTL.
func (l *RedisLocker) Campaign(ctx context.Context, key string) (*Leadership, error) {
	lockKey := redisKey(key)
	value := fmt.Sprintf("%s:%s", l.instanceID, uuid.New().String())
	poll := l.ttl / 3

	for attempt := 0; ; attempt++ {
		acquired, err := l.redis.SetNX(ctx, lockKey, value, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			log.Printf("[LEADER] Redis error campaigning for %s: %v", key, err)
		}
		if err == nil && acquired {
			ld := &Leadership{key: key, lost: make(chan struct{})}
			ld.resign = l.hold(lockKey, value, ld.markLost)
			log.WithFields(log.Fields{"key": key, "instance": l.instanceID}).Info("[LEADER] Acquired leadership")
			return ld, nil
		}
		if attempt == 0 {
			log.Printf("[LEADER] %s is held by another instance, waiting", key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(poll):
		}
	}
}
