package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrLockTimeout occurs when lock acquisition times out
	ErrLockTimeout = errors.New("timeout acquiring lock")
	// ErrLockNotHeld occurs when trying to release a lock not held by this instance
	ErrLockNotHeld = errors.New("lock not held by this instance")
)

const (
	DefaultLockTTL     = 30 * time.Second
	DefaultAcquireWait = 10 * time.Second
	minBackoff         = 25 * time.Millisecond
	maxBackoff         = 500 * time.Millisecond
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// RedisLocker is a distributed engine.Locker. Each held lock is kept alive
// by a watchdog that extends its TTL until released, so a long reconcile
// never loses the lock while a crashed holder's lock still expires.
type RedisLocker struct {
	redis       redis.Cmdable
	instanceID  string
	ttl         time.Duration
	acquireWait time.Duration
}

// Option configures a RedisLocker.
type Option func(*RedisLocker)

// WithTTL sets the lock expiry. The watchdog extends at a third of it.
func WithTTL(ttl time.Duration) Option {
	return func(l *RedisLocker) { l.ttl = ttl }
}

// WithAcquireWait bounds how long Lock waits when ctx has no earlier deadline.
func WithAcquireWait(d time.Duration) Option {
	return func(l *RedisLocker) { l.acquireWait = d }
}

// NewRedisLocker creates a locker on the given Redis client.
func NewRedisLocker(client redis.Cmdable, opts ...Option) *RedisLocker {
	l := &RedisLocker{
		redis:       client,
		instanceID:  uuid.New().String(),
		ttl:         DefaultLockTTL,
		acquireWait: DefaultAcquireWait,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func redisKey(key string) string {
	return "lock:" + key
}

// Lock acquires key with SET NX PX, retrying with capped exponential backoff.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	acquireCtx, cancel := context.WithTimeout(ctx, l.acquireWait)
	defer cancel()

	lockKey := redisKey(key)
	value := fmt.Sprintf("%s:%s", l.instanceID, uuid.New().String())

	for attempt := 0; ; attempt++ {
		acquired, err := l.redis.SetNX(acquireCtx, lockKey, value, l.ttl).Result()
		if err != nil && acquireCtx.Err() == nil {
			log.Printf("[LOCK] Redis error on attempt %d for lock %s: %v", attempt+1, lockKey, err)
		}
		if err == nil && acquired {
			if attempt > 0 {
				log.Debugf("[LOCK] Acquired %s after %d attempts", lockKey, attempt+1)
			}
			return l.hold(lockKey, value, nil), nil
		}

		select {
		case <-acquireCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("[LOCK] Failed to acquire lock %s after %d attempts", lockKey, attempt+1)
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-time.After(backoff(attempt)):
		}
	}
}

// hold starts the watchdog and returns the idempotent release. onLost, when
// set, runs once if the watchdog finds the lock gone or cannot extend it.
func (l *RedisLocker) hold(lockKey, value string, onLost func()) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	acquiredAt := time.Now()

	go func() {
		defer close(done)
		ticker := time.NewTicker(l.ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
				err := l.extend(ctx, lockKey, value)
				cancel()
				if err != nil {
					log.WithError(err).WithField("lock", lockKey).Error("[LOCK] Watchdog could not extend lock")
					if onLost != nil {
						onLost()
					}
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := l.release(ctx, lockKey, value); err != nil {
				log.Printf("[LOCK] WARNING: release of %s failed after %v: %v", lockKey, time.Since(acquiredAt), err)
			}
		})
	}
}

func (l *RedisLocker) release(ctx context.Context, lockKey, value string) error {
	result, err := releaseScript.Run(ctx, l.redis, []string{lockKey}, value).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (l *RedisLocker) extend(ctx context.Context, lockKey, value string) error {
	result, err := extendScript.Run(ctx, l.redis, []string{lockKey}, value, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Holder returns the owner token of key, or "" when it is free.
func (l *RedisLocker) Holder(ctx context.Context, key string) (string, error) {
	value, err := l.redis.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get lock: %w", err)
	}
	return value, nil
}

func backoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := minBackoff << attempt
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}
