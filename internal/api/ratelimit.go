package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	CleanupInterval   time.Duration
}

var DefaultRateLimiterConfig = RateLimiterConfig{
	RequestsPerSecond: 10.0,
	BurstSize:         20,
	CleanupInterval:   5 * time.Minute,
}

// clientLimiter tracks a rate limiter and last seen time for cleanup
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages per-client rate limiters
type RateLimiter struct {
	limiters    map[string]*clientLimiter
	mu          sync.Mutex
	config      RateLimiterConfig
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewRateLimiter creates a per-client limiter and starts its cleanup loop.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimiterConfig.CleanupInterval
	}
	rl := &RateLimiter{
		limiters:    make(map[string]*clientLimiter),
		config:      config,
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow checks if a request from the given client ID should be allowed
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[clientID]
	if !exists {
		limiter = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize),
		}
		rl.limiters[clientID] = limiter
	}
	limiter.lastSeen = time.Now()
	return limiter.limiter.Allow()
}

// LimiterCount returns the number of tracked clients.
func (rl *RateLimiter) LimiterCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now().Add(-rl.config.CleanupInterval))
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup removes limiters not used since cutoff
func (rl *RateLimiter) cleanup(cutoff time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for clientID, limiter := range rl.limiters {
		if limiter.lastSeen.Before(cutoff) {
			delete(rl.limiters, clientID)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[RATELIMIT] Cleaned up %d inactive rate limiters", removed)
	}
	return removed
}

// Stop stops the cleanup goroutine (call when shutting down)
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

// Middleware limits per authenticated subject, falling back to client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.ClientIP()
		if claims := claimsFrom(c); claims != nil {
			clientID = "sub:" + claims.Subject
		}
		if !rl.Allow(clientID) {
			log.Printf("[RATELIMIT] Rate limit exceeded for client: %s", clientID)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, please slow down"})
			return
		}
		c.Next()
	}
}
