package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/ratelimit"
)

// RateLimitConfig holds configuration for the per-client rate limiter.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per client.
	RequestsPerSecond float64
	// BurstSize is the bucket capacity.
	BurstSize int64
	// SkipPaths bypass the limiter.
	SkipPaths []string
}

// DefaultRateLimitConfig returns the limiter configuration used by the router.
// Every lookup fans out to the knowledge base, so the default is modest.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 2,
		BurstSize:         20,
		SkipPaths:         []string{"/healthz", "/readyz", "/metrics"},
	}
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.RWMutex
	clients map[string]*ratelimit.Bucket
}

// NewRateLimiter creates a RateLimiter. Non-positive settings fall back to
// DefaultRateLimitConfig.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = def.BurstSize
	}
	return &RateLimiter{cfg: cfg, clients: make(map[string]*ratelimit.Bucket)}
}

func (rl *RateLimiter) bucket(key string) *ratelimit.Bucket {
	rl.mu.RLock()
	b, ok := rl.clients[key]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok = rl.clients[key]; !ok {
		b = ratelimit.NewBucketWithRate(rl.cfg.RequestsPerSecond, rl.cfg.BurstSize)
		rl.clients[key] = b
	}
	return b
}

// Prune drops clients whose bucket has refilled completely.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for key, b := range rl.clients {
		if b.Available() == b.Capacity() {
			delete(rl.clients, key)
			n++
		}
	}
	return n
}

// Handler rejects requests beyond the client's budget with 429 and a
// Retry-After header.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	skip := make(map[string]bool, len(rl.cfg.SkipPaths))
	for _, p := range rl.cfg.SkipPaths {
		skip[p] = true
	}
	interval := time.Duration(float64(time.Second) / rl.cfg.RequestsPerSecond)

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		b := rl.bucket(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.FormatInt(b.Capacity(), 10))
		if b.TakeAvailable(1) < 1 {
			retry := int(interval.Round(time.Second) / time.Second)
			if retry < 1 {
				retry = 1
			}
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    "RATE_LIMITED",
				"message": "rate limit exceeded, retry later",
			})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(b.Available(), 10))
		c.Next()
	}
}
