package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leaselens/leaselens/pkg/errors"
)

// RateLimitConfig tunes the per-client token bucket.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client.
	RequestsPerSecond float64

	// BurstSize is the bucket capacity above the sustained rate.
	BurstSize int

	// SkipPaths bypass limiting (health probes, metrics scrapes).
	SkipPaths []string

	// CleanupInterval is how often idle client buckets are dropped.
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig allows a sustained 10 rps with bursts of 20.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		SkipPaths:         []string{"/health", "/healthz", "/readyz", "/metrics"},
		CleanupInterval:   5 * time.Minute,
	}
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// RateLimiter is a token-bucket limiter keyed by client IP.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rate    float64
	burst   float64
	now     func() time.Time
}

// NewRateLimiter builds the limiter and starts bucket cleanup when
// cleanupInterval is positive.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	l := &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		rate:    cfg.RequestsPerSecond,
		burst:   float64(cfg.BurstSize),
		now:     time.Now,
	}
	if cfg.CleanupInterval > 0 {
		go l.cleanupLoop(cfg.CleanupInterval)
	}
	return l
}

// Allow consumes one token for key, reporting whether the request may
// proceed and how many whole tokens remain.
func (l *RateLimiter) Allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: l.burst, lastRefill: now}
		l.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastRefill).Seconds() * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false, 0
	}
	b.tokens--
	return true, int(b.tokens)
}

func (l *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := l.now().Add(-interval)
		l.mu.Lock()
		for key, b := range l.buckets {
			if b.lastRefill.Before(cutoff) {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}

// RateLimit rejects clients above their token budget with 429.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	limiter := NewRateLimiter(cfg)
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		allowed, remaining := limiter.Allow(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.BurstSize))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			appErr := errors.New(errors.ErrCodeTooManyRequests, "rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    appErr.Code.String(),
				"message": appErr.Message,
			})
			return
		}
		c.Next()
	}
}
