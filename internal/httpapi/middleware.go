package httpapi

import (
	"net/http"
	"sync"
	"time"

	"ha-sip-bridge/internal/auth"
	"ha-sip-bridge/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ClientIP attaches the resolved client IP to the request context so
// downstream service handlers can audit it.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

type RateLimitConfig struct {
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

type ipLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*ipLimitEntry
	cfg     RateLimitConfig
	stopCh  chan struct{}
	once    sync.Once
}

// NewIPRateLimiter starts a background sweep of idle entries when
// CleanupInterval is positive. Call Stop to end it.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	rl := &IPRateLimiter{
		entries: make(map[string]*ipLimitEntry),
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go rl.cleanupLoop()
	}
	return rl
}

func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	entry, ok := rl.entries[ip]
	if !ok {
		entry = &ipLimitEntry{limiter: rate.NewLimiter(rl.cfg.Rate, rl.cfg.Burst)}
		rl.entries[ip] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

func (rl *IPRateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *IPRateLimiter) cleanup(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := now.Add(-rl.cfg.MaxAge)
	removed := 0
	for ip, e := range rl.entries {
		if e.lastSeen.Before(cutoff) {
			delete(rl.entries, ip)
			removed++
		}
	}
	return removed
}

// Middleware rejects requests over the per-IP budget with 429.
func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			logger.FromGin(c).Warn("rate limit exceeded", "ip", ip, "path", c.FullPath())
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
