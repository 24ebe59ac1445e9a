// Package ratelimit throttles requests per client key using token buckets.
package ratelimit

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
	"github.com/noah-isme/supermen-api/pkg/response"
)

// Config describes a limiter profile.
type Config struct {
	RPS     float64
	Burst   int
	IdleTTL time.Duration
	Logger  *zap.Logger
	// Key extracts the bucket key; defaults to the client IP.
	Key func(*gin.Context) string
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	clients map[string]*entry
	lastGC  time.Time
	now     func() time.Time
}

// New constructs a limiter.
func New(cfg Config) *Limiter {
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Key == nil {
		cfg.Key = func(c *gin.Context) string { return c.ClientIP() }
	}
	return &Limiter{cfg: cfg, clients: make(map[string]*entry), now: time.Now}
}

// Allow consumes a token for key and returns the suggested retry delay when denied.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.gc(now)

	e, ok := l.clients[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.clients[key] = e
	}
	e.lastSeen = now

	if e.limiter.AllowN(now, 1) {
		return true, 0
	}
	reservation := e.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	reservation.CancelAt(now)
	return false, delay
}

func (l *Limiter) gc(now time.Time) {
	if now.Sub(l.lastGC) < l.cfg.IdleTTL {
		return
	}
	l.lastGC = now
	for key, e := range l.clients {
		if now.Sub(e.lastSeen) > l.cfg.IdleTTL {
			delete(l.clients, key)
		}
	}
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := l.cfg.Key(c)
		if key == "" {
			c.Next()
			return
		}
		allowed, delay := l.Allow(key)
		if !allowed {
			retryAfter := int(delay.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			l.cfg.Logger.Warn("rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.FullPath()),
				zap.Int("retry_after", retryAfter),
			)
			response.Error(c, appErrors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
