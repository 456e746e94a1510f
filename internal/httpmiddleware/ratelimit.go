package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP and key.
type RateLimiter struct {
	perMinute int
	mu        sync.Mutex
	clients   map[string]*clientBucket
	now       func() time.Time
	onLimited func(c *gin.Context)
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute requests per minute per client, with an equal burst.
// A non-positive perMinute disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		clients:   make(map[string]*clientBucket),
		now:       time.Now,
	}
}

// OnLimited registers fn to run for every rejected request, before the 429 is written.
func (l *RateLimiter) OnLimited(fn func(c *gin.Context)) *RateLimiter {
	l.onLimited = fn
	return l
}

// GinMiddleware returns gin handler enforcing per-IP limits.
func (l *RateLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.perMinute <= 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			if l.onLimited != nil {
				l.onLimited(c)
			}
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "Too many requests", "code": "RATE_LIMITED"})
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute),
		}
		l.clients[key] = b
		l.gcLocked(now)
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (l *RateLimiter) gcLocked(now time.Time) {
	if len(l.clients) < 1000 {
		return
	}
	cutoff := now.Add(-10 * time.Minute)
	for ip, b := range l.clients {
		if b.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}
