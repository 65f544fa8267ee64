package middleware

import (
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"mrilo/internal/httputil"
	"mrilo/internal/metrics"
)

// RateLimiter hands out one token bucket per client IP
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	trusted []netip.Prefix
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute requests per client, bursting up to perMinute.
// Client addresses come from X-Forwarded-For only behind trustedProxies.
func NewRateLimiter(perMinute int, trustedProxies []netip.Prefix) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		clients: make(map[string]*client),
		trusted: trustedProxies,
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
		ttl:     15 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether key may make a request now
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now

	if len(rl.clients) > 1024 {
		rl.evictLocked(now)
	}
	return c.limiter.AllowN(now, 1)
}

// evictLocked drops clients idle for longer than ttl
func (rl *RateLimiter) evictLocked(now time.Time) {
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.ttl {
			delete(rl.clients, key)
		}
	}
}

// RateLimit answers 429 once a client IP has used up its budget
func RateLimit(rl *RateLimiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if !rl.Allow(httputil.ClientIP(r, rl.trusted)) {
				m.ObserveRateLimited()
				retryAfter := int(time.Minute / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httputil.RespondErrorWithExtras(w, http.StatusTooManyRequests, "Too many requests, please try again later.",
					map[string]interface{}{"retry_after": retryAfter})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
