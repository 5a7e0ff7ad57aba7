package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sathicare/booking-core/internal/identity"
)

// RateLimiter keeps one token bucket per caller key.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rate     rate.Limit
	burst    int
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter allowing rps requests/sec with the
// given burst size per key.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*entry),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// Allow returns true if the request for key is within the rate limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	e, ok := rl.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Evict drops buckets idle since before cutoff.
func (rl *RateLimiter) Evict(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, e := range rl.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

// RateLimit returns an HTTP middleware that rejects requests exceeding the
// limit with 429. Authenticated callers are keyed by principal, others by IP.
func (rl *RateLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		// Prefer X-Real-Ip set by chi's RealIP middleware.
		if xri := r.Header.Get("X-Real-Ip"); xri != "" {
			key = xri
		}
		if p, ok := identity.PrincipalFromContext(r.Context()); ok {
			key = "principal:" + p.ID.String()
		}
		if !rl.Allow(key) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
