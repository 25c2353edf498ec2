package api

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// ClientRateLimiter enforces a per-client request rate on the API. Clients
// are keyed by remote IP; the dashboard is the only expected caller, so the
// map stays small.
type ClientRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewClientRateLimiter creates a limiter allowing rps requests per second
// with the given burst per client.
func NewClientRateLimiter(rps float64, burst int) *ClientRateLimiter {
	return &ClientRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether the client may proceed.
func (rl *ClientRateLimiter) Allow(clientKey string) bool {
	rl.mu.Lock()
	limiter, exists := rl.limiters[clientKey]
	if !exists {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[clientKey] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// Middleware rejects requests over the per-client rate with 429.
func (rl *ClientRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !rl.Allow(host) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
