package httpapi

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter is a self-protection rate limiter, one token bucket per
// remote host, grounded directly on the teacher's internal/net/ratelimit.Limiter
// (map + RWMutex + double-checked creation over golang.org/x/time/rate).
// Unlike the teacher's outbound-provider limiter, this one throttles
// *inbound* requests to POST /v1/limit-config so a caller storm cannot
// starve the decision path; it is ambient operational safety and has no
// bearing on the recommended-config semantics (SPEC_FULL.md §4.6).
type HostLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewHostLimiter builds a HostLimiter allowing rps requests/sec per remote
// host, with burst capacity burst.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (l *HostLimiter) getLimiter(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[host]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, exists := l.limiters[host]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.limiters[host] = limiter
	return limiter
}

// Allow reports whether a request from host may proceed now.
func (l *HostLimiter) Allow(host string) bool {
	return l.getLimiter(host).Allow()
}

// Middleware rejects requests over the per-host rate with 429 before they
// reach the decision handler. Hosts are keyed by remote IP; a malformed
// RemoteAddr falls back to the raw string so the middleware never panics.
func (l *HostLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.RemoteAddr
		if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			host = h
		}
		if !l.Allow(host) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
