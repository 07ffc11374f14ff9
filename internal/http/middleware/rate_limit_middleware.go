package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/priazovimpact/auth-service/internal/http/response"
	"github.com/priazovimpact/auth-service/internal/observability"
)

// RateLimiter throttles credential endpoints per client IP with a fixed
// window. Login and the password-reset request are the two places an
// attacker gets an oracle per request, so they carry a far lower limit
// than the rest of the API.
type RateLimiter struct {
	scope  string
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*windowState
	cleanup time.Time
}

type windowState struct {
	start time.Time
	hits  int
}

func NewRateLimiter(scope string, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		scope:   scope,
		limit:   limit,
		window:  window,
		windows: make(map[string]*windowState),
		cleanup: time.Now().Add(window),
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := rl.allow(clientIP(r))
		if !allowed {
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "deny")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
			response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		observability.RecordRateLimitDecision(r.Context(), rl.scope, "allow")
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.cleanup) {
		for k, s := range rl.windows {
			if now.Sub(s.start) > 2*rl.window {
				delete(rl.windows, k)
			}
		}
		rl.cleanup = now.Add(rl.window)
	}

	state, ok := rl.windows[key]
	if !ok || now.Sub(state.start) >= rl.window {
		rl.windows[key] = &windowState{start: now, hits: 1}
		return true, 0
	}
	if state.hits >= rl.limit {
		return false, state.start.Add(rl.window).Sub(now)
	}
	state.hits++
	return true, 0
}

// clientIP trusts RealIP upstream in the chain to have rewritten
// RemoteAddr from X-Forwarded-For.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return seconds
}
