package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"planlens/internal/platform/config"
	id "planlens/pkg/domain"
	dErrors "planlens/pkg/domain-errors"
	"planlens/pkg/platform/httputil"
	"planlens/pkg/requestcontext"
)

// tenantWindow tracks request counts for one tenant within the current
// fixed window.
type tenantWindow struct {
	count       int
	windowStart time.Time
}

// RateLimiter bounds per-tenant request rates with fixed windows kept in
// memory. Fairness between tenants matters more than exact smoothing here,
// so fixed windows are enough.
type RateLimiter struct {
	mu       sync.Mutex
	windows  map[id.TenantID]*tenantWindow
	requests int
	window   time.Duration
	disabled bool
	now      func() time.Time
}

// NewRateLimiter builds a limiter from configuration.
func NewRateLimiter(cfg config.RateLimit) *RateLimiter {
	return &RateLimiter{
		windows:  make(map[id.TenantID]*tenantWindow),
		requests: cfg.Requests,
		window:   cfg.Window,
		disabled: cfg.Disabled,
		now:      time.Now,
	}
}

// allow records one request and reports whether it fits the window, along
// with remaining quota and time until reset.
func (l *RateLimiter) allow(tenantID id.TenantID) (bool, int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.windows[tenantID]
	if w == nil || now.Sub(w.windowStart) >= l.window {
		w = &tenantWindow{windowStart: now}
		l.windows[tenantID] = w
	}

	reset := l.window - now.Sub(w.windowStart)
	if w.count >= l.requests {
		return false, 0, reset
	}
	w.count++
	return true, l.requests - w.count, reset
}

// Limit is the middleware. It runs after tenant resolution; requests without
// a tenant pass through untouched and fail authorization downstream instead.
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.disabled {
			next.ServeHTTP(w, r)
			return
		}
		tenantID := requestcontext.TenantID(r.Context())
		if tenantID.IsNil() {
			next.ServeHTTP(w, r)
			return
		}

		allowed, remaining, reset := l.allow(tenantID)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(reset.Seconds())+1))
			httputil.WriteError(w, dErrors.New(dErrors.CodeTooManyRequests, "rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
