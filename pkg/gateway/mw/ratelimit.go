package mw

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aura-voice/aura-relay/pkg/gateway/ratelimit"
)

// RateLimit throttles session opens per client address. Health and
// metrics endpoints stay exempt so probes and scrapes never starve.
func RateLimit(limiter *ratelimit.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		dec := limiter.Allow(ratelimit.ClientKey(r.RemoteAddr), time.Now())
		if !dec.Allowed {
			if dec.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(dec.RetryAfter))
			}
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
