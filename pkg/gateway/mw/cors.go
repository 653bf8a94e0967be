package mw

import (
	"net/http"
	"strings"

	"github.com/aura-voice/aura-relay/pkg/gateway/config"
)

var corsAllowedMethods = "GET, OPTIONS"

var corsAllowedHeaders = strings.Join([]string{
	"Content-Type",
	"X-Request-ID",
}, ", ")

var corsExposedHeaders = "X-Request-ID"

func CORS(cfg config.Config, next http.Handler) http.Handler {
	allowed := cfg.CORSAllowedOrigins
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))

		// Preflight: explicitly allow/deny so browser callers get deterministic behavior.
		if r.Method == http.MethodOptions && strings.TrimSpace(r.Header.Get("Access-Control-Request-Method")) != "" {
			if origin == "" || len(allowed) == 0 {
				http.Error(w, "cors preflight not allowed", http.StatusForbidden)
				return
			}
			if _, ok := allowed[origin]; !ok {
				http.Error(w, "cors preflight not allowed", http.StatusForbidden)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Non-preflight: only attach CORS headers when explicitly allowlisted.
		if origin != "" && len(allowed) > 0 {
			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Expose-Headers", corsExposedHeaders)
			}
		}

		next.ServeHTTP(w, r)
	})
}
