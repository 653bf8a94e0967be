package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aura-voice/aura-relay/pkg/gateway/ratelimit"
)

func TestRateLimit_Burst429IncludesRetryAfter(t *testing.T) {
	lim := ratelimit.New(ratelimit.Config{
		RPS:   1,
		Burst: 1,
	})

	h := RateLimit(lim, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	{
		req := httptest.NewRequest(http.MethodGet, "/stream", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("first request status=%d body=%q", rr.Code, rr.Body.String())
		}
	}

	{
		req := httptest.NewRequest(http.MethodGet, "/stream", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("second request status=%d body=%q", rr.Code, rr.Body.String())
		}
		if got := rr.Header().Get("Retry-After"); got == "" {
			t.Fatalf("expected Retry-After header")
		}
	}
}

func TestRateLimit_KeyedByClientAddress(t *testing.T) {
	lim := ratelimit.New(ratelimit.Config{RPS: 1, Burst: 1})

	h := RateLimit(lim, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodGet, "/stream", nil)
	first.RemoteAddr = "10.1.1.1:40001"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, first)
	if rr.Code != http.StatusOK {
		t.Fatalf("first client status=%d", rr.Code)
	}

	// Same host, different ephemeral port: shares the bucket.
	again := httptest.NewRequest(http.MethodGet, "/stream", nil)
	again.RemoteAddr = "10.1.1.1:40002"
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, again)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("same client status=%d, want 429", rr.Code)
	}

	other := httptest.NewRequest(http.MethodGet, "/stream", nil)
	other.RemoteAddr = "10.1.1.2:40001"
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, other)
	if rr.Code != http.StatusOK {
		t.Fatalf("other client status=%d, want 200", rr.Code)
	}
}

func TestRateLimit_ExemptsOperationalEndpoints(t *testing.T) {
	lim := ratelimit.New(ratelimit.Config{RPS: 1, Burst: 1})

	h := RateLimit(lim, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Exhaust the client's budget on the stream route.
	exhaust := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, exhaust)
	if rr.Code != http.StatusOK {
		t.Fatalf("setup request status=%d", rr.Code)
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d, want 200", path, rr.Code)
		}
	}

	opts := httptest.NewRequest(http.MethodOptions, "/stream", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, opts)
	if rr.Code != http.StatusOK {
		t.Fatalf("OPTIONS status=%d, want 200", rr.Code)
	}
}

func TestRateLimit_NilLimiterPassesThrough(t *testing.T) {
	h := RateLimit(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/stream", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
}
