package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aura-voice/aura-relay/pkg/gateway/config"
)

func testConfig() config.Config {
	return config.Config{
		Addr:                          ":8080",
		GeminiAPIKey:                  "test-key",
		GeminiModel:                   "gemini-2.0-flash",
		GeminiBaseURL:                 "https://generativelanguage.googleapis.com/v1beta",
		UpstreamMaxAttempts:           3,
		UpstreamRetryDelay:            time.Second,
		TTSVoice:                      "en-US-JennyNeural",
		IdleTimeout:                   time.Hour,
		WSWriteTimeout:                5 * time.Second,
		WSQueueSize:                   64,
		ReadHeaderTimeout:             10 * time.Second,
		ShutdownGracePeriod:           30 * time.Second,
		UpstreamConnectTimeout:        time.Second,
		UpstreamResponseHeaderTimeout: time.Second,
	}
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return New(cfg, logger)
}

func TestServer_OperationalRoutes_Reachable(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.Handler()

	for _, path := range []string{"/", "/healthz", "/readyz", "/metrics"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("path %s status=%d body=%q", path, rr.Code, rr.Body.String())
		}
	}
}

func TestServer_MetricsRoute_ExposesRelayCollectors(t *testing.T) {
	s := newTestServer(t, testConfig())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, metric := range []string{"aura_relay_sessions_active", "go_goroutines"} {
		if !strings.Contains(body, metric) {
			t.Fatalf("metrics output missing %s", metric)
		}
	}
}

func TestServer_UnknownRoute_Returns404(t *testing.T) {
	s := newTestServer(t, testConfig())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestServer_ResponsesCarryRequestID(t *testing.T) {
	s := newTestServer(t, testConfig())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.Handler().ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("X-Request-ID header missing")
	}
}

func TestServer_StreamRoute_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.LimitRPS = 1
	cfg.LimitBurst = 1
	s := newTestServer(t, cfg)
	h := s.Handler()

	// First request consumes the burst. It is not a websocket handshake,
	// so the upgrader rejects it, but past the limiter.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, StreamPath, nil))
	if rr.Code == http.StatusTooManyRequests {
		t.Fatalf("first request status=%d, want not rate limited", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, StreamPath, nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing on 429")
	}
}

func TestServer_RateLimitSkipsOperationalRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.LimitRPS = 1
	cfg.LimitBurst = 1
	s := newTestServer(t, cfg)
	h := s.Handler()

	for i := 0; i < 10; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
}

func TestServer_DrainingFlipsReadiness(t *testing.T) {
	s := newTestServer(t, testConfig())
	h := s.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d before drain, want 200", rr.Code)
	}

	s.SetDraining()

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d after drain, want 503", rr.Code)
	}
}
