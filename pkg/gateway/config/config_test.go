package config

import (
	"strings"
	"testing"
	"time"
)

var relayEnvKeys = []string{
	"AURA_ADDR",
	"GEMINI_API_KEY",
	"AURA_GEMINI_MODEL",
	"AURA_GEMINI_BASE_URL",
	"AURA_UPSTREAM_MAX_ATTEMPTS",
	"AURA_UPSTREAM_RETRY_DELAY",
	"AURA_TTS_VOICE",
	"AURA_IDLE_TIMEOUT",
	"AURA_MAX_SESSIONS",
	"AURA_WS_WRITE_TIMEOUT",
	"AURA_WS_QUEUE_SIZE",
	"AURA_CORS_ORIGINS",
	"AURA_RATE_LIMIT_RPS",
	"AURA_RATE_LIMIT_BURST",
	"AURA_READ_HEADER_TIMEOUT",
	"AURA_SHUTDOWN_GRACE_PERIOD",
	"AURA_CONNECT_TIMEOUT",
	"AURA_RESPONSE_HEADER_TIMEOUT",
}

func clearRelayEnv(t *testing.T) {
	t.Helper()
	for _, key := range relayEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.GeminiAPIKey != "test-key" {
		t.Fatalf("GeminiAPIKey = %q, want test-key", cfg.GeminiAPIKey)
	}
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Fatalf("GeminiModel = %q, want gemini-2.0-flash", cfg.GeminiModel)
	}
	if cfg.GeminiBaseURL != "https://generativelanguage.googleapis.com/v1beta" {
		t.Fatalf("GeminiBaseURL = %q", cfg.GeminiBaseURL)
	}
	if cfg.UpstreamMaxAttempts != 3 {
		t.Fatalf("UpstreamMaxAttempts = %d, want 3", cfg.UpstreamMaxAttempts)
	}
	if cfg.UpstreamRetryDelay != 2*time.Second {
		t.Fatalf("UpstreamRetryDelay = %v, want 2s", cfg.UpstreamRetryDelay)
	}
	if cfg.TTSVoice != "en-US-JennyNeural" {
		t.Fatalf("TTSVoice = %q, want en-US-JennyNeural", cfg.TTSVoice)
	}
	if cfg.IdleTimeout != time.Hour {
		t.Fatalf("IdleTimeout = %v, want 1h", cfg.IdleTimeout)
	}
	if cfg.MaxSessions != 0 {
		t.Fatalf("MaxSessions = %d, want 0", cfg.MaxSessions)
	}
	if cfg.WSWriteTimeout != 5*time.Second {
		t.Fatalf("WSWriteTimeout = %v, want 5s", cfg.WSWriteTimeout)
	}
	if cfg.WSQueueSize != 64 {
		t.Fatalf("WSQueueSize = %d, want 64", cfg.WSQueueSize)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("CORSAllowedOrigins len = %d, want 0", len(cfg.CORSAllowedOrigins))
	}
	if cfg.LimitRPS != 1.0 {
		t.Fatalf("LimitRPS = %v, want 1.0", cfg.LimitRPS)
	}
	if cfg.LimitBurst != 5 {
		t.Fatalf("LimitBurst = %d, want 5", cfg.LimitBurst)
	}
	if cfg.ReadHeaderTimeout != 10*time.Second {
		t.Fatalf("ReadHeaderTimeout = %v, want 10s", cfg.ReadHeaderTimeout)
	}
	if cfg.ShutdownGracePeriod != 30*time.Second {
		t.Fatalf("ShutdownGracePeriod = %v, want 30s", cfg.ShutdownGracePeriod)
	}
	if cfg.UpstreamConnectTimeout != 5*time.Second {
		t.Fatalf("UpstreamConnectTimeout = %v, want 5s", cfg.UpstreamConnectTimeout)
	}
	if cfg.UpstreamResponseHeaderTimeout != 30*time.Second {
		t.Fatalf("UpstreamResponseHeaderTimeout = %v, want 30s", cfg.UpstreamResponseHeaderTimeout)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("AURA_ADDR", ":9090")
	t.Setenv("GEMINI_API_KEY", "k-override")
	t.Setenv("AURA_GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("AURA_GEMINI_BASE_URL", "https://gemini.example/v1beta")
	t.Setenv("AURA_UPSTREAM_MAX_ATTEMPTS", "5")
	t.Setenv("AURA_UPSTREAM_RETRY_DELAY", "500ms")
	t.Setenv("AURA_TTS_VOICE", "en-GB-SoniaNeural")
	t.Setenv("AURA_IDLE_TIMEOUT", "15m")
	t.Setenv("AURA_MAX_SESSIONS", "32")
	t.Setenv("AURA_WS_WRITE_TIMEOUT", "3s")
	t.Setenv("AURA_WS_QUEUE_SIZE", "128")
	t.Setenv("AURA_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("AURA_RATE_LIMIT_RPS", "2.5")
	t.Setenv("AURA_RATE_LIMIT_BURST", "9")
	t.Setenv("AURA_READ_HEADER_TIMEOUT", "12s")
	t.Setenv("AURA_SHUTDOWN_GRACE_PERIOD", "31s")
	t.Setenv("AURA_CONNECT_TIMEOUT", "7s")
	t.Setenv("AURA_RESPONSE_HEADER_TIMEOUT", "29s")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":9090" || cfg.GeminiAPIKey != "k-override" {
		t.Fatalf("Addr/GeminiAPIKey = %q/%q", cfg.Addr, cfg.GeminiAPIKey)
	}
	if cfg.GeminiModel != "gemini-2.5-pro" || cfg.GeminiBaseURL != "https://gemini.example/v1beta" {
		t.Fatalf("gemini overrides mismatch: %q/%q", cfg.GeminiModel, cfg.GeminiBaseURL)
	}
	if cfg.UpstreamMaxAttempts != 5 || cfg.UpstreamRetryDelay != 500*time.Millisecond {
		t.Fatalf("retry overrides mismatch: %d/%v", cfg.UpstreamMaxAttempts, cfg.UpstreamRetryDelay)
	}
	if cfg.TTSVoice != "en-GB-SoniaNeural" {
		t.Fatalf("TTSVoice = %q", cfg.TTSVoice)
	}
	if cfg.IdleTimeout != 15*time.Minute || cfg.MaxSessions != 32 {
		t.Fatalf("session overrides mismatch: %v/%d", cfg.IdleTimeout, cfg.MaxSessions)
	}
	if cfg.WSWriteTimeout != 3*time.Second || cfg.WSQueueSize != 128 {
		t.Fatalf("ws overrides mismatch: %v/%d", cfg.WSWriteTimeout, cfg.WSQueueSize)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins len = %d, want 2", len(cfg.CORSAllowedOrigins))
	}
	if _, ok := cfg.CORSAllowedOrigins["https://b.example"]; !ok {
		t.Fatalf("missing https://b.example")
	}
	if cfg.LimitRPS != 2.5 || cfg.LimitBurst != 9 {
		t.Fatalf("rate limit overrides mismatch: %v/%d", cfg.LimitRPS, cfg.LimitBurst)
	}
	if cfg.ReadHeaderTimeout != 12*time.Second || cfg.ShutdownGracePeriod != 31*time.Second {
		t.Fatalf("server timeouts mismatch: %v/%v", cfg.ReadHeaderTimeout, cfg.ShutdownGracePeriod)
	}
	if cfg.UpstreamConnectTimeout != 7*time.Second || cfg.UpstreamResponseHeaderTimeout != 29*time.Second {
		t.Fatalf("upstream timeouts mismatch: %v/%v", cfg.UpstreamConnectTimeout, cfg.UpstreamResponseHeaderTimeout)
	}
}

func TestLoadFromEnv_RequiresAPIKey(t *testing.T) {
	clearRelayEnv(t)

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("error = %v, expected GEMINI_API_KEY in message", err)
	}
}

func TestLoadFromEnv_ParsesCORSOrigins(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("AURA_CORS_ORIGINS", "https://one.example, https://two.example,,")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins len = %d, want 2", len(cfg.CORSAllowedOrigins))
	}
	if _, ok := cfg.CORSAllowedOrigins["https://two.example"]; !ok {
		t.Fatalf("missing https://two.example")
	}
}

func TestLoadFromEnv_InvalidBounds(t *testing.T) {
	cases := []struct {
		name      string
		env       map[string]string
		errSubstr string
	}{
		{
			name:      "zero idle timeout",
			env:       map[string]string{"AURA_IDLE_TIMEOUT": "0s"},
			errSubstr: "AURA_IDLE_TIMEOUT",
		},
		{
			name:      "negative max sessions",
			env:       map[string]string{"AURA_MAX_SESSIONS": "-1"},
			errSubstr: "AURA_MAX_SESSIONS",
		},
		{
			name:      "zero ws queue",
			env:       map[string]string{"AURA_WS_QUEUE_SIZE": "0"},
			errSubstr: "AURA_WS_QUEUE_SIZE",
		},
		{
			name:      "negative rate limit rps",
			env:       map[string]string{"AURA_RATE_LIMIT_RPS": "-1"},
			errSubstr: "AURA_RATE_LIMIT_RPS",
		},
		{
			name:      "zero retry delay",
			env:       map[string]string{"AURA_UPSTREAM_RETRY_DELAY": "0s"},
			errSubstr: "AURA_UPSTREAM_RETRY_DELAY",
		},
		{
			name:      "zero connect timeout",
			env:       map[string]string{"AURA_CONNECT_TIMEOUT": "0s"},
			errSubstr: "AURA_CONNECT_TIMEOUT",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearRelayEnv(t)
			t.Setenv("GEMINI_API_KEY", "k")
			for key, value := range tc.env {
				t.Setenv(key, value)
			}
			_, err := LoadFromEnv()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.errSubstr) {
				t.Fatalf("error = %v, expected substring %q", err, tc.errSubstr)
			}
		})
	}
}
