package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// Gemini upstream.
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	// Retry budget for one upstream turn.
	UpstreamMaxAttempts int
	UpstreamRetryDelay  time.Duration

	// Speech synthesis.
	TTSVoice string

	// A session with no inbound prompt for this long is closed.
	IdleTimeout time.Duration

	// Concurrent session cap across all clients (0 => unlimited).
	MaxSessions int

	// WebSocket delivery.
	WSWriteTimeout time.Duration
	WSQueueSize    int

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Per-client session-open throttle (0 disables).
	LimitRPS   float64
	LimitBurst int

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration

	// Upstream HTTP client defaults
	UpstreamConnectTimeout        time.Duration
	UpstreamResponseHeaderTimeout time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                          envOr("AURA_ADDR", ":8080"),
		GeminiAPIKey:                  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:                   envOr("AURA_GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL:                 envOr("AURA_GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		UpstreamMaxAttempts:           envIntOr("AURA_UPSTREAM_MAX_ATTEMPTS", 3),
		UpstreamRetryDelay:            envDurationOr("AURA_UPSTREAM_RETRY_DELAY", 2*time.Second),
		TTSVoice:                      envOr("AURA_TTS_VOICE", "en-US-JennyNeural"),
		IdleTimeout:                   envDurationOr("AURA_IDLE_TIMEOUT", time.Hour),
		MaxSessions:                   envIntOr("AURA_MAX_SESSIONS", 0),
		WSWriteTimeout:                envDurationOr("AURA_WS_WRITE_TIMEOUT", 5*time.Second),
		WSQueueSize:                   envIntOr("AURA_WS_QUEUE_SIZE", 64),
		CORSAllowedOrigins:            make(map[string]struct{}),
		LimitRPS:                      envFloat64Or("AURA_RATE_LIMIT_RPS", 1.0),
		LimitBurst:                    envIntOr("AURA_RATE_LIMIT_BURST", 5),
		ReadHeaderTimeout:             envDurationOr("AURA_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:           envDurationOr("AURA_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		UpstreamConnectTimeout:        envDurationOr("AURA_CONNECT_TIMEOUT", 5*time.Second),
		UpstreamResponseHeaderTimeout: envDurationOr("AURA_RESPONSE_HEADER_TIMEOUT", 30*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("AURA_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("AURA_ADDR must not be empty")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY must be set")
	}
	if strings.TrimSpace(c.GeminiModel) == "" {
		return fmt.Errorf("AURA_GEMINI_MODEL must not be empty")
	}
	if strings.TrimSpace(c.GeminiBaseURL) == "" {
		return fmt.Errorf("AURA_GEMINI_BASE_URL must not be empty")
	}
	if c.UpstreamMaxAttempts <= 0 {
		return fmt.Errorf("AURA_UPSTREAM_MAX_ATTEMPTS must be > 0")
	}
	if c.UpstreamRetryDelay <= 0 {
		return fmt.Errorf("AURA_UPSTREAM_RETRY_DELAY must be > 0")
	}
	if strings.TrimSpace(c.TTSVoice) == "" {
		return fmt.Errorf("AURA_TTS_VOICE must not be empty")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("AURA_IDLE_TIMEOUT must be > 0")
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("AURA_MAX_SESSIONS must be >= 0")
	}
	if c.WSWriteTimeout <= 0 {
		return fmt.Errorf("AURA_WS_WRITE_TIMEOUT must be > 0")
	}
	if c.WSQueueSize <= 0 {
		return fmt.Errorf("AURA_WS_QUEUE_SIZE must be > 0")
	}
	if c.LimitRPS < 0 {
		return fmt.Errorf("AURA_RATE_LIMIT_RPS must be >= 0")
	}
	if c.LimitBurst < 0 {
		return fmt.Errorf("AURA_RATE_LIMIT_BURST must be >= 0")
	}
	if c.ReadHeaderTimeout <= 0 {
		return fmt.Errorf("AURA_READ_HEADER_TIMEOUT must be > 0")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("AURA_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if c.UpstreamConnectTimeout <= 0 {
		return fmt.Errorf("AURA_CONNECT_TIMEOUT must be > 0")
	}
	if c.UpstreamResponseHeaderTimeout <= 0 {
		return fmt.Errorf("AURA_RESPONSE_HEADER_TIMEOUT must be > 0")
	}
	return nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
