package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aura-voice/aura-relay/pkg/core/providers/gemini"
	"github.com/aura-voice/aura-relay/pkg/core/voice/tts"
	"github.com/aura-voice/aura-relay/pkg/gateway/config"
	"github.com/aura-voice/aura-relay/pkg/gateway/handlers"
	"github.com/aura-voice/aura-relay/pkg/gateway/lifecycle"
	"github.com/aura-voice/aura-relay/pkg/gateway/live/session"
	"github.com/aura-voice/aura-relay/pkg/gateway/live/sessions"
	"github.com/aura-voice/aura-relay/pkg/gateway/metrics"
	"github.com/aura-voice/aura-relay/pkg/gateway/mw"
	"github.com/aura-voice/aura-relay/pkg/gateway/ratelimit"
)

// StreamPath is the websocket route clients connect to.
const StreamPath = "/stream"

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	httpClient *http.Client
	limiter    *ratelimit.Limiter
	lifecycle  *lifecycle.Lifecycle
	tracker    *sessions.Tracker
	metrics    *metrics.Metrics
	registry   *prometheus.Registry

	upstream session.Upstream
	synth    session.Synth
}

func New(cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: cfg.UpstreamConnectTimeout,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: cfg.UpstreamResponseHeaderTimeout,
		},
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	provider := gemini.New(cfg.GeminiAPIKey,
		gemini.WithModel(cfg.GeminiModel),
		gemini.WithBaseURL(cfg.GeminiBaseURL),
		gemini.WithHTTPClient(httpClient),
		gemini.WithRetryPolicy(gemini.RetryPolicy{
			MaxAttempts: cfg.UpstreamMaxAttempts,
			BaseDelay:   cfg.UpstreamRetryDelay,
		}),
		gemini.WithLogger(logger),
	)

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		mux:        http.NewServeMux(),
		httpClient: httpClient,
		limiter: ratelimit.New(ratelimit.Config{
			RPS:   cfg.LimitRPS,
			Burst: cfg.LimitBurst,
		}),
		lifecycle: &lifecycle.Lifecycle{},
		tracker:   sessions.NewTracker(cfg.MaxSessions),
		metrics:   metrics.New(registry),
		registry:  registry,
		upstream:  session.UpstreamAdapter{Provider: provider},
		synth:     tts.NewEdge(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/", handlers.IndexHandler{StreamPath: StreamPath})
	s.mux.Handle(StreamPath, handlers.StreamHandler{
		Config:    s.cfg,
		Upstream:  s.upstream,
		Synth:     s.synth,
		Logger:    s.logger,
		Lifecycle: s.lifecycle,
		Sessions:  s.tracker,
		Metrics:   s.metrics,
	})

	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Config:    s.cfg,
		Lifecycle: s.lifecycle,
		Sessions:  s.tracker,
	})
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.RateLimit(s.limiter, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining flips readiness so probes route new sessions elsewhere
// while shutdown waits for the current ones.
func (s *Server) SetDraining() {
	s.lifecycle.SetDraining(true)
}

// WarnSessionsDraining logs how many sessions shutdown is about to wait on.
func (s *Server) WarnSessionsDraining() {
	if n := s.tracker.Count(); n > 0 {
		s.logger.Warn("waiting for live sessions to finish", "sessions", n)
	}
}

// WaitSessions blocks until every session has ended or ctx expires. It
// reports whether the drain completed.
func (s *Server) WaitSessions(ctx context.Context) bool {
	return s.tracker.Wait(ctx)
}

// CancelSessions force-closes every session still running.
func (s *Server) CancelSessions() int {
	return s.tracker.CancelAll()
}
