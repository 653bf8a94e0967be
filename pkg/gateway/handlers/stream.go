package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aura-voice/aura-relay/pkg/gateway/config"
	"github.com/aura-voice/aura-relay/pkg/gateway/lifecycle"
	"github.com/aura-voice/aura-relay/pkg/gateway/live/channel"
	"github.com/aura-voice/aura-relay/pkg/gateway/live/protocol"
	"github.com/aura-voice/aura-relay/pkg/gateway/live/session"
	"github.com/aura-voice/aura-relay/pkg/gateway/live/sessions"
	"github.com/aura-voice/aura-relay/pkg/gateway/metrics"
	"github.com/aura-voice/aura-relay/pkg/gateway/mw"
)

// StreamHandler owns the /stream websocket route: it upgrades the
// connection and runs one conversation session on it until the client
// hangs up, the session idles out, or the server drains.
type StreamHandler struct {
	Config    config.Config
	Upstream  session.Upstream
	Synth     session.Synth
	Logger    *slog.Logger
	Lifecycle *lifecycle.Lifecycle
	Sessions  *sessions.Tracker
	Metrics   *metrics.Metrics
}

func (h StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Lifecycle.IsDraining() {
		http.Error(w, "server is draining", http.StatusServiceUnavailable)
		return
	}

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	upgrader := websocket.Upgrader{
		// The relay serves its own client page and accepts non-browser
		// callers; origin checks stay off.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}

	sessionID := uuid.NewString()
	reqID := requestIDFromContext(r.Context())

	ch := channel.New(conn,
		channel.WithWriteTimeout(h.Config.WSWriteTimeout),
		channel.WithQueueSize(h.Config.WSQueueSize),
	)
	// The connection is hijacked; nothing else tears it down if this
	// handler unwinds, panic included.
	defer func() { _ = ch.Close() }()

	s, err := session.New(session.Dependencies{
		Channel:   ch,
		Upstream:  h.Upstream,
		Synth:     h.Synth,
		Logger:    logger,
		Metrics:   h.Metrics,
		SessionID: sessionID,
		Config: session.Config{
			Voice:       h.Config.TTSVoice,
			IdleTimeout: h.Config.IdleTimeout,
		},
	})
	if err != nil {
		logger.Error("session init failed", "session_id", sessionID, "request_id", reqID, "error", err)
		return
	}

	unregister, err := h.Sessions.Register(sessionID, func() { _ = s.Close() })
	if err != nil {
		logger.Warn("session refused", "session_id", sessionID, "request_id", reqID, "error", err)
		_ = ch.Send(protocol.ErrorMessage("server is at capacity, please try again later"))
		return
	}
	defer unregister()

	if h.Metrics != nil {
		h.Metrics.SessionsTotal.Inc()
		h.Metrics.SessionsActive.Inc()
		defer h.Metrics.SessionsActive.Dec()
	}

	logger.Info("websocket connected",
		"session_id", sessionID,
		"request_id", reqID,
		"remote_addr", r.RemoteAddr,
	)
	if err := s.Run(r.Context()); err != nil {
		logger.Warn("session ended with error", "session_id", sessionID, "request_id", reqID, "error", err)
	}
}

func requestIDFromContext(ctx context.Context) string {
	if id, ok := mw.RequestIDFrom(ctx); ok {
		return id
	}
	return ""
}
