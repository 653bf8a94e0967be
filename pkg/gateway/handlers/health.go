package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aura-voice/aura-relay/pkg/gateway/config"
	"github.com/aura-voice/aura-relay/pkg/gateway/lifecycle"
	"github.com/aura-voice/aura-relay/pkg/gateway/live/sessions"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
	Sessions  *sessions.Tracker
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool     `json:"ok"`
		Draining bool     `json:"draining"`
		Sessions int      `json:"sessions"`
		Issues   []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 1)
	if err := h.Config.Validate(); err != nil {
		issues = append(issues, err.Error())
	}
	draining := h.Lifecycle.IsDraining()

	ok := len(issues) == 0 && !draining
	status := http.StatusOK
	switch {
	case draining:
		status = http.StatusServiceUnavailable
	case len(issues) > 0:
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:       ok,
		Draining: draining,
		Sessions: h.Sessions.Count(),
		Issues:   issues,
	})
}
