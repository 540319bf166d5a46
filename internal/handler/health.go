package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/filevault/filevault/internal/logger"
)

const readyTimeout = 3 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type readiness struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Cache   string `json:"cache"`
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ReadyHandler reports whether the backend, and Redis when used, answer.
func (h *Handler) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	res := readiness{Status: "ok", Backend: "ok", Cache: "ok"}
	if err := h.API.Status(ctx); err != nil {
		logger.Log.Warn("backend not ready", "error", err)
		res.Status, res.Backend = "unavailable", err.Error()
	}
	if p, ok := h.Cache.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			logger.Log.Warn("cache not ready", "error", err)
			res.Status, res.Cache = "unavailable", err.Error()
		}
	}

	status := http.StatusOK
	if res.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}
