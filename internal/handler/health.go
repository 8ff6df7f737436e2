package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const readyTimeout = 5 * time.Second

// Readiness states reported per dependency and overall.
const (
	statusOK            = "ok"
	statusDegraded      = "degraded"
	statusUnhealthy     = "unhealthy"
	statusUnavailable   = "unavailable"
	statusNotConfigured = "not configured"
)

// HealthChecker is anything that can be pinged.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name     string
	checker  HealthChecker
	required bool
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	deps   []dependency
	logger *slog.Logger
}

// NewHealthHandler builds the probes for PostgreSQL and the optional Redis
// list cache. Pass a nil cache when the cache is disabled. PostgreSQL is
// required; the cache only degrades readiness since reads fall back to the
// database.
func NewHealthHandler(db, cache HealthChecker, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		deps: []dependency{
			{name: "postgres", checker: db, required: true},
			{name: "redis", checker: cache},
		},
		logger: logger.With("component", "handler.health"),
	}
}

// HealthResponse is the body of both probes.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz reports that the process is up. It checks no dependencies.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: statusOK})
}

// Readyz pings every configured dependency. A failed required dependency
// returns 503; a failed optional one reports "degraded" with 200. Ping
// errors are logged, not returned.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := HealthResponse{Status: statusOK, Checks: make(map[string]string, len(h.deps))}
	code := http.StatusOK

	for _, dep := range h.deps {
		if dep.checker == nil {
			if dep.required {
				resp.Status, code = statusUnhealthy, http.StatusServiceUnavailable
			}
			resp.Checks[dep.name] = statusNotConfigured
			continue
		}

		if err := dep.checker.Ping(ctx); err != nil {
			h.logger.Warn("readiness_check_failed", "dependency", dep.name, "error", err)
			resp.Checks[dep.name] = statusUnavailable
			switch {
			case dep.required:
				resp.Status, code = statusUnhealthy, http.StatusServiceUnavailable
			case resp.Status == statusOK:
				resp.Status = statusDegraded
			}
			continue
		}
		resp.Checks[dep.name] = statusOK
	}

	writeJSON(w, code, resp)
}
