package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/config"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to the Pinger interface.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthResponse contains the overall status and per-dependency checks.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	checks map[string]Pinger
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. checks maps a dependency
// name to its Pinger; nil entries are skipped.
func NewHealthHandler(cfg *config.Config, checks map[string]Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, checks: checks, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// Responds 503 when any dependency check fails.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "ok"}
	status := http.StatusOK
	for name, check := range h.checks {
		if check == nil {
			continue
		}
		if response.Checks == nil {
			response.Checks = make(map[string]string, len(h.checks))
		}
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			response.Checks[name] = "unavailable"
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Checks[name] = "ok"
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "drugovery",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
