// Package health provides liveness and readiness HTTP handlers backed by
// the dependency circuit breakers.
package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dskow/resilience-core/pkg/breaker"
)

// Pre-serialized liveness response avoids json.Encoder allocation.
var livenessBody = []byte(`{"status":"ok"}` + "\n")

const readinessCacheTTL = 1 * time.Second

// Handler provides /health and /ready endpoints. Readiness reflects the
// circuit breaker state of every watched dependency: open means not ready,
// half-open counts as ready since a probe is underway.
type Handler struct {
	group  *breaker.Group
	logger *slog.Logger

	// Cached readiness result to dampen poll storms. Protected by cacheMu.
	cacheTTL     time.Duration
	cacheMu      sync.RWMutex
	cachedResult []byte
	cachedStatus int
	cachedAt     time.Time
}

// New creates a health Handler reading dependency state from group.
func New(group *breaker.Group, logger *slog.Logger) *Handler {
	return &Handler{group: group, logger: logger, cacheTTL: readinessCacheTTL}
}

// RegisterRoutes adds health check routes to the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.liveness)
	mux.HandleFunc("/ready", h.readiness)
}

func (h *Handler) liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(livenessBody)
}

func (h *Handler) readiness(w http.ResponseWriter, r *http.Request) {
	// Serve from cache if fresh.
	h.cacheMu.RLock()
	if h.cachedResult != nil && time.Since(h.cachedAt) < h.cacheTTL {
		body := h.cachedResult
		status := h.cachedStatus
		h.cacheMu.RUnlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(body)
		return
	}
	h.cacheMu.RUnlock()

	deps := make(map[string]string)
	anyOpen := false
	for _, snap := range h.group.Snapshots() {
		switch snap.State {
		case breaker.StateOpen.String():
			deps[snap.Name] = "circuit-open"
			anyOpen = true
		case breaker.StateHalfOpen.String():
			deps[snap.Name] = "circuit-half-open"
		default:
			deps[snap.Name] = "ok"
		}
	}

	httpStatus := http.StatusOK
	statusStr := "ready"
	if anyOpen {
		httpStatus = http.StatusServiceUnavailable
		statusStr = "not ready"
	}

	body, _ := json.Marshal(map[string]interface{}{
		"status":       statusStr,
		"dependencies": deps,
	})
	body = append(body, '\n')

	// Cache the result.
	h.cacheMu.Lock()
	h.cachedResult = body
	h.cachedStatus = httpStatus
	h.cachedAt = time.Now()
	h.cacheMu.Unlock()

	if anyOpen {
		h.logger.Warn("readiness check failed", "dependencies", deps)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	w.Write(body)
}
