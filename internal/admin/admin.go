// Package admin provides the admin API for runtime inspection and breaker
// control. All endpoints are protected by IP allowlist; the reset endpoint
// additionally requires a bearer token when a token secret is configured.
package admin

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/dskow/resilience-core/internal/apierror"
	"github.com/dskow/resilience-core/internal/config"
	"github.com/dskow/resilience-core/internal/metrics"
	"github.com/dskow/resilience-core/pkg/breaker"
)

// Handler provides admin API endpoints.
type Handler struct {
	reloader    ConfigProvider
	group       *breaker.Group
	cfg         config.AdminConfig
	allowedNets []*net.IPNet
	logger      *slog.Logger
}

// ConfigProvider abstracts config access for testability.
type ConfigProvider interface {
	Current() *config.Config
}

// New creates a new admin Handler. The allowlist CIDRs must be pre-validated
// (config validation ensures this).
func New(reloader ConfigProvider, group *breaker.Group, cfg config.AdminConfig, logger *slog.Logger) *Handler {
	nets := make([]*net.IPNet, 0, len(cfg.IPAllowlist))
	for _, cidr := range cfg.IPAllowlist {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue // already validated by config
		}
		nets = append(nets, ipNet)
	}
	return &Handler{
		reloader:    reloader,
		group:       group,
		cfg:         cfg,
		allowedNets: nets,
		logger:      logger,
	}
}

// RegisterRoutes adds admin routes to the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/breakers", h.guard("/admin/breakers", http.MethodGet, h.breakersHandler))
	mux.HandleFunc("/admin/breakers/", h.guard("/admin/breakers/{name}/reset", http.MethodPost, h.resetHandler))
	mux.HandleFunc("/admin/config", h.guard("/admin/config", http.MethodGet, h.configHandler))
}

// statusRecorder captures the response status for the admin request counter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// guard wraps a handler with method and IP allowlist checks and records the
// admin request counter under a fixed endpoint label.
func (h *Handler) guard(endpoint, method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			metrics.AdminRequests.WithLabelValues(endpoint, strconv.Itoa(sr.status)).Inc()
		}()

		if r.Method != method {
			apierror.WriteJSON(sr, http.StatusMethodNotAllowed, apierror.MethodNotAllowed, "method not allowed")
			return
		}

		ip := extractIP(r.RemoteAddr)
		if !h.isAllowed(ip) {
			h.logger.Warn("admin access denied", "client_ip", ip, "path", r.URL.Path)
			apierror.WriteJSON(sr, http.StatusForbidden, apierror.Forbidden, "client address not allowed")
			return
		}
		next(sr, r)
	}
}

func (h *Handler) isAllowed(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, n := range h.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func (h *Handler) breakersHandler(w http.ResponseWriter, r *http.Request) {
	snaps := h.group.Snapshots()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"breakers": snaps,
		"total":    len(snaps),
	})
}

func (h *Handler) resetHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/admin/breakers/")
	name, ok := strings.CutSuffix(rest, "/reset")
	if !ok || name == "" || strings.Contains(name, "/") {
		apierror.WriteJSON(w, http.StatusNotFound, apierror.NotFound, "unknown admin path")
		return
	}

	subject := ""
	if h.cfg.TokenSecret != "" {
		claims, err := h.authorize(r)
		if err != nil {
			if isScopeError(err) {
				apierror.WriteJSON(w, http.StatusForbidden, apierror.Forbidden, err.Error())
			} else {
				apierror.WriteJSON(w, http.StatusUnauthorized, apierror.Unauthorized, "missing or invalid bearer token")
			}
			return
		}
		subject = claims.Subject
	}

	if !h.group.Reset(name) {
		apierror.WriteJSON(w, http.StatusNotFound, apierror.NotFound, "no breaker named "+strconv.Quote(name))
		return
	}

	h.logger.Info("breaker reset via admin",
		"breaker", name,
		"client_ip", extractIP(r.RemoteAddr),
		"subject", subject,
	)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "reset",
		"breaker": name,
	})
}

func (h *Handler) configHandler(w http.ResponseWriter, r *http.Request) {
	cfg := h.reloader.Current()

	// Copy and redact sensitive fields.
	redacted := *cfg
	if redacted.Admin.TokenSecret != "" {
		redacted.Admin.TokenSecret = "***"
	}

	writeJSON(w, http.StatusOK, redacted)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
