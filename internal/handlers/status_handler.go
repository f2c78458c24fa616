package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
)

// StatusHandler handles health probes and system status
type StatusHandler struct {
	storage    interfaces.StorageManager
	dispatcher interfaces.Dispatcher
	startedAt  time.Time
	logger     arbor.ILogger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(storage interfaces.StorageManager, dispatcher interfaces.Dispatcher, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		storage:    storage,
		dispatcher: dispatcher,
		startedAt:  time.Now().UTC(),
		logger:     logger,
	}
}

// HealthHandler handles GET /health: deep check including the store
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"version":        common.GetVersion(),
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"running_jobs":   h.dispatcher.RunningCount(),
	})
}

// ReadyHandler handles GET /ready: ready to accept traffic
func (h *StatusHandler) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// LiveHandler handles GET /live: process liveness only
func (h *StatusHandler) LiveHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// VersionHandler handles GET /version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetFullVersion(),
	})
}

// StatusAPIHandler handles GET /status: job and article aggregates
func (h *StatusHandler) StatusAPIHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	jobStats, err := h.storage.JobStorage().GetJobStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	articleStats, err := h.storage.ArticleStorage().GetArticleStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":        common.GetVersion(),
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"running_jobs":   h.dispatcher.RunningCount(),
		"jobs":           jobStats,
		"articles":       articleStats,
	})
}

// NotFoundHandler handles unmatched API routes
func (h *StatusHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
}
