package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-search/internal/models"
	"github.com/kjstillabower/weather-search/internal/observability"
	"github.com/kjstillabower/weather-search/internal/search"
)

// AlertSource hands out the pending user alert, once.
type AlertSource interface {
	Take() (string, bool)
}

// HealthConfig holds the dependency probes for the health handler.
type HealthConfig struct {
	WeatherBreaker *gobreaker.CircuitBreaker
	// DirectoryCheck reports the kept catalogue load failure, if any.
	DirectoryCheck func() error
	// HistoryPing, when set, checks the history backend. Used when backend is memcached.
	HistoryPing func() error
	StartTime   time.Time
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	ctrl             *search.Controller
	alerts           AlertSource
	healthConfig     *HealthConfig
	logger           *zap.Logger
	shuttingDown     atomic.Bool
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. alerts may be nil when no presenter consumes alerts.
func NewHandler(ctrl *search.Controller, alerts AlertSource, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		ctrl:         ctrl,
		alerts:       alerts,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// SetShuttingDown marks the process as draining. Health returns 503 while set.
func (h *Handler) SetShuttingDown(v bool) {
	h.shuttingDown.Store(v)
}

type stateResponse struct {
	search.View
	Alert string `json:"alert,omitempty"`
}

// GetState handles GET /state. A pending alert is delivered once.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{View: h.ctrl.View()}
	if h.alerts != nil {
		if msg, ok := h.alerts.Take(); ok {
			resp.Alert = msg
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetCountries handles GET /countries.
func (h *Handler) GetCountries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Countries())
}

// PutCountry handles PUT /selection/country.
func (h *Handler) PutCountry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	view, err := h.ctrl.SelectCountry(body.Code)
	if errors.Is(err, search.ErrUnknownCountry) {
		writeError(w, r, http.StatusBadRequest, "UNKNOWN_COUNTRY", "country "+body.Code+" is not in the directory")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// PutCity handles PUT /selection/city.
func (h *Handler) PutCity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		City string `json:"city"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	view, err := h.ctrl.SelectCity(body.City)
	if errors.Is(err, search.ErrUnknownCity) {
		writeError(w, r, http.StatusBadRequest, "UNKNOWN_CITY", "city "+body.City+" is not in the selected country")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// PostSearch handles POST /search. Failures carry the resulting view next to the error.
func (h *Handler) PostSearch(w http.ResponseWriter, r *http.Request) {
	view, err := h.ctrl.Submit(r.Context())
	if err == nil {
		writeJSON(w, http.StatusOK, view)
		return
	}

	status, code, message := searchErrorStatus(err, view)
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context(), h.logger).Debug("search upstream error", zap.Error(err))
	}
	writeErrorWithView(w, r, status, code, message, view)
}

func searchErrorStatus(err error, view search.View) (int, string, string) {
	switch {
	case errors.Is(err, search.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_FAILED", view.Error
	case errors.Is(err, search.ErrNotFound):
		return http.StatusNotFound, "WEATHER_NOT_AVAILABLE", view.Error
	case errors.Is(err, search.ErrSearchInFlight):
		return http.StatusConflict, "SEARCH_IN_FLIGHT", "A search is already in progress"
	case errors.Is(err, search.ErrSuperseded):
		return http.StatusConflict, "SEARCH_SUPERSEDED", "The selection changed before the search finished"
	default:
		return http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", search.MsgFetchFailed
	}
}

type historyResponse struct {
	History []models.HistoryEntry `json:"history"`
}

// DeleteHistoryEntry handles DELETE /history/entry. The body is the entry to remove.
// A failed save is logged by the controller; the response reflects the in-memory log.
func (h *Handler) DeleteHistoryEntry(w http.ResponseWriter, r *http.Request) {
	var entry models.HistoryEntry
	if !decodeBody(w, r, &entry) {
		return
	}
	entries, _ := h.ctrl.DeleteHistoryEntry(r.Context(), entry)
	writeJSON(w, http.StatusOK, historyResponse{History: entries})
}

// ClearHistory handles DELETE /history.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	entries, _ := h.ctrl.ClearHistory(r.Context())
	writeJSON(w, http.StatusOK, historyResponse{History: entries})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weather-search",
		"version":   "dev",
		"checks":    result.checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.healthConfig != nil && !h.healthConfig.StartTime.IsZero() {
		resp["uptimeSeconds"] = int64(time.Since(h.healthConfig.StartTime).Seconds())
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > weather breaker open > healthy. A failing directory or history
// backend is reported in checks without failing the probe.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	checks := map[string]string{
		"weatherApi": "healthy",
		"directory":  "healthy",
	}
	if h.shuttingDown.Load() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", checks}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, "", checks}
	}

	if h.healthConfig.DirectoryCheck != nil && h.healthConfig.DirectoryCheck() != nil {
		checks["directory"] = "unhealthy"
	}
	if h.healthConfig.HistoryPing != nil {
		if h.healthConfig.HistoryPing() == nil {
			checks["history"] = "healthy"
		} else {
			checks["history"] = "unhealthy"
		}
	}
	if breakerOpen(h.healthConfig.WeatherBreaker) {
		checks["weatherApi"] = "unhealthy"
		return healthResult{"degraded", http.StatusServiceUnavailable, "weather_circuit_open", checks}
	}
	return healthResult{"healthy", http.StatusOK, "", checks}
}

func breakerOpen(cb *gobreaker.CircuitBreaker) bool {
	return cb != nil && cb.State() == gobreaker.StateOpen
}

// decodeBody decodes a JSON request body into v. On failure it writes a 400 and
// returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return false
	}
	return true
}

// writeJSON writes a JSON response with the specified HTTP status code.
// Sets Content-Type header to application/json and encodes the provided value.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": errorBody{code, message, observability.CorrelationID(r.Context())},
	})
}

func writeErrorWithView(w http.ResponseWriter, r *http.Request, status int, code, message string, view search.View) {
	writeJSON(w, status, map[string]interface{}{
		"error": errorBody{code, message, observability.CorrelationID(r.Context())},
		"view":  view,
	})
}
