package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-search/internal/observability"
)

// RouterConfig configures the intent routes. A nil Limiter disables rate limiting.
type RouterConfig struct {
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
}

// NewRouter registers all routes. Reads are unthrottled; selection, search and history
// mutations share the rate limiter and request timeout.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/state", h.GetState).Methods(http.MethodGet)
	router.HandleFunc("/countries", h.GetCountries).Methods(http.MethodGet)

	intents := router.NewRoute().Subrouter()
	intents.Use(RateLimitMiddleware(cfg.Limiter))
	intents.Use(TimeoutMiddleware(cfg.RequestTimeout))
	intents.HandleFunc("/selection/country", h.PutCountry).Methods(http.MethodPut)
	intents.HandleFunc("/selection/city", h.PutCity).Methods(http.MethodPut)
	intents.HandleFunc("/search", h.PostSearch).Methods(http.MethodPost)
	intents.HandleFunc("/history/entry", h.DeleteHistoryEntry).Methods(http.MethodDelete)
	intents.HandleFunc("/history", h.ClearHistory).Methods(http.MethodDelete)

	return router
}
