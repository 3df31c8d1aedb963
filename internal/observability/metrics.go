package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// Intent request rate by route template and status class.
	HTTPRequestsTotal *prometheus.CounterVec

	// Intent request latency. POST /search includes the minimum loading floor.
	HTTPRequestDuration *prometheus.HistogramVec

	// Requests currently being served; drained on shutdown.
	HTTPRequestsInFlight prometheus.Gauge

	// Weather service call rate by outcome. Watch for: not_found vs error ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// Weather service latency. Watch for: p95 approaching the search timeout.
	WeatherAPIDuration *prometheus.HistogramVec

	// Weather service failures by category (timeout, network, parsing, circuit_open...).
	WeatherAPIErrorsTotal *prometheus.CounterVec

	// Directory loads by outcome. Expect exactly one per process.
	DirectoryLoadsTotal *prometheus.CounterVec

	// Countries currently offered for selection. Zero means degraded selection UI.
	DirectoryCountries prometheus.Gauge

	// Submitted searches by outcome (resolved, not_found, network, validation, in_flight, superseded).
	SearchesTotal *prometheus.CounterVec

	// Searches by country code (allow-list; others go to "other").
	SearchesByCountryTotal *prometheus.CounterVec

	// Current history length.
	HistoryEntries prometheus.Gauge

	// History persistence failures by operation (load, save).
	HistoryPersistErrorsTotal *prometheus.CounterVec

	// Circuit breaker state per component: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState *prometheus.GaugeVec

	// Rate limit denials on intent routes.
	RateLimitDeniedTotal prometheus.Counter

	trackedCountriesMu sync.RWMutex
	trackedCountries   map[string]struct{}
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of weather service calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "Weather service latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	WeatherAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiErrorsTotal",
			Help: "Weather service failures by error category",
		},
		[]string{"category"},
	)
	DirectoryLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directoryLoadsTotal",
			Help: "Country directory loads by status",
		},
		[]string{"status"},
	)
	DirectoryCountries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "directoryCountries",
			Help: "Number of countries available for selection",
		},
	)
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchesTotal",
			Help: "Submitted weather searches by outcome",
		},
		[]string{"outcome"},
	)
	SearchesByCountryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchesByCountryTotal",
			Help: "Weather searches by country code (allow-list; others use country=other)",
		},
		[]string{"country"},
	)
	HistoryEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "historyEntries",
			Help: "Number of entries in the search history",
		},
	)
	HistoryPersistErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "historyPersistErrorsTotal",
			Help: "History persistence failures by operation",
		},
		[]string{"op"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"component"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration, WeatherAPIErrorsTotal,
		DirectoryLoadsTotal, DirectoryCountries,
		SearchesTotal, SearchesByCountryTotal,
		HistoryEntries, HistoryPersistErrorsTotal,
		CircuitBreakerState, RateLimitDeniedTotal,
	)
}

// SetTrackedCountries sets the allow-list for per-country search metrics.
func SetTrackedCountries(codes []string) {
	trackedCountriesMu.Lock()
	defer trackedCountriesMu.Unlock()
	trackedCountries = make(map[string]struct{}, len(codes))
	for _, code := range codes {
		trackedCountries[normalizeCountryForMetrics(code)] = struct{}{}
	}
}

// RecordSearch records a submitted search outcome and, for outcomes that reached the
// weather service, the country it was for.
func RecordSearch(outcome, countryCode string) {
	SearchesTotal.WithLabelValues(outcome).Inc()
	if countryCode == "" {
		return
	}
	SearchesByCountryTotal.WithLabelValues(countryLabel(countryCode)).Inc()
}

func countryLabel(code string) string {
	c := normalizeCountryForMetrics(code)
	trackedCountriesMu.RLock()
	_, ok := trackedCountries[c]
	trackedCountriesMu.RUnlock()
	if ok {
		return c
	}
	return "other"
}

func normalizeCountryForMetrics(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
