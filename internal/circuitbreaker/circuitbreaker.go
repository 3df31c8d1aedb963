package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-search/internal/observability"
)

// Config holds circuit breaker parameters for one upstream component.
type Config struct {
	Component        string
	FailureThreshold uint32        // consecutive failures that open the circuit
	SuccessThreshold uint32        // probe requests allowed while half-open
	Timeout          time.Duration // how long the circuit stays open before probing
	// IsSuccessful classifies call results; nil treats only nil errors as success.
	IsSuccessful func(err error) bool
	Logger       *zap.Logger
}

// New returns a gobreaker.CircuitBreaker that exports its state to the
// circuitBreakerState gauge and logs transitions.
func New(cfg Config) *gobreaker.CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := cfg.FailureThreshold

	observability.CircuitBreakerState.WithLabelValues(cfg.Component).Set(StateValue(gobreaker.StateClosed))
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Component,
		MaxRequests: cfg.SuccessThreshold,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.CircuitBreakerState.WithLabelValues(name).Set(StateValue(to))
			logger.Warn("circuit breaker transition",
				zap.String("component", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: cfg.IsSuccessful,
	})
}

// StateValue maps a breaker state to the gauge value: 0 closed, 1 half-open, 2 open.
func StateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
