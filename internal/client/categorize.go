package client

import (
	"context"
	"errors"
	"net"

	"github.com/sony/gobreaker"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as the weatherApiErrorsTotal label.
const (
	ErrorCategoryTimeout          ErrorCategory = "timeout"
	ErrorCategoryNetwork          ErrorCategory = "network"
	ErrorCategoryLocationNotFound ErrorCategory = "location_not_found"
	ErrorCategoryParsing          ErrorCategory = "parsing"
	ErrorCategoryCircuitOpen      ErrorCategory = "circuit_open"
	ErrorCategoryUnknown          ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrorCategoryCircuitOpen
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, ErrLocationNotFound) {
		return ErrorCategoryLocationNotFound
	}
	if errors.Is(err, ErrMalformedResponse) {
		return ErrorCategoryParsing
	}
	if errors.Is(err, ErrNetwork) {
		return ErrorCategoryNetwork
	}

	return ErrorCategoryUnknown
}
