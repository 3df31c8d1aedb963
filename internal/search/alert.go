package search

import (
	"sync"

	"go.uber.org/zap"
)

// Alerter surfaces a blocking notification to the user.
type Alerter interface {
	Alert(msg string)
}

// AlertBox holds at most one pending alert until a presenter takes it.
type AlertBox struct {
	mu      sync.Mutex
	pending string
	logger  *zap.Logger
}

// NewAlertBox returns an empty AlertBox.
func NewAlertBox(logger *zap.Logger) *AlertBox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertBox{logger: logger}
}

// Alert replaces any pending alert with msg.
func (b *AlertBox) Alert(msg string) {
	b.mu.Lock()
	b.pending = msg
	b.mu.Unlock()
	b.logger.Warn("alert raised", zap.String("message", msg))
}

// Take returns the pending alert and clears it. ok is false when nothing is pending.
func (b *AlertBox) Take() (msg string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg, b.pending = b.pending, ""
	return msg, msg != ""
}
