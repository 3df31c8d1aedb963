package search

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAlertBox_TakeIsOneShot(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	b := NewAlertBox(zap.New(core))

	if _, ok := b.Take(); ok {
		t.Fatal("Take() on empty box returned an alert")
	}

	b.Alert("first")
	b.Alert("second")
	msg, ok := b.Take()
	if !ok || msg != "second" {
		t.Errorf("Take() = %q, %v; want second, true", msg, ok)
	}
	if _, ok := b.Take(); ok {
		t.Error("Take() returned the same alert twice")
	}
	if logs.FilterMessage("alert raised").Len() != 2 {
		t.Errorf("alert logs = %d, want 2", logs.Len())
	}
}
