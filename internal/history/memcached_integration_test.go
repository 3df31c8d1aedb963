//go:build integration
// +build integration

package history

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/kjstillabower/weather-search/internal/models"
)

// TestMemcachedRepository_SaveLoad_Integration verifies the slot round-trips through a
// running memcached server.
func TestMemcachedRepository_SaveLoad_Integration(t *testing.T) {
	repo := NewMemcachedRepository("localhost:11211", "integration-"+t.Name(), 500*time.Millisecond, 2)
	defer repo.Close()

	ctx := context.Background()
	want := []models.HistoryEntry{entry("Paris")}
	if err := repo.Save(ctx, want); err != nil {
		t.Skipf("Save failed (memcached may not be running): %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

// TestMemcachedRepository_Miss_Integration verifies an unknown slot loads empty.
func TestMemcachedRepository_Miss_Integration(t *testing.T) {
	repo := NewMemcachedRepository("localhost:11211", "missing-slot-never-written", 500*time.Millisecond, 2)
	defer repo.Close()

	if err := repo.Ping(); err != nil {
		t.Skipf("memcached not reachable: %v", err)
	}
	got, err := repo.Load(context.Background())
	if err != nil || len(got) != 0 {
		t.Errorf("Load() = %v, %v; want empty, nil", got, err)
	}
}
