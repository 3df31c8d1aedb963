//go:build integration
// +build integration

package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-search/internal/client"
	"github.com/kjstillabower/weather-search/internal/directory"
	"github.com/kjstillabower/weather-search/internal/history"
	"github.com/kjstillabower/weather-search/internal/localtime"
	"github.com/kjstillabower/weather-search/internal/search"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey         string
	APIURL         string
	DirectoryURL   string
	HistoryBackend string // "memory" or "memcached"
	MemcachedAddr  string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	cfg := IntegrationTestConfig{
		APIKey:         apiKey,
		APIURL:         os.Getenv("WEATHER_API_URL"),
		DirectoryURL:   os.Getenv("DIRECTORY_URL"),
		HistoryBackend: os.Getenv("INTEGRATION_HISTORY_BACKEND"),
		MemcachedAddr:  os.Getenv("MEMCACHED_ADDRS"),
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	if cfg.DirectoryURL == "" {
		cfg.DirectoryURL = "https://countriesnow.space/api/v0.1/countries"
	}
	if cfg.MemcachedAddr == "" {
		cfg.MemcachedAddr = "localhost:11211"
	}
	return cfg
}

// SetupIntegrationController builds a controller against the live weather and
// directory services. The returned cleanup closes the history backend.
func SetupIntegrationController(t *testing.T, cfg IntegrationTestConfig) (*search.Controller, *search.AlertBox, func()) {
	t.Helper()
	logger := zap.NewNop()

	weatherClient, err := client.NewOpenWeatherClient(cfg.APIKey, cfg.APIURL, 10*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	var repo history.Repository = history.NewMemoryRepository()
	cleanup := func() {}
	if cfg.HistoryBackend == "memcached" {
		mc := history.NewMemcachedRepository(cfg.MemcachedAddr, "integration-"+t.Name(), 500*time.Millisecond, 2)
		if err := mc.Ping(); err != nil {
			mc.Close()
			t.Skipf("memcached not reachable at %s: %v", cfg.MemcachedAddr, err)
		}
		repo = mc
		cleanup = func() {
			mc.Save(context.Background(), nil)
			mc.Close()
		}
	}

	ctx := context.Background()
	alerts := search.NewAlertBox(logger)
	ctrl := search.New(search.Deps{
		Directory: directory.New(cfg.DirectoryURL, 15*time.Second, logger),
		Weather:   weatherClient,
		Resolver:  localtime.NewResolver("", ""),
		History:   history.NewStore(ctx, repo, 0, logger),
		Alerter:   alerts,
		Logger:    logger,
	}, search.Options{SearchTimeout: 15 * time.Second})
	ctrl.Init(ctx)
	return ctrl, alerts, cleanup
}
