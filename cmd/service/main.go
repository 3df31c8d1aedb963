package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-search/internal/circuitbreaker"
	"github.com/kjstillabower/weather-search/internal/client"
	"github.com/kjstillabower/weather-search/internal/config"
	"github.com/kjstillabower/weather-search/internal/directory"
	"github.com/kjstillabower/weather-search/internal/history"
	httphandler "github.com/kjstillabower/weather-search/internal/http"
	"github.com/kjstillabower/weather-search/internal/localtime"
	"github.com/kjstillabower/weather-search/internal/observability"
	"github.com/kjstillabower/weather-search/internal/search"
)

const inFlightCheckInterval = 100 * time.Millisecond

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	weatherBreaker := circuitbreaker.New(circuitbreaker.Config{
		Component:        "weather_api",
		FailureThreshold: cfg.BreakerFailureThreshold,
		Timeout:          cfg.BreakerTimeout,
		IsSuccessful:     client.IsBreakerSuccess,
		Logger:           logger,
	})
	weatherClient.SetCircuitBreaker(weatherBreaker)

	logger.Info("circuit breaker enabled",
		zap.Uint32("failure_threshold", cfg.BreakerFailureThreshold), zap.Duration("timeout", cfg.BreakerTimeout))

	dir := directory.New(cfg.DirectoryURL, cfg.DirectoryTimeout, logger)

	repo, closer, ping, err := openHistoryRepository(cfg)
	if err != nil {
		logger.Fatal("history backend", zap.Error(err))
	}
	logger.Info("history backend", zap.String("backend", cfg.HistoryBackend), zap.String("slot", cfg.HistorySlot))

	startCtx, startCancel := context.WithTimeout(context.Background(), cfg.DirectoryTimeout+5*time.Second)
	store := history.NewStore(startCtx, repo, cfg.HistoryCapacity, logger)

	alerts := search.NewAlertBox(logger)
	ctrl := search.New(search.Deps{
		Directory: dir,
		Weather:   weatherClient,
		Resolver:  localtime.NewResolver(cfg.DateTimeLayout, cfg.ClockLayout),
		History:   store,
		Alerter:   alerts,
		Logger:    logger,
	}, search.Options{
		MinLoading:    cfg.SearchMinLoading,
		SearchTimeout: cfg.SearchTimeout,
		HomeCountry:   cfg.HomeCountry,
	})
	ctrl.Init(startCtx)
	startCancel()

	if len(cfg.TrackedCountries) > 0 {
		observability.SetTrackedCountries(cfg.TrackedCountries)
	}

	handler := httphandler.NewHandler(ctrl, alerts, &httphandler.HealthConfig{
		WeatherBreaker: weatherBreaker,
		DirectoryCheck: dir.LoadError,
		HistoryPing:    ping,
		StartTime:      time.Now(),
	}, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	handler.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if closer != nil {
		if err := closer.Close(); err != nil {
			logger.Error("history backend close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// openHistoryRepository builds the configured history backend. closer and ping are nil
// for backends without connections.
func openHistoryRepository(cfg *config.Config) (history.Repository, io.Closer, func() error, error) {
	switch cfg.HistoryBackend {
	case "memory":
		return history.NewMemoryRepository(), nil, nil, nil
	case "memcached":
		mc := history.NewMemcachedRepository(cfg.MemcachedAddrs, cfg.HistorySlot, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		return mc, mc, mc.Ping, nil
	case "sqlite":
		db, err := history.OpenSQLite(cfg.HistorySQLite)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.HistorySQLite, err)
		}
		repo, err := history.NewSQLRepository(db, cfg.HistorySlot)
		if err != nil {
			return nil, nil, nil, err
		}
		return repo, repo, nil, nil
	default:
		repo, err := history.NewFileRepository(cfg.HistoryFilePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return repo, nil, nil, nil
	}
}
