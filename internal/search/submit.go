package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-search/internal/client"
	"github.com/kjstillabower/weather-search/internal/models"
	"github.com/kjstillabower/weather-search/internal/observability"
)

// Submit looks up the weather for the current selection.
//
// A missing country or city fails with ErrValidation without calling the weather
// service. Otherwise the controller enters Searching until both the fetch and the
// minimum loading period have finished. Success appends to history and resolves;
// ErrNotFound and ErrNetwork leave history untouched, and ErrNetwork also raises an
// alert. If the selection changes meanwhile the result is dropped with ErrSuperseded.
func (c *Controller) Submit(ctx context.Context) (View, error) {
	logger := observability.LoggerFromContext(ctx, c.deps.Logger)

	c.mu.Lock()
	if c.inFlight {
		v := c.viewLocked()
		c.mu.Unlock()
		return v, ErrSearchInFlight
	}
	if c.selection.Country == nil || c.selection.City == "" {
		c.state = Failed
		c.weather = nil
		c.errMsg = MsgSelectBoth
		v := c.viewLocked()
		c.mu.Unlock()
		observability.RecordSearch("validation", "")
		return v, ErrValidation
	}

	country := *c.selection.Country
	city := c.selection.City
	c.generation++
	gen := c.generation
	// The lookup outlives a dropped request; only a selection change or the search
	// timeout ends it.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.SearchTimeout)
	defer cancel()
	c.cancel = cancel
	c.inFlight = true
	c.state = Searching
	c.weather = nil
	c.errMsg = ""
	c.mu.Unlock()

	logger.Info("weather search started", zap.String("country", country.Code), zap.String("city", city))
	start := time.Now()
	snap, err := c.fetchWithFloor(fetchCtx, city, country.Code)

	c.mu.Lock()
	if gen != c.generation {
		// supersedeLocked already released the in-flight slot.
		v := c.viewLocked()
		c.mu.Unlock()
		observability.RecordSearch("superseded", country.Code)
		logger.Info("weather search result dropped", zap.String("country", country.Code), zap.String("city", city))
		return v, ErrSuperseded
	}
	c.inFlight = false
	c.cancel = nil

	switch {
	case err == nil:
		times := c.deps.Resolver.Format(snap)
		entry := newHistoryEntry(country, city, snap, times)
		c.weather = newWeatherView(entry)
		c.state = Resolved
		v := c.viewLocked()
		c.mu.Unlock()

		// The save runs outside mu so views and selections are not held up by storage.
		entries, saveErr := c.deps.History.Append(context.WithoutCancel(ctx), entry)
		if saveErr != nil {
			logger.Error("history save failed", zap.String("op", "append"), zap.Error(saveErr))
		}
		v.History = entries
		observability.RecordSearch("resolved", country.Code)
		logger.Info("weather search resolved",
			zap.String("country", country.Code), zap.String("city", city), zap.Duration("duration", time.Since(start)))
		return v, nil

	case errors.Is(err, client.ErrLocationNotFound):
		c.state = Failed
		c.errMsg = MsgNotAvailable
		v := c.viewLocked()
		c.mu.Unlock()
		observability.RecordSearch("not_found", country.Code)
		logger.Info("weather not available", zap.String("country", country.Code), zap.String("city", city), zap.Error(err))
		return v, errors.Join(ErrNotFound, err)

	default:
		c.state = Failed
		c.errMsg = MsgFetchFailed
		v := c.viewLocked()
		c.mu.Unlock()
		c.deps.Alerter.Alert(AlertFetchFailed)
		observability.RecordSearch("network_error", country.Code)
		logger.Warn("weather search failed", zap.String("country", country.Code), zap.String("city", city), zap.Error(err))
		return v, errors.Join(ErrNetwork, err)
	}
}

// fetchWithFloor calls the weather service while the minimum loading period runs, and
// returns once both are done. A cancelled ctx ends the wait early.
func (c *Controller) fetchWithFloor(ctx context.Context, city, countryCode string) (models.WeatherSnapshot, error) {
	var floor <-chan time.Time
	if c.opts.MinLoading > 0 {
		t := time.NewTimer(c.opts.MinLoading)
		defer t.Stop()
		floor = t.C
	}

	snap, err := c.deps.Weather.Fetch(ctx, city, countryCode)

	if floor != nil {
		select {
		case <-floor:
		case <-ctx.Done():
		}
	}
	return snap, err
}
