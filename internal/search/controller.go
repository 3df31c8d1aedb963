// Package search drives the country/city selection, weather lookup and history
// workflow behind the presentation layer.
package search

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-search/internal/client"
	"github.com/kjstillabower/weather-search/internal/directory"
	"github.com/kjstillabower/weather-search/internal/history"
	"github.com/kjstillabower/weather-search/internal/localtime"
	"github.com/kjstillabower/weather-search/internal/models"
	"github.com/kjstillabower/weather-search/internal/observability"
)

// User-facing messages.
const (
	MsgSelectBoth    = "Please select both country and city."
	MsgNotAvailable  = "The weather for this country or city is not available at the moment."
	MsgFetchFailed   = "Something went wrong while fetching the weather."
	AlertFetchFailed = "Failed to fetch weather data."
)

const (
	DefaultMinLoading    = 600 * time.Millisecond
	DefaultSearchTimeout = 10 * time.Second
)

var (
	ErrValidation     = errors.New("country and city are required")
	ErrNotFound       = errors.New("weather not available for location")
	ErrNetwork        = errors.New("weather lookup failed")
	ErrSearchInFlight = errors.New("a search is already in progress")
	// ErrSuperseded means the selection changed while the search was running and its
	// result was discarded.
	ErrSuperseded     = errors.New("search superseded by a newer selection")
	ErrUnknownCountry = errors.New("unknown country")
	ErrUnknownCity    = errors.New("city not in selected country")
)

// Directory supplies the country catalogue.
type Directory interface {
	Load(ctx context.Context) ([]models.Country, error)
}

// Deps are the collaborators of a Controller. Alerter and Logger may be nil.
type Deps struct {
	Directory Directory
	Weather   client.WeatherClient
	Resolver  localtime.Resolver
	History   *history.Store
	Alerter   Alerter
	Logger    *zap.Logger
}

// Options tune the search workflow. MinLoading of zero disables the loading floor;
// SearchTimeout <= 0 uses DefaultSearchTimeout.
type Options struct {
	MinLoading    time.Duration
	SearchTimeout time.Duration
	HomeCountry   string
}

// Controller owns the lookup state. All mutations are serialised by mu; the weather
// fetch runs outside it.
type Controller struct {
	deps Deps
	opts Options

	mu         sync.Mutex
	countries  []models.Country
	selection  models.Selection
	state      State
	weather    *WeatherView
	errMsg     string
	inFlight   bool
	generation uint64
	cancel     context.CancelFunc
}

// New returns an Idle controller. Call Init to load the country catalogue.
func New(deps Deps, opts Options) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Alerter == nil {
		deps.Alerter = NewAlertBox(deps.Logger)
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultSearchTimeout
	}
	if opts.MinLoading < 0 {
		opts.MinLoading = 0
	}
	return &Controller{deps: deps, opts: opts, state: Idle}
}

// Init loads the catalogue and promotes the home country. A failed load leaves the
// catalogue empty; it is logged and not returned.
func (c *Controller) Init(ctx context.Context) {
	countries, err := c.deps.Directory.Load(ctx)
	if err != nil {
		c.deps.Logger.Warn("country catalogue unavailable", zap.Error(err))
		countries = nil
	}
	countries = directory.PromoteHome(countries, c.opts.HomeCountry)

	c.mu.Lock()
	c.countries = countries
	c.mu.Unlock()
}

// Countries returns the catalogue with the home country first.
func (c *Controller) Countries() []models.Country {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Country, len(c.countries))
	for i, ct := range c.countries {
		ct.Cities = slices.Clone(ct.Cities)
		out[i] = ct
	}
	return out
}

// View returns a snapshot of the lookup state and history.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// SelectCountry selects the country with ISO-2 code, clearing the city, result and
// error. An empty code resets to Idle. An unknown code leaves everything unchanged.
func (c *Controller) SelectCountry(code string) (View, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	c.mu.Lock()
	defer c.mu.Unlock()

	var picked *models.Country
	if code != "" {
		idx := slices.IndexFunc(c.countries, func(ct models.Country) bool { return ct.Code == code })
		if idx < 0 {
			return c.viewLocked(), ErrUnknownCountry
		}
		ct := c.countries[idx]
		ct.Cities = slices.Clone(ct.Cities)
		picked = &ct
	}

	c.supersedeLocked()
	c.weather, c.errMsg = nil, ""
	c.selection = models.Selection{Country: picked}
	if picked == nil {
		c.state = Idle
	} else {
		c.state = CountrySelected
	}
	return c.viewLocked(), nil
}

// SelectCity selects a city of the selected country, clearing result and error. An
// empty city deselects it. A city outside the country leaves everything unchanged.
func (c *Controller) SelectCity(city string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if city != "" && (c.selection.Country == nil || !c.selection.Country.HasCity(city)) {
		return c.viewLocked(), ErrUnknownCity
	}

	c.supersedeLocked()
	c.weather, c.errMsg = nil, ""
	c.selection.City = city
	switch {
	case city != "":
		c.state = CitySelected
	case c.selection.Country != nil:
		c.state = CountrySelected
	default:
		c.state = Idle
	}
	return c.viewLocked(), nil
}

// supersedeLocked abandons a running search so its result is discarded. A new search
// may start right away.
func (c *Controller) supersedeLocked() {
	if !c.inFlight {
		return
	}
	c.generation++
	if c.cancel != nil {
		c.cancel()
	}
	c.inFlight = false
	c.cancel = nil
	c.deps.Logger.Debug("search superseded by selection change")
}

// DeleteHistoryEntry removes the first history entry equal to e.
func (c *Controller) DeleteHistoryEntry(ctx context.Context, e models.HistoryEntry) ([]models.HistoryEntry, error) {
	entries, err := c.deps.History.Remove(ctx, e)
	if err != nil {
		observability.LoggerFromContext(ctx, c.deps.Logger).Error("history save failed", zap.String("op", "remove"), zap.Error(err))
	}
	return entries, err
}

// ClearHistory empties the history.
func (c *Controller) ClearHistory(ctx context.Context) ([]models.HistoryEntry, error) {
	entries, err := c.deps.History.Clear(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx, c.deps.Logger).Error("history save failed", zap.String("op", "clear"), zap.Error(err))
	}
	return entries, err
}
