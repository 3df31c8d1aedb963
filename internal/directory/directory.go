// Package directory loads the country and city catalogue that drives location selection.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-search/internal/models"
	"github.com/kjstillabower/weather-search/internal/observability"
)

var (
	// ErrNetwork means the directory service could not be reached or answered unusably.
	ErrNetwork = errors.New("location directory unreachable")
	// ErrMalformedResponse is a payload that decoded to no usable countries. It wraps ErrNetwork.
	ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrNetwork)
)

// Directory loads the catalogue once per process and serves copies of it afterwards.
type Directory struct {
	url      string
	client   *resty.Client
	validate *validator.Validate
	logger   *zap.Logger

	mu        sync.Mutex
	loaded    bool
	countries []models.Country
	err       error
}

// New returns a Directory reading from url with a per-request timeout.
func New(url string, timeout time.Duration, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Directory{
		url:      url,
		client:   client,
		validate: validator.New(),
		logger:   logger,
	}
}

type countriesResponse struct {
	Error bool           `json:"error"`
	Msg   string         `json:"msg"`
	Data  []countryEntry `json:"data"`
}

type countryEntry struct {
	ISO2    string   `json:"iso2" validate:"required,len=2,alpha"`
	Country string   `json:"country" validate:"required"`
	Cities  []string `json:"cities"`
}

// Load returns the catalogue. The first call performs the remote fetch; its outcome,
// list or error, is kept for the life of the process. A load abandoned because the
// caller's context ended is not kept.
func (d *Directory) Load(ctx context.Context) ([]models.Country, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		countries, err := d.fetch(ctx)
		if err != nil && ctx.Err() != nil {
			return nil, err
		}
		d.loaded = true
		d.countries, d.err = countries, err
		if err != nil {
			observability.DirectoryLoadsTotal.WithLabelValues("error").Inc()
			d.logger.Warn("location directory load failed", zap.Error(err))
		} else {
			observability.DirectoryLoadsTotal.WithLabelValues("success").Inc()
			observability.DirectoryCountries.Set(float64(len(countries)))
			d.logger.Info("location directory loaded", zap.Int("countries", len(countries)))
		}
	}

	if d.err != nil {
		return nil, d.err
	}
	return cloneCountries(d.countries), nil
}

// LoadError returns the kept load failure. It is nil before the first load and after a
// successful one.
func (d *Directory) LoadError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *Directory) fetch(ctx context.Context) ([]models.Country, error) {
	req := d.client.R().SetContext(ctx)
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.SetHeader("X-Correlation-ID", corrID)
	}

	resp, err := req.Get(d.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode())
	}

	var body countriesResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if body.Error {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, body.Msg)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}

	countries := make([]models.Country, 0, len(body.Data))
	for i, entry := range body.Data {
		if err := d.validate.Struct(entry); err != nil {
			d.logger.Debug("skipping invalid directory entry",
				zap.Int("index", i), zap.String("iso2", entry.ISO2), zap.Error(err))
			continue
		}
		countries = append(countries, models.Country{
			Code:   strings.ToUpper(entry.ISO2),
			Name:   entry.Country,
			Cities: slices.Clone(entry.Cities),
		})
	}
	if len(countries) == 0 {
		return nil, fmt.Errorf("%w: no valid countries", ErrMalformedResponse)
	}
	return countries, nil
}

// PromoteHome returns a copy of countries with the country whose code matches code
// moved to the front. Other countries keep their order. An empty or unknown code
// yields an unmodified copy.
func PromoteHome(countries []models.Country, code string) []models.Country {
	out := cloneCountries(countries)
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return out
	}
	idx := slices.IndexFunc(out, func(c models.Country) bool { return c.Code == code })
	if idx <= 0 {
		return out
	}
	home := out[idx]
	copy(out[1:idx+1], out[:idx])
	out[0] = home
	return out
}

func cloneCountries(in []models.Country) []models.Country {
	if in == nil {
		return nil
	}
	out := make([]models.Country, len(in))
	for i, c := range in {
		c.Cities = slices.Clone(c.Cities)
		out[i] = c
	}
	return out
}
