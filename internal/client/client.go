package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-search/internal/models"
	"github.com/kjstillabower/weather-search/internal/observability"
)

// WeatherClient fetches current conditions for a city within a country.
type WeatherClient interface {
	Fetch(ctx context.Context, city, countryCode string) (models.WeatherSnapshot, error)
}

var (
	ErrInvalidAPIKey = errors.New("invalid API key")
	// ErrLocationNotFound means the weather service answered but has no data for the place.
	ErrLocationNotFound = errors.New("location not found")
	// ErrNetwork means no usable answer arrived (transport failure, timeout, open circuit).
	ErrNetwork = errors.New("weather service unreachable")
	// ErrMalformedResponse is a 2xx body that could not be decoded. It wraps ErrNetwork.
	ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrNetwork)
)

// OpenWeatherClient calls the OpenWeatherMap current-weather endpoint.
type OpenWeatherClient struct {
	apiKey  string
	apiURL  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewOpenWeatherClient validates the API key and returns a client whose requests are
// bounded by timeout.
func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}

	return &OpenWeatherClient{
		apiKey: apiKey,
		apiURL: apiURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker routes calls through cb. The breaker should treat ErrLocationNotFound
// as success (see IsBreakerSuccess).
func (c *OpenWeatherClient) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	c.breaker = cb
}

// IsBreakerSuccess reports whether a call result means the service is healthy: it
// answered, even if only to say the location is unknown. Caller cancellation is not
// held against the service either.
func IsBreakerSuccess(err error) bool {
	return err == nil || errors.Is(err, ErrLocationNotFound) || errors.Is(err, context.Canceled)
}

type openWeatherResponse struct {
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
	Dt       int64 `json:"dt"`
	Timezone int64 `json:"timezone"`
}

// Fetch returns the current snapshot for city in countryCode. Errors wrap either
// ErrLocationNotFound or ErrNetwork. There is no retry; callers re-submit.
func (c *OpenWeatherClient) Fetch(ctx context.Context, city, countryCode string) (models.WeatherSnapshot, error) {
	snap, err := c.execute(ctx, city, countryCode)
	if err != nil {
		observability.WeatherAPIErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
	}
	return snap, err
}

func (c *OpenWeatherClient) execute(ctx context.Context, city, countryCode string) (models.WeatherSnapshot, error) {
	if c.breaker == nil {
		return c.callAPI(ctx, city, countryCode)
	}

	var snap models.WeatherSnapshot
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var callErr error
		snap, callErr = c.callAPI(ctx, city, countryCode)
		return nil, callErr
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	return snap, nil
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, city, countryCode string) (models.WeatherSnapshot, error) {
	start := time.Now()

	req, err := c.buildRequest(ctx, city, countryCode)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.WeatherSnapshot{}, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}

	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.WeatherSnapshot{}, fmt.Errorf("%w: request timeout: %w", ErrNetwork, err)
		}
		return models.WeatherSnapshot{}, fmt.Errorf("%w: http request failed: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	// Any non-2xx is an answer from the service: it has nothing for this place.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return models.WeatherSnapshot{}, fmt.Errorf("%w: HTTP %d", ErrLocationNotFound, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: read response body: %w", ErrNetwork, err)
	}

	var apiResp openWeatherResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(apiResp.Weather) == 0 || apiResp.Dt == 0 {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: empty weather payload", ErrLocationNotFound)
	}

	return mapResponse(apiResp), nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, city, countryCode string) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("q", strings.TrimSpace(city)+","+strings.ToLower(strings.TrimSpace(countryCode)))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func mapResponse(apiResp openWeatherResponse) models.WeatherSnapshot {
	return models.WeatherSnapshot{
		Description:       apiResp.Weather[0].Description,
		Icon:              apiResp.Weather[0].Icon,
		TempC:             apiResp.Main.Temp,
		FeelsLikeC:        apiResp.Main.FeelsLike,
		HumidityPct:       apiResp.Main.Humidity,
		WindMps:           apiResp.Wind.Speed,
		ObservedAtUnix:    apiResp.Dt,
		TimezoneOffsetSec: apiResp.Timezone,
		SunriseUnix:       apiResp.Sys.Sunrise,
		SunsetUnix:        apiResp.Sys.Sunset,
	}
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "not_found"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}
