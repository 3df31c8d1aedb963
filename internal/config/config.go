package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string `validate:"required,numeric"`
	LogLevel   string `validate:"omitempty,oneof=debug info warn warning error"`

	WeatherAPIKey     string        `validate:"required,min=10"`
	WeatherAPIURL     string        `validate:"required,url"`
	WeatherAPITimeout time.Duration `validate:"gt=0"`

	DirectoryURL     string        `validate:"required,url"`
	DirectoryTimeout time.Duration `validate:"gt=0"`

	SearchMinLoading time.Duration `validate:"gte=0"`
	SearchTimeout    time.Duration `validate:"gt=0"`
	HomeCountry      string        `validate:"omitempty,len=2,alpha"`
	TrackedCountries []string      `validate:"dive,len=2,alpha"`

	HistoryBackend  string `validate:"oneof=file memory memcached sqlite"`
	HistoryCapacity int    `validate:"gte=1,lte=100"`
	HistorySlot     string `validate:"required"`
	HistoryFilePath string `validate:"required_if=HistoryBackend file"`
	HistorySQLite   string `validate:"required_if=HistoryBackend sqlite"`

	MemcachedAddrs        string `validate:"required_if=HistoryBackend memcached"`
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	BreakerFailureThreshold uint32 `validate:"gte=1"`
	BreakerTimeout          time.Duration

	DateTimeLayout string `validate:"required"`
	ClockLayout    string `validate:"required"`

	RateLimitRPS   int `validate:"gte=1"`
	RateLimitBurst int `validate:"gte=1"`

	RequestTimeout          time.Duration
	ShutdownTimeout         time.Duration
	ShutdownInFlightTimeout time.Duration
}

type fileConfig struct {
	LogLevel string `yaml:"log_level"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Directory struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"directory"`

	Search struct {
		MinLoading       string   `yaml:"min_loading"`
		Timeout          string   `yaml:"timeout"`
		HomeCountry      string   `yaml:"home_country"`
		TrackedCountries []string `yaml:"tracked_countries"`
	} `yaml:"search"`

	History struct {
		Backend    string `yaml:"backend"`
		Capacity   int    `yaml:"capacity"`
		Slot       string `yaml:"slot"`
		FilePath   string `yaml:"file_path"`
		SQLitePath string `yaml:"sqlite_path"`
		Memcached  struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"history"`

	CircuitBreaker struct {
		FailureThreshold uint32 `yaml:"failure_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	Display struct {
		DateTimeLayout string `yaml:"datetime_layout"`
		ClockLayout    string `yaml:"clock_layout"`
	} `yaml:"display"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Shutdown struct {
		Timeout         string `yaml:"timeout"`
		InFlightTimeout string `yaml:"in_flight_timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

var validate = validator.New()

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// A .env file in the working directory is applied to the environment first; existing
// variables win. API key comes from WEATHER_API_KEY env or secrets file. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.LogLevel = envOr("LOG_LEVEL", fc.LogLevel)
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	if cfg.WeatherAPIKey == "" {
		secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
		secretsData, err := os.ReadFile(secretsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read secrets file: %w", err)
			}
		} else {
			var sec secretsFile
			if err := yaml.Unmarshal(secretsData, &sec); err != nil {
				return nil, fmt.Errorf("parse secrets file: %w", err)
			}
			cfg.WeatherAPIKey = sec.WeatherAPIKey
		}
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}

	cfg.WeatherAPIURL = fc.WeatherAPI.URL
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 5*time.Second)

	cfg.DirectoryURL = fc.Directory.URL
	if cfg.DirectoryURL == "" {
		cfg.DirectoryURL = "https://countriesnow.space/api/v0.1/countries"
	}
	cfg.DirectoryTimeout = parseDuration(fc.Directory.Timeout, 10*time.Second)

	// min_loading may be 0 to disable the loading floor.
	cfg.SearchMinLoading = parseDurationOrZero(fc.Search.MinLoading, 600*time.Millisecond)
	cfg.SearchTimeout = parseDuration(fc.Search.Timeout, 10*time.Second)
	cfg.HomeCountry = strings.ToUpper(strings.TrimSpace(envOr("HOME_COUNTRY", fc.Search.HomeCountry)))
	cfg.TrackedCountries = fc.Search.TrackedCountries

	cfg.HistoryBackend = strings.ToLower(envOr("HISTORY_BACKEND", fc.History.Backend))
	if cfg.HistoryBackend == "" {
		cfg.HistoryBackend = "file"
	}
	cfg.HistoryCapacity = fc.History.Capacity
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = 9
	}
	cfg.HistorySlot = strings.TrimSpace(fc.History.Slot)
	if cfg.HistorySlot == "" {
		cfg.HistorySlot = "weatherSearchHistory"
	}
	cfg.HistoryFilePath = strings.TrimSpace(fc.History.FilePath)
	if cfg.HistoryFilePath == "" {
		cfg.HistoryFilePath = filepath.Join("data", "history.json")
	}
	cfg.HistorySQLite = strings.TrimSpace(fc.History.SQLitePath)
	if cfg.HistorySQLite == "" {
		cfg.HistorySQLite = filepath.Join("data", "history.db")
	}

	cfg.MemcachedAddrs = envOr("MEMCACHED_ADDRS", fc.History.Memcached.Addrs)
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.History.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.History.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.BreakerFailureThreshold = fc.CircuitBreaker.FailureThreshold
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerTimeout = parseDuration(fc.CircuitBreaker.Timeout, 30*time.Second)

	cfg.DateTimeLayout = fc.Display.DateTimeLayout
	if cfg.DateTimeLayout == "" {
		cfg.DateTimeLayout = "1/2/2006, 3:04:05 PM"
	}
	cfg.ClockLayout = fc.Display.ClockLayout
	if cfg.ClockLayout == "" {
		cfg.ClockLayout = "3:04:05 PM"
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
// Used for parsing duration fields from YAML config with safe fallback to defaults.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validateConfig checks field constraints and relations between timeouts. A request
// timeout that cannot cover a full search is raised to search timeout plus one second.
func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config %s: failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.RequestTimeout <= cfg.SearchMinLoading+cfg.SearchTimeout {
		cfg.RequestTimeout = cfg.SearchMinLoading + cfg.SearchTimeout + time.Second
	}
	return nil
}
