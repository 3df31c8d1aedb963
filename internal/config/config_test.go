package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalEnvYAML = `
server:
  port: "8080"
weather_api:
  url: "https://api.example.com/weather"
  timeout: "2s"
directory:
  url: "https://directory.example.com/countries"
  timeout: "3s"
search:
  min_loading: "600ms"
  timeout: "10s"
history:
  backend: "memory"
reliability:
  rate_limit_rps: 5
  rate_limit_burst: 10
shutdown:
  timeout: "10s"
`

// overrideKeys are cleared for every test so the host environment cannot leak in.
var overrideKeys = []string{"ENV_NAME", "WEATHER_API_KEY", "HISTORY_BACKEND", "MEMCACHED_ADDRS", "HOME_COUNTRY", "LOG_LEVEL"}

func setupDir(t *testing.T, yaml string) string {
	t.Helper()
	for _, k := range overrideKeys {
		unsetenv(t, k)
	}
	dir := t.TempDir()
	writeEnvFile(t, dir, yaml)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func unsetenv(t *testing.T, key string) {
	t.Helper()
	saved, ok := os.LookupEnv(key)
	os.Unsetenv(key)
	t.Cleanup(func() {
		if ok {
			os.Setenv(key, saved)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoad_FailsWhenNoAPIKey(t *testing.T) {
	setupDir(t, minimalEnvYAML)

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error when no WEATHER_API_KEY and no secrets file, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "WEATHER_API_KEY") {
		t.Errorf("Load() error = %v, want message containing WEATHER_API_KEY", err)
	}
}

func TestLoad_SucceedsWithSecretsFile(t *testing.T) {
	dir := setupDir(t, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: key-from-secrets-file\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIKey != "key-from-secrets-file" {
		t.Errorf("WeatherAPIKey = %q, want key from secrets file", cfg.WeatherAPIKey)
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	setupDir(t, minimalEnvYAML)
	t.Setenv("ENV_NAME", "nonexistent")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing env file, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %v, want message about config file not found", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setupDir(t, "server:\n  port: \"9090\"\n")
	t.Setenv("WEATHER_API_KEY", "test-key-1234567890")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"ServerPort", cfg.ServerPort, "9090"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"WeatherAPIURL", cfg.WeatherAPIURL, "https://api.openweathermap.org/data/2.5/weather"},
		{"WeatherAPITimeout", cfg.WeatherAPITimeout, 5 * time.Second},
		{"DirectoryURL", cfg.DirectoryURL, "https://countriesnow.space/api/v0.1/countries"},
		{"DirectoryTimeout", cfg.DirectoryTimeout, 10 * time.Second},
		{"SearchMinLoading", cfg.SearchMinLoading, 600 * time.Millisecond},
		{"SearchTimeout", cfg.SearchTimeout, 10 * time.Second},
		{"HistoryBackend", cfg.HistoryBackend, "file"},
		{"HistoryCapacity", cfg.HistoryCapacity, 9},
		{"HistorySlot", cfg.HistorySlot, "weatherSearchHistory"},
		{"HistoryFilePath", cfg.HistoryFilePath, filepath.Join("data", "history.json")},
		{"BreakerFailureThreshold", cfg.BreakerFailureThreshold, uint32(5)},
		{"DateTimeLayout", cfg.DateTimeLayout, "1/2/2006, 3:04:05 PM"},
		{"ClockLayout", cfg.ClockLayout, "3:04:05 PM"},
		{"RequestTimeout", cfg.RequestTimeout, 15 * time.Second},
		{"ShutdownInFlightTimeout", cfg.ShutdownInFlightTimeout, 10 * time.Second},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_MinLoadingZeroDisablesFloor(t *testing.T) {
	setupDir(t, strings.Replace(minimalEnvYAML, `min_loading: "600ms"`, `min_loading: "0s"`, 1))
	t.Setenv("WEATHER_API_KEY", "test-key-1234567890")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SearchMinLoading != 0 {
		t.Errorf("SearchMinLoading = %v, want 0", cfg.SearchMinLoading)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	setupDir(t, strings.Replace(minimalEnvYAML, `timeout: "10s"
history`, `timeout: "not-a-duration"
history`, 1))
	t.Setenv("WEATHER_API_KEY", "test-key-1234567890")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SearchTimeout != 10*time.Second {
		t.Errorf("SearchTimeout = %v, want default 10s", cfg.SearchTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setupDir(t, minimalEnvYAML)
	t.Setenv("WEATHER_API_KEY", "env-key-1234567890")
	t.Setenv("HISTORY_BACKEND", "MEMCACHED")
	t.Setenv("MEMCACHED_ADDRS", "cache1:11211,cache2:11211")
	t.Setenv("HOME_COUNTRY", "fr")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIKey != "env-key-1234567890" {
		t.Errorf("WeatherAPIKey = %q", cfg.WeatherAPIKey)
	}
	if cfg.HistoryBackend != "memcached" {
		t.Errorf("HistoryBackend = %q, want memcached", cfg.HistoryBackend)
	}
	if cfg.MemcachedAddrs != "cache1:11211,cache2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
	if cfg.HomeCountry != "FR" {
		t.Errorf("HomeCountry = %q, want FR", cfg.HomeCountry)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := setupDir(t, minimalEnvYAML)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("WEATHER_API_KEY=dotenv-key-1234567890\nHOME_COUNTRY=de\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIKey != "dotenv-key-1234567890" || cfg.HomeCountry != "DE" {
		t.Errorf("cfg = key %q home %q, want values from .env", cfg.WeatherAPIKey, cfg.HomeCountry)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		wantField string
	}{
		{"unknown backend", strings.Replace(minimalEnvYAML, `backend: "memory"`, `backend: "redis"`, 1), "HistoryBackend"},
		{"bad home country", strings.Replace(minimalEnvYAML, `timeout: "10s"
history`, `timeout: "10s"
  home_country: "France"
history`, 1), "HomeCountry"},
		{"bad tracked country", strings.Replace(minimalEnvYAML, `timeout: "10s"
history`, `timeout: "10s"
  tracked_countries: ["FR", "XYZ"]
history`, 1), "TrackedCountries[1]"},
		{"negative min loading", strings.Replace(minimalEnvYAML, `min_loading: "600ms"`, `min_loading: "-1s"`, 1), "SearchMinLoading"},
		{"bad port", strings.Replace(minimalEnvYAML, `port: "8080"`, `port: "http"`, 1), "ServerPort"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupDir(t, tt.yaml)
			t.Setenv("WEATHER_API_KEY", "test-key-1234567890")

			_, err := Load()
			if err == nil {
				t.Fatal("Load() error = nil, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.wantField)
			}
		})
	}
}

func TestLoad_ShortAPIKeyRejected(t *testing.T) {
	setupDir(t, minimalEnvYAML)
	t.Setenv("WEATHER_API_KEY", "short")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "WeatherAPIKey") {
		t.Errorf("Load() error = %v, want WeatherAPIKey validation error", err)
	}
}

func TestLoad_RequestTimeoutCoversSearch(t *testing.T) {
	setupDir(t, minimalEnvYAML+"request:\n  timeout: \"1s\"\n")
	t.Setenv("WEATHER_API_KEY", "test-key-1234567890")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := 600*time.Millisecond + 10*time.Second + time.Second
	if cfg.RequestTimeout != want {
		t.Errorf("RequestTimeout = %v, want %v", cfg.RequestTimeout, want)
	}
}

func TestLoad_InvalidSecretsYAML(t *testing.T) {
	dir := setupDir(t, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: [unclosed\n")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "secrets") {
		t.Errorf("Load() error = %v, want secrets parse error", err)
	}
}

func TestLoad_InvalidConfigYAML(t *testing.T) {
	setupDir(t, "server: [unclosed\n")
	t.Setenv("WEATHER_API_KEY", "test-key-1234567890")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestParseDurationOrZero(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Second},
		{"bogus", time.Second},
		{"0", 0},
		{"250ms", 250 * time.Millisecond},
		{" 2s ", 2 * time.Second},
	}
	for _, tt := range tests {
		if got := parseDurationOrZero(tt.in, time.Second); got != tt.want {
			t.Errorf("parseDurationOrZero(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := parseDuration("0", time.Second); got != time.Second {
		t.Errorf("parseDuration(0) = %v, want default", got)
	}
}

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "dev.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func writeSecretsFile(t *testing.T, dir, content string) {
	t.Helper()
	secretsDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(secretsDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(secretsDir, "secrets.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write secrets file: %v", err)
	}
}
