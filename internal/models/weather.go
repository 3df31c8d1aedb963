package models

import "fmt"

// Country is one directory record: an ISO-2 code, a display name and its cities in
// directory order.
type Country struct {
	Code   string   `json:"iso2"`
	Name   string   `json:"country"`
	Cities []string `json:"cities"`
}

// HasCity reports whether name is one of the country's cities.
func (c Country) HasCity(name string) bool {
	for _, city := range c.Cities {
		if city == name {
			return true
		}
	}
	return false
}

// Selection is the user's transient country/city choice. City is empty when none is selected.
type Selection struct {
	Country *Country `json:"country,omitempty"`
	City    string   `json:"city,omitempty"`
}

// WeatherSnapshot is one point-in-time weather reading as reported by the weather service.
type WeatherSnapshot struct {
	Description       string  `json:"description"`
	Icon              string  `json:"icon"`
	TempC             float64 `json:"tempC"`
	FeelsLikeC        float64 `json:"feelsLikeC"`
	HumidityPct       float64 `json:"humidityPct"`
	WindMps           float64 `json:"windMps"`
	ObservedAtUnix    int64   `json:"observedAtUnix"`
	TimezoneOffsetSec int64   `json:"timezoneOffsetSec"`
	SunriseUnix       int64   `json:"sunriseUnix"`
	SunsetUnix        int64   `json:"sunsetUnix"`
}

// HistoryEntry is a display-ready record of one successful search. Entries are compared
// with == and are never edited once created.
type HistoryEntry struct {
	Country     string  `json:"country"`
	City        string  `json:"city"`
	Icon        string  `json:"icon"`
	WeatherDesc string  `json:"weather_desc"`
	Temp        float64 `json:"temp"`
	FeelsLike   float64 `json:"feels_like"`
	Humidity    float64 `json:"humidity"`
	Wind        float64 `json:"wind"`
	LocalTime   string  `json:"localTime"`
	Sunrise     string  `json:"sunrise"`
	Sunset      string  `json:"sunset"`
}

// IconURL returns the OpenWeatherMap image URL for an icon id, or "" when icon is empty.
func IconURL(icon string) string {
	if icon == "" {
		return ""
	}
	return fmt.Sprintf("https://openweathermap.org/img/wn/%s@4x.png", icon)
}
