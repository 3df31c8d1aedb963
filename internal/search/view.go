package search

import (
	"slices"

	"github.com/kjstillabower/weather-search/internal/localtime"
	"github.com/kjstillabower/weather-search/internal/models"
)

// View is a read-only snapshot of the controller for presentation.
type View struct {
	State   State                 `json:"state"`
	Country *CountryRef           `json:"country,omitempty"`
	City    string                `json:"city,omitempty"`
	Cities  []string              `json:"cities"`
	Weather *WeatherView          `json:"weather,omitempty"`
	Error   string                `json:"error,omitempty"`
	Loading bool                  `json:"loading"`
	History []models.HistoryEntry `json:"history"`
}

type CountryRef struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// WeatherView is the resolved weather shown for the current selection.
type WeatherView struct {
	Country     string  `json:"country"`
	City        string  `json:"city"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	IconURL     string  `json:"iconUrl"`
	Temp        float64 `json:"temp"`
	FeelsLike   float64 `json:"feelsLike"`
	Humidity    float64 `json:"humidity"`
	Wind        float64 `json:"wind"`
	LocalTime   string  `json:"localTime"`
	Sunrise     string  `json:"sunrise"`
	Sunset      string  `json:"sunset"`
}

func (c *Controller) viewLocked() View {
	v := View{
		State:   c.state,
		City:    c.selection.City,
		Cities:  []string{},
		Error:   c.errMsg,
		Loading: c.state == Searching,
		History: c.deps.History.Entries(),
	}
	if ct := c.selection.Country; ct != nil {
		v.Country = &CountryRef{Code: ct.Code, Name: ct.Name}
		v.Cities = slices.Clone(ct.Cities)
	}
	if c.weather != nil {
		w := *c.weather
		v.Weather = &w
	}
	return v
}

func newHistoryEntry(country models.Country, city string, s models.WeatherSnapshot, t localtime.LocalTimes) models.HistoryEntry {
	return models.HistoryEntry{
		Country:     country.Name,
		City:        city,
		Icon:        s.Icon,
		WeatherDesc: s.Description,
		Temp:        s.TempC,
		FeelsLike:   s.FeelsLikeC,
		Humidity:    s.HumidityPct,
		Wind:        s.WindMps,
		LocalTime:   t.LocalTime,
		Sunrise:     t.Sunrise,
		Sunset:      t.Sunset,
	}
}

func newWeatherView(e models.HistoryEntry) *WeatherView {
	return &WeatherView{
		Country:     e.Country,
		City:        e.City,
		Description: e.WeatherDesc,
		Icon:        e.Icon,
		IconURL:     models.IconURL(e.Icon),
		Temp:        e.Temp,
		FeelsLike:   e.FeelsLike,
		Humidity:    e.Humidity,
		Wind:        e.Wind,
		LocalTime:   e.LocalTime,
		Sunrise:     e.Sunrise,
		Sunset:      e.Sunset,
	}
}
