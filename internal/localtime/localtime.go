// Package localtime derives a remote location's wall-clock time from a UTC unix
// timestamp and the location's own UTC offset, as reported by the weather service.
//
// The viewer's zone and DST state are never consulted: the reported offset already
// includes the remote location's DST.
package localtime

import (
	"time"

	"github.com/kjstillabower/weather-search/internal/models"
)

const (
	DefaultDateTimeLayout = "1/2/2006, 3:04:05 PM"
	DefaultClockLayout    = "3:04:05 PM"
)

// LocalTimes holds the display strings for one snapshot.
type LocalTimes struct {
	LocalTime string `json:"localTime"`
	Sunrise   string `json:"sunrise"`
	Sunset    string `json:"sunset"`
}

// Resolver formats offset-corrected times. The zero value uses the default layouts.
type Resolver struct {
	DateTimeLayout string
	ClockLayout    string
}

// NewResolver returns a Resolver with the given layouts; empty layouts fall back to defaults.
func NewResolver(dateTimeLayout, clockLayout string) Resolver {
	return Resolver{DateTimeLayout: dateTimeLayout, ClockLayout: clockLayout}
}

// Resolve returns the instant unixSec in a fixed zone offsetSec east of UTC. Its
// wall-clock fields are UTC + offset.
func Resolve(unixSec, offsetSec int64) time.Time {
	return time.Unix(unixSec, 0).In(time.FixedZone("", int(offsetSec)))
}

// Format resolves the observation, sunrise and sunset times of s with s's offset.
func (r Resolver) Format(s models.WeatherSnapshot) LocalTimes {
	return LocalTimes{
		LocalTime: Resolve(s.ObservedAtUnix, s.TimezoneOffsetSec).Format(r.dateTimeLayout()),
		Sunrise:   Resolve(s.SunriseUnix, s.TimezoneOffsetSec).Format(r.clockLayout()),
		Sunset:    Resolve(s.SunsetUnix, s.TimezoneOffsetSec).Format(r.clockLayout()),
	}
}

func (r Resolver) dateTimeLayout() string {
	if r.DateTimeLayout == "" {
		return DefaultDateTimeLayout
	}
	return r.DateTimeLayout
}

func (r Resolver) clockLayout() string {
	if r.ClockLayout == "" {
		return DefaultClockLayout
	}
	return r.ClockLayout
}
