package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// originLayouts are the origin timestamp forms accepted after "since".
var originLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-1-2 15:4:5",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2",
}

// TimeUnits converts numeric times of the form "<unit> since <origin>" into
// epoch seconds.
type TimeUnits struct {
	// Scale is the number of seconds per unit.
	Scale float64
	// Origin is the epoch-seconds value of the origin timestamp.
	Origin float64
}

// EpochSeconds converts v into seconds since 1970-01-01T00:00:00Z.
func (u TimeUnits) EpochSeconds(v float64) float64 {
	return u.Origin + v*u.Scale
}

// ParseTimeUnits parses a CF-style time units string such as
// "days since 1900-01-01 00:00:00".
func ParseTimeUnits(units string) (TimeUnits, error) {
	unit, origin, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return TimeUnits{}, fmt.Errorf("time units %q: missing \"since\"", units)
	}

	var scale float64
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "seconds", "second", "secs", "sec", "s":
		scale = 1
	case "minutes", "minute", "mins", "min":
		scale = 60
	case "hours", "hour", "hrs", "hr", "h":
		scale = 3600
	case "days", "day", "d":
		scale = 86400
	default:
		return TimeUnits{}, fmt.Errorf("time units %q: unsupported unit %q", units, unit)
	}

	origin = strings.TrimSpace(origin)
	origin = strings.TrimSuffix(origin, " UTC")
	origin = strings.TrimSuffix(origin, " utc")
	for _, layout := range originLayouts {
		t, err := time.ParseInLocation(layout, origin, time.UTC)
		if err == nil {
			return TimeUnits{Scale: scale, Origin: float64(t.Unix()) + float64(t.Nanosecond())/1e9}, nil
		}
	}
	return TimeUnits{}, fmt.Errorf("time units %q: unparseable origin %q", units, origin)
}

// RoundSeconds rounds epoch seconds to the nearest whole second.
func RoundSeconds(t float64) float64 {
	return math.Round(t)
}
