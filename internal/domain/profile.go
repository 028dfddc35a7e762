package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// stationRe matches "<prefix>_<digits>_<rest>" profile filenames.
var stationRe = regexp.MustCompile(`^([^_]+)_(\d+)_.+$`)

// Warning is a non-fatal problem noticed while reading a profile.
type Warning int

const (
	WarnMissingStreamIdent Warning = iota + 1
	WarnMissingPlatform
	WarnMissingCruise
)

func (w Warning) String() string {
	switch w {
	case WarnMissingStreamIdent:
		return "missing_stream_ident"
	case WarnMissingPlatform:
		return "missing_platform"
	case WarnMissingCruise:
		return "missing_cruise"
	default:
		return "unknown"
	}
}

// Measurement is one per-level column with its quality flags and the
// declared missing-value sentinel.
type Measurement struct {
	Values []float64
	Flags  []int
	Fill   float64
}

// Len returns the number of levels in the column.
func (m Measurement) Len() int { return len(m.Values) }

// MissingAt reports whether level i holds no value: NaN or the sentinel.
func (m Measurement) MissingAt(i int) bool {
	v := m.Values[i]
	return math.IsNaN(v) || v == m.Fill
}

// ProfileRecord is one cast read from a single profile file. The Depth,
// Temperature and Salinity columns always have the same number of levels.
type ProfileRecord struct {
	Source string

	StationID    int64
	Organization string
	DataType     string
	Platform     string
	Cruise       string

	PositionFlag int
	TimeFlag     int
	Longitude    float64
	Latitude     float64
	Time         float64 // epoch seconds

	Depth       Measurement
	Temperature Measurement
	Salinity    Measurement

	Warnings []Warning
}

// Levels returns the number of depth levels.
func (r ProfileRecord) Levels() int { return r.Depth.Len() }

// ErrRaggedProfile reports measurement arrays of different lengths.
var ErrRaggedProfile = errors.New("measurement arrays differ in length")

// WellFormed checks that every value and flag array has one entry per level.
func (r ProfileRecord) WellFormed() error {
	n := r.Depth.Len()
	for _, c := range []struct {
		name string
		m    Measurement
	}{{"depth", r.Depth}, {"temperature", r.Temperature}, {"salinity", r.Salinity}} {
		if len(c.m.Values) != n || len(c.m.Flags) != n {
			return fmt.Errorf("%w: %s has %d values and %d flags for %d levels",
				ErrRaggedProfile, c.name, len(c.m.Values), len(c.m.Flags), n)
		}
	}
	return nil
}

// StationIDFromFilename extracts the station number from a profile filename.
// An empty prefix accepts any prefix.
func StationIDFromFilename(name, prefix string) (int64, error) {
	m := stationRe.FindStringSubmatch(name)
	if m == nil {
		return 0, fmt.Errorf("filename %q does not match <prefix>_<digits>_<rest>", name)
	}
	if prefix != "" && m[1] != prefix {
		return 0, fmt.Errorf("filename %q does not start with %q", name, prefix+"_")
	}
	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("station id in %q: %w", name, err)
	}
	return id, nil
}

// SplitStreamIdent splits a 4-character stream identifier into organization
// and data type codes. ok is false when the identifier is absent or short.
func SplitStreamIdent(s string) (org, dataType string, ok bool) {
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if len(s) < 4 {
		return "", "", false
	}
	return s[:2], s[2:4], true
}

// NormalizeLongitude maps lon into (-180, 180].
func NormalizeLongitude(lon float64) float64 {
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return lon
	}
	lon = math.Mod(lon, 360)
	switch {
	case lon > 180:
		lon -= 360
	case lon <= -180:
		lon += 360
	}
	return lon
}
