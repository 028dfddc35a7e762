package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Quantity names a checked physical quantity.
type Quantity int

const (
	Longitude Quantity = iota
	Latitude
	Depth
	Temperature
	Salinity

	numQuantities
)

// Quantities lists every checked quantity in report order.
var Quantities = []Quantity{Longitude, Latitude, Depth, Temperature, Salinity}

func (q Quantity) String() string {
	switch q {
	case Longitude:
		return "longitude"
	case Latitude:
		return "latitude"
	case Depth:
		return "depth"
	case Temperature:
		return "temperature"
	case Salinity:
		return "salinity"
	default:
		return fmt.Sprintf("quantity(%d)", int(q))
	}
}

// Range is a closed interval of physically possible values.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies in [Min, Max]. NaN is never contained.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// FlagSet is the allow set of trusted quality flag codes.
type FlagSet []int

// Allows reports whether flag f is trusted.
func (s FlagSet) Allows(f int) bool {
	return slices.Contains(s, f)
}

// Ranges holds the impossible-value bounds per quantity.
type Ranges struct {
	Longitude   Range
	Latitude    Range
	Depth       Range
	Temperature Range
	Salinity    Range
}

// Sentinels holds the default missing-value markers per measured quantity,
// used when a file does not declare its own.
type Sentinels struct {
	Depth       float64
	Temperature float64
	Salinity    float64
}

// QualityPolicy is the per-run filtering configuration.
type QualityPolicy struct {
	AllowFlags FlagSet
	ChunkSize  float64
	Ranges     Ranges
	Missing    Sentinels
}

// DefaultPolicy returns the GTSPP defaults described in the package docs.
func DefaultPolicy() QualityPolicy {
	return QualityPolicy{
		AllowFlags: FlagSet{1, 2, 5},
		ChunkSize:  10,
		Ranges: Ranges{
			Longitude:   Range{Min: -180, Max: 360},
			Latitude:    Range{Min: -90, Max: 90},
			Depth:       Range{Min: 0, Max: 10000},
			Temperature: Range{Min: -4, Max: 40},
			Salinity:    Range{Min: 0, Max: 41},
		},
		Missing: Sentinels{Depth: 99999, Temperature: 99999, Salinity: 99999},
	}
}

// Range returns the impossible-value bounds for q.
func (p QualityPolicy) Range(q Quantity) Range {
	switch q {
	case Longitude:
		return p.Ranges.Longitude
	case Latitude:
		return p.Ranges.Latitude
	case Depth:
		return p.Ranges.Depth
	case Temperature:
		return p.Ranges.Temperature
	case Salinity:
		return p.Ranges.Salinity
	default:
		return Range{Min: math.Inf(-1), Max: math.Inf(1)}
	}
}

// Validate checks that the policy is usable.
func (p QualityPolicy) Validate() error {
	if len(p.AllowFlags) == 0 {
		return errors.New("allow flags must not be empty")
	}
	if !(p.ChunkSize > 0) || math.IsInf(p.ChunkSize, 0) {
		return fmt.Errorf("chunk size must be positive, got %v", p.ChunkSize)
	}
	for _, q := range Quantities {
		r := p.Range(q)
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min > r.Max {
			return fmt.Errorf("%s range is invalid: [%v, %v]", q, r.Min, r.Max)
		}
	}
	return nil
}
