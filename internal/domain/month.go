package domain

import (
	"fmt"
	"math"
	"time"
)

// Month identifies one (year, month) processing chunk.
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth returns the Month for year y and month m.
func NewMonth(y int, m time.Month) Month {
	return Month{Year: y, Month: m}
}

// Start is the first instant of the month in UTC.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the following month in UTC.
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, 0)
}

// Next returns the following month.
func (m Month) Next() Month {
	n := m.End()
	return Month{Year: n.Year(), Month: n.Month()}
}

// Before reports whether m precedes o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Contains reports whether epoch seconds t fall in [Start, End).
func (m Month) Contains(t float64) bool {
	if math.IsNaN(t) {
		return false
	}
	return t >= float64(m.Start().Unix()) && t < float64(m.End().Unix())
}

// String formats the month as "yyyy-mm".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Compact formats the month as "yyyymm", the form used in archive names.
func (m Month) Compact() string {
	return fmt.Sprintf("%04d%02d", m.Year, int(m.Month))
}

// MonthsBetween lists every month from first to last inclusive.
// It returns nil when last precedes first.
func MonthsBetween(first, last Month) []Month {
	var months []Month
	for m := first; !last.Before(m); m = m.Next() {
		months = append(months, m)
	}
	return months
}
