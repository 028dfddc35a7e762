package domain

import "math"

// worst tracks the most extreme out-of-range values of one quantity within
// a single profile.
type worst struct {
	below, above       float64
	hasBelow, hasAbove bool
}

func (w *worst) observe(v float64, r Range) {
	switch {
	case v < r.Min:
		if !w.hasBelow || v < w.below {
			w.below, w.hasBelow = v, true
		}
	case v > r.Max:
		if !w.hasAbove || v > w.above {
			w.above, w.hasAbove = v, true
		}
	}
}

func (w *worst) flush(stats *RunStatistics, q Quantity, source string) {
	if w.hasBelow {
		stats.RecordImpossible(q, true, Diagnostic{Source: source, Value: w.below})
	}
	if w.hasAbove {
		stats.RecordImpossible(q, false, Diagnostic{Source: source, Value: w.above})
	}
}

// CheckProfile applies the profile-level rules: position and time flags must
// be trusted, the position must be present and possible, and the time must
// fall inside month. A rejected profile is never partially salvaged.
//
// Position and time counters and position diagnostics are recorded in stats.
// The returned record has its longitude normalized into (-180, 180].
func CheckProfile(rec ProfileRecord, p QualityPolicy, month Month, stats *RunStatistics) (ProfileRecord, error) {
	if !p.AllowFlags.Allows(rec.PositionFlag) {
		stats.Position.Bad++
		return ProfileRecord{}, Reject(RejectBadPosition, "position flag %d not trusted", rec.PositionFlag)
	}
	if !p.AllowFlags.Allows(rec.TimeFlag) {
		stats.Time.Bad++
		return ProfileRecord{}, Reject(RejectBadTime, "time flag %d not trusted", rec.TimeFlag)
	}

	if err := checkCoordinate(rec.Longitude, Longitude, p, rec.Source, stats); err != nil {
		stats.Position.Bad++
		return ProfileRecord{}, err
	}
	if err := checkCoordinate(rec.Latitude, Latitude, p, rec.Source, stats); err != nil {
		stats.Position.Bad++
		return ProfileRecord{}, err
	}
	stats.Position.Good++
	rec.Longitude = NormalizeLongitude(rec.Longitude)

	if !month.Contains(rec.Time) {
		stats.Time.Bad++
		return ProfileRecord{}, Reject(RejectBadTime, "time %v outside %s", rec.Time, month)
	}
	stats.Time.Good++
	return rec, nil
}

func checkCoordinate(v float64, q Quantity, p QualityPolicy, source string, stats *RunStatistics) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Reject(RejectBadPosition, "%s is missing", q)
	}
	r := p.Range(q)
	if !r.Contains(v) {
		var w worst
		w.observe(v, r)
		w.flush(stats, q, source)
		return Reject(RejectBadPosition, "%s %v outside [%v, %v]", q, v, r.Min, r.Max)
	}
	return nil
}
