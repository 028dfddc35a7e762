package domain

import "math"

// Missing is the in-memory marker for a discarded measurement.
var Missing = math.NaN()

// IsMissing reports whether v is the Missing marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// FilterLevels applies the per-level rules to rec and returns a new record
// holding only the surviving levels. rec is not modified.
//
// A level is dropped when its depth is untrusted, missing or impossible, or
// when neither temperature nor salinity survives. A surviving level keeps
// its flags; discarded temperature or salinity values become Missing.
// Counters and the worst impossible value per quantity are recorded in stats.
func FilterLevels(rec ProfileRecord, p QualityPolicy, stats *RunStatistics) ProfileRecord {
	out := rec
	out.Depth = Measurement{Fill: rec.Depth.Fill}
	out.Temperature = Measurement{Fill: rec.Temperature.Fill}
	out.Salinity = Measurement{Fill: rec.Salinity.Fill}

	var wd, wt, ws worst
	depthRange := p.Range(Depth)
	for i := range rec.Levels() {
		d := rec.Depth.Values[i]
		if !p.AllowFlags.Allows(rec.Depth.Flags[i]) || rec.Depth.MissingAt(i) {
			stats.Depth.Bad++
			continue
		}
		if !depthRange.Contains(d) {
			wd.observe(d, depthRange)
			stats.Depth.Bad++
			continue
		}
		stats.Depth.Good++

		t, tOK := screen(rec.Temperature, i, p.AllowFlags, p.Range(Temperature), &stats.Temperature, &wt)
		s, sOK := screen(rec.Salinity, i, p.AllowFlags, p.Range(Salinity), &stats.Salinity, &ws)
		if !tOK && !sOK {
			continue
		}

		out.Depth.Values = append(out.Depth.Values, d)
		out.Depth.Flags = append(out.Depth.Flags, rec.Depth.Flags[i])
		out.Temperature.Values = append(out.Temperature.Values, t)
		out.Temperature.Flags = append(out.Temperature.Flags, rec.Temperature.Flags[i])
		out.Salinity.Values = append(out.Salinity.Values, s)
		out.Salinity.Flags = append(out.Salinity.Flags, rec.Salinity.Flags[i])
	}

	wd.flush(stats, Depth, rec.Source)
	wt.flush(stats, Temperature, rec.Source)
	ws.flush(stats, Salinity, rec.Source)
	return out
}

// screen evaluates one measurement at level i. It returns the value to keep
// (Missing when discarded) and whether the value survived.
func screen(m Measurement, i int, allow FlagSet, r Range, c *Counter, w *worst) (float64, bool) {
	if !allow.Allows(m.Flags[i]) || m.MissingAt(i) {
		c.Bad++
		return Missing, false
	}
	v := m.Values[i]
	if !r.Contains(v) {
		w.observe(v, r)
		c.Bad++
		return Missing, false
	}
	c.Good++
	return v, true
}
