package domain

// Counter tallies accepted and rejected items of one category.
type Counter struct {
	Good int64
	Bad  int64
}

func (c *Counter) add(o Counter) {
	c.Good += o.Good
	c.Bad += o.Bad
}

// Diagnostic records the worst impossible value seen in one profile.
type Diagnostic struct {
	Source string  // "<archive>/<file>"
	Value  float64 // most extreme offending value
}

// Extremes lists impossible-value diagnostics for one quantity.
type Extremes struct {
	BelowMin []Diagnostic
	AboveMax []Diagnostic
}

// RunStatistics accumulates filtering outcomes. It is only ever appended to;
// per-file and per-chunk instances are merged into the run total.
type RunStatistics struct {
	Station     Counter
	Position    Counter
	Time        Counter
	Depth       Counter
	Temperature Counter
	Salinity    Counter

	// Exceptions counts files that could not be read into a well-formed record.
	Exceptions int64
	// ArchiveErrors counts regional archives that failed to expand.
	ArchiveErrors int64

	MissingStreamIdent int64
	MissingPlatform    int64
	MissingCruise      int64

	// ProfilesAccepted counts profiles contributing at least one row.
	ProfilesAccepted int64
	// ProfilesEmpty counts profiles that passed profile checks but kept no rows.
	ProfilesEmpty int64

	RowsWritten  int64
	TilesWritten int64

	impossible [numQuantities]Extremes
}

// Impossible returns the diagnostics recorded for q.
func (s *RunStatistics) Impossible(q Quantity) Extremes {
	if q < 0 || q >= numQuantities {
		return Extremes{}
	}
	return s.impossible[q]
}

// RecordImpossible appends a diagnostic for q. below selects the BelowMin list.
func (s *RunStatistics) RecordImpossible(q Quantity, below bool, d Diagnostic) {
	if q < 0 || q >= numQuantities {
		return
	}
	if below {
		s.impossible[q].BelowMin = append(s.impossible[q].BelowMin, d)
		return
	}
	s.impossible[q].AboveMax = append(s.impossible[q].AboveMax, d)
}

// RecordRejection counts a rejected profile under its reason.
func (s *RunStatistics) RecordRejection(r RejectReason) {
	switch r {
	case RejectBadStation:
		s.Station.Bad++
	case RejectBadPosition:
		s.Position.Bad++
	case RejectBadTime:
		s.Time.Bad++
	default:
		s.Exceptions++
	}
}

// RecordWarning counts a non-fatal profile warning.
func (s *RunStatistics) RecordWarning(w Warning) {
	switch w {
	case WarnMissingStreamIdent:
		s.MissingStreamIdent++
	case WarnMissingPlatform:
		s.MissingPlatform++
	case WarnMissingCruise:
		s.MissingCruise++
	}
}

// Merge appends o into s. Diagnostics keep their order, o's after s's.
func (s *RunStatistics) Merge(o *RunStatistics) {
	if o == nil {
		return
	}
	s.Station.add(o.Station)
	s.Position.add(o.Position)
	s.Time.add(o.Time)
	s.Depth.add(o.Depth)
	s.Temperature.add(o.Temperature)
	s.Salinity.add(o.Salinity)
	s.Exceptions += o.Exceptions
	s.ArchiveErrors += o.ArchiveErrors
	s.MissingStreamIdent += o.MissingStreamIdent
	s.MissingPlatform += o.MissingPlatform
	s.MissingCruise += o.MissingCruise
	s.ProfilesAccepted += o.ProfilesAccepted
	s.ProfilesEmpty += o.ProfilesEmpty
	s.RowsWritten += o.RowsWritten
	s.TilesWritten += o.TilesWritten
	for q := range s.impossible {
		s.impossible[q].BelowMin = append(s.impossible[q].BelowMin, o.impossible[q].BelowMin...)
		s.impossible[q].AboveMax = append(s.impossible[q].AboveMax, o.impossible[q].AboveMax...)
	}
}

// Rejected returns the total number of rejected profile files.
func (s *RunStatistics) Rejected() int64 {
	return s.Station.Bad + s.Position.Bad + s.Time.Bad + s.Exceptions
}
