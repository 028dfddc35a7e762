package pipeline_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
	"github.com/couchcryptid/profile-tile-etl/internal/pipeline"
)

func TestFormatReport(t *testing.T) {
	s := &domain.RunStatistics{
		Station:          domain.Counter{Good: 12345, Bad: 2},
		Depth:            domain.Counter{Good: 1000000, Bad: 7},
		ProfilesAccepted: 12000,
		RowsWritten:      987654,
	}
	s.RecordImpossible(domain.Temperature, false, domain.Diagnostic{Source: "at_199001/gtspp_1_a.nc", Value: 45.5})
	s.RecordImpossible(domain.Longitude, true, domain.Diagnostic{Source: "pa_199001/gtspp_9_z.nc", Value: -200})

	out := pipeline.FormatReport("year 1990", s)

	assert.Contains(t, out, "=== Statistics: year 1990 ===")
	assert.Contains(t, out, "12,345")
	assert.Contains(t, out, "1,000,000")
	assert.Contains(t, out, "987,654")
	assert.Contains(t, out, "temperature above max: 1")
	assert.Contains(t, out, "at_199001/gtspp_1_a.nc 45.5")
	assert.Contains(t, out, "longitude below min: 1")
	assert.Contains(t, out, "pa_199001/gtspp_9_z.nc -200")
	assert.Contains(t, out, "salinity below min: 0")
}

func TestReporter_WritesAndTolerates(t *testing.T) {
	var buf bytes.Buffer
	pipeline.NewReporter(&buf, discardLogger()).Report("run", &domain.RunStatistics{})
	assert.Contains(t, buf.String(), "=== Statistics: run ===")

	assert.NotPanics(t, func() {
		pipeline.NewReporter(failingWriter{}, discardLogger()).Report("run", &domain.RunStatistics{})
		pipeline.NewReporter(nil, discardLogger()).Report("run", &domain.RunStatistics{})
	})
}
