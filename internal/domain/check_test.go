package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMonth = NewMonth(1990, time.January)

func checkable() ProfileRecord {
	rec := makeRecord([]float64{0}, []float64{10}, []float64{35})
	rec.Time = float64(time.Date(1990, time.January, 15, 12, 0, 0, 0, time.UTC).Unix())
	return rec
}

func TestCheckProfile_Accepts(t *testing.T) {
	var stats RunStatistics

	out, err := CheckProfile(checkable(), DefaultPolicy(), testMonth, &stats)

	require.NoError(t, err)
	assert.Equal(t, 10.0, out.Longitude)
	assert.Equal(t, int64(1), stats.Position.Good)
	assert.Equal(t, int64(1), stats.Time.Good)
}

func TestCheckProfile_UntrustedPositionFlag(t *testing.T) {
	rec := checkable()
	rec.PositionFlag = 9
	var stats RunStatistics

	_, err := CheckProfile(rec, DefaultPolicy(), testMonth, &stats)

	reason, ok := RejectionReason(err)
	require.True(t, ok)
	assert.Equal(t, RejectBadPosition, reason)
	assert.Equal(t, int64(1), stats.Position.Bad)
	assert.Equal(t, int64(0), stats.Time.Good+stats.Time.Bad, "time is not evaluated after a position rejection")
}

func TestCheckProfile_UntrustedTimeFlag(t *testing.T) {
	rec := checkable()
	rec.TimeFlag = 3
	var stats RunStatistics

	_, err := CheckProfile(rec, DefaultPolicy(), testMonth, &stats)

	reason, _ := RejectionReason(err)
	assert.Equal(t, RejectBadTime, reason)
	assert.Equal(t, int64(1), stats.Time.Bad)
}

func TestCheckProfile_ImpossibleLatitude(t *testing.T) {
	rec := checkable()
	rec.Latitude = 91.5
	var stats RunStatistics

	_, err := CheckProfile(rec, DefaultPolicy(), testMonth, &stats)

	reason, _ := RejectionReason(err)
	assert.Equal(t, RejectBadPosition, reason)
	above := stats.Impossible(Latitude).AboveMax
	require.Len(t, above, 1)
	assert.Equal(t, Diagnostic{Source: testSource, Value: 91.5}, above[0])
}

func TestCheckProfile_MissingLongitude(t *testing.T) {
	rec := checkable()
	rec.Longitude = Missing
	var stats RunStatistics

	_, err := CheckProfile(rec, DefaultPolicy(), testMonth, &stats)

	reason, _ := RejectionReason(err)
	assert.Equal(t, RejectBadPosition, reason)
	assert.Empty(t, stats.Impossible(Longitude).BelowMin)
}

func TestCheckProfile_NormalizesLongitude(t *testing.T) {
	rec := checkable()
	rec.Longitude = 350

	out, err := CheckProfile(rec, DefaultPolicy(), testMonth, &RunStatistics{})

	require.NoError(t, err)
	assert.InDelta(t, -10.0, out.Longitude, 1e-9)
}

func TestCheckProfile_TimeWindow(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		ok   bool
	}{
		{"first second", time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC), true},
		{"last second", time.Date(1990, time.January, 31, 23, 59, 59, 0, time.UTC), true},
		{"next month", time.Date(1990, time.February, 1, 0, 0, 0, 0, time.UTC), false},
		{"previous month", time.Date(1989, time.December, 31, 23, 59, 59, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := checkable()
			rec.Time = float64(tt.at.Unix())

			_, err := CheckProfile(rec, DefaultPolicy(), testMonth, &RunStatistics{})

			if tt.ok {
				assert.NoError(t, err)
				return
			}
			reason, _ := RejectionReason(err)
			assert.Equal(t, RejectBadTime, reason)
		})
	}
}
