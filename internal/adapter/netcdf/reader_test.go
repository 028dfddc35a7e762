package netcdf

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

var castTime = float64(time.Date(1990, time.January, 6, 1, 0, 0, 0, time.UTC).Unix())

func ones(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func sampleRecord() domain.ProfileRecord {
	return domain.ProfileRecord{
		Organization: "ME",
		DataType:     "BA",
		Platform:     "9999",
		Cruise:       "AB123",
		PositionFlag: 1,
		TimeFlag:     1,
		Longitude:    -30.25,
		Latitude:     12.5,
		Time:         castTime,
		Depth:        domain.Measurement{Values: []float64{0, 10, 20}, Flags: ones(3), Fill: 99999},
		Temperature:  domain.Measurement{Values: []float64{25.5, 24.25, 20}, Flags: []int{1, 2, 4}, Fill: 99999},
		Salinity:     domain.Measurement{Values: []float64{35, 35.5, 36}, Flags: ones(3), Fill: 99999},
	}
}

func writeSample(t *testing.T, rec domain.ProfileRecord, opts ProfileOptions) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gtspp_1234_te_111.nc")
	require.NoError(t, WriteProfile(path, rec, opts))
	return path
}

func TestReader_RoundTrip(t *testing.T) {
	path := writeSample(t, sampleRecord(), ProfileOptions{})

	rec, err := NewReader("gtspp", domain.DefaultPolicy().Missing).Parse("at_199001", path)
	require.NoError(t, err)

	assert.Equal(t, "at_199001/gtspp_1234_te_111.nc", rec.Source)
	assert.Equal(t, int64(1234), rec.StationID)
	assert.Equal(t, "ME", rec.Organization)
	assert.Equal(t, "BA", rec.DataType)
	assert.Equal(t, "9999", rec.Platform)
	assert.Equal(t, "AB123", rec.Cruise)
	assert.Equal(t, 1, rec.PositionFlag)
	assert.Equal(t, 1, rec.TimeFlag)
	assert.InDelta(t, -30.25, rec.Longitude, 1e-4)
	assert.InDelta(t, 12.5, rec.Latitude, 1e-4)
	assert.Equal(t, castTime, rec.Time)
	assert.Empty(t, rec.Warnings)

	require.Equal(t, 3, rec.Levels())
	assert.InDeltaSlice(t, []float64{0, 10, 20}, rec.Depth.Values, 1e-4)
	assert.InDeltaSlice(t, []float64{25.5, 24.25, 20}, rec.Temperature.Values, 1e-4)
	assert.InDeltaSlice(t, []float64{35, 35.5, 36}, rec.Salinity.Values, 1e-4)
	assert.Equal(t, []int{1, 2, 4}, rec.Temperature.Flags)
	assert.Equal(t, 99999.0, rec.Temperature.Fill)
}

func TestReader_TextFlags(t *testing.T) {
	path := writeSample(t, sampleRecord(), ProfileOptions{TextFlags: true})

	rec, err := NewReader("gtspp", domain.DefaultPolicy().Missing).Parse("at_199001", path)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4}, rec.Temperature.Flags)
	assert.Equal(t, []int{1, 1, 1}, rec.Depth.Flags)
	assert.Equal(t, 1, rec.PositionFlag)
}

func TestReader_OtherTimeUnits(t *testing.T) {
	path := writeSample(t, sampleRecord(), ProfileOptions{TimeUnits: "hours since 1970-01-01"})

	rec, err := NewReader("gtspp", domain.DefaultPolicy().Missing).Parse("at_199001", path)
	require.NoError(t, err)
	assert.Equal(t, castTime, rec.Time)
}

func TestReader_DeclaredFillValue(t *testing.T) {
	in := sampleRecord()
	in.Temperature.Fill = -999
	in.Temperature.Values[1] = math.NaN()
	path := writeSample(t, in, ProfileOptions{})

	rec, err := NewReader("gtspp", domain.DefaultPolicy().Missing).Parse("at_199001", path)
	require.NoError(t, err)
	assert.Equal(t, -999.0, rec.Temperature.Fill)
	assert.True(t, rec.Temperature.MissingAt(1))
	assert.False(t, rec.Temperature.MissingAt(0))
}

func TestReader_AbsentSalinity(t *testing.T) {
	in := sampleRecord()
	in.Salinity = domain.Measurement{}
	path := writeSample(t, in, ProfileOptions{})

	rec, err := NewReader("gtspp", domain.DefaultPolicy().Missing).Parse("at_199001", path)
	require.NoError(t, err)
	require.Equal(t, 3, rec.Salinity.Len())
	for i := range rec.Levels() {
		assert.True(t, rec.Salinity.MissingAt(i))
	}
}

func TestReader_MissingHeaderFieldsWarn(t *testing.T) {
	in := sampleRecord()
	in.Organization, in.DataType, in.Platform, in.Cruise = "", "", "", ""
	path := writeSample(t, in, ProfileOptions{})

	rec, err := NewReader("gtspp", domain.DefaultPolicy().Missing).Parse("at_199001", path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.Warning{
		domain.WarnMissingStreamIdent, domain.WarnMissingPlatform, domain.WarnMissingCruise,
	}, rec.Warnings)
	assert.Empty(t, rec.Organization)
}

func TestReader_MissingPosition(t *testing.T) {
	in := sampleRecord()
	in.Longitude = math.NaN()
	in.Time = math.NaN()
	path := writeSample(t, in, ProfileOptions{})

	rec, err := NewReader("gtspp", domain.DefaultPolicy().Missing).Parse("at_199001", path)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(rec.Longitude))
	assert.True(t, math.IsNaN(rec.Time))
}

func TestReader_BadStation(t *testing.T) {
	r := NewReader("gtspp", domain.DefaultPolicy().Missing)

	for _, name := range []string{"gtspp_abc_te.nc", "wod_1234_te.nc", "gtspp_1234.nc"} {
		_, err := r.Parse("at_199001", filepath.Join(t.TempDir(), name))
		reason, ok := domain.RejectionReason(err)
		require.True(t, ok, name)
		assert.Equal(t, domain.RejectBadStation, reason, name)
	}
}

func TestReader_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gtspp_1234_te_111.nc")
	require.NoError(t, os.WriteFile(path, []byte("not a netcdf file"), 0o644))

	_, err := NewReader("gtspp", domain.DefaultPolicy().Missing).Parse("at_199001", path)
	reason, ok := domain.RejectionReason(err)
	require.True(t, ok)
	assert.Equal(t, domain.RejectMalformed, reason)
}

func TestReader_MissingFile(t *testing.T) {
	_, err := NewReader("gtspp", domain.DefaultPolicy().Missing).
		Parse("at_199001", filepath.Join(t.TempDir(), "gtspp_1234_te_111.nc"))
	reason, ok := domain.RejectionReason(err)
	require.True(t, ok)
	assert.Equal(t, domain.RejectMalformed, reason)
}

func TestReader_CachesTimeUnits(t *testing.T) {
	r := NewReader("gtspp", domain.DefaultPolicy().Missing)
	path := writeSample(t, sampleRecord(), ProfileOptions{})

	for range 3 {
		_, err := r.Parse("at_199001", path)
		require.NoError(t, err)
	}
	n := 0
	r.units.Range(func(_, _ any) bool { n++; return true })
	assert.Equal(t, 1, n)
}

func TestReader_InvalidUnitsNotMemoized(t *testing.T) {
	r := NewReader("gtspp", domain.DefaultPolicy().Missing)
	_, err := r.timeUnits("fortnights since 1900-01-01")
	require.Error(t, err)

	n := 0
	r.units.Range(func(_, _ any) bool { n++; return true })
	assert.Zero(t, n)
}

func TestWriteProfile_RejectsEmptyAndRagged(t *testing.T) {
	dir := t.TempDir()

	empty := sampleRecord()
	empty.Depth, empty.Temperature, empty.Salinity = domain.Measurement{}, domain.Measurement{}, domain.Measurement{}
	require.ErrorIs(t, WriteProfile(filepath.Join(dir, "a.nc"), empty, ProfileOptions{}), errNoLevels)

	ragged := sampleRecord()
	ragged.Temperature.Values = ragged.Temperature.Values[:2]
	require.ErrorIs(t, WriteProfile(filepath.Join(dir, "b.nc"), ragged, ProfileOptions{}), domain.ErrRaggedProfile)
}
