package netcdf

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

// DefaultTimeUnits is the time encoding used by GTSPP profile files.
const DefaultTimeUnits = "days since 1900-01-01 00:00:00"

const levelDim = "z"

// ProfileOptions controls how WriteProfile encodes a record.
type ProfileOptions struct {
	// TimeUnits is the units attribute of the time variable.
	TimeUnits string
	// TextFlags writes quality flags as digit strings instead of bytes.
	TextFlags bool
}

var errNoLevels = errors.New("profile has no levels")

// WriteProfile encodes rec as a single-profile GTSPP file at path. rec.Time
// is in epoch seconds; NaN values are written as the measurement fill value.
// Temperature or salinity with no values is omitted from the file, as are
// empty text fields.
func WriteProfile(path string, rec domain.ProfileRecord, opts ProfileOptions) (err error) {
	if rec.Levels() == 0 {
		return errNoLevels
	}
	n := rec.Levels()
	for _, m := range []domain.Measurement{rec.Depth, rec.Temperature, rec.Salinity} {
		if m.Len() != 0 && (m.Len() != n || len(m.Flags) != n) {
			return fmt.Errorf("%w: %d values and %d flags for %d levels", domain.ErrRaggedProfile, m.Len(), len(m.Flags), n)
		}
	}
	units := opts.TimeUnits
	if units == "" {
		units = DefaultTimeUnits
	}
	tu, err := domain.ParseTimeUnits(units)
	if err != nil {
		return err
	}

	w, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()

	const coordFill = 99999.0
	vars := []struct {
		name string
		v    api.Variable
	}{
		{VarPositionQC, api.Variable{Values: scalarFlag(rec.PositionFlag, opts.TextFlags)}},
		{VarTimeQC, api.Variable{Values: scalarFlag(rec.TimeFlag, opts.TextFlags)}},
		{VarLongitude, api.Variable{Values: float32(orFill(rec.Longitude, coordFill)), Attributes: attrs("_FillValue", float32(coordFill))}},
		{VarLatitude, api.Variable{Values: float32(orFill(rec.Latitude, coordFill)), Attributes: attrs("_FillValue", float32(coordFill))}},
		{VarTime, api.Variable{Values: orFill(encodeTime(rec.Time, tu), coordFill), Attributes: attrs("units", units, "_FillValue", coordFill)}},
	}
	for _, t := range []struct{ name, value string }{
		{VarStreamIdent, rec.Organization + rec.DataType},
		{VarPlatform, rec.Platform},
		{VarCruise, rec.Cruise},
	} {
		if t.value != "" {
			vars = append(vars, struct {
				name string
				v    api.Variable
			}{t.name, api.Variable{Values: t.value}})
		}
	}
	for _, m := range []struct {
		name, qc string
		meas     domain.Measurement
	}{
		{VarDepth, VarDepthQC, rec.Depth},
		{VarTemperature, VarTemperatureQC, rec.Temperature},
		{VarSalinity, VarSalinityQC, rec.Salinity},
	} {
		if m.meas.Len() == 0 {
			continue
		}
		if err := w.AddVar(m.name, levelValues(m.meas)); err != nil {
			return fmt.Errorf("%s: %w", m.name, err)
		}
		if err := w.AddVar(m.qc, levelFlags(m.meas.Flags, opts.TextFlags)); err != nil {
			return fmt.Errorf("%s: %w", m.qc, err)
		}
	}
	for _, v := range vars {
		if err := w.AddVar(v.name, v.v); err != nil {
			return fmt.Errorf("%s: %w", v.name, err)
		}
	}
	return nil
}

func encodeTime(epoch float64, tu domain.TimeUnits) float64 {
	return (epoch - tu.Origin) / tu.Scale
}

func orFill(v, fill float64) float64 {
	if math.IsNaN(v) {
		return fill
	}
	return v
}

func scalarFlag(f int, text bool) any {
	if text {
		return fmt.Sprint(f)
	}
	return int32(f)
}

func levelValues(m domain.Measurement) api.Variable {
	fill := m.Fill
	if fill == 0 {
		fill = 99999
	}
	vals := make([]float32, m.Len())
	for i, v := range m.Values {
		vals[i] = float32(orFill(v, fill))
	}
	return api.Variable{
		Values:     vals,
		Dimensions: []string{levelDim},
		Attributes: attrs("_FillValue", float32(fill)),
	}
}

func levelFlags(flags []int, text bool) api.Variable {
	if text {
		var b strings.Builder
		for _, f := range flags {
			b.WriteByte(byte('0' + f%10))
		}
		return api.Variable{Values: b.String()}
	}
	out := make([]int8, len(flags))
	for i, f := range flags {
		out[i] = int8(f)
	}
	return api.Variable{Values: out, Dimensions: []string{levelDim}}
}
