// Package netcdf reads GTSPP profile files and writes consolidated tile
// tables using the pure-Go netCDF implementation.
package netcdf

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"

	ncdf "github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

// Profile file variable names.
const (
	VarStreamIdent   = "stream_ident"
	VarPlatform      = "platform_code"
	VarCruise        = "cruise_id"
	VarPositionQC    = "position_quality_flag"
	VarTimeQC        = "time_quality_flag"
	VarLongitude     = "longitude"
	VarLatitude      = "latitude"
	VarTime          = "time"
	VarDepth         = "z"
	VarDepthQC       = "z_variable_quality_flag"
	VarTemperature   = "temperature"
	VarTemperatureQC = "temperature_quality_flag"
	VarSalinity      = "salinity"
	VarSalinityQC    = "salinity_quality_flag"
)

var errMissingVariable = errors.New("missing variable")

// Reader parses one profile file into a domain.ProfileRecord.
// It implements pipeline.Parser and is safe for concurrent use.
type Reader struct {
	prefix  string
	missing domain.Sentinels
	// units memoizes parsed time units by the raw attribute; archives use a
	// handful of distinct strings.
	units sync.Map // string -> domain.TimeUnits
}

// NewReader creates a Reader accepting files named "<prefix>_<digits>_...".
// missing supplies sentinels for variables that declare none.
func NewReader(prefix string, missing domain.Sentinels) *Reader {
	return &Reader{prefix: prefix, missing: missing}
}

// Parse reads path, which belongs to the named archive. Failures are
// returned as *domain.RejectionError. The file is always closed.
func (r *Reader) Parse(archive, path string) (rec domain.ProfileRecord, err error) {
	name := filepath.Base(path)
	id, err := domain.StationIDFromFilename(name, r.prefix)
	if err != nil {
		return domain.ProfileRecord{}, &domain.RejectionError{Reason: domain.RejectBadStation, Err: err}
	}

	g, err := ncdf.Open(path)
	if err != nil {
		return domain.ProfileRecord{}, domain.Reject(domain.RejectMalformed, "open %s: %w", name, err)
	}
	defer g.Close()
	// The decoder signals some corrupt layouts by panicking.
	defer func() {
		if p := recover(); p != nil {
			rec, err = domain.ProfileRecord{}, domain.Reject(domain.RejectMalformed, "decode %s: %v", name, p)
		}
	}()

	rec = domain.ProfileRecord{Source: archive + "/" + name, StationID: id}
	if err := r.readHeader(g, &rec); err != nil {
		return domain.ProfileRecord{}, err
	}
	if err := r.readLevels(g, &rec); err != nil {
		return domain.ProfileRecord{}, err
	}
	if err := rec.WellFormed(); err != nil {
		return domain.ProfileRecord{}, &domain.RejectionError{Reason: domain.RejectMalformed, Err: err}
	}
	return rec, nil
}

func (r *Reader) readHeader(g api.Group, rec *domain.ProfileRecord) error {
	if stream, err := readText(g, VarStreamIdent); err == nil {
		org, dataType, ok := domain.SplitStreamIdent(stream)
		if ok {
			rec.Organization, rec.DataType = org, dataType
		} else {
			rec.Warnings = append(rec.Warnings, domain.WarnMissingStreamIdent)
		}
	} else {
		rec.Warnings = append(rec.Warnings, domain.WarnMissingStreamIdent)
	}

	if platform, err := readText(g, VarPlatform); err == nil && platform != "" {
		rec.Platform = platform
	} else {
		rec.Warnings = append(rec.Warnings, domain.WarnMissingPlatform)
	}
	if cruise, err := readText(g, VarCruise); err == nil && cruise != "" {
		rec.Cruise = cruise
	} else {
		rec.Warnings = append(rec.Warnings, domain.WarnMissingCruise)
	}

	var err error
	if rec.PositionFlag, err = readScalarFlag(g, VarPositionQC); err != nil {
		return domain.Reject(domain.RejectMalformed, "%s: %w", VarPositionQC, err)
	}
	if rec.TimeFlag, err = readScalarFlag(g, VarTimeQC); err != nil {
		return domain.Reject(domain.RejectMalformed, "%s: %w", VarTimeQC, err)
	}
	if rec.Longitude, err = readScalar(g, VarLongitude); err != nil {
		return domain.Reject(domain.RejectBadPosition, "%s: %w", VarLongitude, err)
	}
	if rec.Latitude, err = readScalar(g, VarLatitude); err != nil {
		return domain.Reject(domain.RejectBadPosition, "%s: %w", VarLatitude, err)
	}
	if rec.Time, err = r.readTime(g); err != nil {
		return domain.Reject(domain.RejectBadTime, "%s: %w", VarTime, err)
	}
	return nil
}

func (r *Reader) readTime(g api.Group) (float64, error) {
	v, err := g.GetVariable(VarTime)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errMissingVariable, err)
	}
	units, ok := attrString(v.Attributes, "units")
	if !ok {
		return 0, errors.New("no units attribute")
	}
	tu, err := r.timeUnits(units)
	if err != nil {
		return 0, err
	}
	raw, err := scalarOf(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(raw) {
		return raw, nil
	}
	return domain.RoundSeconds(tu.EpochSeconds(raw)), nil
}

func (r *Reader) timeUnits(units string) (domain.TimeUnits, error) {
	if tu, ok := r.units.Load(units); ok {
		return tu.(domain.TimeUnits), nil
	}
	tu, err := domain.ParseTimeUnits(units)
	if err != nil {
		return domain.TimeUnits{}, err
	}
	r.units.Store(units, tu)
	return tu, nil
}

func (r *Reader) readLevels(g api.Group, rec *domain.ProfileRecord) error {
	depth, err := readMeasurement(g, VarDepth, VarDepthQC, r.missing.Depth)
	if err != nil {
		return domain.Reject(domain.RejectMalformed, "%s: %w", VarDepth, err)
	}
	rec.Depth = depth
	n := depth.Len()

	for _, m := range []struct {
		name, qc string
		fill     float64
		dst      *domain.Measurement
	}{
		{VarTemperature, VarTemperatureQC, r.missing.Temperature, &rec.Temperature},
		{VarSalinity, VarSalinityQC, r.missing.Salinity, &rec.Salinity},
	} {
		meas, err := readMeasurement(g, m.name, m.qc, m.fill)
		switch {
		case errors.Is(err, errMissingVariable):
			*m.dst = absentMeasurement(n, m.fill)
		case err != nil:
			return domain.Reject(domain.RejectMalformed, "%s: %w", m.name, err)
		default:
			*m.dst = meas
		}
	}
	return nil
}

// absentMeasurement stands in for a quantity the profile does not carry.
func absentMeasurement(n int, fill float64) domain.Measurement {
	m := domain.Measurement{Values: make([]float64, n), Flags: make([]int, n), Fill: fill}
	for i := range m.Values {
		m.Values[i] = domain.Missing
		m.Flags[i] = 9
	}
	return m
}

func readMeasurement(g api.Group, name, qcName string, fill float64) (domain.Measurement, error) {
	v, err := g.GetVariable(name)
	if err != nil {
		return domain.Measurement{}, fmt.Errorf("%w: %v", errMissingVariable, err)
	}
	c, err := loadColumn(v.Values)
	if err != nil {
		return domain.Measurement{}, err
	}
	values, err := c.Floats()
	if err != nil {
		return domain.Measurement{}, err
	}
	if f, ok := attrFloat(v.Attributes, "_FillValue"); ok {
		fill = f
	} else if f, ok := attrFloat(v.Attributes, "missing_value"); ok {
		fill = f
	}

	qv, err := g.GetVariable(qcName)
	if err != nil {
		return domain.Measurement{}, fmt.Errorf("%s: %v", qcName, err)
	}
	qc, err := loadColumn(qv.Values)
	if err != nil {
		return domain.Measurement{}, fmt.Errorf("%s: %w", qcName, err)
	}
	flags, err := qc.Flags()
	if err != nil {
		return domain.Measurement{}, fmt.Errorf("%s: %w", qcName, err)
	}
	if len(flags) != len(values) {
		return domain.Measurement{}, fmt.Errorf("%w: %d values, %d flags", domain.ErrRaggedProfile, len(values), len(flags))
	}
	return domain.Measurement{Values: values, Flags: flags, Fill: fill}, nil
}

func readText(g api.Group, name string) (string, error) {
	v, err := g.GetVariable(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errMissingVariable, err)
	}
	c, err := loadColumn(v.Values)
	if err != nil {
		return "", err
	}
	return c.Text()
}

func readScalarFlag(g api.Group, name string) (int, error) {
	v, err := g.GetVariable(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errMissingVariable, err)
	}
	c, err := loadColumn(v.Values)
	if err != nil {
		return 0, err
	}
	flags, err := c.Flags()
	if err != nil {
		return 0, err
	}
	if len(flags) != 1 {
		return 0, fmt.Errorf("expected a single flag, got %d", len(flags))
	}
	return flags[0], nil
}

func readScalar(g api.Group, name string) (float64, error) {
	v, err := g.GetVariable(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errMissingVariable, err)
	}
	return scalarOf(v)
}

// scalarOf returns the single value of v, or NaN when it equals the
// variable's fill value.
func scalarOf(v *api.Variable) (float64, error) {
	c, err := loadColumn(v.Values)
	if err != nil {
		return 0, err
	}
	vals, err := c.Floats()
	if err != nil {
		return 0, err
	}
	if len(vals) != 1 {
		return 0, fmt.Errorf("expected a scalar, got %d values", len(vals))
	}
	if f, ok := attrFloat(v.Attributes, "_FillValue"); ok && vals[0] == f {
		return math.NaN(), nil
	}
	return vals[0], nil
}
