package netcdf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

// Tile file variable names beyond those shared with profile files.
const (
	VarOrganization = "organization"
	VarDataType     = "data_type"
	VarStationID    = "station_id"
)

const (
	rowDim        = "row"
	tileFill      = float32(99999)
	tileTimeUnits = "seconds since 1970-01-01T00:00:00Z"
)

// ErrEmptyTile is returned when asked to write a tile with no rows.
var ErrEmptyTile = errors.New("tile has no rows")

// Writer writes tile tables under Root as <yyyy-mm>/<tile>.nc.
type Writer struct {
	Root  string
	RunID string
}

// NewWriter creates a Writer rooted at root.
func NewWriter(root, runID string) *Writer {
	return &Writer{Root: root, RunID: runID}
}

// Path returns the file a tile of the given chunk is written to.
func (w *Writer) Path(month domain.Month, tile string) string {
	return filepath.Join(w.Root, month.String(), tile+".nc")
}

// WriteTile writes t atomically and returns its path. An existing file
// for the same chunk and tile is replaced.
func (w *Writer) WriteTile(ctx context.Context, t *domain.TileTable) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if t.Len() == 0 {
		return "", ErrEmptyTile
	}
	path := w.Path(t.Month, t.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create chunk directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+t.Name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	_ = tmp.Close()

	if err := w.encode(tmpName, t); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write tile %s: %w", t.Name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename tile %s: %w", t.Name, err)
	}
	return path, nil
}

func (w *Writer) encode(path string, t *domain.TileTable) (err error) {
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cw.Close(); err == nil {
			err = cerr
		}
	}()

	n := t.Len()
	org := make([]string, n)
	platform := make([]string, n)
	dataType := make([]string, n)
	cruise := make([]string, n)
	lon := make([]float64, n)
	lat := make([]float64, n)
	tm := make([]float64, n)
	depth := make([]float32, n)
	temp := make([]float32, n)
	sal := make([]float32, n)
	for i, r := range t.Rows {
		org[i], platform[i], dataType[i], cruise[i] = r.Organization, r.Platform, r.DataType, r.Cruise
		lon[i], lat[i], tm[i] = r.Longitude, r.Latitude, r.Time
		depth[i] = measurement(r.Depth)
		temp[i] = measurement(r.Temperature)
		sal[i] = measurement(r.Salinity)
	}

	vars := []struct {
		name string
		v    api.Variable
	}{
		{VarOrganization, textColumn(org)},
		{VarPlatform, textColumn(platform)},
		{VarDataType, textColumn(dataType)},
		{VarCruise, textColumn(cruise)},
		{VarStationID, stationColumn(t.Rows)},
		{VarLongitude, api.Variable{Values: lon, Dimensions: []string{rowDim}, Attributes: attrs("units", "degrees_east")}},
		{VarLatitude, api.Variable{Values: lat, Dimensions: []string{rowDim}, Attributes: attrs("units", "degrees_north")}},
		{VarTime, api.Variable{Values: tm, Dimensions: []string{rowDim}, Attributes: attrs("units", tileTimeUnits)}},
		{VarDepth, measurementColumn(depth, "m")},
		{VarTemperature, measurementColumn(temp, "degree_Celsius")},
		{VarSalinity, measurementColumn(sal, "1e-3")},
	}
	for _, v := range vars {
		if err := cw.AddVar(v.name, v.v); err != nil {
			return fmt.Errorf("%s: %w", v.name, err)
		}
	}

	global := []any{
		"title", "GTSPP profiles " + t.Month.String() + " " + t.Name,
		"chunk", t.Month.String(),
		"tile", t.Name,
		"geospatial_lon_min", t.West,
		"geospatial_lon_max", t.East,
		"geospatial_lat_min", t.South,
		"geospatial_lat_max", t.North,
		"rows", int32(n),
	}
	if w.RunID != "" {
		global = append(global, "run_id", w.RunID)
	}
	return cw.AddAttributes(attrs(global...))
}

func measurement(v float64) float32 {
	if math.IsNaN(v) {
		return tileFill
	}
	return float32(v)
}

func measurementColumn(vals []float32, units string) api.Variable {
	return api.Variable{
		Values:     vals,
		Dimensions: []string{rowDim},
		Attributes: attrs("units", units, "_FillValue", tileFill),
	}
}

// textColumn encodes one string per row. The encoder rejects a character
// dimension of length zero, so an all-empty column gets one NUL.
func textColumn(vals []string) api.Variable {
	empty := true
	for _, s := range vals {
		if s != "" {
			empty = false
			break
		}
	}
	if empty {
		vals[0] = "\x00"
	}
	return api.Variable{Values: vals, Dimensions: []string{rowDim}}
}

// stationColumn stores identifiers as 32-bit integers when they all fit,
// keeping the file in the classic format.
func stationColumn(rows []domain.Row) api.Variable {
	fits := true
	for _, r := range rows {
		if r.StationID > math.MaxInt32 || r.StationID < math.MinInt32 {
			fits = false
			break
		}
	}
	if fits {
		ids := make([]int32, len(rows))
		for i, r := range rows {
			ids[i] = int32(r.StationID)
		}
		return api.Variable{Values: ids, Dimensions: []string{rowDim}}
	}
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.StationID
	}
	return api.Variable{Values: ids, Dimensions: []string{rowDim}}
}
