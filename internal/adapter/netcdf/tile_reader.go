package netcdf

import (
	"fmt"
	"math"
	"strings"
	"time"

	ncdf "github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

// ReadTile decodes a tile file written by Writer. The returned table's Key
// is left zero; Name, Month and bounds come from the global attributes.
func ReadTile(path string) (*domain.TileTable, error) {
	g, err := ncdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer g.Close()

	t := &domain.TileTable{}
	ga := g.Attributes()
	t.Name, _ = attrString(ga, "tile")
	if chunk, ok := attrString(ga, "chunk"); ok {
		m, err := time.Parse("2006-01", chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk attribute %q: %w", chunk, err)
		}
		t.Month = domain.NewMonth(m.Year(), m.Month())
	}
	t.West, _ = attrFloat(ga, "geospatial_lon_min")
	t.East, _ = attrFloat(ga, "geospatial_lon_max")
	t.South, _ = attrFloat(ga, "geospatial_lat_min")
	t.North, _ = attrFloat(ga, "geospatial_lat_max")

	text := map[string][]string{}
	for _, name := range []string{VarOrganization, VarPlatform, VarDataType, VarCruise} {
		vals, err := rowText(g, name)
		if err != nil {
			return nil, err
		}
		text[name] = vals
	}
	nums := map[string][]float64{}
	for _, name := range []string{VarStationID, VarLongitude, VarLatitude, VarTime, VarDepth, VarTemperature, VarSalinity} {
		vals, err := rowFloats(g, name)
		if err != nil {
			return nil, err
		}
		nums[name] = vals
	}

	n := len(nums[VarTime])
	for name, vals := range nums {
		if len(vals) != n {
			return nil, fmt.Errorf("%s: %d rows, want %d", name, len(vals), n)
		}
	}
	for name, vals := range text {
		if len(vals) != n {
			return nil, fmt.Errorf("%s: %d rows, want %d", name, len(vals), n)
		}
	}

	t.Rows = make([]domain.Row, n)
	for i := range t.Rows {
		t.Rows[i] = domain.Row{
			Organization: text[VarOrganization][i],
			Platform:     text[VarPlatform][i],
			DataType:     text[VarDataType][i],
			Cruise:       text[VarCruise][i],
			StationID:    int64(nums[VarStationID][i]),
			Longitude:    nums[VarLongitude][i],
			Latitude:     nums[VarLatitude][i],
			Time:         nums[VarTime][i],
			Depth:        nums[VarDepth][i],
			Temperature:  nums[VarTemperature][i],
			Salinity:     nums[VarSalinity][i],
		}
	}
	return t, nil
}

func rowText(g api.Group, name string) ([]string, error) {
	v, err := g.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	var vals []string
	switch x := v.Values.(type) {
	case []string:
		vals = x
	case string:
		// A single row decodes as one string.
		vals = []string{x}
	default:
		return nil, fmt.Errorf("%s: %w: %T", name, errUnsupportedType, v.Values)
	}
	out := make([]string, len(vals))
	for i, s := range vals {
		out[i] = strings.TrimSpace(strings.Trim(s, "\x00"))
	}
	return out, nil
}

func rowFloats(g api.Group, name string) ([]float64, error) {
	v, err := g.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	c, err := loadColumn(v.Values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	vals, err := c.Floats()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if fill, ok := attrFloat(v.Attributes, "_FillValue"); ok {
		for i, x := range vals {
			if x == fill {
				vals[i] = math.NaN()
			}
		}
	}
	return vals, nil
}
