package domain

import (
	"cmp"
	"math"
	"slices"
	"strconv"
)

// TileKey identifies a tile by its column and row in a TileGrid.
type TileKey struct {
	Lon int
	Lat int
}

// TileGrid is a fixed-size longitude/latitude tiling of a rectangular domain.
type TileGrid struct {
	MinLon, MaxLon float64
	MinLat, MaxLat float64
	Size           float64 // degrees
}

// NewTileGrid returns a global grid with square tiles of size degrees.
func NewTileGrid(size float64) TileGrid {
	return TileGrid{MinLon: -180, MaxLon: 180, MinLat: -90, MaxLat: 90, Size: size}
}

// Columns is the number of longitude buckets.
func (g TileGrid) Columns() int { return buckets(g.MinLon, g.MaxLon, g.Size) }

// Rows is the number of latitude buckets.
func (g TileGrid) Rows() int { return buckets(g.MinLat, g.MaxLat, g.Size) }

func buckets(lo, hi, size float64) int {
	return max(1, int(math.Ceil((hi-lo)/size)))
}

// KeyOf maps a normalized position to its tile. Coordinates are clamped into
// the domain; values at or beyond the maximum land in the last bucket.
func (g TileGrid) KeyOf(lon, lat float64) TileKey {
	return TileKey{
		Lon: bucket(lon, g.MinLon, g.MaxLon, g.Size),
		Lat: bucket(lat, g.MinLat, g.MaxLat, g.Size),
	}
}

func bucket(v, lo, hi, size float64) int {
	n := buckets(lo, hi, size)
	b := int(math.Floor((min(max(v, lo), hi) - lo) / size))
	return min(max(b, 0), n-1)
}

// Corner returns the lower-left corner of k.
func (g TileGrid) Corner(k TileKey) (lon, lat float64) {
	return g.MinLon + float64(k.Lon)*g.Size, g.MinLat + float64(k.Lat)*g.Size
}

// Name returns the deterministic tile name "<lon>E_<lat>N" from its corner.
func (g TileGrid) Name(k TileKey) string {
	lon, lat := g.Corner(k)
	return formatDegrees(lon) + "E_" + formatDegrees(lat) + "N"
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Row is one consolidated observation: a surviving depth level with its
// profile's scalar fields broadcast onto it.
type Row struct {
	Organization string
	Platform     string
	DataType     string
	Cruise       string
	StationID    int64
	Longitude    float64
	Latitude     float64
	Time         float64
	Depth        float64
	Temperature  float64
	Salinity     float64
}

// RowsOf expands a filtered record into one Row per level.
func RowsOf(rec ProfileRecord) []Row {
	n := rec.Levels()
	if n == 0 {
		return nil
	}
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{
			Organization: rec.Organization,
			Platform:     rec.Platform,
			DataType:     rec.DataType,
			Cruise:       rec.Cruise,
			StationID:    rec.StationID,
			Longitude:    rec.Longitude,
			Latitude:     rec.Latitude,
			Time:         rec.Time,
			Depth:        rec.Depth.Values[i],
			Temperature:  rec.Temperature.Values[i],
			Salinity:     rec.Salinity.Values[i],
		}
	}
	return rows
}

// TileTable accumulates the rows of one tile for one month.
type TileTable struct {
	Key   TileKey
	Name  string
	Month Month
	// Bounds of the tile: west, south, east, north.
	West, South, East, North float64

	Rows []Row
}

// NewTileTable creates an empty table for k in month, recording the tile's
// descriptive metadata once.
func NewTileTable(g TileGrid, k TileKey, month Month) *TileTable {
	west, south := g.Corner(k)
	return &TileTable{
		Key:   k,
		Name:  g.Name(k),
		Month: month,
		West:  west,
		South: south,
		East:  min(west+g.Size, g.MaxLon),
		North: min(south+g.Size, g.MaxLat),
	}
}

// Append adds rows to the table.
func (t *TileTable) Append(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// Len returns the number of rows.
func (t *TileTable) Len() int { return len(t.Rows) }

// Sort orders rows by (time, station, depth). The sort is stable so equal
// keys keep their arrival order.
func (t *TileTable) Sort() {
	slices.SortStableFunc(t.Rows, CompareRows)
}

// CompareRows orders rows by (time, station, depth).
func CompareRows(a, b Row) int {
	return cmp.Or(
		cmp.Compare(a.Time, b.Time),
		cmp.Compare(a.StationID, b.StationID),
		cmp.Compare(a.Depth, b.Depth),
	)
}
