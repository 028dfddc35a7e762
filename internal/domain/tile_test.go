package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileGrid_KeyOf(t *testing.T) {
	g := NewTileGrid(45)

	tests := []struct {
		name     string
		lon, lat float64
		want     TileKey
	}{
		{"interior", 10, 10, TileKey{Lon: 4, Lat: 2}},
		{"same tile near edge", 10.0001, 44.9999, TileKey{Lon: 4, Lat: 2}},
		{"lower-left corner", -180, -90, TileKey{Lon: 0, Lat: 0}},
		{"longitude at domain max", 180, 0, TileKey{Lon: 7, Lat: 2}},
		{"latitude at domain max", 0, 90, TileKey{Lon: 4, Lat: 3}},
		{"beyond max clamps", 400, 200, TileKey{Lon: 7, Lat: 3}},
		{"below min clamps", -500, -100, TileKey{Lon: 0, Lat: 0}},
		{"exact bucket boundary", -135, -45, TileKey{Lon: 1, Lat: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.KeyOf(tt.lon, tt.lat))
		})
	}
}

func TestTileGrid_Dimensions(t *testing.T) {
	g := NewTileGrid(45)
	assert.Equal(t, 8, g.Columns())
	assert.Equal(t, 4, g.Rows())

	uneven := NewTileGrid(7)
	assert.Equal(t, 52, uneven.Columns())
	assert.Equal(t, TileKey{Lon: 51, Lat: 25}, uneven.KeyOf(180, 90))
}

func TestTileGrid_Name(t *testing.T) {
	g := NewTileGrid(10)
	assert.Equal(t, "-180E_-90N", g.Name(TileKey{}))
	assert.Equal(t, "10E_40N", g.Name(g.KeyOf(15, 45)))
	assert.Equal(t, "0E_-10N", g.Name(g.KeyOf(0.5, -0.5)))

	half := NewTileGrid(2.5)
	assert.Equal(t, "-177.5E_-87.5N", half.Name(TileKey{Lon: 1, Lat: 1}))
}

func TestNewTileTable_Bounds(t *testing.T) {
	g := NewTileGrid(7)
	tbl := NewTileTable(g, TileKey{Lon: 51, Lat: 25}, NewMonth(1990, time.March))

	assert.Equal(t, "177E_85N", tbl.Name)
	assert.Equal(t, 177.0, tbl.West)
	assert.Equal(t, 180.0, tbl.East, "last column is cut at the domain edge")
	assert.Equal(t, 90.0, tbl.North)
	assert.Equal(t, NewMonth(1990, time.March), tbl.Month)
}

func TestTileTable_Sort(t *testing.T) {
	tbl := &TileTable{}
	tbl.Append(
		Row{Time: 200, StationID: 1, Depth: 0},
		Row{Time: 100, StationID: 2, Depth: 10},
		Row{Time: 100, StationID: 2, Depth: 0},
		Row{Time: 100, StationID: 1, Depth: 50},
	)

	tbl.Sort()

	require.Equal(t, 4, tbl.Len())
	for i := 1; i < tbl.Len(); i++ {
		assert.LessOrEqual(t, CompareRows(tbl.Rows[i-1], tbl.Rows[i]), 0)
	}
	assert.Equal(t, Row{Time: 100, StationID: 1, Depth: 50}, tbl.Rows[0])
	assert.Equal(t, Row{Time: 200, StationID: 1, Depth: 0}, tbl.Rows[3])
}

func TestRowsOf_BroadcastsScalars(t *testing.T) {
	rec := makeRecord([]float64{0, 10}, []float64{5, Missing}, []float64{30, 31})
	rec.Platform = "SHIP"
	rec.Cruise = "C1"
	rec.Time = 12345

	rows := RowsOf(rec)

	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "ME", r.Organization)
		assert.Equal(t, "BA", r.DataType)
		assert.Equal(t, "SHIP", r.Platform)
		assert.Equal(t, "C1", r.Cruise)
		assert.Equal(t, int64(1234), r.StationID)
		assert.Equal(t, 12345.0, r.Time)
	}
	assert.True(t, IsMissing(rows[1].Temperature))
	assert.Nil(t, RowsOf(ProfileRecord{}))
}
