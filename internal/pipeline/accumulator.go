package pipeline

import (
	"cmp"
	"encoding/binary"
	"errors"
	"slices"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

const shardCount = 16

// ErrTileSetFlushed is returned by Add after the set has been flushed.
var ErrTileSetFlushed = errors.New("tile set already flushed")

// TileSet holds the tile accumulators of one chunk. Accumulators are spread
// over shards by key, each guarded by its own lock; the set is safe for
// concurrent use. Rows are kept in the order they were added.
type TileSet struct {
	grid   domain.TileGrid
	month  domain.Month
	shards [shardCount]tileShard
}

type tileShard struct {
	mu     sync.Mutex
	closed bool
	tables map[domain.TileKey]*domain.TileTable
}

// NewTileSet creates an empty set for month on grid.
func NewTileSet(grid domain.TileGrid, month domain.Month) *TileSet {
	s := &TileSet{grid: grid, month: month}
	for i := range s.shards {
		s.shards[i].tables = make(map[domain.TileKey]*domain.TileTable)
	}
	return s
}

// Add routes every level of a filtered record to its tile, creating the
// accumulator on first use. A record with no levels touches nothing. It
// returns the number of rows added.
func (s *TileSet) Add(rec domain.ProfileRecord) (int, error) {
	rows := domain.RowsOf(rec)
	if len(rows) == 0 {
		return 0, nil
	}
	key := s.grid.KeyOf(rec.Longitude, rec.Latitude)
	sh := &s.shards[shardOf(key)]

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.closed {
		return 0, ErrTileSetFlushed
	}
	t, ok := sh.tables[key]
	if !ok {
		t = domain.NewTileTable(s.grid, key, s.month)
		sh.tables[key] = t
	}
	t.Append(rows...)
	return len(rows), nil
}

// Len returns the number of tiles holding rows.
func (s *TileSet) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.tables)
		sh.mu.Unlock()
	}
	return n
}

// Flush closes the set and returns its tables ordered by key, each sorted by
// (time, station, depth). Later calls to Add fail and later calls to Flush
// return nil.
func (s *TileSet) Flush() []*domain.TileTable {
	var out []*domain.TileTable
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		sh.closed = true
		for _, t := range sh.tables {
			out = append(out, t)
		}
		sh.tables = nil
		sh.mu.Unlock()
	}
	for _, t := range out {
		t.Sort()
	}
	slices.SortFunc(out, func(a, b *domain.TileTable) int {
		return cmp.Or(cmp.Compare(a.Key.Lat, b.Key.Lat), cmp.Compare(a.Key.Lon, b.Key.Lon))
	})
	return out
}

func shardOf(k domain.TileKey) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(k.Lon))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(k.Lat))
	return xxh3.Hash(buf[:]) % shardCount
}
