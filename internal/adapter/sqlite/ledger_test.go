package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

var jan1990 = domain.NewMonth(1990, time.January)

func openTestLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, path
}

func summary() domain.ChunkSummary {
	return domain.ChunkSummary{
		RunID:            "run-1",
		Month:            jan1990,
		ProfilesAccepted: 10,
		ProfilesRejected: 2,
		Rows:             120,
		Tiles: []domain.TileOutput{
			{Name: "10E_10N", Path: "/out/1990-01/10E_10N.nc", Rows: 100},
			{Name: "-100E_-40N", Path: "/out/1990-01/-100E_-40N.nc", Rows: 20},
		},
		Duration:    1500 * time.Millisecond,
		CompletedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLedger_RecordAndQuery(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	done, err := l.ChunkCompleted(ctx, jan1990)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, l.RecordChunk(ctx, summary()))

	done, err = l.ChunkCompleted(ctx, jan1990)
	require.NoError(t, err)
	assert.True(t, done)

	got, ok, err := l.Chunk(ctx, jan1990)
	require.NoError(t, err)
	require.True(t, ok)
	want := summary()
	want.Tiles = []domain.TileOutput{want.Tiles[1], want.Tiles[0]} // ordered by tile name
	assert.Equal(t, want, got)
}

func TestLedger_RecordReplaces(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.RecordChunk(ctx, summary()))

	again := summary()
	again.RunID = "run-2"
	again.Tiles = again.Tiles[:1]
	require.NoError(t, l.RecordChunk(ctx, again))

	got, ok, err := l.Chunk(ctx, jan1990)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-2", got.RunID)
	assert.Len(t, got.Tiles, 1)
}

func TestLedger_PersistsAcrossOpen(t *testing.T) {
	l, path := openTestLedger(t)
	require.NoError(t, l.RecordChunk(context.Background(), summary()))
	require.NoError(t, l.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	done, err := reopened.ChunkCompleted(context.Background(), jan1990)
	require.NoError(t, err)
	assert.True(t, done)

	_, ok, err := reopened.Chunk(context.Background(), domain.NewMonth(1990, time.February))
	require.NoError(t, err)
	assert.False(t, ok)
}
