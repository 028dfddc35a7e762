package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

// finalize flushes the chunk's tiles, writes them concurrently and then
// announces each one in key order. A write failure aborts the run.
func (p *Pipeline) finalize(ctx context.Context, month domain.Month, tiles *TileSet, stats *domain.RunStatistics) ([]domain.TileOutput, error) {
	tables := tiles.Flush()
	if len(tables) == 0 {
		return nil, nil
	}
	outputs := make([]domain.TileOutput, len(tables))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, t := range tables {
		g.Go(func() error {
			path, err := p.sink.WriteTile(gctx, t)
			if err != nil {
				return fmt.Errorf("write tile %s/%s: %w", month, t.Name, err)
			}
			outputs[i] = domain.TileOutput{Name: t.Name, Path: path, Rows: t.Len()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, o := range outputs {
		stats.RowsWritten += int64(o.Rows)
		stats.TilesWritten++
		p.metrics.RowsWritten.Add(float64(o.Rows))
		p.metrics.TilesWritten.Inc()
		p.logger.Debug("tile written", "chunk", month.String(), "tile", o.Name, "rows", o.Rows, "path", o.Path)
		p.notify(ctx, month, o)
	}
	return outputs, nil
}

func (p *Pipeline) notify(ctx context.Context, month domain.Month, o domain.TileOutput) {
	if p.opts.Notifier == nil {
		return
	}
	n := domain.TileWritten{
		RunID:     p.opts.RunID,
		Chunk:     month.String(),
		Tile:      o.Name,
		Path:      o.Path,
		Rows:      o.Rows,
		WrittenAt: p.opts.Clock.Now().UTC(),
	}
	if err := p.opts.Notifier.TileWritten(ctx, n); err != nil {
		p.metrics.NotifyErrors.Inc()
		p.logger.Warn("tile notification failed", "chunk", n.Chunk, "tile", n.Tile, "error", err)
	}
}
