package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

// RunChunk processes one (year, month) chunk across all regions: every
// archive is parsed and filtered into a fresh TileSet, which is flushed to
// the sink once all workers have drained. It returns the chunk's statistics.
func (p *Pipeline) RunChunk(ctx context.Context, month domain.Month) (*domain.RunStatistics, error) {
	start := p.opts.Clock.Now()
	stats := &domain.RunStatistics{}
	tiles := NewTileSet(p.grid, month)
	p.updateProgress(func(pr *Progress) { pr.Chunk = month.String() })

	for _, region := range p.opts.Regions {
		if err := p.processRegion(ctx, region, month, tiles, stats); err != nil {
			return stats, err
		}
	}

	outputs, err := p.finalize(ctx, month, tiles, stats)
	if err != nil {
		return stats, err
	}

	elapsed := p.opts.Clock.Since(start)
	summary := domain.ChunkSummary{
		RunID:            p.opts.RunID,
		Month:            month,
		ProfilesAccepted: stats.ProfilesAccepted,
		ProfilesRejected: stats.Rejected(),
		Rows:             stats.RowsWritten,
		Tiles:            outputs,
		Duration:         elapsed,
		CompletedAt:      p.opts.Clock.Now().UTC(),
	}
	if p.opts.Ledger != nil {
		if err := p.opts.Ledger.RecordChunk(ctx, summary); err != nil {
			return stats, fmt.Errorf("record chunk %s: %w", month, err)
		}
	}

	p.metrics.ChunkDuration.Observe(elapsed.Seconds())
	p.ready.Store(true)
	p.logger.Info("chunk finished",
		"chunk", month.String(),
		"profiles_accepted", stats.ProfilesAccepted,
		"profiles_empty", stats.ProfilesEmpty,
		"profiles_rejected", stats.Rejected(),
		"rows", stats.RowsWritten,
		"tiles", stats.TilesWritten,
		"duration", elapsed,
	)
	return stats, nil
}

func (p *Pipeline) processRegion(ctx context.Context, region string, month domain.Month, tiles *TileSet, stats *domain.RunStatistics) error {
	a, err := p.expander.Expand(ctx, region, month)
	switch {
	case errors.Is(err, domain.ErrNoArchive):
		p.logger.Info("archive not found, skipping", "archive", domain.ArchiveName(region, month))
		return nil
	case err != nil && ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		p.logger.Error("expand archive failed", "archive", domain.ArchiveName(region, month), "error", err)
		stats.ArchiveErrors++
		return nil
	}
	defer func() {
		if err := a.Close(); err != nil {
			p.logger.Warn("archive cleanup failed", "archive", a.Name, "error", err)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}

	p.logger.Debug("archive expanded", "archive", a.Name, "files", len(a.Files))
	return p.processArchive(ctx, a, month, tiles, stats)
}

// fileResult is one file's slot: its statistics and, when it survived the
// checks, the filtered record waiting to be routed.
type fileResult struct {
	stats  domain.RunStatistics
	rec    domain.ProfileRecord
	routed bool
}

// processArchive fans the archive's files out over the worker pool. Each
// file fills its own slot; after the barrier the slots are routed into tiles
// and merged in listing order, so rows that tie on the sort key and the
// diagnostics keep the order of a sequential run.
func (p *Pipeline) processArchive(ctx context.Context, a domain.Archive, month domain.Month, tiles *TileSet, stats *domain.RunStatistics) error {
	results := make([]fileResult, len(a.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, path := range a.Files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return p.processFile(gctx, a.Name, path, month, &results[i])
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	for i := range results {
		r := &results[i]
		if err == nil && r.routed {
			err = p.route(tiles, r)
		}
		stats.Merge(&r.stats)
	}
	return err
}

// route adds a filtered record to its tile and counts the outcome.
func (p *Pipeline) route(tiles *TileSet, r *fileResult) error {
	n, err := tiles.Add(r.rec)
	if err != nil {
		return fmt.Errorf("route %s: %w", r.rec.Source, err)
	}
	if n == 0 {
		r.stats.ProfilesEmpty++
		p.metrics.Profiles.WithLabelValues("empty").Inc()
		return nil
	}
	r.stats.ProfilesAccepted++
	p.metrics.Profiles.WithLabelValues("accepted").Inc()
	return nil
}

// processFile runs one file through parse, profile checks and level
// filtering into its slot. Rejections become statistics; only cancellation
// is returned.
func (p *Pipeline) processFile(ctx context.Context, archive, path string, month domain.Month, out *fileResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st := &out.stats
	file := filepath.Base(path)

	rec, err := p.parser.Parse(archive, path)
	if err != nil {
		reason, ok := domain.RejectionReason(err)
		if !ok {
			reason = domain.RejectMalformed
		}
		if reason != domain.RejectBadStation {
			st.Station.Good++
		}
		st.RecordRejection(reason)
		p.countRejection(reason)
		p.logger.Warn("profile rejected", "archive", archive, "file", file, "reason", string(reason), "error", err)
		return nil
	}
	st.Station.Good++
	for _, w := range rec.Warnings {
		st.RecordWarning(w)
		p.logger.Debug("profile warning", "archive", archive, "file", file, "warning", w.String())
	}

	rec, err = domain.CheckProfile(rec, p.opts.Policy, month, st)
	if err != nil {
		reason, _ := domain.RejectionReason(err)
		p.countRejection(reason)
		p.logger.Debug("profile filtered", "archive", archive, "file", file, "reason", string(reason), "error", err)
		return nil
	}

	before := [3]int64{st.Depth.Bad, st.Temperature.Bad, st.Salinity.Bad}
	filtered := domain.FilterLevels(rec, p.opts.Policy, st)
	p.metrics.LevelsRejected.WithLabelValues(domain.Depth.String()).Add(float64(st.Depth.Bad - before[0]))
	p.metrics.LevelsRejected.WithLabelValues(domain.Temperature.String()).Add(float64(st.Temperature.Bad - before[1]))
	p.metrics.LevelsRejected.WithLabelValues(domain.Salinity.String()).Add(float64(st.Salinity.Bad - before[2]))

	out.rec, out.routed = filtered, true
	return nil
}

func (p *Pipeline) countRejection(reason domain.RejectReason) {
	p.metrics.Profiles.WithLabelValues("rejected").Inc()
	p.metrics.Rejections.WithLabelValues(string(reason)).Inc()
}
