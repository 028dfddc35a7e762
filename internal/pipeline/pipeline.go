package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
	"github.com/couchcryptid/profile-tile-etl/internal/observability"
)

// Expander turns a regional monthly archive into profile files.
type Expander interface {
	Expand(ctx context.Context, region string, month domain.Month) (domain.Archive, error)
}

// Parser reads one profile file. Failures are *domain.RejectionError.
type Parser interface {
	Parse(archive, path string) (domain.ProfileRecord, error)
}

// TileSink persists one sorted tile table and returns where it went.
type TileSink interface {
	WriteTile(ctx context.Context, t *domain.TileTable) (string, error)
}

// Notifier announces persisted tiles. Failures are logged, never fatal.
type Notifier interface {
	TileWritten(ctx context.Context, n domain.TileWritten) error
}

// Ledger records completed chunks so a run can resume.
type Ledger interface {
	ChunkCompleted(ctx context.Context, month domain.Month) (bool, error)
	RecordChunk(ctx context.Context, s domain.ChunkSummary) error
}

// Options configures a Pipeline. Notifier, Ledger and Report are optional.
type Options struct {
	Regions []string
	Workers int
	Policy  domain.QualityPolicy
	RunID   string
	// Resume skips chunks the Ledger already holds.
	Resume bool
	Clock  clockwork.Clock

	Notifier Notifier
	Ledger   Ledger
	// Report receives the statistics report at year and run boundaries.
	Report io.Writer
}

// Progress is a point-in-time view of a run.
type Progress struct {
	RunID            string `json:"run_id"`
	Chunk            string `json:"chunk,omitempty"`
	ChunksDone       int    `json:"chunks_done"`
	ChunksTotal      int    `json:"chunks_total"`
	ProfilesAccepted int64  `json:"profiles_accepted"`
	ProfilesRejected int64  `json:"profiles_rejected"`
	RowsWritten      int64  `json:"rows_written"`
	TilesWritten     int64  `json:"tiles_written"`
}

// Pipeline drives the chunk loop: expand, parse, filter, accumulate, flush.
type Pipeline struct {
	expander Expander
	parser   Parser
	sink     TileSink
	opts     Options
	grid     domain.TileGrid
	reporter *Reporter
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool

	mu       sync.Mutex
	progress Progress
}

// New creates a Pipeline with the given stages and observability.
func New(e Expander, p Parser, s TileSink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		expander: e,
		parser:   p,
		sink:     s,
		opts:     opts,
		grid:     domain.NewTileGrid(opts.Policy.ChunkSize),
		reporter: NewReporter(opts.Report, logger),
		logger:   logger,
		metrics:  metrics,
		progress: Progress{RunID: opts.RunID},
	}
}

// Ready reports whether at least one chunk has completed.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// CheckReadiness returns nil once the pipeline has completed a chunk,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a chunk yet")
	}
	return nil
}

// Progress returns a snapshot of the current run.
func (p *Pipeline) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Run processes every month from first to last inclusive and returns the
// cumulative statistics. The statistics report is emitted after each
// December and after the last chunk. On error the statistics gathered so
// far are returned alongside it.
func (p *Pipeline) Run(ctx context.Context, first, last domain.Month) (*domain.RunStatistics, error) {
	months := domain.MonthsBetween(first, last)
	if len(months) == 0 {
		return nil, fmt.Errorf("empty run range %s to %s", first, last)
	}

	p.logger.Info("run started",
		"run_id", p.opts.RunID,
		"first", first.String(),
		"last", last.String(),
		"regions", p.opts.Regions,
		"workers", p.opts.Workers,
		"chunk_size", p.opts.Policy.ChunkSize,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	p.updateProgress(func(pr *Progress) { pr.ChunksTotal = len(months) })

	total := &domain.RunStatistics{}
	for i, m := range months {
		if err := ctx.Err(); err != nil {
			p.logger.Info("run stopping", "reason", err, "chunk", m.String())
			return total, err
		}

		done, err := p.chunkDone(ctx, m)
		if err != nil {
			return total, err
		}
		if done {
			p.logger.Info("chunk already completed, skipping", "chunk", m.String())
		} else {
			stats, err := p.RunChunk(ctx, m)
			total.Merge(stats)
			if err != nil {
				return total, err
			}
		}
		p.updateProgress(func(pr *Progress) {
			pr.ChunksDone = i + 1
			pr.ProfilesAccepted = total.ProfilesAccepted
			pr.ProfilesRejected = total.Rejected()
			pr.RowsWritten = total.RowsWritten
			pr.TilesWritten = total.TilesWritten
		})

		switch {
		case i == len(months)-1:
			p.reporter.Report("run "+first.String()+" to "+last.String(), total)
		case m.Month == time.December:
			p.reporter.Report(fmt.Sprintf("year %d", m.Year), total)
		}
	}

	p.logger.Info("run finished",
		"run_id", p.opts.RunID,
		"profiles_accepted", total.ProfilesAccepted,
		"profiles_rejected", total.Rejected(),
		"rows_written", total.RowsWritten,
		"tiles_written", total.TilesWritten,
	)
	return total, nil
}

func (p *Pipeline) chunkDone(ctx context.Context, m domain.Month) (bool, error) {
	if !p.opts.Resume || p.opts.Ledger == nil {
		return false, nil
	}
	done, err := p.opts.Ledger.ChunkCompleted(ctx, m)
	if err != nil {
		return false, fmt.Errorf("check ledger for %s: %w", m, err)
	}
	return done, nil
}

func (p *Pipeline) updateProgress(fn func(*Progress)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.progress)
}
