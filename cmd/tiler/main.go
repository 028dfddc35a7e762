// Command tiler converts monthly archives of oceanographic profiles into
// spatially tiled NetCDF tables.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/couchcryptid/profile-tile-etl/internal/adapter/archive"
	httpadapter "github.com/couchcryptid/profile-tile-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/profile-tile-etl/internal/adapter/kafka"
	"github.com/couchcryptid/profile-tile-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/profile-tile-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/profile-tile-etl/internal/config"
	"github.com/couchcryptid/profile-tile-etl/internal/observability"
	"github.com/couchcryptid/profile-tile-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	runID := uuid.NewString()

	var expander pipeline.Expander = archive.DirExpander{Root: cfg.InputDir}
	if cfg.ArchiveFormat == config.ArchiveZip {
		expander = archive.ZipExpander{Root: cfg.InputDir, WorkDir: cfg.WorkDir, Logger: logger}
	}
	reader := netcdf.NewReader(cfg.FilePrefix, cfg.Policy.Missing)
	writer := netcdf.NewWriter(cfg.OutputDir, runID)

	opts := pipeline.Options{
		Regions: cfg.Regions,
		Workers: cfg.Workers,
		Policy:  cfg.Policy,
		RunID:   runID,
		Resume:  cfg.Resume,
		Report:  os.Stdout,
	}

	// Tile notifications are optional (KAFKA_BROKERS).
	if len(cfg.KafkaBrokers) > 0 {
		notifier := kafkaadapter.NewNotifier(cfg, logger)
		defer func() {
			if err := notifier.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		opts.Notifier = notifier
		logger.Info("tile notifications enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	if cfg.LedgerPath != "" {
		ledger, err := sqlite.Open(cfg.LedgerPath)
		if err != nil {
			logger.Error("failed to open ledger", "path", cfg.LedgerPath, "error", err)
			return err
		}
		defer func() {
			if err := ledger.Close(); err != nil {
				logger.Error("ledger close error", "error", err)
			}
		}()
		opts.Ledger = ledger
		logger.Info("chunk ledger enabled", "path", cfg.LedgerPath, "resume", cfg.Resume)
	}

	p := pipeline.New(expander, reader, writer, opts, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, nil, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	_, runErr := p.Run(ctx, cfg.Start, cfg.End)
	if runErr != nil {
		logger.Error("pipeline error", "error", runErr)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}
