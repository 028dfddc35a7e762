// Package sqlite keeps the run ledger: which chunks finished, and the tile
// files each one produced.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

const schema = `
create table if not exists chunks (
	month text primary key,
	run_id text not null,
	profiles_accepted integer not null,
	profiles_rejected integer not null,
	rows integer not null,
	duration_ms integer not null,
	completed_at integer not null
);
create table if not exists tiles (
	month text not null,
	tile text not null,
	path text not null,
	rows integer not null,
	primary key (month, tile)
);
`

// Ledger records completed chunks in a SQLite database.
// It implements pipeline.Ledger.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger at path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{`pragma busy_timeout=5000;`, `pragma journal_mode=WAL;`, schema} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init ledger: %w", err)
		}
	}
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// ChunkCompleted reports whether month has been recorded.
func (l *Ledger) ChunkCompleted(ctx context.Context, month domain.Month) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `select count(*) from chunks where month = ?`, month.String()).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordChunk stores s, replacing any earlier record of the same month.
func (l *Ledger) RecordChunk(ctx context.Context, s domain.ChunkSummary) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	month := s.Month.String()
	if _, err := tx.ExecContext(ctx, `delete from tiles where month = ?`, month); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert or replace into chunks
			(month, run_id, profiles_accepted, profiles_rejected, rows, duration_ms, completed_at)
		values (?, ?, ?, ?, ?, ?, ?)`,
		month, s.RunID, s.ProfilesAccepted, s.ProfilesRejected, s.Rows,
		s.Duration.Milliseconds(), s.CompletedAt.UnixMilli(),
	); err != nil {
		return err
	}
	for _, t := range s.Tiles {
		if _, err := tx.ExecContext(ctx,
			`insert into tiles (month, tile, path, rows) values (?, ?, ?, ?)`,
			month, t.Name, t.Path, t.Rows,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Chunk returns the recorded summary for month. ok is false when the month
// has not been recorded.
func (l *Ledger) Chunk(ctx context.Context, month domain.Month) (s domain.ChunkSummary, ok bool, err error) {
	var durationMS, completedMS int64
	err = l.db.QueryRowContext(ctx, `
		select run_id, profiles_accepted, profiles_rejected, rows, duration_ms, completed_at
		from chunks where month = ?`, month.String(),
	).Scan(&s.RunID, &s.ProfilesAccepted, &s.ProfilesRejected, &s.Rows, &durationMS, &completedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ChunkSummary{}, false, nil
	}
	if err != nil {
		return domain.ChunkSummary{}, false, err
	}
	s.Month = month
	s.Duration = time.Duration(durationMS) * time.Millisecond
	s.CompletedAt = time.UnixMilli(completedMS).UTC()

	rows, err := l.db.QueryContext(ctx, `select tile, path, rows from tiles where month = ? order by tile`, month.String())
	if err != nil {
		return domain.ChunkSummary{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var t domain.TileOutput
		if err := rows.Scan(&t.Name, &t.Path, &t.Rows); err != nil {
			return domain.ChunkSummary{}, false, err
		}
		s.Tiles = append(s.Tiles, t)
	}
	return s, true, rows.Err()
}
