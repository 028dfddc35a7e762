// Command validate checks the integrity of a tile output tree: every table is
// sorted, every row belongs to its tile and chunk, no temporary files were
// left behind, and, when a ledger is given, the files match what the ledger
// recorded.
//
// Usage:
//
//	go run ./cmd/validate -out data/output [-chunk-size 10] [-ledger data/ledger.db]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/couchcryptid/profile-tile-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/profile-tile-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// chunkFiles holds the decoded tiles of one chunk directory.
type chunkFiles struct {
	month domain.Month
	dir   string
	tiles []*domain.TileTable
	paths []string
}

func main() {
	out := flag.String("out", "", "tile output root")
	size := flag.Float64("chunk-size", domain.DefaultPolicy().ChunkSize, "tile size in degrees the run used")
	ledger := flag.String("ledger", "", "optional chunk ledger to cross-check")
	flag.Parse()

	if *out == "" || *size <= 0 {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(os.Stdout, *out, domain.NewTileGrid(*size), *ledger))
}

func run(w io.Writer, root string, grid domain.TileGrid, ledgerPath string) int {
	fmt.Fprintln(w, "=== Tile Output Validation ===")
	fmt.Fprintln(w)

	chunks, load := loadTree(root)

	phases := []*phase{
		load,
		validateTables(chunks, grid),
	}
	if ledgerPath != "" {
		phases = append(phases, validateLedger(chunks, ledgerPath))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	var tiles, rows int
	for _, c := range chunks {
		tiles += len(c.tiles)
		for _, t := range c.tiles {
			rows += t.Len()
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Chunks: %d, tiles: %s, rows: %s\n", len(chunks), humanize.Comma(int64(tiles)), humanize.Comma(int64(rows)))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// ── Loading ──

func loadTree(root string) ([]*chunkFiles, *phase) {
	p := &phase{name: "Output tree layout"}

	entries, err := os.ReadDir(root)
	if err != nil {
		p.errorf("read %s: %v", root, err)
		return nil, p
	}

	var chunks []*chunkFiles
	for _, e := range entries {
		if !e.IsDir() {
			p.errorf("unexpected file %s at output root", e.Name())
			continue
		}
		t, err := time.Parse("2006-01", e.Name())
		if err != nil {
			p.errorf("directory %s is not a yyyy-mm chunk", e.Name())
			continue
		}
		c := &chunkFiles{month: domain.NewMonth(t.Year(), t.Month()), dir: filepath.Join(root, e.Name())}
		loadChunk(c, p)
		chunks = append(chunks, c)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].month.Before(chunks[j].month) })
	return chunks, p
}

func loadChunk(c *chunkFiles, p *phase) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		p.errorf("read %s: %v", c.dir, err)
		return
	}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp"):
			p.errorf("%s: orphaned temporary file %s", c.month, name)
			continue
		case e.IsDir() || filepath.Ext(name) != ".nc":
			p.errorf("%s: unexpected entry %s", c.month, name)
			continue
		}
		path := filepath.Join(c.dir, name)
		t, err := netcdf.ReadTile(path)
		if err != nil {
			p.errorf("%s: %v", c.month, err)
			continue
		}
		c.tiles = append(c.tiles, t)
		c.paths = append(c.paths, path)
	}
}

// ── Table checks ──

func validateTables(chunks []*chunkFiles, grid domain.TileGrid) *phase {
	p := &phase{name: "Tile tables (sort, membership)"}
	for _, c := range chunks {
		for i, t := range c.tiles {
			checkTable(p, grid, c.month, filepath.Base(c.paths[i]), t)
		}
	}
	return p
}

func checkTable(p *phase, grid domain.TileGrid, month domain.Month, file string, t *domain.TileTable) {
	if want := t.Name + ".nc"; file != want {
		p.errorf("%s/%s: tile attribute names %s", month, file, want)
	}
	if t.Month != month {
		p.errorf("%s/%s: chunk attribute is %s", month, file, t.Month)
	}
	if t.Len() == 0 {
		p.errorf("%s/%s: table has no rows", month, file)
		return
	}
	if !slices.IsSortedFunc(t.Rows, domain.CompareRows) {
		p.errorf("%s/%s: rows are not sorted by (time, station, depth)", month, file)
	}

	for i, r := range t.Rows {
		if got := grid.Name(grid.KeyOf(r.Longitude, r.Latitude)); got != t.Name {
			p.errorf("%s/%s row %d: position (%g, %g) belongs to tile %s", month, file, i, r.Longitude, r.Latitude, got)
		}
		if !month.Contains(r.Time) {
			p.errorf("%s/%s row %d: time %s outside chunk", month, file, i, time.Unix(int64(r.Time), 0).UTC().Format(time.RFC3339))
		}
	}
}

// ── Ledger cross-check ──

func validateLedger(chunks []*chunkFiles, path string) *phase {
	p := &phase{name: "Ledger consistency"}

	ledger, err := sqlite.Open(path)
	if err != nil {
		p.errorf("open ledger: %v", err)
		return p
	}
	defer ledger.Close()

	ctx := context.Background()
	for _, c := range chunks {
		s, ok, err := ledger.Chunk(ctx, c.month)
		if err != nil {
			p.errorf("%s: %v", c.month, err)
			continue
		}
		if !ok {
			p.errorf("%s: chunk directory exists but the ledger has no record", c.month)
			continue
		}

		onDisk := make(map[string]int, len(c.tiles))
		var rows int64
		for _, t := range c.tiles {
			onDisk[t.Name] = t.Len()
			rows += int64(t.Len())
		}
		if rows != s.Rows {
			p.errorf("%s: %d rows on disk, ledger recorded %d", c.month, rows, s.Rows)
		}
		for _, t := range s.Tiles {
			n, ok := onDisk[t.Name]
			switch {
			case !ok:
				p.errorf("%s: ledger tile %s is missing on disk", c.month, t.Name)
			case n != t.Rows:
				p.errorf("%s: tile %s has %d rows, ledger recorded %d", c.month, t.Name, n, t.Rows)
			}
			delete(onDisk, t.Name)
		}
		for name := range onDisk {
			p.errorf("%s: tile %s is not in the ledger", c.month, name)
		}
	}
	return p
}
