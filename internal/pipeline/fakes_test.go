package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
	"github.com/couchcryptid/profile-tile-etl/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	jan1990  = domain.NewMonth(1990, time.January)
	castTime = float64(time.Date(1990, time.January, 15, 12, 0, 0, 0, time.UTC).Unix())
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func ones(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

// profile builds a well-formed record with every flag trusted.
func profile(station int64, lon, lat float64, depth, temp, sal []float64) domain.ProfileRecord {
	return domain.ProfileRecord{
		StationID:    station,
		Organization: "ME",
		DataType:     "BA",
		Platform:     "9999",
		Cruise:       "AB123",
		PositionFlag: 1,
		TimeFlag:     1,
		Longitude:    lon,
		Latitude:     lat,
		Time:         castTime + float64(station),
		Depth:        domain.Measurement{Values: depth, Flags: ones(len(depth)), Fill: 99999},
		Temperature:  domain.Measurement{Values: temp, Flags: ones(len(temp)), Fill: 99999},
		Salinity:     domain.Measurement{Values: sal, Flags: ones(len(sal)), Fill: 99999},
	}
}

func nan() float64 { return math.NaN() }

// --- fakes ---

type fakeExpander struct {
	mu       sync.Mutex
	archives map[string][]string // archive name -> file paths
	errs     map[string]error
	closed   []string
	// expanded runs after a successful expansion, before it is returned.
	expanded func()
}

func (f *fakeExpander) Expand(ctx context.Context, region string, month domain.Month) (domain.Archive, error) {
	if err := ctx.Err(); err != nil {
		return domain.Archive{}, err
	}
	name := domain.ArchiveName(region, month)
	if err, ok := f.errs[name]; ok {
		return domain.Archive{}, err
	}
	files, ok := f.archives[name]
	if !ok {
		return domain.Archive{}, domain.ErrNoArchive
	}
	if f.expanded != nil {
		f.expanded()
	}
	return domain.Archive{
		Name:  name,
		Files: files,
		Cleanup: func() error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.closed = append(f.closed, name)
			return nil
		},
	}, nil
}

type parsed struct {
	rec domain.ProfileRecord
	err error
}

// fakeParser serves records by file base name. It is read-only after setup.
// With jitter set, each call sleeps up to 2ms so workers finish out of order.
type fakeParser struct {
	files  map[string]parsed
	jitter bool
}

func (f *fakeParser) Parse(archive, path string) (domain.ProfileRecord, error) {
	if f.jitter {
		time.Sleep(time.Duration(rand.IntN(2000)) * time.Microsecond)
	}
	name := filepath.Base(path)
	p, ok := f.files[name]
	if !ok {
		return domain.ProfileRecord{}, domain.Reject(domain.RejectMalformed, "no such file %s", name)
	}
	if p.err != nil {
		return domain.ProfileRecord{}, p.err
	}
	rec := p.rec
	rec.Source = archive + "/" + name
	return rec, nil
}

type memSink struct {
	mu     sync.Mutex
	tables map[string]*domain.TileTable // "<chunk>/<tile>"
	err    error
}

func newMemSink() *memSink {
	return &memSink{tables: make(map[string]*domain.TileTable)}
}

func (s *memSink) WriteTile(ctx context.Context, t *domain.TileTable) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := t.Month.String() + "/" + t.Name
	cp := *t
	cp.Rows = slices.Clone(t.Rows)
	s.tables[key] = &cp
	return "/out/" + key + ".nc", nil
}

func (s *memSink) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.tables {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []domain.TileWritten
	err  error
}

func (n *fakeNotifier) TileWritten(_ context.Context, msg domain.TileWritten) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

type fakeLedger struct {
	mu       sync.Mutex
	done     map[domain.Month]bool
	recorded []domain.ChunkSummary
	err      error
}

func (l *fakeLedger) ChunkCompleted(_ context.Context, m domain.Month) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done[m], nil
}

func (l *fakeLedger) RecordChunk(_ context.Context, s domain.ChunkSummary) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.recorded = append(l.recorded, s)
	return nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }
