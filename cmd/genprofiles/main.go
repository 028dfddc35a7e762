// Command genprofiles writes synthetic GTSPP monthly archives for local runs
// and load testing. A fraction of the profiles carry the defects real
// archives contain: bad quality flags, impossible values, casts outside the
// month, and filenames without a station number.
//
// Usage:
//
//	go run ./cmd/genprofiles \
//	  -out data/input -format zip \
//	  -regions at,pa -start 1990-01 -months 3 -profiles 200
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/couchcryptid/profile-tile-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

type options struct {
	out      string
	format   string
	regions  []string
	start    domain.Month
	months   int
	profiles int
	defects  float64
	seed     uint64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "directory to write archives into")
	format := flag.String("format", "dir", "archive format: dir or zip")
	regions := flag.String("regions", "at,gm,in,pa", "comma-separated region codes")
	start := flag.String("start", "1990-01", "first month (yyyy-mm)")
	months := flag.Int("months", 1, "number of months to generate")
	profiles := flag.Int("profiles", 100, "profiles per archive")
	defects := flag.Float64("defects", 0.1, "fraction of profiles carrying a defect")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *format != "dir" && *format != "zip" {
		return fmt.Errorf("invalid -format %q", *format)
	}
	t, err := time.Parse("2006-01", *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}

	opts := options{
		out:      *out,
		format:   *format,
		regions:  strings.Split(*regions, ","),
		start:    domain.NewMonth(t.Year(), t.Month()),
		months:   *months,
		profiles: *profiles,
		defects:  *defects,
		seed:     *seed,
	}
	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	var total int
	m := opts.start
	for range opts.months {
		for _, region := range opts.regions {
			n, err := writeArchive(opts, rng, region, m)
			if err != nil {
				return fmt.Errorf("%s: %w", domain.ArchiveName(region, m), err)
			}
			total += n
			log.Printf("%s: %d profiles", domain.ArchiveName(region, m), n)
		}
		m = m.Next()
	}
	log.Printf("total: %d profiles", total)
	return nil
}

func writeArchive(opts options, rng *rand.Rand, region string, m domain.Month) (int, error) {
	name := domain.ArchiveName(region, m)
	dir := filepath.Join(opts.out, name)
	if opts.format == "zip" {
		tmp, err := os.MkdirTemp("", name+"-")
		if err != nil {
			return 0, err
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	for i := range opts.profiles {
		rec, file := synthesize(rng, region, m, i, opts.defects)
		if err := netcdf.WriteProfile(filepath.Join(dir, file), rec, netcdf.ProfileOptions{TextFlags: rng.IntN(4) == 0}); err != nil {
			return 0, fmt.Errorf("write %s: %w", file, err)
		}
	}

	if opts.format == "zip" {
		if err := zipDir(dir, filepath.Join(opts.out, name+".zip")); err != nil {
			return 0, err
		}
	}
	return opts.profiles, nil
}

// regionBounds are rough lon/lat boxes for each ocean region.
var regionBounds = map[string][4]float64{
	"at": {-70, -10, -40, 60},
	"gm": {-97, -81, 18, 30},
	"in": {40, 110, -40, 20},
	"pa": {130, 250, -50, 50},
}

func synthesize(rng *rand.Rand, region string, m domain.Month, i int, defects float64) (domain.ProfileRecord, string) {
	b, ok := regionBounds[region]
	if !ok {
		b = [4]float64{-180, 180, -60, 60}
	}
	station := int64(100000 + rng.IntN(900000))
	span := m.End().Sub(m.Start()).Seconds()

	levels := 5 + rng.IntN(40)
	rec := domain.ProfileRecord{
		StationID:    station,
		Organization: "ME",
		DataType:     []string{"BA", "TE", "CT", "XB"}[rng.IntN(4)],
		Platform:     fmt.Sprintf("%04d", rng.IntN(10000)),
		Cruise:       fmt.Sprintf("%s%02d", strings.ToUpper(region), rng.IntN(100)),
		PositionFlag: 1,
		TimeFlag:     1,
		Longitude:    b[0] + rng.Float64()*(b[1]-b[0]),
		Latitude:     b[2] + rng.Float64()*(b[3]-b[2]),
		Time:         float64(m.Start().Unix()) + math.Floor(rng.Float64()*span),
		Depth:        measurement(levels, 99999),
		Temperature:  measurement(levels, 99999),
		Salinity:     measurement(levels, 99999),
	}
	depth := 0.0
	for l := range levels {
		depth += 1 + rng.Float64()*20
		rec.Depth.Values[l] = math.Round(depth*10) / 10
		rec.Temperature.Values[l] = math.Round((28-depth/40+rng.NormFloat64()*0.3)*100) / 100
		rec.Salinity.Values[l] = math.Round((34.5+rng.NormFloat64()*0.4)*100) / 100
		rec.Depth.Flags[l], rec.Temperature.Flags[l], rec.Salinity.Flags[l] = 1, 1, 1
	}

	file := fmt.Sprintf("gtspp_%d_%s%04d.nc", station, rec.DataType, i)
	if rng.Float64() >= defects {
		return rec, file
	}
	switch rng.IntN(6) {
	case 0:
		rec.PositionFlag = 4
	case 1:
		rec.TimeFlag = 3
	case 2:
		rec.Time = float64(m.End().Unix()) + 3600
	case 3:
		l := rng.IntN(levels)
		rec.Temperature.Values[l] = 45
	case 4:
		l := rng.IntN(levels)
		rec.Salinity.Flags[l] = 4
		rec.Depth.Flags[rng.IntN(levels)] = 3
	case 5:
		file = fmt.Sprintf("gtspp_cast%04d.nc", i)
	}
	return rec, file
}

func measurement(n int, fill float64) domain.Measurement {
	return domain.Measurement{Values: make([]float64, n), Flags: make([]int, n), Fill: fill}
}

func zipDir(dir, dst string) (err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		if err := addFile(zw, filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
