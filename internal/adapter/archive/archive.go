// Package archive locates and expands the regional monthly archives a run
// consumes, either as plain directories or as zip files.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

// DirExpander reads archives already expanded as <Root>/<region>_<yyyymm>/.
type DirExpander struct {
	Root string
}

// Expand lists the profile files of the region's archive for month.
// It returns domain.ErrNoArchive when the directory does not exist.
func (e DirExpander) Expand(ctx context.Context, region string, month domain.Month) (domain.Archive, error) {
	if err := ctx.Err(); err != nil {
		return domain.Archive{}, err
	}
	name := domain.ArchiveName(region, month)
	dir := filepath.Join(e.Root, name)
	files, err := listFiles(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Archive{}, fmt.Errorf("%s: %w", name, domain.ErrNoArchive)
	}
	if err != nil {
		return domain.Archive{}, err
	}
	return domain.Archive{Name: name, Files: files}, nil
}

// ZipExpander extracts <Root>/<region>_<yyyymm>.zip into a fresh directory
// under WorkDir. The directory is removed when the archive is closed.
type ZipExpander struct {
	Root    string
	WorkDir string
	// Logger receives skipped-entry warnings. Nil uses slog.Default().
	Logger *slog.Logger
}

// Expand extracts the region's archive for month. Entry paths are flattened
// to their base names; when two entries share a base name the first is kept
// and the rest are skipped with a warning. It returns domain.ErrNoArchive
// when the zip file does not exist.
func (e ZipExpander) Expand(ctx context.Context, region string, month domain.Month) (domain.Archive, error) {
	if err := ctx.Err(); err != nil {
		return domain.Archive{}, err
	}
	name := domain.ArchiveName(region, month)
	zr, err := zip.OpenReader(filepath.Join(e.Root, name+".zip"))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Archive{}, fmt.Errorf("%s: %w", name, domain.ErrNoArchive)
	}
	if err != nil {
		return domain.Archive{}, fmt.Errorf("open %s: %w", name, err)
	}
	defer zr.Close()

	if err := os.MkdirAll(e.WorkDir, 0o755); err != nil {
		return domain.Archive{}, fmt.Errorf("create work dir: %w", err)
	}
	dir, err := os.MkdirTemp(e.WorkDir, name+"-")
	if err != nil {
		return domain.Archive{}, fmt.Errorf("create expansion dir: %w", err)
	}
	cleanup := func() error { return os.RemoveAll(dir) }
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	seen := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			_ = cleanup()
			return domain.Archive{}, err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		base := filepath.Base(f.Name)
		if strings.HasPrefix(base, ".") {
			continue
		}
		if kept, ok := seen[base]; ok {
			logger.Warn("duplicate zip entry skipped", "archive", name, "entry", f.Name, "kept", kept)
			continue
		}
		seen[base] = f.Name
		if err := extract(f, filepath.Join(dir, base)); err != nil {
			_ = cleanup()
			return domain.Archive{}, fmt.Errorf("extract %s from %s: %w", f.Name, name, err)
		}
	}

	files, err := listFiles(dir)
	if err != nil {
		_ = cleanup()
		return domain.Archive{}, err
	}
	return domain.Archive{Name: name, Files: files, Cleanup: cleanup}, nil
}

func extract(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// listFiles returns the regular, non-hidden files of dir, sorted by name.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}
