package domain

import "errors"

// ErrNoArchive reports that a region has no archive for a month.
var ErrNoArchive = errors.New("no archive")

// Archive is one expanded regional monthly archive.
type Archive struct {
	// Name identifies the archive in diagnostics, e.g. "at_199001".
	Name string
	// Files lists the profile file paths in directory-listing order.
	Files []string
	// Cleanup releases whatever expansion created. May be nil.
	Cleanup func() error
}

// Close runs Cleanup once.
func (a *Archive) Close() error {
	if a.Cleanup == nil {
		return nil
	}
	fn := a.Cleanup
	a.Cleanup = nil
	return fn()
}

// ArchiveName returns the conventional archive name for region and month.
func ArchiveName(region string, m Month) string {
	return region + "_" + m.Compact()
}
