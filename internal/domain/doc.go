// Package domain models GTSPP-style oceanographic profile data and the rules
// used to consolidate it into spatial tiles.
//
// # Data Source
//
// Profiles come from the Global Temperature and Salinity Profile Programme
// (GTSPP) monthly regional archives. Each archive expands into one netCDF file
// per vertical cast, named "<prefix>_<station>_<rest>.nc", e.g.
// "gtspp_12345678_te_111.nc". The digits between the first two underscores
// are the station identifier.
//
// # GTSPP Conventions
//
// Stream identifier:
//
//	A 4-character code such as "MEBA". The first two characters name the
//	originating organization ("ME" = Marine Environmental Data Service) and
//	the last two the data type ("BA" = bathythermograph message).
//
// Quality flags (IGOSS / GTSPP scale):
//
//	0 no QC performed     1 correct            2 probably correct
//	3 probably bad        4 bad                5 modified, now correct
//	8 interpolated        9 missing
//
//	Flags apply to the position, the time, and each depth, temperature and
//	salinity value. Only flags in the configured allow set are trusted.
//
// Impossible values:
//
//	Independently of flags, values outside a physically possible range are
//	discarded. Defaults: depth 0..10000 m, temperature -4..40 degC,
//	salinity 0..41 PSU, latitude -90..90, raw longitude -180..360.
//	Bounds are closed: a value exactly on a bound is kept.
//
// Time:
//
//	Times are stored as "<unit> since <origin>", usually
//	"days since 1900-01-01 00:00:00". They are converted to epoch seconds and
//	rounded to the nearest second to remove float round-off.
//
// # Tiles
//
// A [TileGrid] divides the globe into fixed-size longitude/latitude squares.
// A profile's tile is a pure function of its normalized position; positions
// on the eastern or northern edge of the domain fall into the last tile.
// Tiles are named from their lower-left corner, e.g. "-180E_-90N".
package domain
