// Package dted decodes DTED (Digital Terrain Elevation Data) tiles and
// provides a caching terrain that maps latitudes and longitudes to
// elevations.
package dted

// A TileID identifies a one degree by one degree tile, for example
// "e008/n53".
type TileID string

// A Level is a DTED precision level. Levels differ only in the filename
// suffix used to look them up.
type Level int

// Levels.
const (
	Level0 Level = 0
	Level1 Level = 1
	Level2 Level = 2
)

// DefaultLevels are the levels tried by tile sources, richest first.
var DefaultLevels = []Level{Level2, Level1, Level0}

// Suffix returns l's filename suffix, for example ".dt0".
func (l Level) Suffix() string {
	switch l {
	case Level1:
		return ".dt1"
	case Level2:
		return ".dt2"
	default:
		return ".dt0"
	}
}

// Filename returns the filename of id at level.
func (id TileID) Filename(level Level) string {
	return string(id) + level.Suffix()
}
