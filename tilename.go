package dted

import (
	"fmt"
	"math"
)

// TileName returns the ID of the tile containing lat, lon.
//
// The degree parts are abs(floor(x)). A coordinate of exactly zero is named
// west or south, so TileName(0, 0) is "w000/s00" even though the tile
// containing it is e000/n00.
func TileName(lat, lon float64) TileID {
	lonPrefix := 'w'
	if lon > 0 {
		lonPrefix = 'e'
	}
	latPrefix := 's'
	if lat > 0 {
		latPrefix = 'n'
	}
	lonDeg := int(math.Abs(math.Floor(lon)))
	latDeg := int(math.Abs(math.Floor(lat)))
	return TileID(fmt.Sprintf("%c%03d/%c%02d", lonPrefix, lonDeg, latPrefix, latDeg))
}
