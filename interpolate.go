package dted

import "math"

// InterpolatedAltitudeAt returns the bilinearly interpolated altitude at lat,
// lon from the four samples surrounding it.
//
// Samples beyond t's last latitude or longitude line belong to the
// neighbouring tile, which is not consulted. Instead the last line is reused,
// so results within one sample of t's north and east edges are approximate.
func (t *Tile) InterpolatedAltitudeAt(lat, lon float64) float64 {
	latRel := (lat - t.latOrigin) / t.latDelta
	lonRel := (lon - t.lonOrigin) / t.lonDelta
	latIndex0, latFrac := splitIndex(latRel, t.numLatLines)
	lonIndex0, lonFrac := splitIndex(lonRel, t.numLonLines)
	latIndex1 := min(latIndex0+1, t.numLatLines-1)
	lonIndex1 := min(lonIndex0+1, t.numLonLines-1)

	alt00 := float64(t.AltitudeAtIndex(latIndex0, lonIndex0))
	alt01 := float64(t.AltitudeAtIndex(latIndex0, lonIndex1))
	alt10 := float64(t.AltitudeAtIndex(latIndex1, lonIndex0))
	alt11 := float64(t.AltitudeAtIndex(latIndex1, lonIndex1))

	alt0 := lerp(alt00, alt01, lonFrac)
	alt1 := lerp(alt10, alt11, lonFrac)
	return lerp(alt0, alt1, latFrac)
}

// splitIndex splits the fractional grid position rel into an index clamped
// to [0, count) and the fraction beyond it. NaN clamps to zero.
func splitIndex(rel float64, count int) (int, float64) {
	index := math.Floor(rel)
	switch {
	case math.IsNaN(index) || index < 0:
		return 0, 0
	case index >= float64(count-1):
		return count - 1, 0
	default:
		return int(index), rel - index
	}
}

func lerp(a, b, f float64) float64 {
	return a + f*(b-a)
}
