package dted

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"

	"github.com/paulmach/orb"
)

// Record layout.
const (
	uhlOffset = 0
	uhlSize   = 80
	dsiOffset = uhlOffset + uhlSize
	dsiSize   = 648
	accOffset = dsiOffset + dsiSize
	accSize   = 2700
	// DataOffset is the offset of the first data record.
	DataOffset = accOffset + accSize

	dataRecordHeaderSize  = 8
	dataRecordTrailerSize = 4
)

var (
	uhlSentinel = []byte("UHL")
	dsiSentinel = []byte("DSI")
	accSentinel = []byte("ACC")
)

// A Tile is a decoded DTED tile. Tiles are immutable.
type Tile struct {
	lonOrigin   float64
	latOrigin   float64
	lonDelta    float64
	latDelta    float64
	numLonLines int
	numLatLines int
	samples     []int16 // samples[lonIndex*numLatLines+latIndex].
	minAltitude int16
	maxAltitude int16
}

// CellData describes a tile's grid.
type CellData struct {
	LatOrigin   float64
	LonOrigin   float64
	LatDelta    float64
	LonDelta    float64
	NumLatLines int
	NumLonLines int
	LatCorner   float64
	LonCorner   float64
	MinAltitude int16
	MaxAltitude int16
	Bound       orb.Bound
}

// ParseTile decodes data. It returns a *FormatError if data is not a valid
// DTED tile.
func ParseTile(data []byte) (*Tile, error) {
	if err := expectSentinel(data, uhlOffset, uhlSentinel, "missing UHL sentinel"); err != nil {
		return nil, err
	}
	if len(data) < uhlSize {
		return nil, &FormatError{Offset: len(data), Msg: "truncated UHL record"}
	}

	t := &Tile{}
	var err error
	if t.lonOrigin, err = parseOrigin(data, 4, 'E', 'W'); err != nil {
		return nil, err
	}
	if t.latOrigin, err = parseOrigin(data, 12, 'N', 'S'); err != nil {
		return nil, err
	}
	if t.lonDelta, err = parseInterval(data, 20); err != nil {
		return nil, err
	}
	if t.latDelta, err = parseInterval(data, 24); err != nil {
		return nil, err
	}
	if t.numLonLines, err = parseCount(data, 47); err != nil {
		return nil, err
	}
	if t.numLatLines, err = parseCount(data, 51); err != nil {
		return nil, err
	}

	if err := expectSentinel(data, dsiOffset, dsiSentinel, "missing DSI sentinel"); err != nil {
		return nil, err
	}
	if err := expectSentinel(data, accOffset, accSentinel, "missing ACC sentinel"); err != nil {
		return nil, err
	}

	recordSize := dataRecordHeaderSize + 2*t.numLatLines + dataRecordTrailerSize
	if size := DataOffset + t.numLonLines*recordSize; len(data) < size {
		return nil, &FormatError{
			Offset: len(data),
			Msg:    "truncated data records, expected " + strconv.Itoa(size) + " bytes",
		}
	}

	t.samples = make([]int16, t.numLonLines*t.numLatLines)
	t.minAltitude = math.MaxInt16
	t.maxAltitude = math.MinInt16
	for lonIndex := range t.numLonLines {
		offset := DataOffset + lonIndex*recordSize + dataRecordHeaderSize
		for latIndex := range t.numLatLines {
			altitude := decodeSample(binary.BigEndian.Uint16(data[offset+2*latIndex:]))
			t.minAltitude = min(t.minAltitude, altitude)
			t.maxAltitude = max(t.maxAltitude, altitude)
			t.samples[lonIndex*t.numLatLines+latIndex] = altitude
		}
	}

	return t, nil
}

// decodeSample decodes a sign-magnitude sample.
func decodeSample(value uint16) int16 {
	magnitude := int16(value & 0x7fff)
	if value&0x8000 != 0 {
		return -magnitude
	}
	return magnitude
}

func expectSentinel(data []byte, offset int, sentinel []byte, msg string) error {
	if len(data) < offset+len(sentinel) || !bytes.Equal(data[offset:offset+len(sentinel)], sentinel) {
		return &FormatError{Offset: offset, Msg: msg}
	}
	return nil
}

// parseOrigin parses a DDDMMSSH field at offset into decimal degrees.
func parseOrigin(data []byte, offset int, positive, negative byte) (float64, error) {
	deg, ok := parseDigits(data, offset, 3)
	if !ok {
		return 0, &FormatError{Offset: offset, Msg: "invalid origin degrees"}
	}
	mins, ok := parseDigits(data, offset+3, 2)
	if !ok || mins >= 60 {
		return 0, &FormatError{Offset: offset + 3, Msg: "invalid origin minutes"}
	}
	secs, ok := parseDigits(data, offset+5, 2)
	if !ok || secs >= 60 {
		return 0, &FormatError{Offset: offset + 5, Msg: "invalid origin seconds"}
	}
	value := float64(deg) + float64(mins)/60 + float64(secs)/3600
	switch hemisphere := data[offset+7]; hemisphere {
	case positive:
		return value, nil
	case negative:
		return -value, nil
	default:
		return 0, &FormatError{Offset: offset + 7, Msg: "invalid hemisphere " + strconv.QuoteRune(rune(hemisphere))}
	}
}

// parseInterval parses a four digit interval in tenths of arc seconds at
// offset into decimal degrees.
func parseInterval(data []byte, offset int) (float64, error) {
	tenths, ok := parseDigits(data, offset, 4)
	switch {
	case !ok:
		return 0, &FormatError{Offset: offset, Msg: "invalid interval"}
	case tenths == 0:
		return 0, &FormatError{Offset: offset, Msg: "zero interval"}
	default:
		return float64(tenths) / 10 / 3600, nil
	}
}

// parseCount parses a four digit line count at offset.
func parseCount(data []byte, offset int) (int, error) {
	count, ok := parseDigits(data, offset, 4)
	switch {
	case !ok:
		return 0, &FormatError{Offset: offset, Msg: "invalid line count"}
	case count == 0:
		return 0, &FormatError{Offset: offset, Msg: "zero line count"}
	default:
		return count, nil
	}
}

// parseDigits parses the n ASCII decimal digits at offset. Signs and spaces
// are not digits.
func parseDigits(data []byte, offset, n int) (int, bool) {
	value := 0
	for _, c := range data[offset : offset+n] {
		if c < '0' || '9' < c {
			return 0, false
		}
		value = 10*value + int(c-'0')
	}
	return value, true
}

// LatIndexOf returns the latitude index of lat.
func (t *Tile) LatIndexOf(lat float64) (int, error) {
	index := int(math.Floor((lat - t.latOrigin) / t.latDelta))
	if index < 0 || t.numLatLines <= index {
		return 0, &IndexError{Name: "lat", Value: lat, Index: index, Count: t.numLatLines}
	}
	return index, nil
}

// LonIndexOf returns the longitude index of lon.
func (t *Tile) LonIndexOf(lon float64) (int, error) {
	index := int(math.Floor((lon - t.lonOrigin) / t.lonDelta))
	if index < 0 || t.numLonLines <= index {
		return 0, &IndexError{Name: "lon", Value: lon, Index: index, Count: t.numLonLines}
	}
	return index, nil
}

// AltitudeAt returns the altitude in meters of the sample containing lat,
// lon. It returns an *IndexError if lat, lon is outside t.
func (t *Tile) AltitudeAt(lat, lon float64) (int16, error) {
	latIndex, err := t.LatIndexOf(lat)
	if err != nil {
		return 0, err
	}
	lonIndex, err := t.LonIndexOf(lon)
	if err != nil {
		return 0, err
	}
	return t.AltitudeAtIndex(latIndex, lonIndex), nil
}

// AltitudeAtIndex returns the altitude at latIndex, lonIndex. The indexes are
// not checked beyond Go's slice bounds checks, so callers must ensure that
// they are in range.
func (t *Tile) AltitudeAtIndex(latIndex, lonIndex int) int16 {
	return t.samples[lonIndex*t.numLatLines+latIndex]
}

// MinAltitude returns the lowest altitude in t.
func (t *Tile) MinAltitude() int16 {
	return t.minAltitude
}

// MaxAltitude returns the highest altitude in t.
func (t *Tile) MaxAltitude() int16 {
	return t.maxAltitude
}

// Bound returns t's bounding box, from its origin to its last sample.
func (t *Tile) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{t.lonOrigin, t.latOrigin},
		Max: orb.Point{t.lonCorner(), t.latCorner()},
	}
}

// CellData returns a description of t's grid.
func (t *Tile) CellData() CellData {
	return CellData{
		LatOrigin:   t.latOrigin,
		LonOrigin:   t.lonOrigin,
		LatDelta:    t.latDelta,
		LonDelta:    t.lonDelta,
		NumLatLines: t.numLatLines,
		NumLonLines: t.numLonLines,
		LatCorner:   t.latCorner(),
		LonCorner:   t.lonCorner(),
		MinAltitude: t.minAltitude,
		MaxAltitude: t.maxAltitude,
		Bound:       t.Bound(),
	}
}

// ForEachPosition calls f for every sample in t, longitude line by longitude
// line.
func (t *Tile) ForEachPosition(f func(lat, lon float64, altitude int16)) {
	for lonIndex := range t.numLonLines {
		lon := t.lonOrigin + float64(lonIndex)*t.lonDelta
		for latIndex := range t.numLatLines {
			lat := t.latOrigin + float64(latIndex)*t.latDelta
			f(lat, lon, t.samples[lonIndex*t.numLatLines+latIndex])
		}
	}
}

func (t *Tile) latCorner() float64 {
	return t.latOrigin + t.latDelta*float64(t.numLatLines-1)
}

func (t *Tile) lonCorner() float64 {
	return t.lonOrigin + t.lonDelta*float64(t.numLonLines-1)
}
