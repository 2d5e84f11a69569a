package dted

import (
	"fmt"
	"io/fs"
)

// A FormatError is returned when bytes are not a valid DTED tile.
type FormatError struct {
	Offset int
	Msg    string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dted: offset %d: %s: %v", e.Offset, e.Msg, e.Err)
	}
	return fmt.Sprintf("dted: offset %d: %s", e.Offset, e.Msg)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// An IndexError is returned when a coordinate lies outside a tile's grid.
type IndexError struct {
	Name  string // "lat" or "lon".
	Value float64
	Index int
	Count int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("dted: %s %g: index %d out of range [0, %d)", e.Name, e.Value, e.Index, e.Count)
}

// A NotFoundError is returned when a tile source does not have a tile at
// any level. Err is the error returned for the last level tried.
type NotFoundError struct {
	ID  TileID
	Err error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dted: %s: tile not found: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("dted: %s: tile not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// Is reports whether target is fs.ErrNotExist, so callers can treat missing
// tiles like missing files.
func (e *NotFoundError) Is(target error) bool {
	return target == fs.ErrNotExist
}
