package dted

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"path"
)

// A TileSource returns the raw bytes of tiles. FetchTile returns a
// *NotFoundError if the tile does not exist.
type TileSource interface {
	FetchTile(ctx context.Context, id TileID) ([]byte, error)
}

// A SyncTileSource returns the raw bytes of tiles without blocking on
// anything slower than local storage. FetchTileSync returns false if the
// tile does not exist or cannot be read.
type SyncTileSource interface {
	FetchTileSync(id TileID) ([]byte, bool)
}

// A TileSourceFunc is a function that implements TileSource.
type TileSourceFunc func(ctx context.Context, id TileID) ([]byte, error)

// FetchTile implements TileSource.
func (f TileSourceFunc) FetchTile(ctx context.Context, id TileID) ([]byte, error) {
	return f(ctx, id)
}

// A TileSourceOption sets an option on a tile source.
type TileSourceOption func(*tileSourceOptions)

type tileSourceOptions struct {
	levels     []Level
	httpClient *http.Client
}

func newTileSourceOptions(options []TileSourceOption) tileSourceOptions {
	o := tileSourceOptions{
		levels:     DefaultLevels,
		httpClient: http.DefaultClient,
	}
	for _, option := range options {
		option(&o)
	}
	return o
}

// WithLevels sets the levels to try, in order.
func WithLevels(levels ...Level) TileSourceOption {
	return func(o *tileSourceOptions) {
		o.levels = levels
	}
}

// WithHTTPClient sets the HTTP client used by an HTTPTileSource.
func WithHTTPClient(httpClient *http.Client) TileSourceOption {
	return func(o *tileSourceOptions) {
		o.httpClient = httpClient
	}
}

// fetchLevels calls fetch for id at each level in turn and returns the first
// success. Errors matching fs.ErrNotExist move on to the next level, other
// errors are returned immediately. If no level exists it returns a
// *NotFoundError wrapping the last error.
func fetchLevels(ctx context.Context, id TileID, levels []Level, fetch func(context.Context, TileID, Level) ([]byte, error)) ([]byte, error) {
	var lastErr error
	for i, level := range levels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 {
			tileLevelFallbacks.Inc()
		}
		switch data, err := fetch(ctx, id, level); {
		case errors.Is(err, fs.ErrNotExist):
			lastErr = err
		case err != nil:
			return nil, err
		default:
			return data, nil
		}
	}
	return nil, &NotFoundError{ID: id, Err: lastErr}
}

// An FSTileSource reads tiles from a filesystem, with tile IDs as paths
// relative to its root, for example "e008/n53.dt0".
type FSTileSource struct {
	fsys   fs.FS
	levels []Level
}

// NewFSTileSource returns a new FSTileSource reading from fsys.
func NewFSTileSource(fsys fs.FS, options ...TileSourceOption) *FSTileSource {
	o := newTileSourceOptions(options)
	return &FSTileSource{
		fsys:   fsys,
		levels: o.levels,
	}
}

// FetchTile implements TileSource.
func (s *FSTileSource) FetchTile(ctx context.Context, id TileID) ([]byte, error) {
	return fetchLevels(ctx, id, s.levels, func(_ context.Context, id TileID, level Level) ([]byte, error) {
		return fs.ReadFile(s.fsys, path.Clean(id.Filename(level)))
	})
}

// FetchTileSync implements SyncTileSource.
func (s *FSTileSource) FetchTileSync(id TileID) ([]byte, bool) {
	data, err := s.FetchTile(context.Background(), id)
	return data, err == nil
}

// A MemTileSource serves tiles from memory, keyed by filename, for example
// "e008/n53.dt0".
type MemTileSource struct {
	files  map[string][]byte
	levels []Level
}

// NewMemTileSource returns a new MemTileSource serving files. files must not
// be modified afterwards.
func NewMemTileSource(files map[string][]byte, options ...TileSourceOption) *MemTileSource {
	o := newTileSourceOptions(options)
	return &MemTileSource{
		files:  files,
		levels: o.levels,
	}
}

// FetchTile implements TileSource.
func (s *MemTileSource) FetchTile(ctx context.Context, id TileID) ([]byte, error) {
	return fetchLevels(ctx, id, s.levels, func(_ context.Context, id TileID, level Level) ([]byte, error) {
		filename := id.Filename(level)
		data, ok := s.files[filename]
		if !ok {
			return nil, &fs.PathError{Op: "open", Path: filename, Err: fs.ErrNotExist}
		}
		return data, nil
	})
}

// FetchTileSync implements SyncTileSource.
func (s *MemTileSource) FetchTileSync(id TileID) ([]byte, bool) {
	data, err := s.FetchTile(context.Background(), id)
	return data, err == nil
}
