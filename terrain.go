package dted

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var (
	tileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dted_tile_cache_hits_total",
		Help: "The total number of hits on the tile cache",
	})
	tileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dted_tile_cache_misses_total",
		Help: "The total number of misses on the tile cache",
	})
	tileCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dted_tile_cache_evictions_total",
		Help: "The total number of evictions from the tile cache",
	})
	tileFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dted_tile_fetch_errors_total",
		Help: "The total number of failed tile fetches",
	})
	tileDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dted_tile_decode_errors_total",
		Help: "The total number of fetched tiles that could not be decoded",
	})
	tileLevelFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dted_tile_level_fallbacks_total",
		Help: "The total number of attempts to fetch a tile at a coarser level",
	})
)

type fetchFunc func(ctx context.Context, id TileID) ([]byte, error)

// A Terrain returns altitudes from tiles fetched from a TileSource. Decoded
// tiles are cached for the lifetime of the Terrain. Failed fetches are not
// cached, so later requests for the same tile fetch it again.
//
// Without WithSingleFlight, concurrent requests for the same uncached tile
// each fetch and decode it and the last one to finish is cached.
type Terrain struct {
	fetch            fetchFunc
	cache            tileCache
	cacheSize        int
	singleFlight     bool
	group            singleflight.Group
	concurrencyLimit int
	logger           *slog.Logger
}

// A TerrainOption sets an option on a Terrain.
type TerrainOption func(*Terrain)

// A TileResult is the result of an asynchronous tile request.
type TileResult struct {
	Tile *Tile
	Err  error
}

// NewTerrain returns a new Terrain that fetches tiles from source.
func NewTerrain(source TileSource, options ...TerrainOption) (*Terrain, error) {
	return newTerrain(source.FetchTile, options)
}

func newTerrain(fetch fetchFunc, options []TerrainOption) (*Terrain, error) {
	t := &Terrain{
		fetch:            fetch,
		concurrencyLimit: 4,
		logger:           slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(t)
	}

	if t.cacheSize > 0 {
		cache, err := newLRUTileCache(t.cacheSize)
		if err != nil {
			return nil, err
		}
		t.cache = cache
	} else {
		t.cache = newMapTileCache()
	}
	return t, nil
}

// WithCacheSize limits the number of cached tiles, evicting the least
// recently used. The default, zero, is unlimited.
func WithCacheSize(cacheSize int) TerrainOption {
	return func(t *Terrain) {
		t.cacheSize = cacheSize
	}
}

// WithConcurrencyLimit sets the maximum number of tiles fetched concurrently
// by AltitudesAt.
func WithConcurrencyLimit(concurrencyLimit int) TerrainOption {
	return func(t *Terrain) {
		t.concurrencyLimit = concurrencyLimit
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) TerrainOption {
	return func(t *Terrain) {
		t.logger = logger
	}
}

// WithSingleFlight makes concurrent requests for the same uncached tile wait
// for a single fetch. The fetch uses the context of the first request.
func WithSingleFlight() TerrainOption {
	return func(t *Terrain) {
		t.singleFlight = true
	}
}

// Len returns the number of cached tiles.
func (t *Terrain) Len() int {
	return t.cache.Len()
}

// TileAt returns the tile containing lat, lon.
func (t *Terrain) TileAt(ctx context.Context, lat, lon float64) (*Tile, error) {
	return t.getTileCached(ctx, TileName(lat, lon))
}

// TileAtAsync returns a channel that receives the tile containing lat, lon.
// The result is always delivered from another goroutine, even when the tile
// is already cached.
func (t *Terrain) TileAtAsync(ctx context.Context, lat, lon float64) <-chan TileResult {
	resultCh := make(chan TileResult, 1)
	go func() {
		defer close(resultCh)
		tile, err := t.TileAt(ctx, lat, lon)
		resultCh <- TileResult{Tile: tile, Err: err}
	}()
	return resultCh
}

// AltitudeAt returns the altitude in meters at lat, lon. Errors from fetching
// the tile, decoding it, and locating lat, lon in it are returned unchanged.
func (t *Terrain) AltitudeAt(ctx context.Context, lat, lon float64) (int16, error) {
	tile, err := t.TileAt(ctx, lat, lon)
	if err != nil {
		return 0, err
	}
	return tile.AltitudeAt(lat, lon)
}

// InterpolatedAltitudeAt returns the bilinearly interpolated altitude at lat,
// lon. If the tile cannot be fetched it returns zero and no error. Decoding
// errors and context errors are returned.
func (t *Terrain) InterpolatedAltitudeAt(ctx context.Context, lat, lon float64) (float64, error) {
	tile, err := t.TileAt(ctx, lat, lon)
	var formatErr *FormatError
	switch {
	case err == nil:
		return tile.InterpolatedAltitudeAt(lat, lon), nil
	case errors.As(err, &formatErr), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return 0, err
	default:
		t.logger.DebugContext(ctx, "no tile, using zero altitude", "lat", lat, "lon", lon, "err", err)
		return 0, nil
	}
}

// AltitudesAt returns the altitudes at points. Points are grouped by tile and
// distinct tiles are fetched concurrently. Points in tiles that do not exist
// have altitude NaN.
func (t *Terrain) AltitudesAt(ctx context.Context, points []orb.Point, interpolate bool) ([]float64, error) {
	altitudes := make([]float64, len(points))

	// Group indexes by tile ID.
	indexesByTileID := make(map[TileID][]int)
	for index, point := range points {
		id := TileName(point.Lat(), point.Lon())
		indexesByTileID[id] = append(indexesByTileID[id], index)
	}

	// Populate altitudes one tile at a time. Each tile writes only its own
	// indexes.
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(t.concurrencyLimit, 1))
	for id, indexes := range indexesByTileID {
		g.Go(func() error {
			tile, err := t.getTileCached(ctx, id)
			var notFoundErr *NotFoundError
			switch {
			case errors.As(err, &notFoundErr):
				for _, index := range indexes {
					altitudes[index] = math.NaN()
				}
				return nil
			case err != nil:
				return err
			}
			for _, index := range indexes {
				lat, lon := points[index].Lat(), points[index].Lon()
				if interpolate {
					altitudes[index] = tile.InterpolatedAltitudeAt(lat, lon)
				} else if altitude, err := tile.AltitudeAt(lat, lon); err == nil {
					altitudes[index] = float64(altitude)
				} else {
					altitudes[index] = math.NaN()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return altitudes, nil
}

// getTileCached returns the tile with the given ID, using the cache if
// possible.
func (t *Terrain) getTileCached(ctx context.Context, id TileID) (*Tile, error) {
	if tile, ok := t.cache.Get(id); ok {
		tileCacheHits.Inc()
		return tile, nil
	}

	tileCacheMisses.Inc()

	if !t.singleFlight {
		return t.getTile(ctx, id)
	}

	result, err, _ := t.group.Do(string(id), func() (any, error) {
		if tile, ok := t.cache.Get(id); ok {
			return tile, nil
		}
		return t.getTile(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Tile), nil
}

// getTile fetches, decodes, and caches the tile with the given ID.
func (t *Terrain) getTile(ctx context.Context, id TileID) (*Tile, error) {
	t.logger.DebugContext(ctx, "fetching tile", "id", id)
	data, err := t.fetch(ctx, id)
	if err != nil {
		tileFetchErrors.Inc()
		t.logger.DebugContext(ctx, "fetching tile failed", "id", id, "err", err)
		return nil, err
	}

	tile, err := ParseTile(data)
	if err != nil {
		tileDecodeErrors.Inc()
		t.logger.WarnContext(ctx, "decoding tile failed", "id", id, "err", err)
		return nil, err
	}

	t.cache.Add(id, tile)
	return tile, nil
}

// A SyncTerrain is a Terrain backed by a SyncTileSource.
type SyncTerrain struct {
	terrain *Terrain
}

// NewSyncTerrain returns a new SyncTerrain that reads tiles from source. A
// tile that source does not return is reported as a *NotFoundError.
func NewSyncTerrain(source SyncTileSource, options ...TerrainOption) (*SyncTerrain, error) {
	terrain, err := newTerrain(func(_ context.Context, id TileID) ([]byte, error) {
		data, ok := source.FetchTileSync(id)
		if !ok {
			return nil, &NotFoundError{ID: id}
		}
		return data, nil
	}, options)
	if err != nil {
		return nil, err
	}
	return &SyncTerrain{
		terrain: terrain,
	}, nil
}

// Len returns the number of cached tiles.
func (s *SyncTerrain) Len() int {
	return s.terrain.Len()
}

// TileAt returns the tile containing lat, lon.
func (s *SyncTerrain) TileAt(lat, lon float64) (*Tile, error) {
	return s.terrain.TileAt(context.Background(), lat, lon)
}

// AltitudeAt returns the altitude in meters at lat, lon.
func (s *SyncTerrain) AltitudeAt(lat, lon float64) (int16, error) {
	return s.terrain.AltitudeAt(context.Background(), lat, lon)
}

// InterpolatedAltitudeAt returns the bilinearly interpolated altitude at lat,
// lon, or zero if there is no tile.
func (s *SyncTerrain) InterpolatedAltitudeAt(lat, lon float64) (float64, error) {
	return s.terrain.InterpolatedAltitudeAt(context.Background(), lat, lon)
}
