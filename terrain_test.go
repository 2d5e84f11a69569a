package dted_test

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/paulmach/orb"

	"github.com/twpayne/go-dted"
)

// A countingTileSource counts the fetches of each tile.
type countingTileSource struct {
	source dted.TileSource
	mutex  sync.Mutex
	counts map[dted.TileID]int
}

func newCountingTileSource(source dted.TileSource) *countingTileSource {
	return &countingTileSource{
		source: source,
		counts: make(map[dted.TileID]int),
	}
}

func (s *countingTileSource) FetchTile(ctx context.Context, id dted.TileID) ([]byte, error) {
	s.mutex.Lock()
	s.counts[id]++
	s.mutex.Unlock()
	return s.source.FetchTile(ctx, id)
}

func (s *countingTileSource) count(id dted.TileID) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.counts[id]
}

func newTestTerrain(t *testing.T, files map[string][]byte, options ...dted.TerrainOption) (*dted.Terrain, *countingTileSource) {
	t.Helper()
	source := newCountingTileSource(dted.NewMemTileSource(files))
	terrain, err := dted.NewTerrain(source, options...)
	assert.NoError(t, err)
	return terrain, source
}

func TestTerrain_TileAt(t *testing.T) {
	terrain, source := newTestTerrain(t, map[string][]byte{
		"e008/n53.dt0": fixtureTile.bytes(),
	})

	tile1, err := terrain.TileAt(t.Context(), 53.5, 8.125)
	assert.NoError(t, err)
	tile2, err := terrain.TileAt(t.Context(), 53.9, 8.9)
	assert.NoError(t, err)
	assert.True(t, tile1 == tile2)
	assert.Equal(t, 1, source.count("e008/n53"))
	assert.Equal(t, 1, terrain.Len())
}

func TestTerrain_TileAt_LevelFallback(t *testing.T) {
	level1 := smallTile.bytes()
	terrain, err := dted.NewTerrain(dted.NewMemTileSource(map[string][]byte{
		"e008/n53.dt0": fixtureTile.bytes(),
		"e008/n53.dt1": level1,
	}))
	assert.NoError(t, err)

	tile, err := terrain.TileAt(t.Context(), 53.5, 8.5)
	assert.NoError(t, err)
	assert.Equal(t, 3, tile.CellData().NumLatLines)
}

func TestTerrain_TileAt_NotFound(t *testing.T) {
	terrain, source := newTestTerrain(t, map[string][]byte{
		"e008/n53.dt0": fixtureTile.bytes(),
	})

	for i := 1; i <= 2; i++ {
		tile, err := terrain.TileAt(t.Context(), 52.5, 8.125)
		assert.Zero(t, tile)
		var notFoundErr *dted.NotFoundError
		assert.True(t, errors.As(err, &notFoundErr))
		assert.Equal(t, dted.TileID("e008/n52"), notFoundErr.ID)
		assert.IsError(t, err, fs.ErrNotExist)
		assert.Equal(t, i, source.count("e008/n52"))
	}
	assert.Equal(t, 0, terrain.Len())
}

func TestTerrain_TileAt_FormatError(t *testing.T) {
	terrain, source := newTestTerrain(t, map[string][]byte{
		"e008/n53.dt0": []byte("not a DTED tile"),
	})

	for i := 1; i <= 2; i++ {
		_, err := terrain.TileAt(t.Context(), 53.5, 8.5)
		var formatErr *dted.FormatError
		assert.True(t, errors.As(err, &formatErr))
		assert.Equal(t, i, source.count("e008/n53"))
	}

	_, err := terrain.InterpolatedAltitudeAt(t.Context(), 53.5, 8.5)
	var formatErr *dted.FormatError
	assert.True(t, errors.As(err, &formatErr))
	assert.Equal(t, 0, terrain.Len())
}

func TestTerrain_AltitudeAt(t *testing.T) {
	terrain, _ := newTestTerrain(t, map[string][]byte{
		"e008/n53.dt0": fixtureTile.bytes(),
		"e009/n53.dt2": smallTile.bytes(),
	})

	altitude, err := terrain.AltitudeAt(t.Context(), 53.5, 8.5)
	assert.NoError(t, err)
	assert.Equal(t, int16(1), altitude)

	_, err = terrain.AltitudeAt(t.Context(), 53.5, 7.5)
	var notFoundErr *dted.NotFoundError
	assert.True(t, errors.As(err, &notFoundErr))

	// The e009/n53 tile contains smallTile, which only covers 0.2 degrees
	// from its origin at 53N 8E.
	_, err = terrain.AltitudeAt(t.Context(), 53.5, 9.5)
	var indexErr *dted.IndexError
	assert.True(t, errors.As(err, &indexErr))
}

func TestTerrain_InterpolatedAltitudeAt(t *testing.T) {
	terrain, _ := newTestTerrain(t, map[string][]byte{
		"e008/n53.dt0": fixtureTile.bytes(),
	})

	altitude, err := terrain.AltitudeAt(t.Context(), 53.5, 8.5)
	assert.NoError(t, err)
	assert.Equal(t, int16(1), altitude)

	actual, err := terrain.InterpolatedAltitudeAt(t.Context(), 53.50415, 8.55833)
	assert.NoError(t, err)
	assert.Equal(t, 1.5, math.Round(100*actual)/100)

	origin, err := terrain.AltitudeAt(t.Context(), 53, 8)
	assert.NoError(t, err)
	actual, err = terrain.InterpolatedAltitudeAt(t.Context(), 53, 8)
	assert.NoError(t, err)
	assert.Equal(t, float64(origin), actual)

	actual, err = terrain.InterpolatedAltitudeAt(t.Context(), 52.5, 8.125)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, actual)
}

func TestTerrain_InterpolatedAltitudeAt_Canceled(t *testing.T) {
	terrain, _ := newTestTerrain(t, map[string][]byte{})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := terrain.InterpolatedAltitudeAt(ctx, 53.5, 8.5)
	assert.IsError(t, err, context.Canceled)
}

func TestTerrain_TileAtAsync(t *testing.T) {
	release := make(chan struct{})
	terrain, err := dted.NewTerrain(dted.TileSourceFunc(func(ctx context.Context, id dted.TileID) ([]byte, error) {
		<-release
		return fixtureTile.bytes(), nil
	}))
	assert.NoError(t, err)

	// The request does not complete until the fetch is released, so
	// TileAtAsync must return before the result is available.
	resultCh := terrain.TileAtAsync(t.Context(), 53.5, 8.5)
	select {
	case <-resultCh:
		t.Fatal("result delivered before fetch completed")
	default:
	}
	close(release)
	result := <-resultCh
	assert.NoError(t, result.Err)
	assert.Equal(t, 61, result.Tile.CellData().NumLonLines)

	// Cache hits are also delivered on the channel.
	result = <-terrain.TileAtAsync(t.Context(), 53.25, 8.25)
	assert.NoError(t, result.Err)
	assert.True(t, result.Tile != nil)
	_, ok := <-resultCh
	assert.False(t, ok)
}

func TestTerrain_SingleFlight(t *testing.T) {
	terrain, source := newTestTerrain(t, map[string][]byte{
		"e008/n53.dt0": fixtureTile.bytes(),
	}, dted.WithSingleFlight())

	var wg sync.WaitGroup
	tiles := make([]*dted.Tile, 16)
	errs := make([]error, len(tiles))
	for i := range tiles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tiles[i], errs[i] = terrain.TileAt(t.Context(), 53.5, 8.5)
		}()
	}
	wg.Wait()

	for i := range tiles {
		assert.NoError(t, errs[i])
		assert.True(t, tiles[i] == tiles[0])
	}
	assert.Equal(t, 1, source.count("e008/n53"))
}

func TestTerrain_Concurrent(t *testing.T) {
	terrain, _ := newTestTerrain(t, map[string][]byte{
		"e008/n53.dt0": fixtureTile.bytes(),
	})

	var wg sync.WaitGroup
	altitudes := make([]int16, 16)
	errs := make([]error, len(altitudes))
	for i := range altitudes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			altitudes[i], errs[i] = terrain.AltitudeAt(t.Context(), 53.5, 8.5)
		}()
	}
	wg.Wait()

	for i := range altitudes {
		assert.NoError(t, errs[i])
		assert.Equal(t, int16(1), altitudes[i])
	}
	assert.Equal(t, 1, terrain.Len())
}

func TestTerrain_CacheSize(t *testing.T) {
	e009n53 := smallTile
	e009n53.lonOrigin = "0090000E"
	terrain, source := newTestTerrain(t, map[string][]byte{
		"e008/n53.dt0": fixtureTile.bytes(),
		"e009/n53.dt0": e009n53.bytes(),
	}, dted.WithCacheSize(1))

	for _, lon := range []float64{8.5, 9.1, 8.5, 9.1} {
		_, err := terrain.TileAt(t.Context(), 53.1, lon)
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, source.count("e008/n53"))
	assert.Equal(t, 2, source.count("e009/n53"))
	assert.Equal(t, 1, terrain.Len())
}

func TestTerrain_AltitudesAt(t *testing.T) {
	terrain, source := newTestTerrain(t, map[string][]byte{
		"e008/n53.dt0": fixtureTile.bytes(),
	})

	points := []orb.Point{
		{8.5, 53.5},
		{8.55833, 53.50415},
		{10.5, 53.5},
		{8, 53},
	}

	actual, err := terrain.AltitudesAt(t.Context(), points, false)
	assert.NoError(t, err)
	assert.Equal(t, 4, len(actual))
	assert.Equal(t, 1.0, actual[0])
	assert.Equal(t, 1.0, actual[1])
	assert.True(t, math.IsNaN(actual[2]))
	assert.Equal(t, -10.0, actual[3])

	actual, err = terrain.AltitudesAt(t.Context(), points, true)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, actual[0])
	assert.Equal(t, 1.5, math.Round(100*actual[1])/100)
	assert.True(t, math.IsNaN(actual[2]))
	assert.Equal(t, -10.0, actual[3])

	assert.Equal(t, 1, source.count("e008/n53"))
	assert.Equal(t, 2, source.count("e010/n53"))
}

func TestTerrain_AltitudesAt_Error(t *testing.T) {
	fetchErr := errors.New("fetch failed")
	terrain, err := dted.NewTerrain(dted.TileSourceFunc(func(ctx context.Context, id dted.TileID) ([]byte, error) {
		return nil, fetchErr
	}))
	assert.NoError(t, err)
	_, err = terrain.AltitudesAt(t.Context(), []orb.Point{{8.5, 53.5}}, false)
	assert.IsError(t, err, fetchErr)
}

func TestTerrain_AltitudesAt_ConcurrencyLimit(t *testing.T) {
	const concurrencyLimit = 2
	points := make([]orb.Point, 6)
	for i := range points {
		points[i] = orb.Point{float64(i) + 0.5, 53.5}
	}

	var inFlight, maxInFlight atomic.Int64
	started := make(chan struct{}, len(points))
	release := make(chan struct{})
	source := dted.TileSourceFunc(func(ctx context.Context, id dted.TileID) ([]byte, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		started <- struct{}{}
		select {
		case <-release:
			return nil, &dted.NotFoundError{ID: id}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	terrain, err := dted.NewTerrain(source, dted.WithConcurrencyLimit(concurrencyLimit))
	assert.NoError(t, err)

	// Release fetches only once the limit is reached.
	go func() {
		for range concurrencyLimit {
			<-started
		}
		for range points {
			release <- struct{}{}
		}
	}()

	actual, err := terrain.AltitudesAt(t.Context(), points, false)
	assert.NoError(t, err)
	for _, altitude := range actual {
		assert.True(t, math.IsNaN(altitude))
	}
	assert.Equal(t, int64(concurrencyLimit), maxInFlight.Load())
	assert.Equal(t, int64(0), inFlight.Load())
}

func TestSyncTerrain(t *testing.T) {
	if _, err := os.Stat("testdata/dted/e008/n53.dt0"); errors.Is(err, fs.ErrNotExist) {
		t.Skip(err)
	}

	terrain, err := dted.NewSyncTerrain(dted.NewFSTileSource(os.DirFS("testdata/dted")))
	assert.NoError(t, err)

	tile, err := terrain.TileAt(53.5, 8.125)
	assert.NoError(t, err)
	assert.Equal(t, int16(39), tile.MaxAltitude())

	altitude, err := terrain.AltitudeAt(53.5, 8.5)
	assert.NoError(t, err)
	assert.Equal(t, int16(1), altitude)

	actual, err := terrain.InterpolatedAltitudeAt(53.50415, 8.55833)
	assert.NoError(t, err)
	assert.Equal(t, 1.5, math.Round(100*actual)/100)

	_, err = terrain.AltitudeAt(52.5, 8.125)
	var notFoundErr *dted.NotFoundError
	assert.True(t, errors.As(err, &notFoundErr))
	assert.IsError(t, err, fs.ErrNotExist)

	actual, err = terrain.InterpolatedAltitudeAt(52.5, 8.125)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, actual)

	assert.Equal(t, 1, terrain.Len())
}
