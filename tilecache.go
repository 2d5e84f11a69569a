package dted

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// A tileCache caches decoded tiles. Implementations are safe for concurrent
// use.
type tileCache interface {
	Get(id TileID) (*Tile, bool)
	Add(id TileID, tile *Tile)
	Len() int
}

// A mapTileCache is an unbounded tileCache.
type mapTileCache struct {
	mutex sync.RWMutex
	tiles map[TileID]*Tile
}

func newMapTileCache() *mapTileCache {
	return &mapTileCache{
		tiles: make(map[TileID]*Tile),
	}
}

func (c *mapTileCache) Get(id TileID) (*Tile, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	tile, ok := c.tiles[id]
	return tile, ok
}

func (c *mapTileCache) Add(id TileID, tile *Tile) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.tiles[id] = tile
}

func (c *mapTileCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.tiles)
}

// An lruTileCache is a tileCache holding at most a fixed number of tiles.
type lruTileCache struct {
	cache *lru.Cache[TileID, *Tile]
}

func newLRUTileCache(size int) (*lruTileCache, error) {
	cache, err := lru.NewWithEvict(size, func(TileID, *Tile) {
		tileCacheEvictions.Inc()
	})
	if err != nil {
		return nil, err
	}
	return &lruTileCache{
		cache: cache,
	}, nil
}

func (c *lruTileCache) Get(id TileID) (*Tile, bool) {
	return c.cache.Get(id)
}

func (c *lruTileCache) Add(id TileID, tile *Tile) {
	c.cache.Add(id, tile)
}

func (c *lruTileCache) Len() int {
	return c.cache.Len()
}
