package dted

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	_ "github.com/mattn/go-sqlite3" // Register sqlite3 database driver.
)

// SQLiteSchema creates the table read by SQLiteTileSource.
const SQLiteSchema = `CREATE TABLE IF NOT EXISTS dted_tiles (
	tile_id TEXT NOT NULL,
	level INTEGER NOT NULL,
	tile_data BLOB NOT NULL,
	PRIMARY KEY (tile_id, level)
)`

// An SQLiteTileSource reads tiles from the dted_tiles table of an SQLite
// database.
type SQLiteTileSource struct {
	db     *sql.DB
	levels []Level
}

// NewSQLiteTileSource opens the SQLite database at dsn.
func NewSQLiteTileSource(dsn string, options ...TileSourceOption) (*SQLiteTileSource, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	return NewSQLiteTileSourceWithDatabase(db, options...), nil
}

// NewSQLiteTileSourceWithDatabase returns a new SQLiteTileSource reading from
// db.
func NewSQLiteTileSourceWithDatabase(db *sql.DB, options ...TileSourceOption) *SQLiteTileSource {
	o := newTileSourceOptions(options)
	return &SQLiteTileSource{
		db:     db,
		levels: o.levels,
	}
}

// Close closes the underlying database.
func (s *SQLiteTileSource) Close() error {
	return s.db.Close()
}

// FetchTile implements TileSource.
func (s *SQLiteTileSource) FetchTile(ctx context.Context, id TileID) ([]byte, error) {
	return fetchLevels(ctx, id, s.levels, s.fetch)
}

// FetchTileSync implements SyncTileSource.
func (s *SQLiteTileSource) FetchTileSync(id TileID) ([]byte, bool) {
	data, err := s.FetchTile(context.Background(), id)
	return data, err == nil
}

func (s *SQLiteTileSource) fetch(ctx context.Context, id TileID, level Level) ([]byte, error) {
	var data []byte
	row := s.db.QueryRowContext(ctx, "SELECT tile_data FROM dted_tiles WHERE tile_id=? AND level=? LIMIT 1", string(id), int(level))
	switch err := row.Scan(&data); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%s: %w", id.Filename(level), fs.ErrNotExist)
	case err != nil:
		return nil, err
	default:
		return data, nil
	}
}
