package dted

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
)

// An HTTPTileSource fetches tiles over HTTP from {baseURL}/{filename}.
type HTTPTileSource struct {
	baseURL    string
	httpClient *http.Client
	levels     []Level
}

// NewHTTPTileSource returns a new HTTPTileSource.
func NewHTTPTileSource(baseURL string, options ...TileSourceOption) (*HTTPTileSource, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, err
	}
	o := newTileSourceOptions(options)
	return &HTTPTileSource{
		baseURL:    baseURL,
		httpClient: o.httpClient,
		levels:     o.levels,
	}, nil
}

// FetchTile implements TileSource. A 404 response counts as a missing level.
func (s *HTTPTileSource) FetchTile(ctx context.Context, id TileID) ([]byte, error) {
	return fetchLevels(ctx, id, s.levels, s.fetch)
}

func (s *HTTPTileSource) fetch(ctx context.Context, id TileID, level Level) ([]byte, error) {
	tileURL, err := url.JoinPath(s.baseURL, id.Filename(level))
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", tileURL, fs.ErrNotExist)
	default:
		return nil, fmt.Errorf("%s: %s", tileURL, resp.Status)
	}
}
