package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/spf13/cobra"

	"github.com/twpayne/go-dted"
)

// Config holds the command configuration.
type Config struct {
	Source    string
	Levels    []dted.Level
	CacheSize int
	LogLevel  slog.Level
	Listen    string
}

// LoadConfig loads configuration from flags, then environment variables,
// then defaults.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	cfg := Config{
		Source:    getConfigString(cmd, "source", "DTED_SOURCE", "."),
		CacheSize: getConfigInt(cmd, "cache-size", "DTED_CACHE_SIZE", 0),
		Listen:    getConfigString(cmd, "listen", "DTED_LISTEN", ":8080"),
	}

	levels, err := parseLevels(getConfigString(cmd, "levels", "DTED_LEVELS", "2,1,0"))
	if err != nil {
		return Config{}, err
	}
	cfg.Levels = levels

	if err := cfg.LogLevel.UnmarshalText([]byte(getConfigString(cmd, "log-level", "DTED_LOG_LEVEL", "info"))); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Logger returns a logger writing to stderr.
func (c *Config) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: c.LogLevel,
	}))
}

// NewTerrain returns a new terrain reading from the configured source and a
// function to release the source.
func (c *Config) NewTerrain(logger *slog.Logger) (*dted.Terrain, func() error, error) {
	source, closeFunc, err := c.newTileSource()
	if err != nil {
		return nil, nil, err
	}
	terrain, err := dted.NewTerrain(source,
		dted.WithCacheSize(c.CacheSize),
		dted.WithLogger(logger),
		dted.WithSingleFlight(),
	)
	if err != nil {
		_ = closeFunc()
		return nil, nil, err
	}
	return terrain, closeFunc, nil
}

func (c *Config) newTileSource() (dted.TileSource, func() error, error) {
	noClose := func() error { return nil }
	levels := dted.WithLevels(c.Levels...)
	switch {
	case strings.HasPrefix(c.Source, "http://"), strings.HasPrefix(c.Source, "https://"):
		source, err := dted.NewHTTPTileSource(c.Source, levels, dted.WithHTTPClient(&http.Client{
			Timeout: 30 * time.Second,
		}))
		if err != nil {
			return nil, nil, err
		}
		return source, noClose, nil
	case strings.HasPrefix(c.Source, "s3://"):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(c.Source, "s3://"), "/")
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		sess, err := session.NewSessionWithOptions(session.Options{
			SharedConfigState: session.SharedConfigEnable,
		})
		if err != nil {
			return nil, nil, err
		}
		return dted.NewS3TileSource(s3manager.NewDownloader(sess), bucket, prefix, levels), noClose, nil
	case strings.HasPrefix(c.Source, "sqlite:"):
		source, err := dted.NewSQLiteTileSource(strings.TrimPrefix(c.Source, "sqlite:"), levels)
		if err != nil {
			return nil, nil, err
		}
		return source, source.Close, nil
	default:
		return dted.NewFSTileSource(os.DirFS(c.Source), levels), noClose, nil
	}
}

func parseLevels(s string) ([]dted.Level, error) {
	var levels []dted.Level
	for _, field := range strings.Split(s, ",") {
		level, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || level < 0 || level > 2 {
			return nil, fmt.Errorf("%q: invalid level", field)
		}
		levels = append(levels, dted.Level(level))
	}
	return levels, nil
}

// getConfigString gets a string value from flag, then env, then default.
func getConfigString(cmd *cobra.Command, flagName, envName, defaultValue string) string {
	if flag := cmd.Flags().Lookup(flagName); flag != nil && flag.Changed {
		return flag.Value.String()
	}
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return defaultValue
}

// getConfigInt gets an int value from flag, then env, then default.
func getConfigInt(cmd *cobra.Command, flagName, envName string, defaultValue int) int {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetInt(flagName)
		return val
	}
	if v := os.Getenv(envName); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
