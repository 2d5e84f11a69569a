package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dted-example",
	Short: "Query DTED terrain tiles",
	Long: `dted-example reads DTED tiles from a directory, an HTTP server, an S3
bucket, or an SQLite database and answers elevation queries.

Settings can also be given as environment variables: DTED_SOURCE,
DTED_LEVELS, DTED_CACHE_SIZE, DTED_LOG_LEVEL, and DTED_LISTEN.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("source", "s", ".", "Tile source: directory, http(s)://url, s3://bucket/prefix, or sqlite:path")
	rootCmd.PersistentFlags().String("levels", "2,1,0", "Comma-separated DTED levels to try, richest first")
	rootCmd.PersistentFlags().Int("cache-size", 0, "Maximum number of cached tiles, 0 for unlimited")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, or error")
}
