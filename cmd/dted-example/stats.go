package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/twpayne/go-dted"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print altitude statistics for the tiles in a bounding box",
	Long: `Load every tile overlapping a bounding box and print the lowest and highest
altitudes and the tiles that are missing.

Example:
  dted-example stats --min-lat 53 --min-lon 8 --max-lat 55 --max-lon 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		minLat, _ := cmd.Flags().GetFloat64("min-lat")
		minLon, _ := cmd.Flags().GetFloat64("min-lon")
		maxLat, _ := cmd.Flags().GetFloat64("max-lat")
		maxLon, _ := cmd.Flags().GetFloat64("max-lon")
		if err := validateLatLon(minLat, minLon); err != nil {
			return err
		}
		if err := validateLatLon(maxLat, maxLon); err != nil {
			return err
		}
		if minLat >= maxLat || minLon >= maxLon {
			return errors.New("empty bounding box")
		}

		cfg, err := LoadConfig(cmd)
		if err != nil {
			return err
		}
		terrain, closeFunc, err := cfg.NewTerrain(cfg.Logger())
		if err != nil {
			return err
		}
		defer closeFunc()

		var tileCenters [][2]float64
		for lat := math.Floor(minLat); lat < maxLat; lat++ {
			for lon := math.Floor(minLon); lon < maxLon; lon++ {
				tileCenters = append(tileCenters, [2]float64{lat + 0.5, lon + 0.5})
			}
		}

		bar := progressbar.Default(int64(len(tileCenters)), "loading tiles")
		minAltitude, maxAltitude := int16(math.MaxInt16), int16(math.MinInt16)
		var missing []dted.TileID
		for _, center := range tileCenters {
			tile, err := terrain.TileAt(cmd.Context(), center[0], center[1])
			var notFoundErr *dted.NotFoundError
			switch {
			case errors.As(err, &notFoundErr):
				missing = append(missing, notFoundErr.ID)
			case err != nil:
				return err
			default:
				minAltitude = min(minAltitude, tile.MinAltitude())
				maxAltitude = max(maxAltitude, tile.MaxAltitude())
			}
			_ = bar.Add(1)
		}
		_ = bar.Finish()

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Tiles: %d (%d missing)\n", len(tileCenters), len(missing))
		if len(missing) < len(tileCenters) {
			fmt.Fprintf(w, "Altitude: %d to %d meters\n", minAltitude, maxAltitude)
		}
		for _, id := range missing {
			fmt.Fprintf(w, "Missing: %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)

	for _, name := range []string{"min-lat", "min-lon", "max-lat", "max-lon"} {
		statsCmd.Flags().Float64(name, 0, "Bounding box "+name+" (required)")
		_ = statsCmd.MarkFlagRequired(name)
	}
}
