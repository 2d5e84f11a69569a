package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twpayne/go-dted"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print information about the tile containing a location",
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		if err := validateLatLon(lat, lon); err != nil {
			return err
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

		tile, err := terrain.TileAt(cmd.Context(), lat, lon)
		if err != nil {
			return err
		}
		cellData := tile.CellData()
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Tile: %s\n", dted.TileName(lat, lon))
		fmt.Fprintf(w, "Origin: %.6f, %.6f\n", cellData.LatOrigin, cellData.LonOrigin)
		fmt.Fprintf(w, "Corner: %.6f, %.6f\n", cellData.LatCorner, cellData.LonCorner)
		fmt.Fprintf(w, "Interval: %.2f\" x %.2f\"\n", cellData.LatDelta*3600, cellData.LonDelta*3600)
		fmt.Fprintf(w, "Lines: %d x %d\n", cellData.NumLatLines, cellData.NumLonLines)
		fmt.Fprintf(w, "Altitude: %d to %d meters\n", cellData.MinAltitude, cellData.MaxAltitude)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().Float64("lat", 0, "Latitude (required)")
	infoCmd.Flags().Float64("lon", 0, "Longitude (required)")
	_ = infoCmd.MarkFlagRequired("lat")
	_ = infoCmd.MarkFlagRequired("lon")
}
