package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"
)

var altitudeCmd = &cobra.Command{
	Use:   "altitude",
	Short: "Print the terrain altitude at a location",
	Long: `Print the terrain altitude in meters at a location.

Examples:
  dted-example altitude --lat 53.5 --lon 8.5
  dted-example altitude --lat 53.50415 --lon 8.55833 --interpolate --source dted0/`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		interpolate, _ := cmd.Flags().GetBool("interpolate")
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

		if interpolate {
			altitude, err := terrain.InterpolatedAltitudeAt(cmd.Context(), lat, lon)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", altitude)
			return nil
		}

		altitude, err := terrain.AltitudeAt(cmd.Context(), lat, lon)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), altitude)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(altitudeCmd)

	altitudeCmd.Flags().Float64("lat", 0, "Latitude (required)")
	altitudeCmd.Flags().Float64("lon", 0, "Longitude (required)")
	altitudeCmd.Flags().BoolP("interpolate", "i", false, "Interpolate between samples")
	_ = altitudeCmd.MarkFlagRequired("lat")
	_ = altitudeCmd.MarkFlagRequired("lon")
}

func validateLatLon(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%g: latitude must be between -90 and 90", lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("%g: longitude must be between -180 and 180", lon)
	}
	return nil
}
