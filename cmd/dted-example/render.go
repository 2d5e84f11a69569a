package main

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/image/draw"

	"github.com/twpayne/go-dted"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the tile containing a location as a grayscale PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		output, _ := cmd.Flags().GetString("output")
		size, _ := cmd.Flags().GetInt("size")
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

		dst := image.NewGray(image.Rect(0, 0, size, size))
		src := tileImage(tile)
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

		file, err := os.Create(output)
		if err != nil {
			return err
		}
		if err := png.Encode(file, dst); err != nil {
			_ = file.Close()
			return err
		}
		return file.Close()
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().Float64("lat", 0, "Latitude (required)")
	renderCmd.Flags().Float64("lon", 0, "Longitude (required)")
	renderCmd.Flags().StringP("output", "o", "tile.png", "Output PNG file")
	renderCmd.Flags().Int("size", 512, "Output width and height in pixels")
	_ = renderCmd.MarkFlagRequired("lat")
	_ = renderCmd.MarkFlagRequired("lon")
}

// tileImage returns tile as a grayscale image, north up, scaled from the
// tile's lowest to highest altitude.
func tileImage(tile *dted.Tile) *image.Gray {
	cellData := tile.CellData()
	img := image.NewGray(image.Rect(0, 0, cellData.NumLonLines, cellData.NumLatLines))
	altitudeRange := max(float64(cellData.MaxAltitude)-float64(cellData.MinAltitude), 1)
	for y := range cellData.NumLatLines {
		latIndex := cellData.NumLatLines - 1 - y
		for x := range cellData.NumLonLines {
			altitude := float64(tile.AltitudeAtIndex(latIndex, x))
			value := 255 * (altitude - float64(cellData.MinAltitude)) / altitudeRange
			img.SetGray(x, y, color.Gray{Y: uint8(value)})
		}
	}
	return img
}
