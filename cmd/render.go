package cmd

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"maplayer/layer"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a map extract to a PNG",
	Long: `Render a bounding box or a centered view to a PNG file.

Bounding box mode fits the longitude span to the requested pixel width;
centered mode renders around a point at a given (possibly fractional)
zoom level.

Examples:
  maplayer render --bbox -0.2275,51.4072,-0.0275,51.6072 -o london.png
  maplayer render --lat 35.6824 --lon 139.7531 --zoom 10.5 --width 640 --height 480 -o tokyo.png`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	renderCmd.Flags().String("bbox", "", "bounding box as 'minLon,minLat,maxLon,maxLat'")
	renderCmd.Flags().Float64("lat", 0, "center latitude (centered mode)")
	renderCmd.Flags().Float64("lon", 0, "center longitude (centered mode)")
	renderCmd.Flags().Float64("zoom", 0, "zoom level (centered mode, may be fractional)")
	renderCmd.Flags().Int("width", 800, "image width in pixels")
	renderCmd.Flags().Int("height", 600, "image height in pixels")
	renderCmd.Flags().Bool("borders", false, "draw per-tile debug borders and indices")
	renderCmd.Flags().Float64("opacity", 1.0, "tile layer opacity (0..1)")
	renderCmd.Flags().Duration("timeout", 60*time.Second, "how long to wait for tiles")

	viper.BindPFlag("render.output", renderCmd.Flags().Lookup("output"))
	viper.BindPFlag("render.bbox", renderCmd.Flags().Lookup("bbox"))
	viper.BindPFlag("render.lat", renderCmd.Flags().Lookup("lat"))
	viper.BindPFlag("render.lon", renderCmd.Flags().Lookup("lon"))
	viper.BindPFlag("render.zoom", renderCmd.Flags().Lookup("zoom"))
	viper.BindPFlag("render.width", renderCmd.Flags().Lookup("width"))
	viper.BindPFlag("render.height", renderCmd.Flags().Lookup("height"))
	viper.BindPFlag("render.borders", renderCmd.Flags().Lookup("borders"))
	viper.BindPFlag("render.opacity", renderCmd.Flags().Lookup("opacity"))
	viper.BindPFlag("render.timeout", renderCmd.Flags().Lookup("timeout"))
}

func runRender(cmd *cobra.Command, args []string) error {
	width := viper.GetInt("render.width")
	height := viper.GetInt("render.height")
	if width <= 0 || height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}

	src, cleanup, err := newSource()
	if err != nil {
		return err
	}
	defer cleanup()

	rend := layer.New(src, viper.GetFloat64("render.opacity"))
	defer rend.Close()
	if viper.GetBool("render.borders") {
		rend.SetDrawTileBorders(true)
	}

	var view *layer.CenteredView
	switch {
	case viper.GetString("render.bbox") != "":
		bound, err := parseBBoxFlag(viper.GetString("render.bbox"))
		if err != nil {
			return err
		}
		view = layer.NewBoundsView(src.Scheme(), bound, width, height)
	case viper.GetFloat64("render.zoom") != 0:
		view = &layer.CenteredView{
			Scheme: src.Scheme(),
			Center: orb.Point{viper.GetFloat64("render.lon"), viper.GetFloat64("render.lat")},
			Zoom:   viper.GetFloat64("render.zoom"),
			Width:  width,
			Height: height,
		}
	default:
		return fmt.Errorf("either --bbox or --lat/--lon/--zoom is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("render.timeout"))
	defer cancel()

	img, err := layer.Snapshot(ctx, rend, view, width, height)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: timed out with %d tiles still loading\n", src.PendingCount())
	}

	output := viper.GetString("render.output")
	out := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
		fmt.Fprintf(cmd.ErrOrStderr(), "Output PNG: %s\n", output)
	}

	return png.Encode(out, img)
}

func parseBBoxFlag(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox must be in format 'minLon,minLat,maxLon,maxLat'")
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid bbox component %q: %w", p, err)
		}
		vals[i] = v
	}
	b := orb.Bound{
		Min: orb.Point{vals[0], vals[1]},
		Max: orb.Point{vals[2], vals[3]},
	}
	if b.Min.Lon() >= b.Max.Lon() || b.Min.Lat() >= b.Max.Lat() {
		return orb.Bound{}, fmt.Errorf("bbox min corner must be south-west of max corner")
	}
	return b, nil
}
