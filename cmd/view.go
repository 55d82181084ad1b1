package cmd

import (
	"fmt"
	"os"

	"gioui.org/app"
	"gioui.org/op"
	"gioui.org/unit"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"maplayer/layer"
	"maplayer/mapview"
	"maplayer/tiles"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Open the interactive map viewer",
	Long: `Open a window showing the tile layer. Drag to pan, scroll to zoom;
zooming is smooth between tile pyramid levels. While real tiles load,
labeled placeholder tiles are shown.`,
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)

	viewCmd.Flags().Float64("lat", 51.507222, "initial center latitude")
	viewCmd.Flags().Float64("lon", -0.1275, "initial center longitude")
	viewCmd.Flags().Float64("zoom", 12, "initial zoom level")
	viewCmd.Flags().Bool("borders", false, "draw per-tile debug borders and indices")

	viper.BindPFlag("view.lat", viewCmd.Flags().Lookup("lat"))
	viper.BindPFlag("view.lon", viewCmd.Flags().Lookup("lon"))
	viper.BindPFlag("view.zoom", viewCmd.Flags().Lookup("zoom"))
	viper.BindPFlag("view.borders", viewCmd.Flags().Lookup("borders"))
}

func runView(cmd *cobra.Command, args []string) error {
	primary := tiles.NewHTTPProvider(viper.GetString("url"), viper.GetString("user-agent"))
	provider := tiles.NewCombinedProvider(primary, tiles.NewLocalTileProvider())
	src := tiles.NewSource(tiles.OSM(), provider)

	rend := layer.New(src, 1.0)
	if viper.GetBool("view.borders") {
		rend.SetDrawTileBorders(true)
	}

	center := orb.Point{viper.GetFloat64("view.lon"), viper.GetFloat64("view.lat")}
	mv := mapview.New(rend, center, viper.GetFloat64("view.zoom"))

	// app.Main never returns, so the window goroutine finishes cleanup
	// itself and exits the process.
	go func() {
		w := app.NewWindow(
			app.Title("maplayer"),
			app.Size(unit.Dp(800), unit.Dp(600)),
		)

		// a finished tile load means the frame on screen is stale
		src.OnTileLoaded(func(*tiles.Handle) { w.Invalidate() })

		err := windowLoop(w, mv)
		rend.Close()
		src.Close()
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			os.Exit(1)
		}
		os.Exit(0)
	}()
	app.Main()
	return nil
}

func windowLoop(w *app.Window, mv *mapview.MapView) error {
	var ops op.Ops
	for {
		switch e := w.NextEvent().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			mv.Layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}
