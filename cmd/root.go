package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"maplayer/tiles"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "maplayer",
	Short: "Render slippy-map tile layers to images, over HTTP or in a window",
	Long: `maplayer renders a slippy-map tile layer: it picks the zoom level
matching the requested view, stitches the visible tiles and draws them
seamlessly into the target image.

Tiles come from a web map service or a local MBTiles archive.

Examples:
  # Render central London to a PNG
  maplayer render --bbox -0.2275,51.4072,-0.0275,51.6072 --width 1024 --height 768 -o london.png

  # Render from an MBTiles archive with debug borders
  maplayer render --mbtiles world.mbtiles --bbox -10,35,30,60 --borders -o europe.png

  # Serve rendered maps over HTTP
  maplayer serve --port 8080

  # Open the interactive viewer
  maplayer view --lat 51.507222 --lon -0.1275 --zoom 12`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.maplayer.yaml)")
	rootCmd.PersistentFlags().StringP("url", "u", tiles.OSMURLTemplate, "tile URL template with {z}, {x}, {y} placeholders")
	rootCmd.PersistentFlags().String("mbtiles", "", "read tiles from an MBTiles archive instead of HTTP")
	rootCmd.PersistentFlags().String("user-agent", "maplayer/1.0", "HTTP User-Agent header for tile requests")

	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
	viper.BindPFlag("mbtiles", rootCmd.PersistentFlags().Lookup("mbtiles"))
	viper.BindPFlag("user-agent", rootCmd.PersistentFlags().Lookup("user-agent"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".maplayer")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newSource builds the tile source from the shared flags. The returned
// cleanup function releases the source and any backing store.
func newSource() (*tiles.Source, func(), error) {
	if path := viper.GetString("mbtiles"); path != "" {
		mb, err := tiles.OpenMBTiles(path)
		if err != nil {
			return nil, nil, err
		}
		src := tiles.NewSource(mb.Scheme(), mb)
		return src, func() {
			src.Close()
			mb.Close()
		}, nil
	}

	provider := tiles.NewHTTPProvider(viper.GetString("url"), viper.GetString("user-agent"))
	src := tiles.NewSource(tiles.OSM(), provider)
	return src, func() { src.Close() }, nil
}
