package main

import (
	"fmt"
	"image/png"
	"net/url"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prl900/gray_wms/config"
	"github.com/prl900/gray_wms/rastreader"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "gray_wms",
	Short: "Grayscale WMS server for time indexed rasters",
	Long:  "Snaps a requested instant to the raster file of a layer, reads the requested bounding box from it and renders it as a grayscale PNG.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

var renderFlags struct {
	layer  string
	time   string
	bbox   string
	width  int
	height int
	out    string
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a single map to a PNG file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		values := url.Values{}
		values.Set("layer", renderFlags.layer)
		values.Set("time", renderFlags.time)
		values.Set("width", strconv.Itoa(renderFlags.width))
		values.Set("height", strconv.Itoa(renderFlags.height))
		if renderFlags.bbox != "" {
			values.Set("bbox", renderFlags.bbox)
		}
		q, layer, err := rastreader.DecodeQuery(values)
		if err != nil {
			return err
		}

		rasters, layers, closeStores, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		wms := NewWMS(rasters, layers, cfg.Server)
		if err := wms.CheckLimits(q); err != nil {
			return err
		}
		img, err := wms.Render(ctx, q, layer)
		if err != nil {
			return err
		}

		f, err := os.Create(renderFlags.out)
		if err != nil {
			return eris.Wrapf(err, "creating %s", renderFlags.out)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return eris.Wrapf(err, "encoding %s", renderFlags.out)
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "closing %s", renderFlags.out)
		}

		zap.L().Info("map rendered",
			zap.String("layer", layer),
			zap.String("out", renderFlags.out),
			zap.Int("width", q.Width), zap.Int("height", q.Height),
		)
		return nil
	},
}

func init() {
	f := renderCmd.Flags()
	f.StringVar(&renderFlags.layer, "layer", "", "layer name")
	f.StringVar(&renderFlags.time, "time", "", "RFC 3339 timestamp")
	f.StringVar(&renderFlags.bbox, "bbox", "", "min_x,min_y,max_x,max_y (default whole globe)")
	f.IntVar(&renderFlags.width, "width", 256, "output width in pixels")
	f.IntVar(&renderFlags.height, "height", 256, "output height in pixels")
	f.StringVar(&renderFlags.out, "out", "out.png", "output PNG file")
	_ = renderCmd.MarkFlagRequired("layer")
	_ = renderCmd.MarkFlagRequired("time")
	rootCmd.AddCommand(renderCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
