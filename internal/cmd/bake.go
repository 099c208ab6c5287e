package cmd

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/marbleshade/internal/bake"
)

var bakeCmd = &cobra.Command{
	Use:   "bake",
	Short: "Bake color and displacement maps over a UV region",
	Long: `Evaluate the shading engine on a flat UV grid at a fixed time and write
a color map and a 16-bit displacement map as PNG.`,
	RunE: runBake,
}

func init() {
	rootCmd.AddCommand(bakeCmd)

	bakeCmd.Flags().String("region", "0,0,1,1", "UV region: minU,minV,maxU,maxV")
	bakeCmd.Flags().Int("width", 1024, "Map width in pixels")
	bakeCmd.Flags().Int("height", 512, "Map height in pixels")
	bakeCmd.Flags().Float64("time", 0, "Shading time in seconds")
	bakeCmd.Flags().Float32("blur", 0, "Gaussian blur sigma applied to the color map (0 disables)")
	bakeCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	bakeCmd.Flags().String("color-file", "color.png", "Color map file name inside --output-dir")
	bakeCmd.Flags().String("height-file", "height.png", "Displacement map file name inside --output-dir")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"bake.region", "region"},
		{"bake.width", "width"},
		{"bake.height", "height"},
		{"bake.time", "time"},
		{"bake.blur", "blur"},
		{"bake.workers", "workers"},
		{"bake.color_file", "color-file"},
		{"bake.height_file", "height-file"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, bakeCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runBake(cmd *cobra.Command, args []string) error {
	regionStr := viper.GetString("bake.region")
	width := viper.GetInt("bake.width")
	height := viper.GetInt("bake.height")
	t := viper.GetFloat64("bake.time")
	blur := float32(viper.GetFloat64("bake.blur"))
	workers := viper.GetInt("bake.workers")
	outputDir := viper.GetString("output-dir")
	colorPath := filepath.Join(outputDir, viper.GetString("bake.color_file"))
	heightPath := filepath.Join(outputDir, viper.GetString("bake.height_file"))

	if logger == nil {
		initLogging()
	}

	region, err := bake.ParseRegion(regionStr)
	if err != nil {
		return fmt.Errorf("invalid region: %w", err)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	engine, err := buildEngine()
	if err != nil {
		return err
	}

	logger.Info("Starting bake",
		"region", regionStr,
		"size", fmt.Sprintf("%dx%d", width, height),
		"time", t,
		"blur", blur,
		"workers", workers,
	)

	res, err := bake.Bake(context.Background(), engine, bake.Params{
		Region:  region,
		Warp:    buildWarp(),
		Width:   width,
		Height:  height,
		Workers: workers,
		Time:    t,
		Blur:    blur,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to bake: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := writePNG(colorPath, res.Color); err != nil {
		return err
	}
	if err := writePNG(heightPath, res.Height); err != nil {
		return err
	}

	logger.Info("Bake complete",
		"color", colorPath,
		"height", heightPath,
		"min_pattern", res.MinPattern,
		"max_pattern", res.MaxPattern,
	)
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
