package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/marbleshade/internal/scene"
)

// addFrameFlags registers the frame geometry flags of a command under prefix.
func addFrameFlags(c *cobra.Command, prefix string, size int) {
	defaults := scene.DefaultOptions()
	c.Flags().Int("width", size, "Frame width in pixels")
	c.Flags().Int("height", size, "Frame height in pixels")
	c.Flags().Int("supersample", defaults.Supersample, "Render at N times the size and downscale")
	c.Flags().Int("segments", defaults.Segments, "Sphere width and height segments")
	c.Flags().Float64("uv-scale", defaults.UVScale, "Multiplier applied to the sphere UV before shading")
	c.Flags().Bool("label", false, "Draw the shading time into each frame")

	for _, name := range []string{"width", "height", "supersample", "segments", "uv-scale", "label"} {
		if err := viper.BindPFlag(prefix+"."+name, c.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

func frameOptions(prefix string) scene.Options {
	opts := scene.DefaultOptions()
	opts.Width = viper.GetInt(prefix + ".width")
	opts.Height = viper.GetInt(prefix + ".height")
	opts.Supersample = viper.GetInt(prefix + ".supersample")
	opts.Segments = viper.GetInt(prefix + ".segments")
	opts.UVScale = viper.GetFloat64(prefix + ".uv-scale")
	opts.Label = viper.GetBool(prefix + ".label")
	opts.Warp = buildWarp()
	return opts
}
