package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/marbleshade/internal/scene"
	"github.com/MeKo-Tech/marbleshade/internal/server"
)

var sampleCmd = &cobra.Command{
	Use:   "sample <u> <v>",
	Short: "Evaluate the shader at one surface point",
	Long: `Evaluate the shading engine at texture coordinate (u,v) on the unit
sphere and print the sample as JSON.`,
	Args: cobra.ExactArgs(2),
	RunE: runSample,
}

func init() {
	rootCmd.AddCommand(sampleCmd)

	sampleCmd.Flags().Float64P("time", "t", 0, "Shading time in seconds")
	if err := viper.BindPFlag("sample.time", sampleCmd.Flags().Lookup("time")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func runSample(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	u, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid u %q: %w", args[0], err)
	}
	v, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid v %q: %w", args[1], err)
	}
	t := viper.GetFloat64("sample.time")

	engine, err := buildEngine()
	if err != nil {
		return err
	}

	uv := mgl64.Vec2{u, v}
	s, err := engine.Evaluate(buildWarp().Apply(uv), scene.SphereNormal(uv), t)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(server.NewSampleResponse(uv, t, s))
}
