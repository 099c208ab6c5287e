package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/marbleshade/internal/shading"
	"github.com/MeKo-Tech/marbleshade/internal/warp"
)

func addShadingFlags(c *cobra.Command) {
	f := c.PersistentFlags()
	f.Float64("frequency", shading.DefaultFrequency, "Wave frequency of the noise field")
	f.Float64("cell-variability", shading.DefaultCellVariability, "Per-cell frequency divisor, within (0,1]")
	f.Float64("direction-variability", shading.DefaultDirectionVariability, "Blend of per-cell jitter into the wave direction, within [0,1]")
	f.String("base-direction", formatVec(shading.DefaultBaseDirection[:]), "Constant wave direction bias as x,y")
	f.Float64("falloff", shading.DefaultFalloff, "Gaussian falloff of cell weights")
	f.Float64("epsilon", shading.DefaultEpsilon, "Finite-difference step of the normal estimate")
	f.Float64("height-scale", shading.DefaultHeightScale, "Height field scale")
	f.Float64("height-frequency", shading.DefaultHeightFrequency, "Height field coordinate multiplier")
	f.String("light", formatVec(shading.DefaultLightDirection[:]), "Light direction as x,y,z")
	f.Float64("max-displacement", shading.DefaultMaxDisplacement, "Upper bound of the vertex displacement")
	f.StringArray("ramp", defaultRampEntries(), "Color ramp stop as r,g,b@position (repeatable, or ';'-separated)")
	f.Int("mid-tone-index", shading.DefaultMidToneIndex, "Ramp stop whose color cycles over time (-1 disables)")
	f.Float64("warp-amplitude", 0, "Perlin UV warp amplitude (0 disables)")
	f.Float64("warp-scale", 4, "Perlin UV warp coordinate scale")
	f.Int64("warp-seed", 1337, "Perlin UV warp seed")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"shading.frequency", "frequency"},
		{"shading.cell_variability", "cell-variability"},
		{"shading.direction_variability", "direction-variability"},
		{"shading.base_direction", "base-direction"},
		{"shading.falloff", "falloff"},
		{"shading.epsilon", "epsilon"},
		{"shading.height_scale", "height-scale"},
		{"shading.height_frequency", "height-frequency"},
		{"shading.light", "light"},
		{"shading.max_displacement", "max-displacement"},
		{"shading.ramp", "ramp"},
		{"shading.mid_tone_index", "mid-tone-index"},
		{"shading.warp_amplitude", "warp-amplitude"},
		{"shading.warp_scale", "warp-scale"},
		{"shading.warp_seed", "warp-seed"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, f.Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func defaultRampEntries() []string {
	stops := shading.ReferenceStops()
	entries := make([]string, len(stops))
	for i, s := range stops {
		entries[i] = s.String()
	}
	return entries
}

// shadingConfig reads the shading.* settings.
func shadingConfig() (shading.Config, error) {
	params := shading.DefaultParams()
	params.Noise.Frequency = viper.GetFloat64("shading.frequency")
	params.Noise.CellVariability = viper.GetFloat64("shading.cell_variability")
	params.Noise.DirectionVariability = viper.GetFloat64("shading.direction_variability")
	params.Noise.Falloff = viper.GetFloat64("shading.falloff")
	params.Epsilon = viper.GetFloat64("shading.epsilon")
	params.HeightScale = viper.GetFloat64("shading.height_scale")
	params.HeightFrequency = viper.GetFloat64("shading.height_frequency")
	params.MaxDisplacement = viper.GetFloat64("shading.max_displacement")

	dir, err := parseVec(viper.GetString("shading.base_direction"), 2)
	if err != nil {
		return shading.Config{}, fmt.Errorf("invalid base-direction: %w", err)
	}
	params.Noise.BaseDirection = mgl64.Vec2{dir[0], dir[1]}

	light, err := parseVec(viper.GetString("shading.light"), 3)
	if err != nil {
		return shading.Config{}, fmt.Errorf("invalid light: %w", err)
	}
	params.LightDirection = mgl64.Vec3{light[0], light[1], light[2]}

	ramp, err := shading.ParseColorRamp(splitRampEntries(viper.GetStringSlice("shading.ramp")))
	if err != nil {
		return shading.Config{}, fmt.Errorf("invalid ramp: %w", err)
	}

	midTone := viper.GetInt("shading.mid_tone_index")
	return shading.Config{
		Params:       params,
		Ramp:         ramp,
		MidToneIndex: midTone,
		CycleMidTone: midTone != shading.NoMidTone,
	}, nil
}

func buildEngine() (*shading.Engine, error) {
	cfg, err := shadingConfig()
	if err != nil {
		return nil, err
	}
	engine, err := shading.NewEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init shading engine: %w", err)
	}
	logger.Debug("Shading engine ready",
		"ramp", cfg.Ramp.String(),
		"mid_tone_index", cfg.MidToneIndex,
		"frequency", cfg.Params.Noise.Frequency,
		"light", formatVec(cfg.Params.LightDirection[:]),
	)
	return engine, nil
}

// buildWarp returns nil when the warp is disabled.
func buildWarp() *warp.Warp {
	amplitude := viper.GetFloat64("shading.warp_amplitude")
	if amplitude == 0 {
		return nil
	}
	return warp.New(amplitude, viper.GetFloat64("shading.warp_scale"), viper.GetInt64("shading.warp_seed"))
}

// splitRampEntries accepts stops given as separate values or joined with ';'
// (the latter is how a single environment variable carries a ramp).
func splitRampEntries(values []string) []string {
	var entries []string
	for _, v := range values {
		for _, part := range strings.Split(v, ";") {
			if part = strings.TrimSpace(part); part != "" {
				entries = append(entries, part)
			}
		}
	}
	return entries
}

// parseVec parses n comma-separated floats.
func parseVec(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated values, got %d", n, len(parts))
	}

	vals := make([]float64, n)
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		vals[i] = val
	}
	return vals, nil
}

func formatVec(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
