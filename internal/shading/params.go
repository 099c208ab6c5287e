// Package shading implements the procedural marble shading core: a hash
// driven Gabor/Voronoi noise field, a finite-difference normal estimate,
// a fixed directional light and a piecewise-linear color ramp.
//
// Every function in this package is a pure function of its arguments.
// Time is always passed explicitly.
package shading

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Default shading constants. The output is sensitive to all of them.
const (
	DefaultFrequency            = 3 * math.Pi
	DefaultCellVariability      = 1.0
	DefaultDirectionVariability = 0.0
	DefaultFalloff              = 4.0
	DefaultEpsilon              = 0.1
	DefaultHeightScale          = 2.0
	DefaultHeightFrequency      = 2.0
	DefaultMaxDisplacement      = 0.2
)

var (
	// DefaultBaseDirection is the constant part of the wave direction bias.
	DefaultBaseDirection = mgl64.Vec2{0.7, 0.8}
	// DefaultLightDirection is normalized when the lighting model is built.
	DefaultLightDirection = mgl64.Vec3{3, 2, -1}
)

// NoiseParams configures the noise field.
type NoiseParams struct {
	BaseDirection mgl64.Vec2
	// Frequency is in cycles per unit.
	Frequency float64
	// CellVariability must be within (0,1].
	CellVariability float64
	// DirectionVariability blends per-cell jitter into the wave direction, within [0,1].
	DirectionVariability float64
	// Falloff is the Gaussian weight exponent applied to squared cell distance.
	Falloff float64
}

// Params holds every tunable constant of the pipeline.
type Params struct {
	LightDirection  mgl64.Vec3
	Noise           NoiseParams
	Epsilon         float64
	HeightScale     float64
	HeightFrequency float64
	MaxDisplacement float64
}

// DefaultParams returns the reference configuration.
func DefaultParams() Params {
	return Params{
		Noise: NoiseParams{
			BaseDirection:        DefaultBaseDirection,
			Frequency:            DefaultFrequency,
			CellVariability:      DefaultCellVariability,
			DirectionVariability: DefaultDirectionVariability,
			Falloff:              DefaultFalloff,
		},
		LightDirection:  DefaultLightDirection,
		Epsilon:         DefaultEpsilon,
		HeightScale:     DefaultHeightScale,
		HeightFrequency: DefaultHeightFrequency,
		MaxDisplacement: DefaultMaxDisplacement,
	}
}

// Validate reports the first invalid constant wrapped in ErrConfiguration.
func (p Params) Validate() error {
	if err := p.Noise.Validate(); err != nil {
		return err
	}
	if !finite(p.Epsilon) || p.Epsilon <= 0 {
		return configErrorf("epsilon must be positive, got %v", p.Epsilon)
	}
	if !finite(p.HeightScale) || !finite(p.HeightFrequency) {
		return configErrorf("height scale and frequency must be finite")
	}
	if !finite(p.MaxDisplacement) || p.MaxDisplacement < 0 {
		return configErrorf("max displacement must be non-negative, got %v", p.MaxDisplacement)
	}
	if !finiteVec3(p.LightDirection) || p.LightDirection.Len() == 0 {
		return configErrorf("light direction must be a finite non-zero vector, got %v", p.LightDirection)
	}
	return nil
}

// Validate reports the first invalid noise constant wrapped in ErrConfiguration.
func (n NoiseParams) Validate() error {
	if !finite(n.Frequency) {
		return configErrorf("frequency must be finite, got %v", n.Frequency)
	}
	if !finite(n.CellVariability) || n.CellVariability <= 0 || n.CellVariability > 1 {
		return configErrorf("cell variability must be within (0,1], got %v", n.CellVariability)
	}
	if !finite(n.DirectionVariability) || n.DirectionVariability < 0 || n.DirectionVariability > 1 {
		return configErrorf("direction variability must be within [0,1], got %v", n.DirectionVariability)
	}
	if !finite(n.Falloff) || n.Falloff < 0 {
		return configErrorf("falloff must be non-negative, got %v", n.Falloff)
	}
	if !finiteVec2(n.BaseDirection) {
		return configErrorf("base direction must be finite, got %v", n.BaseDirection)
	}
	return nil
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func finiteVec2(v mgl64.Vec2) bool {
	return finite(v[0]) && finite(v[1])
}

func finiteVec3(v mgl64.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}
