package shading

import (
	"github.com/go-gl/mathgl/mgl64"
)

// LightingModel turns a normal into a pattern intensity using one fixed
// directional light.
type LightingModel struct {
	lightDir        mgl64.Vec3
	maxDisplacement float64
}

// NewLightingModel normalizes direction. maxDisplacement bounds Displacement.
func NewLightingModel(direction mgl64.Vec3, maxDisplacement float64) (*LightingModel, error) {
	if !finiteVec3(direction) || direction.Len() == 0 {
		return nil, configErrorf("light direction must be a finite non-zero vector, got %v", direction)
	}
	if !finite(maxDisplacement) || maxDisplacement < 0 {
		return nil, configErrorf("max displacement must be non-negative, got %v", maxDisplacement)
	}
	return &LightingModel{
		lightDir:        direction.Normalize(),
		maxDisplacement: maxDisplacement,
	}, nil
}

// LightDirection returns the normalized light direction.
func (l *LightingModel) LightDirection() mgl64.Vec3 { return l.lightDir }

// Pattern returns dot(normal, light). Nominally within [-1,1].
func (l *LightingModel) Pattern(normal mgl64.Vec3) float64 {
	return normal.Dot(l.lightDir)
}

// Displacement returns clamp(1-pattern, 0, max) for any pattern value.
func (l *LightingModel) Displacement(pattern float64) float64 {
	return Displacement(pattern, l.maxDisplacement)
}

// Displacement returns clamp(1-pattern, 0, limit). NaN patterns map to 0.
func Displacement(pattern, limit float64) float64 {
	d := 1 - pattern
	if !(d > 0) {
		return 0
	}
	if d > limit {
		return limit
	}
	return d
}
