package shading

import (
	"github.com/go-gl/mathgl/mgl64"
)

// GradientEstimator approximates the normal of the noise height field with
// central differences.
type GradientEstimator struct {
	field   *NoiseField
	epsilon float64
	scale   float64
	freq    float64
}

// NewGradientEstimator builds an estimator over field using the height and
// step settings from params.
func NewGradientEstimator(field *NoiseField, params Params) (*GradientEstimator, error) {
	if field == nil {
		return nil, configErrorf("noise field is required")
	}
	if !finite(params.Epsilon) || params.Epsilon <= 0 {
		return nil, configErrorf("epsilon must be positive, got %v", params.Epsilon)
	}
	return &GradientEstimator{
		field:   field,
		epsilon: params.Epsilon,
		scale:   params.HeightScale,
		freq:    params.HeightFrequency,
	}, nil
}

// EstimateNormal returns -normalize(dx, dy, 1) for the height field at p.
func (g *GradientEstimator) EstimateNormal(p mgl64.Vec2, time float64) (mgl64.Vec3, error) {
	if err := checkPoint(p); err != nil {
		return mgl64.Vec3{}, err
	}
	if err := checkTime(time); err != nil {
		return mgl64.Vec3{}, err
	}
	return g.normal(p, g.field.Direction(time)), nil
}

func (g *GradientEstimator) normal(p, dir mgl64.Vec2) mgl64.Vec3 {
	ex := mgl64.Vec2{g.epsilon, 0}
	ey := mgl64.Vec2{0, g.epsilon}

	dx := g.field.height(p.Add(ex), dir, g.scale, g.freq) - g.field.height(p.Sub(ex), dir, g.scale, g.freq)
	dy := g.field.height(p.Add(ey), dir, g.scale, g.freq) - g.field.height(p.Sub(ey), dir, g.scale, g.freq)

	// z is 1 so the length is never zero
	return mgl64.Vec3{dx, dy, 1}.Normalize().Mul(-1)
}
