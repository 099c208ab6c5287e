package shading

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// NoiseField is a Gabor/Voronoi hybrid: oriented cosine waves from the
// 3x3 neighborhood of lattice cells, blended with Gaussian weights.
type NoiseField struct {
	params NoiseParams
}

// NewNoiseField validates params and returns a field.
func NewNoiseField(params NoiseParams) (*NoiseField, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &NoiseField{params: params}, nil
}

// Params returns the field configuration.
func (f *NoiseField) Params() NoiseParams { return f.params }

// Direction returns the wave direction bias at time.
func (f *NoiseField) Direction(time float64) mgl64.Vec2 {
	c := math.Cos(time)
	return mgl64.Vec2{f.params.BaseDirection[0] + c, f.params.BaseDirection[1] + c}
}

// Evaluate returns the noise value at p. With the default parameters the
// result stays within [-1,1].
func (f *NoiseField) Evaluate(p mgl64.Vec2, time float64) (float64, error) {
	if err := checkPoint(p); err != nil {
		return 0, err
	}
	if err := checkTime(time); err != nil {
		return 0, err
	}
	return f.eval(p, f.Direction(time)), nil
}

// Height returns the folded height field scale*|noise(p*freq)| used for normals.
func (f *NoiseField) Height(p mgl64.Vec2, time float64, scale, freq float64) (float64, error) {
	if err := checkPoint(p); err != nil {
		return 0, err
	}
	if err := checkTime(time); err != nil {
		return 0, err
	}
	return f.height(p, f.Direction(time), scale, freq), nil
}

func (f *NoiseField) height(p, dir mgl64.Vec2, scale, freq float64) float64 {
	return scale * math.Abs(f.eval(p.Mul(freq), dir))
}

// eval assumes finite input. All nine neighbors are visited in a fixed
// order so results are bit-identical across calls.
func (f *NoiseField) eval(p, dir mgl64.Vec2) float64 {
	ip := mgl64.Vec2{math.Floor(p[0]), math.Floor(p[1])}
	fp := p.Sub(ip)

	k := f.params.Frequency / f.params.CellVariability
	dv := f.params.DirectionVariability

	var va, wt float64
	for i := -1; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			o := mgl64.Vec2{float64(i) - 0.5, float64(j) - 0.5}
			jitter := Hash2(ip.Sub(o))
			pp := fp.Add(o)
			w := math.Exp(-pp.Dot(pp) * f.params.Falloff)
			wt += w
			h := jitter.Mul(dv).Add(dir)
			va += math.Cos(pp.Dot(h)*k) * w
		}
	}
	return va / wt
}
