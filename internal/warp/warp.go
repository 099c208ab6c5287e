// Package warp offsets surface coordinates with Perlin noise before they
// reach the shading engine.
package warp

import (
	"fmt"

	"github.com/aquilax/go-perlin"
	"github.com/go-gl/mathgl/mgl64"
)

// Perlin octave settings shared by both axes.
const (
	alpha   = 2.0
	beta    = 2.0
	octaves = 3
)

// Warp displaces UV coordinates by amplitude * perlin(uv * scale).
// A nil or zero-amplitude Warp is the identity.
type Warp struct {
	px        *perlin.Perlin
	py        *perlin.Perlin
	amplitude float64
	scale     float64
	seed      int64
}

// New creates a warp. Both axes use independent generators derived from seed.
func New(amplitude, scale float64, seed int64) *Warp {
	if scale <= 0 {
		scale = 1
	}
	return &Warp{
		px:        perlin.NewPerlin(alpha, beta, octaves, seed),
		py:        perlin.NewPerlin(alpha, beta, octaves, seed+7919),
		amplitude: amplitude,
		scale:     scale,
		seed:      seed,
	}
}

// String identifies the displacement, so two warps with the same string
// produce the same coordinates.
func (w *Warp) String() string {
	if !w.Enabled() {
		return "none"
	}
	return fmt.Sprintf("perlin(amp=%g,scale=%g,seed=%d)", w.amplitude, w.scale, w.seed)
}

// Enabled reports whether Apply changes its input.
func (w *Warp) Enabled() bool {
	return w != nil && w.amplitude != 0
}

// Apply returns the warped coordinate. Safe for concurrent use.
func (w *Warp) Apply(uv mgl64.Vec2) mgl64.Vec2 {
	if !w.Enabled() {
		return uv
	}
	x := uv[0] * w.scale
	y := uv[1] * w.scale
	return mgl64.Vec2{
		uv[0] + w.amplitude*w.px.Noise2D(x, y),
		uv[1] + w.amplitude*w.py.Noise2D(x, y),
	}
}
