package shading

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Hash returns a pseudo-random value in [0,1) for p.
// It only decorrelates neighboring lattice cells and is not suitable for anything else.
func Hash(p mgl64.Vec2) float64 {
	return fract(math.Sin(p[0]*15.32+p[1]*5.78) * 43758.236237153)
}

// Hash2 returns two decorrelated values in [-0.5,0.5) for p.
func Hash2(p mgl64.Vec2) mgl64.Vec2 {
	a := Hash(p.Mul(0.754))
	b := Hash(mgl64.Vec2{1.5743*p[1] + 4.5891, 1.5743*p[0] + 4.5891})
	return mgl64.Vec2{a - 0.5, b - 0.5}
}

func fract(x float64) float64 {
	f := x - math.Floor(x)
	// tiny negative inputs round up to exactly 1
	if f >= 1 {
		return 0
	}
	return f
}
