package shading

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Reference palette.
var (
	White    = mgl64.Vec3{1, 1, 1}
	MidTone  = mgl64.Vec3{0.6, 0.4, 0.9}
	DarkBlue = mgl64.Vec3{0.01, 0.05, 0.2}
)

// DefaultMidToneIndex is the stop of the reference ramp that cycles over time.
const DefaultMidToneIndex = 2

// ReferenceStops returns the stops of the reference ramp with the
// un-animated mid-tone.
func ReferenceStops() []ColorStop {
	return []ColorStop{
		{Color: White, Position: 0.0},
		{Color: White, Position: 0.01},
		{Color: MidTone, Position: 0.1},
		{Color: DarkBlue, Position: 1.0},
	}
}

// ReferenceRamp returns the reference ramp.
func ReferenceRamp() *ColorRamp {
	r, err := NewColorRamp(ReferenceStops()...)
	if err != nil {
		panic(err)
	}
	return r
}

// CycleColor slowly shifts each channel of base with its own sinusoid.
func CycleColor(base mgl64.Vec3, time float64) mgl64.Vec3 {
	return mgl64.Vec3{
		base[0]*(0.9+math.Sin(time)/3.2) + 0.1,
		base[1]*(0.9+math.Cos(time/2.0)/2.5) + 0.1,
		base[2]*(0.9+math.Cos(time/5.0)/4.0) + 0.1,
	}
}
