package shading

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// ColorStop is one (color, position) pair of a ramp. Colors are RGB and
// are not clamped.
type ColorStop struct {
	Color    mgl64.Vec3
	Position float64
}

// ColorRamp is a piecewise-linear gradient over an ordered list of stops.
type ColorRamp struct {
	stops []ColorStop
}

// NewColorRamp validates stops and copies them into a ramp. At least two
// stops are required and positions must not decrease.
func NewColorRamp(stops ...ColorStop) (*ColorRamp, error) {
	if len(stops) < 2 {
		return nil, configErrorf("color ramp needs at least 2 stops, got %d", len(stops))
	}
	for i, s := range stops {
		if !finiteVec3(s.Color) || !finite(s.Position) {
			return nil, configErrorf("stop %d is not finite", i)
		}
		if i > 0 && s.Position < stops[i-1].Position {
			return nil, configErrorf("stop %d position %v is below stop %d position %v",
				i, s.Position, i-1, stops[i-1].Position)
		}
	}
	return &ColorRamp{stops: append([]ColorStop(nil), stops...)}, nil
}

// Stops returns a copy of the ramp stops.
func (r *ColorRamp) Stops() []ColorStop {
	return append([]ColorStop(nil), r.stops...)
}

// Len returns the number of stops.
func (r *ColorRamp) Len() int { return len(r.stops) }

// WithStopColor returns a new ramp with stop i recolored.
func (r *ColorRamp) WithStopColor(i int, c mgl64.Vec3) (*ColorRamp, error) {
	if i < 0 || i >= len(r.stops) {
		return nil, configErrorf("stop index %d out of range [0,%d)", i, len(r.stops))
	}
	stops := r.Stops()
	stops[i].Color = c
	return NewColorRamp(stops...)
}

// Sample returns the ramp color at factor. Outside the first and last
// stop the end intervals are extrapolated linearly, not clamped.
func (r *ColorRamp) Sample(factor float64) mgl64.Vec3 {
	return SampleStops(r.stops, factor)
}

// SampleStops interpolates an ordered stop slice with at least two entries.
// The lower stop is the last of stops[0:len-1] whose position is <= factor,
// or stops[0] when none is.
func SampleStops(stops []ColorStop, factor float64) mgl64.Vec3 {
	index := 0
	for i := 0; i < len(stops)-1; i++ {
		if stops[i].Position <= factor {
			index = i
		}
	}

	lo := stops[index]
	hi := stops[index+1]
	span := hi.Position - lo.Position
	if span == 0 {
		return hi.Color
	}
	t := (factor - lo.Position) / span
	return mix(lo.Color, hi.Color, t)
}

// mix is a*(1-t) + b*t, exact at t=0 and t=1.
func mix(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Mul(1 - t).Add(b.Mul(t))
}

// String renders the ramp as space separated "r,g,b@pos" entries.
func (r *ColorRamp) String() string {
	parts := make([]string, len(r.stops))
	for i, s := range r.stops {
		parts[i] = s.String()
	}
	return strings.Join(parts, " ")
}

func (s ColorStop) String() string {
	return fmt.Sprintf("%g,%g,%g@%g", s.Color[0], s.Color[1], s.Color[2], s.Position)
}

// ParseColorStop parses "r,g,b@pos".
func ParseColorStop(text string) (ColorStop, error) {
	colorPart, posPart, ok := strings.Cut(strings.TrimSpace(text), "@")
	if !ok {
		return ColorStop{}, configErrorf("stop %q: expected r,g,b@position", text)
	}
	pos, err := strconv.ParseFloat(strings.TrimSpace(posPart), 64)
	if err != nil {
		return ColorStop{}, configErrorf("stop %q: invalid position: %v", text, err)
	}
	channels := strings.Split(colorPart, ",")
	if len(channels) != 3 {
		return ColorStop{}, configErrorf("stop %q: expected 3 color channels, got %d", text, len(channels))
	}
	var c mgl64.Vec3
	for i, ch := range channels {
		v, err := strconv.ParseFloat(strings.TrimSpace(ch), 64)
		if err != nil {
			return ColorStop{}, configErrorf("stop %q: invalid channel %d: %v", text, i, err)
		}
		c[i] = v
	}
	return ColorStop{Color: c, Position: pos}, nil
}

// ParseColorRamp parses one stop per entry and validates the result.
func ParseColorRamp(entries []string) (*ColorRamp, error) {
	stops := make([]ColorStop, 0, len(entries))
	for _, e := range entries {
		s, err := ParseColorStop(e)
		if err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return NewColorRamp(stops...)
}
