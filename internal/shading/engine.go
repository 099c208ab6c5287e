package shading

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// NoMidTone is reported by MidToneIndex when no stop cycles.
const NoMidTone = -1

// Config assembles an Engine.
type Config struct {
	// Ramp defaults to ReferenceRamp when nil.
	Ramp   *ColorRamp
	Params Params
	// MidToneIndex selects the stop whose color cycles over time. It is
	// only read when CycleMidTone is set, so a zero Config keeps the ramp
	// static instead of silently cycling stop 0.
	MidToneIndex int
	CycleMidTone bool
}

// DefaultConfig returns the reference engine configuration.
func DefaultConfig() Config {
	return Config{
		Params:       DefaultParams(),
		Ramp:         ReferenceRamp(),
		MidToneIndex: DefaultMidToneIndex,
		CycleMidTone: true,
	}
}

// Sample is the result of one evaluation.
type Sample struct {
	// Normal is the perturbed normal estimated from the height field.
	Normal mgl64.Vec3
	// Offset is geometricNormal*Displacement, to be added to the vertex position.
	Offset       mgl64.Vec3
	Color        mgl64.Vec3
	Pattern      float64
	Displacement float64
}

// Engine wires the noise field, gradient estimator, lighting model and
// ramp together. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	field    *NoiseField
	gradient *GradientEstimator
	lighting *LightingModel
	ramp     *ColorRamp
	params   Params
	midTone  int
}

// NewEngine validates cfg and builds an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	ramp := cfg.Ramp
	if ramp == nil {
		ramp = ReferenceRamp()
	}
	midTone := NoMidTone
	if cfg.CycleMidTone {
		if cfg.MidToneIndex < 0 || cfg.MidToneIndex >= ramp.Len() {
			return nil, configErrorf("mid-tone index %d out of range for %d stops", cfg.MidToneIndex, ramp.Len())
		}
		midTone = cfg.MidToneIndex
	}

	field, err := NewNoiseField(cfg.Params.Noise)
	if err != nil {
		return nil, err
	}
	gradient, err := NewGradientEstimator(field, cfg.Params)
	if err != nil {
		return nil, err
	}
	lighting, err := NewLightingModel(cfg.Params.LightDirection, cfg.Params.MaxDisplacement)
	if err != nil {
		return nil, err
	}

	return &Engine{
		field:    field,
		gradient: gradient,
		lighting: lighting,
		ramp:     ramp,
		params:   cfg.Params,
		midTone:  midTone,
	}, nil
}

// Field returns the engine noise field.
func (e *Engine) Field() *NoiseField { return e.field }

// Lighting returns the engine lighting model.
func (e *Engine) Lighting() *LightingModel { return e.lighting }

// Ramp returns the un-animated ramp.
func (e *Engine) Ramp() *ColorRamp { return e.ramp }

// Params returns the validated configuration constants.
func (e *Engine) Params() Params { return e.params }

// MidToneIndex returns the cycling stop, or NoMidTone.
func (e *Engine) MidToneIndex() int { return e.midTone }

// Evaluate shades one surface point at time. Hosts shading many points
// at the same time should call Frame once and reuse it.
func (e *Engine) Evaluate(uv mgl64.Vec2, geometricNormal mgl64.Vec3, time float64) (Sample, error) {
	f, err := e.Frame(time)
	if err != nil {
		return Sample{}, err
	}
	return f.Evaluate(uv, geometricNormal)
}

// Frame precomputes everything that depends only on time.
func (e *Engine) Frame(time float64) (*Frame, error) {
	if err := checkTime(time); err != nil {
		return nil, err
	}
	stops := e.ramp.Stops()
	if e.midTone != NoMidTone {
		stops[e.midTone].Color = CycleColor(stops[e.midTone].Color, time)
	}
	return &Frame{
		engine: e,
		time:   time,
		dir:    e.field.Direction(time),
		stops:  stops,
	}, nil
}

// Frame shades points for a single time value. It is immutable and safe
// for concurrent use.
type Frame struct {
	engine *Engine
	stops  []ColorStop
	dir    mgl64.Vec2
	time   float64
}

// Time returns the frame time.
func (f *Frame) Time() float64 { return f.time }

// Stops returns the animated ramp stops of this frame.
func (f *Frame) Stops() []ColorStop {
	return append([]ColorStop(nil), f.stops...)
}

// Evaluate runs the whole pipeline for one point.
func (f *Frame) Evaluate(uv mgl64.Vec2, geometricNormal mgl64.Vec3) (Sample, error) {
	if err := checkPoint(uv); err != nil {
		return Sample{}, err
	}
	if !finiteVec3(geometricNormal) {
		return Sample{}, fmt.Errorf("%w: normal %v is not finite", ErrInvalidInput, geometricNormal)
	}

	normal := f.engine.gradient.normal(uv, f.dir)
	pattern := f.engine.lighting.Pattern(normal)
	disp := f.engine.lighting.Displacement(pattern)
	return Sample{
		Normal:       normal,
		Pattern:      pattern,
		Displacement: disp,
		Offset:       geometricNormal.Mul(disp),
		Color:        SampleStops(f.stops, pattern),
	}, nil
}

// Pattern runs the vertex half of the pipeline: the pattern intensity and
// displacement at uv.
func (f *Frame) Pattern(uv mgl64.Vec2) (pattern, displacement float64, err error) {
	if err = checkPoint(uv); err != nil {
		return 0, 0, err
	}
	pattern = f.engine.lighting.Pattern(f.engine.gradient.normal(uv, f.dir))
	return pattern, f.engine.lighting.Displacement(pattern), nil
}

// Color runs the fragment half of the pipeline for an already computed,
// possibly interpolated, pattern intensity.
func (f *Frame) Color(pattern float64) mgl64.Vec3 {
	return SampleStops(f.stops, pattern)
}
