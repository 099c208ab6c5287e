package shading

import (
	"math"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestEngineEvaluateComposesPipeline(t *testing.T) {
	e := newDefaultEngine(t)
	params := DefaultParams()

	field, err := NewNoiseField(params.Noise)
	require.NoError(t, err)
	grad, err := NewGradientEstimator(field, params)
	require.NoError(t, err)
	light, err := NewLightingModel(params.LightDirection, params.MaxDisplacement)
	require.NoError(t, err)

	uv := mgl64.Vec2{0.42, 0.17}
	geo := mgl64.Vec3{0, 1, 0}
	tm := 3.25

	got, err := e.Evaluate(uv, geo, tm)
	require.NoError(t, err)

	n, err := grad.EstimateNormal(uv, tm)
	require.NoError(t, err)
	pattern := light.Pattern(n)
	ramp, err := ReferenceRamp().WithStopColor(DefaultMidToneIndex, CycleColor(MidTone, tm))
	require.NoError(t, err)

	assert.Equal(t, n, got.Normal)
	assert.Equal(t, pattern, got.Pattern)
	assert.Equal(t, Displacement(pattern, 0.2), got.Displacement)
	assert.Equal(t, geo.Mul(got.Displacement), got.Offset)
	assert.Equal(t, ramp.Sample(pattern), got.Color)
}

func TestEngineDisplacementWithinBounds(t *testing.T) {
	e := newDefaultEngine(t)
	for tm := 0.0; tm < 10; tm += 1.3 {
		f, err := e.Frame(tm)
		require.NoError(t, err)
		for u := 0.0; u <= 1; u += 0.05 {
			for v := 0.0; v <= 1; v += 0.05 {
				s, err := f.Evaluate(mgl64.Vec2{u, v}, mgl64.Vec3{0, 0, 1})
				require.NoError(t, err)
				require.GreaterOrEqual(t, s.Displacement, 0.0)
				require.LessOrEqual(t, s.Displacement, 0.2)
				require.InDelta(t, 1.0, s.Normal.Len(), 1e-9)
			}
		}
	}
}

func TestFrameVertexAndFragmentHalves(t *testing.T) {
	e := newDefaultEngine(t)
	f, err := e.Frame(1.1)
	require.NoError(t, err)

	uv := mgl64.Vec2{0.6, 0.3}
	full, err := f.Evaluate(uv, mgl64.Vec3{1, 0, 0})
	require.NoError(t, err)

	pattern, disp, err := f.Pattern(uv)
	require.NoError(t, err)
	assert.Equal(t, full.Pattern, pattern)
	assert.Equal(t, full.Displacement, disp)
	assert.Equal(t, full.Color, f.Color(pattern))
	assert.Equal(t, 1.1, f.Time())
}

func TestCycleColor(t *testing.T) {
	c := CycleColor(MidTone, 0)
	assert.InDelta(t, 0.64, c[0], 1e-12)
	assert.InDelta(t, 0.62, c[1], 1e-12)
	assert.InDelta(t, 1.135, c[2], 1e-12)

	e := newDefaultEngine(t)
	f, err := e.Frame(0)
	require.NoError(t, err)
	assert.Equal(t, c, f.Stops()[DefaultMidToneIndex].Color)
	assert.Equal(t, MidTone, e.Ramp().Stops()[DefaultMidToneIndex].Color)
}

func TestEngineWithoutMidToneCycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CycleMidTone = false
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	f, err := e.Frame(5)
	require.NoError(t, err)
	assert.Equal(t, ReferenceStops(), f.Stops())
}

func TestEngineRejectsBadInput(t *testing.T) {
	e := newDefaultEngine(t)

	_, err := e.Evaluate(mgl64.Vec2{0, 0}, mgl64.Vec3{0, 0, 1}, math.NaN())
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.Evaluate(mgl64.Vec2{math.Inf(1), 0}, mgl64.Vec3{0, 0, 1}, 0)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.Evaluate(mgl64.Vec2{0, 0}, mgl64.Vec3{math.NaN(), 0, 1}, 0)
	require.ErrorIs(t, err, ErrInvalidInput)

	f, err := e.Frame(0)
	require.NoError(t, err)
	_, _, err = f.Pattern(mgl64.Vec2{math.NaN(), 0})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"mid-tone out of range", func(c *Config) { c.MidToneIndex = 4 }},
		{"negative mid-tone", func(c *Config) { c.MidToneIndex = -2 }},
		{"zero epsilon", func(c *Config) { c.Params.Epsilon = 0 }},
		{"zero light", func(c *Config) { c.Params.LightDirection = mgl64.Vec3{} }},
		{"zero cell variability", func(c *Config) { c.Params.Noise.CellVariability = 0 }},
		{"negative max displacement", func(c *Config) { c.Params.MaxDisplacement = -0.1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			_, err := NewEngine(cfg)
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestEngineNilRampUsesReference(t *testing.T) {
	e, err := NewEngine(Config{Params: DefaultParams()})
	require.NoError(t, err)
	assert.Equal(t, ReferenceStops(), e.Ramp().Stops())
}

func TestEngineZeroConfigKeepsRampStatic(t *testing.T) {
	e, err := NewEngine(Config{Params: DefaultParams()})
	require.NoError(t, err)
	assert.Equal(t, NoMidTone, e.MidToneIndex())

	for _, tm := range []float64{0, 1.3, 42} {
		f, err := e.Frame(tm)
		require.NoError(t, err)
		assert.Equal(t, ReferenceStops(), f.Stops(), "t=%v", tm)
	}

	// explicit index 0 still cycles the first stop
	e, err = NewEngine(Config{Params: DefaultParams(), MidToneIndex: 0, CycleMidTone: true})
	require.NoError(t, err)
	assert.Equal(t, 0, e.MidToneIndex())
	f, err := e.Frame(1.3)
	require.NoError(t, err)
	assert.Equal(t, CycleColor(ReferenceStops()[0].Color, 1.3), f.Stops()[0].Color)
}

func TestFrameConcurrentUse(t *testing.T) {
	e := newDefaultEngine(t)
	f, err := e.Frame(7.5)
	require.NoError(t, err)

	const n = 64
	want := make([]Sample, n)
	for i := range want {
		uv := mgl64.Vec2{float64(i) / n, 1 - float64(i)/n}
		want[i], err = f.Evaluate(uv, mgl64.Vec3{0, 1, 0})
		require.NoError(t, err)
	}

	got := make([]Sample, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uv := mgl64.Vec2{float64(i) / n, 1 - float64(i)/n}
			got[i], _ = f.Evaluate(uv, mgl64.Vec3{0, 1, 0})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, want, got)
}
