package bake

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/marbleshade/internal/shading"
	"github.com/MeKo-Tech/marbleshade/internal/warp"
)

func newEngine(t *testing.T) *shading.Engine {
	t.Helper()
	e, err := shading.NewEngine(shading.DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestBakeMatchesEngine(t *testing.T) {
	e := newEngine(t)
	p := Params{Region: DefaultRegion, Width: 16, Height: 8, Time: 2, Workers: 3}

	res, err := Bake(context.Background(), e, p, nil)
	require.NoError(t, err)
	require.Equal(t, 16, res.Color.Bounds().Dx())
	require.Equal(t, 8, res.Height.Bounds().Dy())

	for _, px := range [][2]int{{0, 0}, {5, 3}, {15, 7}} {
		uv := mgl64.Vec2{(float64(px[0]) + 0.5) / 16, (float64(px[1]) + 0.5) / 8}
		s, err := e.Evaluate(uv, mgl64.Vec3{0, 0, 1}, 2)
		require.NoError(t, err)

		assert.Equal(t, toRGBA(s.Color), res.Color.RGBAAt(px[0], px[1]))
		assert.Equal(t, heightValue(s.Displacement, 0.2), res.Height.Gray16At(px[0], px[1]).Y)
		assert.GreaterOrEqual(t, s.Pattern, res.MinPattern)
		assert.LessOrEqual(t, s.Pattern, res.MaxPattern)
	}
}

func TestBakeDeterministicAcrossWorkerCounts(t *testing.T) {
	e := newEngine(t)
	p := Params{Region: DefaultRegion, Width: 24, Height: 24, Time: 0.5}

	p.Workers = 1
	a, err := Bake(context.Background(), e, p, nil)
	require.NoError(t, err)

	p.Workers = 8
	b, err := Bake(context.Background(), e, p, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Color.Pix, b.Color.Pix)
	assert.Equal(t, a.Height.Pix, b.Height.Pix)
}

func TestBakeWithWarpAndBlur(t *testing.T) {
	e := newEngine(t)
	p := Params{Region: DefaultRegion, Width: 16, Height: 16, Time: 1}
	plain, err := Bake(context.Background(), e, p, nil)
	require.NoError(t, err)

	p.Warp = warp.New(0.2, 3, 99)
	warped, err := Bake(context.Background(), e, p, nil)
	require.NoError(t, err)
	assert.NotEqual(t, plain.Color.Pix, warped.Color.Pix)

	p.Warp = nil
	p.Blur = 1.5
	blurred, err := Bake(context.Background(), e, p, nil)
	require.NoError(t, err)
	assert.Equal(t, plain.Height.Pix, blurred.Height.Pix)
	assert.NotEqual(t, plain.Color.Pix, blurred.Color.Pix)
}

func TestBakeErrors(t *testing.T) {
	e := newEngine(t)

	_, err := Bake(context.Background(), e, Params{Region: DefaultRegion, Width: 0, Height: 4}, nil)
	require.Error(t, err)

	_, err = Bake(context.Background(), e, Params{Region: orb.Bound{}, Width: 4, Height: 4}, nil)
	require.Error(t, err)

	degenerate := []orb.Bound{
		{Min: orb.Point{0.2, 0.2}, Max: orb.Point{0.2, 0.2}},
		{Min: orb.Point{0, 0.5}, Max: orb.Point{1, 0.5}},
		{Min: orb.Point{0.5, 0}, Max: orb.Point{0.5, 1}},
		{Min: orb.Point{1, 1}, Max: orb.Point{0, 0}},
	}
	for _, region := range degenerate {
		_, err = Bake(context.Background(), e, Params{Region: region, Width: 4, Height: 4}, nil)
		require.Error(t, err, "region %v", region)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Bake(ctx, e, Params{Region: DefaultRegion, Width: 4, Height: 4}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseRegion(t *testing.T) {
	b, err := ParseRegion("0, 0.25, 2, 1.5")
	require.NoError(t, err)
	assert.Equal(t, orb.Point{0, 0.25}, b.Min)
	assert.Equal(t, orb.Point{2, 1.5}, b.Max)

	for _, bad := range []string{"", "0,0,1", "a,0,1,1", "1,0,0,1", "0,1,1,1"} {
		_, err := ParseRegion(bad)
		assert.Error(t, err, "%q", bad)
	}
}

func TestChannel(t *testing.T) {
	assert.Equal(t, uint8(0), channel(-0.5))
	assert.Equal(t, uint8(255), channel(1.135))
	assert.Equal(t, uint8(128), channel(0.5))
}
