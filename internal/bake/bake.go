// Package bake evaluates the shading engine over a rectangular UV region
// and stores the result as flat color and displacement maps.
package bake

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/disintegration/gift"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"

	"github.com/MeKo-Tech/marbleshade/internal/shading"
	"github.com/MeKo-Tech/marbleshade/internal/warp"
)

// Params defines a bake.
type Params struct {
	// Region is the UV rectangle mapped onto the output; Min is the top-left pixel.
	Region  orb.Bound
	Warp    *warp.Warp
	Width   int
	Height  int
	Workers int
	Time    float64
	// Blur is an optional Gaussian sigma applied to the color map.
	Blur float32
}

// DefaultRegion is the full unit UV square.
var DefaultRegion = orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}

// Result holds the baked maps.
type Result struct {
	Color *image.RGBA
	// Height stores displacement scaled so that the maximum displacement is 0xffff.
	Height *image.Gray16
	// MinPattern and MaxPattern are the observed pattern intensity range.
	MinPattern float64
	MaxPattern float64
}

// Bake evaluates engine on every pixel center of the region.
// Rows are shaded in parallel.
func Bake(ctx context.Context, engine *shading.Engine, p Params, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("bake size must be positive, got %dx%d", p.Width, p.Height)
	}
	if p.Region.Min.X() >= p.Region.Max.X() || p.Region.Min.Y() >= p.Region.Max.Y() {
		return nil, fmt.Errorf("bake region %v must have min < max on both axes", p.Region)
	}
	if p.Workers <= 0 {
		p.Workers = runtime.NumCPU()
	}

	frame, err := engine.Frame(p.Time)
	if err != nil {
		return nil, err
	}
	maxDisp := engine.Lighting().Displacement(math.Inf(-1))

	res := &Result{
		Color:      image.NewRGBA(image.Rect(0, 0, p.Width, p.Height)),
		Height:     image.NewGray16(image.Rect(0, 0, p.Width, p.Height)),
		MinPattern: math.Inf(1),
		MaxPattern: math.Inf(-1),
	}

	rows := make(chan int, p.Height)
	for y := 0; y < p.Height; y++ {
		rows <- y
	}
	close(rows)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	du := (p.Region.Max.X() - p.Region.Min.X()) / float64(p.Width)
	dv := (p.Region.Max.Y() - p.Region.Min.Y()) / float64(p.Height)

	for i := 0; i < p.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lo, hi := math.Inf(1), math.Inf(-1)
			for y := range rows {
				if ctx.Err() != nil {
					break
				}
				v := p.Region.Min.Y() + (float64(y)+0.5)*dv
				for x := 0; x < p.Width; x++ {
					u := p.Region.Min.X() + (float64(x)+0.5)*du
					uv := p.Warp.Apply(mgl64.Vec2{u, v})
					s, err := frame.Evaluate(uv, mgl64.Vec3{0, 0, 1})
					if err != nil {
						mu.Lock()
						if firstErr == nil {
							firstErr = fmt.Errorf("failed to shade %v: %w", uv, err)
						}
						mu.Unlock()
						return
					}
					lo = math.Min(lo, s.Pattern)
					hi = math.Max(hi, s.Pattern)
					res.Color.SetRGBA(x, y, toRGBA(s.Color))
					res.Height.SetGray16(x, y, color.Gray16{Y: heightValue(s.Displacement, maxDisp)})
				}
			}
			mu.Lock()
			res.MinPattern = math.Min(res.MinPattern, lo)
			res.MaxPattern = math.Max(res.MaxPattern, hi)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.Blur > 0 {
		g := gift.New(gift.GaussianBlur(p.Blur))
		blurred := image.NewRGBA(g.Bounds(res.Color.Bounds()))
		g.Draw(blurred, res.Color)
		res.Color = blurred
	}

	logger.Debug("Bake complete",
		"size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"time", p.Time,
		"pattern_min", res.MinPattern,
		"pattern_max", res.MaxPattern,
	)
	return res, nil
}

// ParseRegion parses "minU,minV,maxU,maxV".
func ParseRegion(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	var vals [4]float64
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		vals[i] = val
	}
	if vals[0] >= vals[2] {
		return orb.Bound{}, fmt.Errorf("minU (%.4f) must be < maxU (%.4f)", vals[0], vals[2])
	}
	if vals[1] >= vals[3] {
		return orb.Bound{}, fmt.Errorf("minV (%.4f) must be < maxV (%.4f)", vals[1], vals[3])
	}
	return orb.Bound{Min: orb.Point{vals[0], vals[1]}, Max: orb.Point{vals[2], vals[3]}}, nil
}

func heightValue(disp, maxDisp float64) uint16 {
	if maxDisp <= 0 {
		return 0
	}
	return uint16(math.Round(disp / maxDisp * 0xffff))
}

func toRGBA(c mgl64.Vec3) color.RGBA {
	return color.RGBA{R: channel(c[0]), G: channel(c[1]), B: channel(c[2]), A: 255}
}

func channel(x float64) uint8 {
	if !(x > 0) {
		return 0
	}
	if x >= 1 {
		return 255
	}
	return uint8(math.Round(x * 255))
}
