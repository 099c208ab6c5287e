package scene

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/disintegration/gift"
	"github.com/fogleman/fauxgl"

	"github.com/MeKo-Tech/marbleshade/internal/shading"
	"github.com/MeKo-Tech/marbleshade/internal/warp"
)

// Camera describes a perspective view.
type Camera struct {
	Eye    fauxgl.Vector
	Center fauxgl.Vector
	Up     fauxgl.Vector
	FovY   float64
	Near   float64
	Far    float64
}

// DefaultCamera looks at the origin from (0,0,5) with a 50 degree field of view.
func DefaultCamera() Camera {
	return Camera{
		Eye:    fauxgl.V(0, 0, 5),
		Center: fauxgl.V(0, 0, 0),
		Up:     fauxgl.V(0, 1, 0),
		FovY:   50,
		Near:   0.1,
		Far:    100,
	}
}

// Options configures a Renderer.
type Options struct {
	Background  color.Color
	LabelColor  color.Color
	Warp        *warp.Warp
	Camera      Camera
	Width       int
	Height      int
	Supersample int
	Segments    int
	Radius      float64
	UVScale     float64
	Label       bool
}

// DefaultOptions returns a 512x512 render of a unit sphere with 32x32 segments.
func DefaultOptions() Options {
	return Options{
		Width:       512,
		Height:      512,
		Supersample: 2,
		Segments:    32,
		Radius:      1,
		UVScale:     1,
		Camera:      DefaultCamera(),
		Background:  color.Black,
		LabelColor:  color.White,
	}
}

// Renderer draws frames of the shaded sphere. The mesh is shared and
// read-only, so frames may be rendered concurrently.
type Renderer struct {
	engine *shading.Engine
	mesh   *fauxgl.Mesh
	logger *slog.Logger
	opts   Options
}

// NewRenderer validates opts and builds the sphere mesh.
func NewRenderer(engine *shading.Engine, opts Options, logger *slog.Logger) (*Renderer, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %dx%d", opts.Width, opts.Height)
	}
	if opts.Supersample <= 0 {
		opts.Supersample = 1
	}
	if opts.Segments <= 0 {
		opts.Segments = 32
	}
	if opts.Radius <= 0 {
		opts.Radius = 1
	}
	if math.IsNaN(opts.UVScale) || math.IsInf(opts.UVScale, 0) {
		return nil, fmt.Errorf("uv scale must be finite, got %v", opts.UVScale)
	}
	if opts.UVScale == 0 {
		opts.UVScale = 1
	}
	if opts.Camera.FovY <= 0 {
		opts.Camera = DefaultCamera()
	}
	if opts.Background == nil {
		opts.Background = color.Black
	}
	if opts.LabelColor == nil {
		opts.LabelColor = color.White
	}

	return &Renderer{
		engine: engine,
		mesh:   NewUVSphere(opts.Radius, opts.Segments, opts.Segments),
		logger: logger,
		opts:   opts,
	}, nil
}

func (r *Renderer) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// Options returns the effective options.
func (r *Renderer) Options() Options { return r.opts }

// RenderFrame rasterizes the sphere at time.
func (r *Renderer) RenderFrame(ctx context.Context, time float64) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame, err := r.engine.Frame(time)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare frame: %w", err)
	}

	ss := r.opts.Supersample
	w, h := r.opts.Width*ss, r.opts.Height*ss
	cam := r.opts.Camera
	aspect := float64(w) / float64(h)
	matrix := fauxgl.LookAt(cam.Eye, cam.Center, cam.Up).Perspective(cam.FovY, aspect, cam.Near, cam.Far)

	dc := fauxgl.NewContext(w, h)
	dc.ClearColor = fauxgl.MakeColor(r.opts.Background)
	dc.ClearColorBuffer()
	dc.ClearDepthBuffer()
	dc.Cull = fauxgl.CullNone
	dc.Shader = &MarbleShader{
		Frame:   frame,
		Warp:    r.opts.Warp,
		Matrix:  matrix,
		UVScale: r.opts.UVScale,
	}
	info := dc.DrawMesh(r.mesh)
	r.log().Debug("Frame rasterized",
		"time", time,
		"triangles", len(r.mesh.Triangles),
		"pixels", info.TotalPixels,
		"updated_pixels", info.UpdatedPixels,
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g := gift.New(gift.Resize(r.opts.Width, r.opts.Height, gift.LanczosResampling))
	out := image.NewRGBA(g.Bounds(image.Rect(0, 0, w, h)))
	g.Draw(out, dc.Image())

	if r.opts.Label {
		DrawTimeLabel(out, time, r.opts.LabelColor)
	}
	return out, nil
}
