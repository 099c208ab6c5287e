package scene

import (
	"github.com/fogleman/fauxgl"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/marbleshade/internal/shading"
	"github.com/MeKo-Tech/marbleshade/internal/warp"
)

// MarbleShader is the fauxgl host of a shading frame. The vertex stage
// displaces along the normal and passes the pattern intensity to the
// fragment stage through the vertex color, which fauxgl interpolates.
type MarbleShader struct {
	Frame  *shading.Frame
	Warp   *warp.Warp
	Matrix fauxgl.Matrix
	// UVScale multiplies texture coordinates before shading.
	UVScale float64
}

// Vertex implements fauxgl.Shader.
func (s *MarbleShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	uv := s.Warp.Apply(mgl64.Vec2{v.Texture.X * s.UVScale, v.Texture.Y * s.UVScale})
	pattern, disp, err := s.Frame.Pattern(uv)
	if err != nil {
		// unreachable: texture coordinates lie in [0,1] and NewRenderer
		// rejects a non-finite UVScale
		pattern, disp = 1, 0
	}
	pos := v.Position.Add(v.Normal.MulScalar(disp))
	v.Output = s.Matrix.MulPositionW(pos)
	v.Color = fauxgl.Color{R: pattern, G: pattern, B: pattern, A: 1}
	return v
}

// Fragment implements fauxgl.Shader.
func (s *MarbleShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	c := s.Frame.Color(v.Color.R)
	return fauxgl.Color{R: clamp01(c[0]), G: clamp01(c[1]), B: clamp01(c[2]), A: 1}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
