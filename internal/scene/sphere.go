// Package scene hosts the shading engine on a software rasterizer: it
// builds the sphere, runs the vertex and fragment stages and produces
// frames for a given time.
package scene

import (
	"math"

	"github.com/fogleman/fauxgl"
	"github.com/go-gl/mathgl/mgl64"
)

// NewUVSphere builds a latitude/longitude sphere. Texture coordinates
// follow the usual layout: u = phi/2pi around the equator and
// v = 1 - theta/pi from the north pole down.
func NewUVSphere(radius float64, widthSegments, heightSegments int) *fauxgl.Mesh {
	if widthSegments < 3 {
		widthSegments = 3
	}
	if heightSegments < 2 {
		heightSegments = 2
	}

	grid := make([][]fauxgl.Vertex, heightSegments+1)
	for iy := 0; iy <= heightSegments; iy++ {
		v := float64(iy) / float64(heightSegments)
		theta := v * math.Pi
		row := make([]fauxgl.Vertex, widthSegments+1)
		for ix := 0; ix <= widthSegments; ix++ {
			u := float64(ix) / float64(widthSegments)
			n := sphereNormal(u*2*math.Pi, theta)
			row[ix] = fauxgl.Vertex{
				Position: n.MulScalar(radius),
				Normal:   n,
				Texture:  fauxgl.Vector{X: u, Y: 1 - v},
			}
		}
		grid[iy] = row
	}

	var triangles []*fauxgl.Triangle
	for iy := 0; iy < heightSegments; iy++ {
		for ix := 0; ix < widthSegments; ix++ {
			a := grid[iy][ix+1]
			b := grid[iy][ix]
			c := grid[iy+1][ix]
			d := grid[iy+1][ix+1]
			// the pole rows collapse to a single triangle
			if iy != 0 {
				triangles = append(triangles, fauxgl.NewTriangle(a, b, d))
			}
			if iy != heightSegments-1 {
				triangles = append(triangles, fauxgl.NewTriangle(b, c, d))
			}
		}
	}
	return fauxgl.NewTriangleMesh(triangles)
}

// SphereNormal returns the outward unit normal of the sphere point with
// texture coordinate uv.
func SphereNormal(uv mgl64.Vec2) mgl64.Vec3 {
	n := sphereNormal(uv.X()*2*math.Pi, (1-uv.Y())*math.Pi)
	return mgl64.Vec3{n.X, n.Y, n.Z}
}

func sphereNormal(phi, theta float64) fauxgl.Vector {
	return fauxgl.Vector{
		X: -math.Cos(phi) * math.Sin(theta),
		Y: math.Cos(theta),
		Z: math.Sin(phi) * math.Sin(theta),
	}
}
