package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Distance returns the straight-line distance between two points.
func Distance(a, b mgl64.Vec3) float64 {
	return a.Sub(b).Len()
}

// WithinRange reports whether b lies strictly closer than radius to a.
// Squared distances keep the boundary test exact for axis-aligned points.
func WithinRange(a, b mgl64.Vec3, radius float64) bool {
	d := a.Sub(b)
	return d.Dot(d) < radius*radius
}

// ClipToField clamps every component of p into [0, length].
func ClipToField(p mgl64.Vec3, length float64) mgl64.Vec3 {
	for i := range p {
		p[i] = math.Min(math.Max(p[i], 0), length)
	}
	return p
}

// InField reports whether p lies inside the cube [0, length]^3.
func InField(p mgl64.Vec3, length float64) bool {
	for _, c := range p {
		if c < 0 || c > length || math.IsNaN(c) {
			return false
		}
	}
	return true
}
