// Package geometry provides the small amount of projective geometry the
// tracking engine needs: applying and inverting a 3x3 homography, and
// hit-testing points against quadrilaterals.
package geometry

import (
	"errors"
	"math"

	"watvision-service/internal/models"
)

// ErrSingularHomography is returned when a homography cannot be inverted.
var ErrSingularHomography = errors.New("homography matrix is singular")

// Apply maps p through the homography h.
// With the service-wide convention that h maps source to live coordinates,
// Apply projects a source-space point into the live frame.
func Apply(h models.Homography, p models.Point) models.Point {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if w == 0 {
		w = 1e-12
	}
	return models.Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

// ApplyQuad maps all four corners of q through h.
func ApplyQuad(h models.Homography, q models.Quad) models.Quad {
	var out models.Quad
	for i, p := range q {
		out[i] = Apply(h, p)
	}
	return out
}

// Invert returns the inverse of h, computed from the adjugate.
func Invert(h models.Homography) (models.Homography, error) {
	a, b, c := h[0], h[1], h[2]
	d, e, f := h[3], h[4], h[5]
	g, hh, i := h[6], h[7], h[8]

	det := a*(e*i-f*hh) - b*(d*i-f*g) + c*(d*hh-e*g)
	if math.Abs(det) < 1e-12 {
		return models.Homography{}, ErrSingularHomography
	}

	inv := models.Homography{
		(e*i - f*hh), (c*hh - b*i), (b*f - c*e),
		(f*g - d*i), (a*i - c*g), (c*d - a*f),
		(d*hh - e*g), (b*g - a*hh), (a*e - b*d),
	}
	for k := range inv {
		inv[k] /= det
	}
	return inv, nil
}

// Identity returns the identity homography.
func Identity() models.Homography {
	return models.Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// PointInQuad reports whether p lies inside (or on the boundary of) q,
// using even-odd ray crossing. Matches the >= 0 semantics of OpenCV's
// pointPolygonTest used by the source material for hit testing.
func PointInQuad(p models.Point, q models.Quad) bool {
	inside := false
	j := len(q) - 1
	for i := 0; i < len(q); i++ {
		pi, pj := q[i], q[j]
		if onSegment(p, pi, pj) {
			return true
		}
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			x := pi.X + (p.Y-pi.Y)/(pj.Y-pi.Y)*(pj.X-pi.X)
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

func onSegment(p, a, b models.Point) bool {
	cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	if math.Abs(cross) > 1e-9*(math.Abs(b.X-a.X)+math.Abs(b.Y-a.Y)+1) {
		return false
	}
	return p.X >= math.Min(a.X, b.X)-1e-9 && p.X <= math.Max(a.X, b.X)+1e-9 &&
		p.Y >= math.Min(a.Y, b.Y)-1e-9 && p.Y <= math.Max(a.Y, b.Y)+1e-9
}

// QuadCenter returns the centroid of the four corners. It is the
// representative point used for distance-to-target computation.
func QuadCenter(q models.Quad) models.Point {
	var cx, cy float64
	for _, p := range q {
		cx += p.X
		cy += p.Y
	}
	return models.Point{X: cx / 4, Y: cy / 4}
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b models.Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// RectQuad builds an axis-aligned quad from two opposite corners.
func RectQuad(x0, y0, x1, y1 float64) models.Quad {
	return models.Quad{
		{X: x0, Y: y0},
		{X: x1, Y: y0},
		{X: x1, Y: y1},
		{X: x0, Y: y1},
	}
}
