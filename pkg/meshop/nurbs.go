package meshop

import (
	"math"

	"github.com/chazu/armature/pkg/geom"
)

// NurbsCircleData is the control data of an exact NURBS circle: a closed
// rational quadratic curve built from nine control points.
type NurbsCircleData struct {
	Points  []geom.Vec3
	Weights []float64
	Knots   []float64
	Degree  int
}

// NurbsCircle builds the standard nine-point rational quadratic circle of
// the given radius in the plane through center with the given normal.
func NurbsCircle(center, normal geom.Vec3, radius float64) *NurbsCircleData {
	if radius <= 0 {
		return nil
	}
	n := normal.Normalized()
	if n.IsZero() {
		n = geom.Vec3{Z: 1}
	}
	// In-plane basis.
	u := geom.Vec3{Z: 1}.Cross(n)
	if u.Length() < 1e-9 {
		u = geom.Vec3{X: 1}.Cross(n)
	}
	u = u.Normalized()
	v := n.Cross(u).Normalized()

	w := math.Sqrt2 / 2
	// Unit-square control polygon of the full circle.
	local := [][2]float64{
		{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}, {1, 0},
	}
	weights := []float64{1, w, 1, w, 1, w, 1, w, 1}
	knots := []float64{0, 0, 0, 0.25, 0.25, 0.5, 0.5, 0.75, 0.75, 1, 1, 1}

	points := make([]geom.Vec3, len(local))
	for i, l := range local {
		points[i] = center.Add(u.Scale(radius * l[0])).Add(v.Scale(radius * l[1]))
	}
	return &NurbsCircleData{Points: points, Weights: weights, Knots: knots, Degree: 2}
}

// SampleNurbsCurve evaluates a NURBS curve at n uniformly spaced parameter
// values using rational de Boor evaluation. Weights may be nil for a
// non-rational curve.
func SampleNurbsCurve(points []geom.Vec3, weights []float64, knots []float64, degree, n int) []geom.Vec3 {
	if len(points) == 0 || degree < 1 || n < 2 {
		return nil
	}
	if len(knots) != len(points)+degree+1 {
		return nil
	}
	if weights != nil && len(weights) != len(points) {
		return nil
	}

	lo := knots[degree]
	hi := knots[len(knots)-degree-1]
	out := make([]geom.Vec3, 0, n)
	for i := 0; i < n; i++ {
		t := lo + (hi-lo)*float64(i)/float64(n-1)
		out = append(out, deBoor(points, weights, knots, degree, t))
	}
	return out
}

// deBoor evaluates the curve at parameter t in homogeneous coordinates.
func deBoor(points []geom.Vec3, weights []float64, knots []float64, degree int, t float64) geom.Vec3 {
	// Find the knot span.
	k := degree
	for k < len(knots)-degree-2 && t >= knots[k+1] {
		k++
	}

	type hpoint struct {
		v geom.Vec3
		w float64
	}
	d := make([]hpoint, degree+1)
	for j := 0; j <= degree; j++ {
		idx := j + k - degree
		w := 1.0
		if weights != nil {
			w = weights[idx]
		}
		d[j] = hpoint{v: points[idx].Scale(w), w: w}
	}

	for r := 1; r <= degree; r++ {
		for j := degree; j >= r; j-- {
			i := j + k - degree
			den := knots[i+degree-r+1] - knots[i]
			alpha := 0.0
			if den > 1e-12 {
				alpha = (t - knots[i]) / den
			}
			d[j] = hpoint{
				v: d[j-1].v.Scale(1 - alpha).Add(d[j].v.Scale(alpha)),
				w: d[j-1].w*(1-alpha) + d[j].w*alpha,
			}
		}
	}

	if d[degree].w < 1e-12 {
		return d[degree].v
	}
	return d[degree].v.Scale(1 / d[degree].w)
}
