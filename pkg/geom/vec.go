// Package geom defines the geometry entity store and the variant entity
// types it holds. Entities are the persistent geometric objects derived
// from the workflow graph: vertices, curves, surfaces, meshes and B-Reps.
package geom

import "math"

// Vec3 is a 3D vector in model space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Mul returns the component-wise product of v and o.
func (v Vec3) Mul(o Vec3) Vec3 {
	return Vec3{v.X * o.X, v.Y * o.Y, v.Z * o.Z}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the cross product of v and o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Length returns the Euclidean length of v.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalized returns v scaled to unit length, or the zero vector if v is
// too short to normalize.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l < 1e-12 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// IsFinite reports whether all components are finite numbers.
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// IsZero reports whether all components are exactly zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// NearEqual reports whether v and o differ by less than eps in every
// component.
func (v Vec3) NearEqual(o Vec3, eps float64) bool {
	return math.Abs(v.X-o.X) < eps && math.Abs(v.Y-o.Y) < eps && math.Abs(v.Z-o.Z) < eps
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// RotateAbout rotates p by angle radians around the axis through pivot.
// The axis need not be normalized. Rodrigues rotation.
func RotateAbout(p, pivot, axis Vec3, angle float64) Vec3 {
	k := axis.Normalized()
	if k.IsZero() {
		return p
	}
	r := p.Sub(pivot)
	sin, cos := math.Sin(angle), math.Cos(angle)
	rot := r.Scale(cos).
		Add(k.Cross(r).Scale(sin)).
		Add(k.Scale(k.Dot(r) * (1 - cos)))
	return pivot.Add(rot)
}

// ScaleAbout scales p relative to pivot by the per-axis factors.
func ScaleAbout(p, pivot, factors Vec3) Vec3 {
	r := p.Sub(pivot)
	return pivot.Add(r.Mul(factors))
}

// Plane is an infinite plane given by a point and a unit normal.
type Plane struct {
	Origin Vec3 `json:"origin"`
	Normal Vec3 `json:"normal"`
}
