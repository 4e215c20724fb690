// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"

	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 120

// Kernel implements kernel.Kernel using sdfx.
type Kernel struct {
	// MeshCells is the marching cubes resolution. Zero uses the default.
	MeshCells int
}

// New returns a Kernel with default tessellation resolution.
func New() *Kernel {
	return &Kernel{MeshCells: DefaultMeshCells}
}

func (k *Kernel) cells() int {
	if k.MeshCells > 0 {
		return k.MeshCells
	}
	return DefaultMeshCells
}

// solid wraps an sdf.SDF3 to implement kernel.Solid.
type solid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *solid) BoundingBox() (min, max geom.Vec3) {
	bb := s.s.BoundingBox()
	return fromV3(bb.Min), fromV3(bb.Max)
}

func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*solid).s
}

func wrap(s sdf.SDF3) kernel.Solid {
	return &solid{s: s}
}

func toV3(v geom.Vec3) v3.Vec {
	return v3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

func fromV3(v v3.Vec) geom.Vec3 {
	return geom.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// Box creates a box with the given dimensions, centered at the origin.
func (k *Kernel) Box(x, y, z float64) kernel.Solid {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Box3D: %v", err))
	}
	return wrap(s)
}

// Sphere creates a sphere centered at the origin.
func (k *Kernel) Sphere(radius float64) kernel.Solid {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Sphere3D: %v", err))
	}
	return wrap(s)
}

// Cylinder creates a cylinder centered at the origin, axis along Z.
func (k *Kernel) Cylinder(height, radius float64) kernel.Solid {
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Cylinder3D: %v", err))
	}
	return wrap(s)
}

// Cone creates a truncated cone centered at the origin, axis along Z.
func (k *Kernel) Cone(height, r0, r1 float64) kernel.Solid {
	s, err := sdf.Cone3D(height, r0, r1, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Cone3D: %v", err))
	}
	return wrap(s)
}

// Union returns the union of two solids.
func (k *Kernel) Union(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Union3D(unwrap(a), unwrap(b)))
}

// Difference returns the difference a - b.
func (k *Kernel) Difference(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Difference3D(unwrap(a), unwrap(b)))
}

// Intersection returns the intersection of two solids.
func (k *Kernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Intersect3D(unwrap(a), unwrap(b)))
}

// Translate moves a solid by v.
func (k *Kernel) Translate(s kernel.Solid, v geom.Vec3) kernel.Solid {
	m := sdf.Translate3d(toV3(v))
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// RotateAxis rotates a solid by angle radians about the given axis through
// the origin.
func (k *Kernel) RotateAxis(s kernel.Solid, axis geom.Vec3, angle float64) kernel.Solid {
	u := axis.Normalized()
	if u.IsZero() {
		return s
	}
	m := sdf.Rotate3d(toV3(u), angle)
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// Scale scales a solid per-axis about the origin.
func (k *Kernel) Scale(s kernel.Solid, factors geom.Vec3) kernel.Solid {
	m := sdf.Scale3d(toV3(factors))
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *Kernel) ToMesh(s kernel.Solid) (*geom.Mesh, error) {
	return k.triangulate(unwrap(s))
}

// fieldSDF adapts a kernel.Field to the sdf.SDF3 interface so that the
// sdfx marching cubes renderer can extract its level set.
type fieldSDF struct {
	f         kernel.Field
	threshold float64
	bounds    sdf.Box3
}

func (f *fieldSDF) Evaluate(p v3.Vec) float64 {
	return f.f(fromV3(p)) - f.threshold
}

func (f *fieldSDF) BoundingBox() sdf.Box3 {
	return f.bounds
}

// Isosurface extracts the level set f(p) == threshold inside the bounds.
func (k *Kernel) Isosurface(f kernel.Field, min, max geom.Vec3, threshold float64) (*geom.Mesh, error) {
	s := &fieldSDF{
		f:         f,
		threshold: threshold,
		bounds:    sdf.Box3{Min: toV3(min), Max: toV3(max)},
	}
	return k.triangulate(s)
}

func (k *Kernel) triangulate(s sdf.SDF3) (*geom.Mesh, error) {
	renderer := render.NewMarchingCubesUniform(k.cells())
	triangles := render.ToTriangles(s, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	m := &geom.Mesh{
		Positions: make([]float64, 0, numVerts*3),
		Normals:   make([]float64, 0, numVerts*3),
		Indices:   make([]uint32, 0, numVerts),
	}

	for i, tri := range triangles {
		n := tri.Normal()
		for j := 0; j < 3; j++ {
			v := tri[j]
			m.Positions = append(m.Positions, v.X, v.Y, v.Z)
			m.Normals = append(m.Normals, n.X, n.Y, n.Z)
			m.Indices = append(m.Indices, uint32(i*3+j))
		}
	}

	return m, nil
}
