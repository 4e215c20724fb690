// Package kernel defines the abstract geometry kernel interface.
// Implementations (sdfx) provide solid modeling, boolean operations and
// implicit-surface meshing behind this interface. The abstraction keeps the
// rest of the engine free of any particular geometry library, so backends
// can be swapped without touching the appliers.
package kernel

import "github.com/chazu/armature/pkg/geom"

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max geom.Vec3)
}

// Field is a scalar field sampled over space, used for isosurface
// extraction. Implementations must be pure.
type Field func(p geom.Vec3) float64

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) Solid
	Sphere(radius float64) Solid
	Cylinder(height, radius float64) Solid
	Cone(height, r0, r1 float64) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, v geom.Vec3) Solid
	RotateAxis(s Solid, axis geom.Vec3, angle float64) Solid // radians
	Scale(s Solid, factors geom.Vec3) Solid

	// Mesh output
	ToMesh(s Solid) (*geom.Mesh, error)

	// Isosurface extracts the level set field(p) == threshold inside the
	// given bounds.
	Isosurface(f Field, min, max geom.Vec3, threshold float64) (*geom.Mesh, error)
}
