package apply

import (
	"math"

	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
)

// Deformers covers the in-place operators that are defined relative to an
// un-deformed origin: offset along normal, offset-surface and plastic
// wrap. Each node caches a base snapshot of the target's positions;
// re-deriving world positions from the always-current entity would
// double-apply the deformation on every pass.
type Deformers struct {
	// Type selects which deformer node type this instance handles.
	Type    string
	Eps     Epsilons
	Density *float64
}

func (a *Deformers) Name() string { return a.Type }

func (a *Deformers) Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool) {
	changed := false
	for _, i := range nodesOfType(nodes, a.Type) {
		n := &nodes[i]
		target := outEntityID(n, "target")
		if target.IsZero() {
			continue
		}
		e := store.Get(target)
		if e == nil {
			continue
		}

		base := a.baseSnapshot(n, store, target, e)
		if len(base) == 0 {
			continue
		}

		displaced := a.displace(n, e, base)
		if displaced == nil {
			continue
		}
		if len(displaced) != len(base) {
			continue
		}

		idx := 0
		moved := false
		geom.ForEachPosition(e, func(p geom.Vec3) geom.Vec3 {
			next := displaced[idx]
			idx++
			if !next.NearEqual(p, a.Eps.Translation) {
				moved = true
			}
			return next
		})
		if moved {
			store.RecomputePhysical(e, a.Density)
			changed = true
		}
		n.SetOut("entity", target)
	}
	return nodes, changed
}

// baseSnapshot returns the cached un-deformed positions, re-capturing them
// when the target changed, was recreated upstream this pass, or its
// position count no longer matches.
func (a *Deformers) baseSnapshot(n *graph.Node, store *geom.Store, target geom.EntityID, e *geom.Entity) []geom.Vec3 {
	current := snapshotPositions(e)
	stale := n.Cache.BaseTargetID != target ||
		len(n.Cache.BasePositions) != len(current) ||
		store.IsFresh(target)
	if stale {
		n.Cache.BaseTargetID = target
		n.Cache.BasePositions = current
	}
	return n.Cache.BasePositions
}

// displace computes the deformed positions from the base snapshot.
func (a *Deformers) displace(n *graph.Node, e *geom.Entity, base []geom.Vec3) []geom.Vec3 {
	switch a.Type {
	case graph.TypeOffset:
		distance := paramFloat(n, "distance", math.NaN())
		if !isFinite(distance) {
			return nil
		}
		normals := baseNormals(e, base)
		out := make([]geom.Vec3, len(base))
		for i, p := range base {
			out[i] = p.Add(normals[i].Scale(distance))
		}
		return out

	case graph.TypeOffsetSurface:
		distance := paramFloat(n, "distance", math.NaN())
		if !isFinite(distance) {
			return nil
		}
		dir := surfaceNormal(e, base)
		out := make([]geom.Vec3, len(base))
		for i, p := range base {
			out[i] = p.Add(dir.Scale(distance))
		}
		return out

	case graph.TypePlasticWrap:
		attractor := paramVec3(n, "attractor", geom.Vec3{})
		strength := paramFloat(n, "strength", math.NaN())
		radius := paramFloat(n, "radius", math.NaN())
		if !isFinite(strength) || !isFinite(radius) || radius <= 0 {
			return nil
		}
		out := make([]geom.Vec3, len(base))
		for i, p := range base {
			d := attractor.Sub(p)
			dist := d.Length()
			if dist > radius || dist < 1e-9 {
				out[i] = p
				continue
			}
			t := 1 - dist/radius
			t = t * t * (3 - 2*t) // smoothstep falloff
			out[i] = p.Add(d.Scale(strength * t))
		}
		return out

	default:
		return nil
	}
}

// baseNormals derives per-position normals for the base snapshot. Mesh
// entities rebuild face-averaged normals from the base positions; other
// variants fall back to radial directions from the snapshot centroid.
func baseNormals(e *geom.Entity, base []geom.Vec3) []geom.Vec3 {
	if d, ok := e.Payload.(geom.MeshEntityData); ok && d.Mesh.VertexCount() == len(base) {
		tmp := d.Mesh.Clone()
		for i, p := range base {
			tmp.SetPosition(i, p)
		}
		tmp.RecomputeNormals()
		out := make([]geom.Vec3, len(base))
		for i := range base {
			out[i] = tmp.Normal(i)
		}
		return out
	}

	var centroid geom.Vec3
	for _, p := range base {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Scale(1 / float64(len(base)))
	out := make([]geom.Vec3, len(base))
	for i, p := range base {
		n := p.Sub(centroid).Normalized()
		if n.IsZero() {
			n = geom.Vec3{Z: 1}
		}
		out[i] = n
	}
	return out
}

// surfaceNormal picks the constant offset direction for offset-surface.
func surfaceNormal(e *geom.Entity, base []geom.Vec3) geom.Vec3 {
	switch d := e.Payload.(type) {
	case geom.SurfaceData:
		if !d.Plane.Normal.IsZero() {
			return d.Plane.Normal.Normalized()
		}
	case geom.NurbsSurfaceData:
		// Approximate with the normal of the first control-point triangle.
		if len(base) >= 3 {
			n := base[1].Sub(base[0]).Cross(base[2].Sub(base[0])).Normalized()
			if !n.IsZero() {
				return n
			}
		}
	}
	return geom.Vec3{Z: 1}
}
