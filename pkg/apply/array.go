package apply

import (
	"math"

	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
)

// ArrayDuplicate materializes patterned copies of a source entity: linear
// runs, rectangular grids and polar rings. Clones are rebuilt from the
// current source every pass, so their placement is absolute and never
// drifts; positional identity is kept by reusing the clone IDs from the
// previous pass index-for-index.
type ArrayDuplicate struct {
	Density *float64
}

func (a *ArrayDuplicate) Name() string { return "array" }

func (a *ArrayDuplicate) Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool) {
	changed := false
	for _, i := range nodesOfType(nodes, graph.TypeArray) {
		n := &nodes[i]
		target := outEntityID(n, "target")
		if target.IsZero() {
			continue
		}
		src := store.Get(target)
		if src == nil || !cloneable(src) {
			continue
		}

		transforms := arrayTransforms(n)
		if transforms == nil {
			continue
		}

		prev := n.Cache.CloneIDs
		next := make([]geom.EntityID, len(transforms))
		for j, tf := range transforms {
			var id geom.EntityID
			if j < len(prev) && store.Get(prev[j]) != nil {
				id = prev[j]
			}
			clone, placed := a.placeClone(store, src, id, n, tf)
			next[j] = clone.ID
			changed = placed || changed
		}

		// Shrunk pattern: delete the clones past the new count.
		if len(prev) > len(transforms) {
			store.Delete(prev[len(transforms):]...)
			changed = true
		}

		n.Cache.CloneIDs = next
		n.SetOut("entity", target)
		n.SetOut("clones", next)
	}
	return nodes, changed
}

// placeClone writes one clone into the store, reusing id when non-zero. A
// rebuilt clone identical to the one already stored is left in place, so a
// converged pattern reports no change pass after pass.
func (a *ArrayDuplicate) placeClone(store *geom.Store, src *geom.Entity, id geom.EntityID, n *graph.Node, tf func(geom.Vec3) geom.Vec3) (*geom.Entity, bool) {
	clone := geom.CloneEntity(src)
	if id.IsZero() {
		clone.ID = geom.NewEntityID()
	} else {
		clone.ID = id
	}
	clone.SourceNode = string(n.ID)
	clone.Layer = nodeLayer(n)
	geom.ForEachPosition(clone, tf)
	store.RecomputePhysical(clone, a.Density)
	if existing := store.Get(clone.ID); existing != nil && geom.EntityEqual(existing, clone) {
		return existing, false
	}
	store.Insert(clone)
	return clone, true
}

// cloneable reports whether an entity carries its own positions. Composites
// that reference shared vertex entities (polylines, surfaces) are excluded:
// cloning them would alias or require duplicating their vertex sets.
func cloneable(e *geom.Entity) bool {
	switch e.Payload.(type) {
	case geom.VertexData, geom.MeshEntityData, geom.NurbsCurveData, geom.NurbsSurfaceData, geom.BRepData:
		return true
	default:
		return false
	}
}

// arrayTransforms builds the per-clone position transforms from the node
// parameters. The source itself is copy zero and is not transformed; the
// returned list covers copies 1..count-1. A nil return means the
// parameters are invalid.
func arrayTransforms(n *graph.Node) []func(geom.Vec3) geom.Vec3 {
	count := paramInt(n, "count", 0)
	if count < 1 {
		return nil
	}
	mode := paramString(n, "mode", "linear")

	switch mode {
	case "linear":
		step := paramVec3(n, "step", geom.Vec3{})
		if !step.IsFinite() {
			return nil
		}
		out := make([]func(geom.Vec3) geom.Vec3, 0, count-1)
		for i := 1; i < count; i++ {
			offset := step.Scale(float64(i))
			out = append(out, func(p geom.Vec3) geom.Vec3 { return p.Add(offset) })
		}
		return out

	case "grid":
		cols := paramInt(n, "columns", count)
		if cols < 1 {
			return nil
		}
		stepX := paramVec3(n, "stepX", geom.Vec3{})
		stepY := paramVec3(n, "stepY", geom.Vec3{})
		if !stepX.IsFinite() || !stepY.IsFinite() {
			return nil
		}
		out := make([]func(geom.Vec3) geom.Vec3, 0, count-1)
		for i := 1; i < count; i++ {
			offset := stepX.Scale(float64(i % cols)).Add(stepY.Scale(float64(i / cols)))
			out = append(out, func(p geom.Vec3) geom.Vec3 { return p.Add(offset) })
		}
		return out

	case "polar":
		pivot := paramVec3(n, "pivot", geom.Vec3{})
		axis := paramVec3(n, "axis", geom.Vec3{Z: 1})
		if axis.Normalized().IsZero() {
			return nil
		}
		sweep := paramFloat(n, "angle", 2*math.Pi)
		if !isFinite(sweep) {
			return nil
		}
		out := make([]func(geom.Vec3) geom.Vec3, 0, count-1)
		for i := 1; i < count; i++ {
			angle := sweep * float64(i) / float64(count)
			out = append(out, func(p geom.Vec3) geom.Vec3 {
				return geom.RotateAbout(p, pivot, axis, angle)
			})
		}
		return out

	default:
		return nil
	}
}
