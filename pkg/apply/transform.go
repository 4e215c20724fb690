package apply

import (
	"math"

	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
)

// Move translates target entities by the delta between the current and the
// previously applied offset. Translations commute and compose losslessly,
// so a pure delta never drifts and never needs a baseline.
type Move struct {
	Eps     Epsilons
	Density *float64
}

func (a *Move) Name() string { return "move" }

func (a *Move) Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool) {
	changed := false
	for _, i := range nodesOfType(nodes, graph.TypeMove) {
		n := &nodes[i]
		target := outEntityID(n, "target")
		offset, ok := outVec3(n, "offset")
		if target.IsZero() || !ok || store.Get(target) == nil {
			continue
		}

		delta := offset
		if target == n.Cache.PrevTargetID && n.Cache.PrevTransform != nil {
			delta = offset.Sub(n.Cache.PrevTransform.Offset)
		}

		n.Cache.PrevTargetID = target
		n.Cache.PrevTransform = &graph.TransformState{Offset: offset}
		n.SetOut("entity", target)

		if delta.NearEqual(geom.Vec3{}, a.Eps.Translation) {
			continue
		}
		touched := transformEntityPositions(store, target, func(p geom.Vec3) geom.Vec3 {
			return p.Add(delta)
		})
		recomputeTouched(store, touched, a.Density)
		changed = true
	}
	return nodes, changed
}

// Rotate applies rotations about an axis through a pivot. Rotations do not
// commute under a changing axis/pivot: while the axis and pivot are stable
// only the incremental angle delta is applied; when they change, the
// previous absolute rotation is undone first and the new absolute rotation
// applied from the restored baseline. This supports live re-pivoting
// without a pristine baseline copy and without drift.
type Rotate struct {
	Eps     Epsilons
	Density *float64
}

func (a *Rotate) Name() string { return "rotate" }

func (a *Rotate) Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool) {
	changed := false
	for _, i := range nodesOfType(nodes, graph.TypeRotate) {
		n := &nodes[i]
		target := outEntityID(n, "target")
		angle, okA := outFloat(n, "angle")
		axis, okX := outVec3(n, "axis")
		pivot, okP := outVec3(n, "pivot")
		if target.IsZero() || !okA || !okX || !okP || axis.Normalized().IsZero() || store.Get(target) == nil {
			continue
		}

		prev := n.Cache.PrevTransform
		sameTarget := target == n.Cache.PrevTargetID && prev != nil

		var apply func(p geom.Vec3) geom.Vec3
		switch {
		case !sameTarget:
			// New target: absolute application from its current state.
			if math.Abs(angle) >= a.Eps.Angle {
				apply = func(p geom.Vec3) geom.Vec3 {
					return geom.RotateAbout(p, pivot, axis, angle)
				}
			}
		case axis.NearEqual(prev.Axis, a.Eps.Scale) && pivot.NearEqual(prev.Pivot, a.Eps.Translation):
			// Stable axis and pivot: incremental delta only.
			d := angle - prev.Angle
			if math.Abs(d) >= a.Eps.Angle {
				apply = func(p geom.Vec3) geom.Vec3 {
					return geom.RotateAbout(p, pivot, axis, d)
				}
			}
		default:
			// Re-parameterized: undo the previous absolute rotation, then
			// apply the new one from the restored baseline.
			prevAngle, prevAxis, prevPivot := prev.Angle, prev.Axis, prev.Pivot
			apply = func(p geom.Vec3) geom.Vec3 {
				p = geom.RotateAbout(p, prevPivot, prevAxis, -prevAngle)
				return geom.RotateAbout(p, pivot, axis, angle)
			}
		}

		n.Cache.PrevTargetID = target
		n.Cache.PrevTransform = &graph.TransformState{Angle: angle, Axis: axis, Pivot: pivot}
		n.SetOut("entity", target)

		if apply == nil {
			continue
		}
		touched := transformEntityPositions(store, target, apply)
		recomputeTouched(store, touched, a.Density)
		changed = true
	}
	return nodes, changed
}

// Scale applies per-axis scaling about a pivot with the same delta
// strategy as Rotate: a stable pivot composes multiplicatively, a pivot
// change undoes the previous absolute scale first.
type Scale struct {
	Eps     Epsilons
	Density *float64
}

func (a *Scale) Name() string { return "scale" }

func (a *Scale) Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool) {
	changed := false
	for _, i := range nodesOfType(nodes, graph.TypeScale) {
		n := &nodes[i]
		target := outEntityID(n, "target")
		factors, okF := outVec3(n, "factors")
		pivot, okP := outVec3(n, "pivot")
		if target.IsZero() || !okF || !okP || store.Get(target) == nil {
			continue
		}
		// Zero factors are degenerate and unrecoverable; skip.
		if math.Abs(factors.X) < 1e-12 || math.Abs(factors.Y) < 1e-12 || math.Abs(factors.Z) < 1e-12 {
			continue
		}

		prev := n.Cache.PrevTransform
		sameTarget := target == n.Cache.PrevTargetID && prev != nil

		var apply func(p geom.Vec3) geom.Vec3
		switch {
		case !sameTarget:
			if !nearUnit(factors, a.Eps.Scale) {
				apply = func(p geom.Vec3) geom.Vec3 {
					return geom.ScaleAbout(p, pivot, factors)
				}
			}
		case pivot.NearEqual(prev.Pivot, a.Eps.Translation):
			// Stable pivot: apply the multiplicative delta.
			d := geom.Vec3{
				X: factors.X / prev.Factors.X,
				Y: factors.Y / prev.Factors.Y,
				Z: factors.Z / prev.Factors.Z,
			}
			if !nearUnit(d, a.Eps.Scale) {
				apply = func(p geom.Vec3) geom.Vec3 {
					return geom.ScaleAbout(p, pivot, d)
				}
			}
		default:
			inv := geom.Vec3{X: 1 / prev.Factors.X, Y: 1 / prev.Factors.Y, Z: 1 / prev.Factors.Z}
			prevPivot := prev.Pivot
			apply = func(p geom.Vec3) geom.Vec3 {
				p = geom.ScaleAbout(p, prevPivot, inv)
				return geom.ScaleAbout(p, pivot, factors)
			}
		}

		n.Cache.PrevTargetID = target
		n.Cache.PrevTransform = &graph.TransformState{Factors: factors, Pivot: pivot}
		n.SetOut("entity", target)

		if apply == nil {
			continue
		}
		touched := transformEntityPositions(store, target, apply)
		recomputeTouched(store, touched, a.Density)
		changed = true
	}
	return nodes, changed
}

func nearUnit(v geom.Vec3, eps float64) bool {
	return math.Abs(v.X-1) < eps && math.Abs(v.Y-1) < eps && math.Abs(v.Z-1) < eps
}

// ResetStaleTransformCaches clears the previous-transform cache of every
// transform node whose target entity was freshly created or recreated
// earlier in the same recalculation. Without this, the next transform pass
// would compute an incremental delta against a cache describing an entity
// that no longer exists in that state.
type ResetStaleTransformCaches struct{}

func (a *ResetStaleTransformCaches) Name() string { return "reset-stale-transform-caches" }

func (a *ResetStaleTransformCaches) Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool) {
	reset := false
	for i := range nodes {
		n := &nodes[i]
		switch n.Type {
		case graph.TypeMove, graph.TypeRotate, graph.TypeScale:
		default:
			continue
		}
		target := outEntityID(n, "target")
		if target.IsZero() {
			continue
		}
		if store.IsFresh(target) {
			n.Cache.PrevTransform = nil
			n.Cache.PrevTargetID = geom.ZeroEntity
			reset = true
		}
	}
	return nodes, reset
}
