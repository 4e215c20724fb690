// Package apply contains the per-type geometry appliers: the units that
// translate evaluated node outputs into create/update/delete operations on
// the entity store. Each applier covers one node category; an applier
// silently skips nodes whose inputs are missing, non-finite or structurally
// incompatible, leaving entity and node untouched until inputs become
// valid.
package apply

import (
	"math"

	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
)

// Applier is the contract every per-type applier satisfies: given the
// current nodes and entity store, perform the correct upserts/deletes for
// every node of its category and report whether anything was applied.
// Appliers mutate the store in place and return the updated node slice.
type Applier interface {
	Name() string
	Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool)
}

// Epsilons are the no-op suppression thresholds for transform deltas.
type Epsilons struct {
	Translation float64 // model units
	Angle       float64 // radians
	Scale       float64 // unitless factor
}

// DefaultEpsilons returns the standard thresholds.
func DefaultEpsilons() Epsilons {
	return Epsilons{Translation: 1e-6, Angle: 1e-4, Scale: 1e-6}
}

// DefaultLayer is the layer entities land on when their node names none.
const DefaultLayer geom.LayerID = "default"

// ---------------------------------------------------------------------------
// Output access
// ---------------------------------------------------------------------------

func outEntityID(n *graph.Node, port string) geom.EntityID {
	if id, ok := n.Out(port).(geom.EntityID); ok {
		return id
	}
	return geom.ZeroEntity
}

func outVec3(n *graph.Node, port string) (geom.Vec3, bool) {
	v, ok := n.Out(port).(geom.Vec3)
	if !ok || !v.IsFinite() {
		return geom.Vec3{}, false
	}
	return v, true
}

func outFloat(n *graph.Node, port string) (float64, bool) {
	switch v := n.Out(port).(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func outBool(n *graph.Node, port string) bool {
	b, _ := n.Out(port).(bool)
	return b
}

func outMesh(n *graph.Node, port string) *geom.Mesh {
	if m, ok := n.Out(port).(*geom.Mesh); ok && !m.IsEmpty() {
		return m
	}
	return nil
}

func outPoints(n *graph.Node, port string) []geom.Vec3 {
	pts, ok := n.Out(port).([]geom.Vec3)
	if !ok {
		return nil
	}
	for _, p := range pts {
		if !p.IsFinite() {
			return nil
		}
	}
	return pts
}

func outFloats(n *graph.Node, port string) []float64 {
	v, _ := n.Out(port).([]float64)
	return v
}

func outEntityIDs(n *graph.Node, port string) []geom.EntityID {
	v, _ := n.Out(port).([]geom.EntityID)
	return v
}

func paramFloat(n *graph.Node, key string, def float64) float64 {
	switch v := n.Params[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return def
		}
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

func paramInt(n *graph.Node, key string, def int) int {
	switch v := n.Params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func paramString(n *graph.Node, key, def string) string {
	if v, ok := n.Params[key].(string); ok && v != "" {
		return v
	}
	return def
}

func paramBool(n *graph.Node, key string) bool {
	b, _ := n.Params[key].(bool)
	return b
}

func paramVec3(n *graph.Node, key string, def geom.Vec3) geom.Vec3 {
	if v, ok := n.Params[key].(geom.Vec3); ok && v.IsFinite() {
		return v
	}
	return def
}

// nodeLayer resolves the layer a node's entities belong to.
func nodeLayer(n *graph.Node) geom.LayerID {
	if v, ok := n.Params["layer"].(string); ok && v != "" {
		return geom.LayerID(v)
	}
	return DefaultLayer
}

// ---------------------------------------------------------------------------
// Shared upsert helpers
// ---------------------------------------------------------------------------

// upsertMeshEntity performs the identity-preserving upsert of a node's
// owned mesh entity: the existing entity is mutated in place while the node
// persists; a kind mismatch recreates it.
//
// Generators emit their mesh in untransformed pose every pass. While the
// emitted mesh matches the digest cached on the node, the stored entity
// keeps its buffers: they may carry transforms applied downstream and must
// not snap back. A digest change means genuine re-parameterization; the
// payload is rebuilt and the entity marked fresh so stale transform caches
// reset and transforms reapply from the new baseline.
func upsertMeshEntity(n *graph.Node, store *geom.Store, mesh *geom.Mesh, prov geom.MeshProvenance, density *float64) bool {
	e := store.Upsert(n.Cache.EntityID, geom.KindMesh, nil, func(id geom.EntityID) *geom.Entity {
		return &geom.Entity{Header: geom.Header{
			ID:         id,
			Layer:      nodeLayer(n),
			SourceNode: string(n.ID),
		}}
	})

	digest := mesh.Digest()
	if _, hadMesh := e.Payload.(geom.MeshEntityData); hadMesh &&
		!store.IsFresh(e.ID) && n.Cache.MeshDigest == digest {
		if e.Physical == nil {
			store.RecomputePhysical(e, density)
		}
		n.Cache.EntityID = e.ID
		n.SetOut("entity", e.ID)
		return false
	}

	e.Payload = geom.MeshEntityData{Mesh: *mesh.Clone(), Provenance: prov}
	store.RecomputePhysical(e, density)
	store.MarkFresh(e.ID)
	n.Cache.MeshDigest = digest
	n.Cache.EntityID = e.ID
	n.SetOut("entity", e.ID)
	return true
}

// transformEntityPositions applies a point transform to an entity and to
// the vertex entities it references (polyline vertices, surface loops).
// Returns the set of mutated entities for physical recompute.
func transformEntityPositions(store *geom.Store, id geom.EntityID, fn func(geom.Vec3) geom.Vec3) []*geom.Entity {
	root := store.Get(id)
	if root == nil {
		return nil
	}
	touched := []*geom.Entity{root}
	geom.ForEachPosition(root, fn)

	for _, vid := range referencedVertices(root) {
		if v := store.Get(vid); v != nil {
			geom.ForEachPosition(v, fn)
			touched = append(touched, v)
		}
	}
	return touched
}

// referencedVertices lists the vertex entities a composite references, in
// order and without duplicates.
func referencedVertices(e *geom.Entity) []geom.EntityID {
	var ids []geom.EntityID
	seen := map[geom.EntityID]bool{}
	push := func(id geom.EntityID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	switch d := e.Payload.(type) {
	case geom.PolylineData:
		for _, id := range d.Vertices {
			push(id)
		}
	case geom.SurfaceData:
		for _, loop := range d.Loops {
			for _, id := range loop {
				push(id)
			}
		}
	}
	return ids
}

// recomputeTouched refreshes physical properties of mutated entities.
func recomputeTouched(store *geom.Store, touched []*geom.Entity, density *float64) {
	for _, e := range touched {
		store.RecomputePhysical(e, density)
	}
}

// snapshotPositions records every mutable position of an entity in
// ForEachPosition order.
func snapshotPositions(e *geom.Entity) []geom.Vec3 {
	var out []geom.Vec3
	geom.ForEachPosition(e, func(p geom.Vec3) geom.Vec3 {
		out = append(out, p)
		return p
	})
	return out
}

// nodesOfType yields indices of nodes with the given type tag.
func nodesOfType(nodes []graph.Node, t string) []int {
	var out []int
	for i := range nodes {
		if nodes[i].Type == t {
			out = append(out, i)
		}
	}
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
