package apply

import (
	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
)

// DependentGenerators is the applier for generator nodes whose geometry is
// derived from other entities rather than from parameters alone: planar
// surfaces built over an upstream profile. It runs after the seed pass has
// been re-evaluated, so a surface wired from a freshly seeded polyline
// materializes in the same recalculation instead of one pass late.
type DependentGenerators struct {
	Density *float64
}

func (a *DependentGenerators) Name() string { return "dependent-generators" }

func (a *DependentGenerators) Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool) {
	changed := false
	for _, i := range nodesOfType(nodes, graph.TypeSurface) {
		changed = a.applySurface(&nodes[i], store) || changed
	}
	return nodes, changed
}

func (a *DependentGenerators) applySurface(n *graph.Node, store *geom.Store) bool {
	loop := outPoints(n, "loop")
	if len(loop) < 3 {
		return false
	}
	mesh := outMesh(n, "mesh")

	vertexIDs, recreated, moved := syncVertices(n, store, loop)

	compat := func(e *geom.Entity) bool {
		d, ok := e.Payload.(geom.SurfaceData)
		return ok && len(d.Loops) == 1 && len(d.Loops[0]) == len(vertexIDs) && !recreated
	}
	e := store.Upsert(n.Cache.EntityID, geom.KindSurface, compat, func(id geom.EntityID) *geom.Entity {
		return &geom.Entity{
			Header:  geom.Header{ID: id, Layer: nodeLayer(n), SourceNode: string(n.ID)},
			Payload: geom.SurfaceData{},
		}
	})

	d, _ := e.Payload.(geom.SurfaceData)
	d.Loops = [][]geom.EntityID{vertexIDs}
	d.Plane = planeThrough(loop)
	if mesh != nil {
		d.Cached = mesh.Clone()
	}
	e.Payload = d
	store.RecomputePhysical(e, a.Density)

	n.Cache.EntityID = e.ID
	n.SetOut("entity", e.ID)
	return recreated || store.IsFresh(e.ID) || moved
}

// planeThrough fits a plane to a loop using Newell's method.
func planeThrough(loop []geom.Vec3) geom.Plane {
	var normal geom.Vec3
	var centroid geom.Vec3
	for i, p := range loop {
		q := loop[(i+1)%len(loop)]
		normal.X += (p.Y - q.Y) * (p.Z + q.Z)
		normal.Y += (p.Z - q.Z) * (p.X + q.X)
		normal.Z += (p.X - q.X) * (p.Y + q.Y)
		centroid = centroid.Add(p)
	}
	return geom.Plane{
		Origin: centroid.Scale(1 / float64(len(loop))),
		Normal: normal.Normalized(),
	}
}
