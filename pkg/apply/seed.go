package apply

import (
	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
)

// SeedGenerators is the applier for the parameter-driven generator
// category: point, line, polyline, rectangle, circle and the mesh
// primitives. Seed nodes own their vertex set; while the point count is
// unchanged from the previous pass the vertices are updated in place so
// drags keep entity identity, and a count change deletes the old set and
// mints a fresh one. Generators wired from other entities (surfaces over a
// profile) are handled by DependentGenerators after re-evaluation.
type SeedGenerators struct {
	Density *float64
}

func (a *SeedGenerators) Name() string { return "seed-generators" }

func (a *SeedGenerators) Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool) {
	changed := false
	for i := range nodes {
		n := &nodes[i]
		switch n.Type {
		case graph.TypePoint:
			changed = a.applyPoint(n, store) || changed
		case graph.TypeLine, graph.TypePolyline, graph.TypeRectangle:
			changed = a.applyPolyline(n, store) || changed
		case graph.TypeCircle:
			changed = a.applyCircle(n, store) || changed
		case graph.TypeBox, graph.TypeSphere, graph.TypeCylinder:
			changed = a.applyPrimitive(n, store) || changed
		}
	}
	return nodes, changed
}

func (a *SeedGenerators) applyPoint(n *graph.Node, store *geom.Store) bool {
	pos, ok := outVec3(n, "position")
	if !ok {
		return false
	}
	e := store.Upsert(n.Cache.EntityID, geom.KindVertex, nil, func(id geom.EntityID) *geom.Entity {
		return &geom.Entity{
			Header:  geom.Header{ID: id, Layer: nodeLayer(n), SourceNode: string(n.ID)},
			Payload: geom.VertexData{Position: pos},
		}
	})
	d := e.Payload.(geom.VertexData)
	moved := d.Position != pos
	if moved {
		d.Position = pos
		e.Payload = d
	}
	n.Cache.EntityID = e.ID
	n.SetOut("entity", e.ID)
	return moved || store.IsFresh(e.ID)
}

// applyPolyline maintains the vertex set plus the composite polyline for
// line, polyline and rectangle nodes.
func (a *SeedGenerators) applyPolyline(n *graph.Node, store *geom.Store) bool {
	points := outPoints(n, "points")
	if len(points) < geom.MinPolylineVertices {
		return false
	}
	closed := outBool(n, "closed")
	degree := 1
	if d, ok := n.Out("degree").(int); ok && d > 0 {
		degree = d
	}

	vertexIDs, recreated, moved := syncVertices(n, store, points)

	compat := func(e *geom.Entity) bool {
		d, ok := e.Payload.(geom.PolylineData)
		return ok && len(d.Vertices) == len(vertexIDs) && !recreated
	}
	cached := n.Cache.EntityID
	e := store.Upsert(cached, geom.KindPolyline, compat, func(id geom.EntityID) *geom.Entity {
		return &geom.Entity{
			Header:  geom.Header{ID: id, Layer: nodeLayer(n), SourceNode: string(n.ID)},
			Payload: geom.PolylineData{Vertices: vertexIDs, Closed: closed, Degree: degree},
		}
	})
	d := e.Payload.(geom.PolylineData)
	d.Vertices = vertexIDs
	d.Closed = closed
	d.Degree = degree
	e.Payload = d

	n.Cache.EntityID = e.ID
	n.SetOut("entity", e.ID)
	return recreated || store.IsFresh(e.ID) || moved
}

// syncVertices updates the node's owned vertex entities in place when the
// count is stable, or replaces the whole set when it changed. Reports
// whether the set was replaced and whether any position changed.
func syncVertices(n *graph.Node, store *geom.Store, points []geom.Vec3) (ids []geom.EntityID, recreated, moved bool) {
	ids = n.Cache.VertexIDs
	stable := len(ids) == len(points)
	if stable {
		for _, id := range ids {
			if store.Get(id) == nil {
				stable = false
				break
			}
		}
	}
	if stable {
		for i, id := range ids {
			v := store.Get(id)
			d := v.Payload.(geom.VertexData)
			if d.Position != points[i] {
				d.Position = points[i]
				v.Payload = d
				moved = true
			}
		}
		return ids, false, moved
	}

	// Count changed: retire the old set (cascades to the composite) and
	// mint a fresh one.
	if len(ids) > 0 {
		store.Delete(ids...)
	}
	fresh := make([]geom.EntityID, len(points))
	for i, p := range points {
		e := &geom.Entity{
			Header:  geom.Header{ID: geom.NewEntityID(), Layer: nodeLayer(n), SourceNode: string(n.ID)},
			Payload: geom.VertexData{Position: p},
		}
		store.Insert(e)
		fresh[i] = e.ID
	}
	n.Cache.VertexIDs = fresh
	return fresh, true, true
}

func (a *SeedGenerators) applyCircle(n *graph.Node, store *geom.Store) bool {
	points := outPoints(n, "points")
	knots := outFloats(n, "knots")
	if len(points) == 0 || len(knots) == 0 {
		return false
	}
	weights := outFloats(n, "weights")
	degree := 2
	if d, ok := n.Out("degree").(int); ok && d > 0 {
		degree = d
	}
	samples := outPoints(n, "samples")

	compat := func(e *geom.Entity) bool {
		d, ok := e.Payload.(geom.NurbsCurveData)
		return ok && len(d.Points) == len(points)
	}
	e := store.Upsert(n.Cache.EntityID, geom.KindNurbsCurve, compat, func(id geom.EntityID) *geom.Entity {
		return &geom.Entity{
			Header:  geom.Header{ID: id, Layer: nodeLayer(n), SourceNode: string(n.ID)},
			Payload: geom.NurbsCurveData{},
		}
	})

	old, _ := e.Payload.(geom.NurbsCurveData)
	next := geom.NurbsCurveData{
		Points:  append([]geom.Vec3(nil), points...),
		Weights: append([]float64(nil), weights...),
		Knots:   append([]float64(nil), knots...),
		Degree:  degree,
		Closed:  true,
	}
	if len(samples) > 0 {
		cached := &geom.Mesh{}
		for _, p := range samples {
			cached.Positions = append(cached.Positions, p.X, p.Y, p.Z)
		}
		next.Cached = cached
	}
	changed := len(old.Points) != len(next.Points)
	if !changed {
		for i := range old.Points {
			if old.Points[i] != next.Points[i] {
				changed = true
				break
			}
		}
	}
	e.Payload = next

	n.Cache.EntityID = e.ID
	n.SetOut("entity", e.ID)
	return changed || store.IsFresh(e.ID)
}

func (a *SeedGenerators) applyPrimitive(n *graph.Node, store *geom.Store) bool {
	mesh := outMesh(n, "mesh")
	if mesh == nil {
		return false
	}
	kind, _ := n.Out("primitive").(string)
	params := map[string]float64{}
	for _, key := range []string{"width", "height", "depth", "radius"} {
		if v, ok := outFloat(n, key); ok {
			params[key] = v
		}
	}
	return upsertMeshEntity(n, store, mesh, geom.MeshProvenance{
		Op:        "primitive",
		Primitive: kind,
		Params:    params,
	}, a.Density)
}
