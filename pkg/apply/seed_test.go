package apply

import (
	"testing"

	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
)

// testBoxMesh builds a closed 12-triangle box with outward winding.
func testBoxMesh(c geom.Vec3, w, h, d float64) *geom.Mesh {
	x, y, z := w/2, h/2, d/2
	corners := []geom.Vec3{
		{X: c.X - x, Y: c.Y - y, Z: c.Z - z}, {X: c.X + x, Y: c.Y - y, Z: c.Z - z},
		{X: c.X + x, Y: c.Y + y, Z: c.Z - z}, {X: c.X - x, Y: c.Y + y, Z: c.Z - z},
		{X: c.X - x, Y: c.Y - y, Z: c.Z + z}, {X: c.X + x, Y: c.Y - y, Z: c.Z + z},
		{X: c.X + x, Y: c.Y + y, Z: c.Z + z}, {X: c.X - x, Y: c.Y + y, Z: c.Z + z},
	}
	m := &geom.Mesh{}
	for _, p := range corners {
		m.Positions = append(m.Positions, p.X, p.Y, p.Z)
	}
	m.Indices = []uint32{
		0, 2, 1, 0, 3, 2,
		4, 5, 6, 4, 6, 7,
		0, 1, 5, 0, 5, 4,
		2, 3, 7, 2, 7, 6,
		0, 4, 7, 0, 7, 3,
		1, 2, 6, 1, 6, 5,
	}
	m.RecomputeNormals()
	return m
}

func polylineNode(points []geom.Vec3, closed bool) graph.Node {
	return graph.Node{
		ID:   graph.NewNodeID(),
		Type: graph.TypePolyline,
		Outputs: map[string]any{
			"points": points,
			"closed": closed,
		},
	}
}

func TestPointKeepsIdentityAcrossDrag(t *testing.T) {
	store := geom.NewStore()
	nodes := []graph.Node{{
		ID:      graph.NewNodeID(),
		Type:    graph.TypePoint,
		Outputs: map[string]any{"position": geom.Vec3{X: 1, Y: 2, Z: 3}},
	}}
	a := &SeedGenerators{}

	nodes, changed := a.Apply(nodes, store)
	if !changed {
		t.Fatal("first pass should create the vertex")
	}
	id := nodes[0].Cache.EntityID
	if id.IsZero() || store.Get(id) == nil {
		t.Fatal("point node should own a vertex entity")
	}

	store.BeginPass()
	nodes[0].SetOut("position", geom.Vec3{X: 1, Y: 2, Z: 9})
	nodes, changed = a.Apply(nodes, store)
	if !changed {
		t.Fatal("position edit should be applied")
	}
	if nodes[0].Cache.EntityID != id {
		t.Error("dragging a point must not change entity identity")
	}
	got := store.Get(id).Payload.(geom.VertexData).Position
	if got != (geom.Vec3{X: 1, Y: 2, Z: 9}) {
		t.Errorf("position = %v, want (1,2,9)", got)
	}
}

func TestPolylineCountStableUpdatesInPlace(t *testing.T) {
	store := geom.NewStore()
	pts := []geom.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}}
	nodes := []graph.Node{polylineNode(pts, false)}
	a := &SeedGenerators{}

	nodes, _ = a.Apply(nodes, store)
	polyID := nodes[0].Cache.EntityID
	vertexIDs := append([]geom.EntityID(nil), nodes[0].Cache.VertexIDs...)
	if len(vertexIDs) != 3 || store.Len() != 4 {
		t.Fatalf("want 3 vertices + 1 polyline, store has %d entities", store.Len())
	}

	// Same count, new positions: every identity survives.
	store.BeginPass()
	moved := []geom.Vec3{{X: 0, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}, {X: 2, Y: 2, Z: 0}}
	nodes[0].SetOut("points", moved)
	nodes, changed := a.Apply(nodes, store)
	if !changed {
		t.Fatal("moved vertices should report a change")
	}
	if nodes[0].Cache.EntityID != polyID {
		t.Error("polyline identity must survive a count-stable update")
	}
	for i, id := range nodes[0].Cache.VertexIDs {
		if id != vertexIDs[i] {
			t.Errorf("vertex %d identity changed", i)
		}
		got := store.Get(id).Payload.(geom.VertexData).Position
		if got != moved[i] {
			t.Errorf("vertex %d = %v, want %v", i, got, moved[i])
		}
	}
}

func TestPolylineCountChangeRecreates(t *testing.T) {
	store := geom.NewStore()
	nodes := []graph.Node{polylineNode([]geom.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}}, false)}
	a := &SeedGenerators{}

	nodes, _ = a.Apply(nodes, store)
	polyID := nodes[0].Cache.EntityID
	oldVertices := append([]geom.EntityID(nil), nodes[0].Cache.VertexIDs...)

	store.BeginPass()
	nodes[0].SetOut("points", []geom.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0}})
	nodes, _ = a.Apply(nodes, store)

	if nodes[0].Cache.EntityID == polyID {
		t.Error("vertex count change must recreate the polyline")
	}
	for _, id := range oldVertices {
		if store.Get(id) != nil {
			t.Errorf("old vertex %s should be deleted", id.Short())
		}
	}
	if got := len(nodes[0].Cache.VertexIDs); got != 4 {
		t.Errorf("new vertex count = %d, want 4", got)
	}
	if store.Len() != 5 {
		t.Errorf("store has %d entities, want 4 vertices + 1 polyline", store.Len())
	}
}

func TestPolylineTooFewPointsSkipped(t *testing.T) {
	store := geom.NewStore()
	nodes := []graph.Node{polylineNode([]geom.Vec3{{X: 0, Y: 0, Z: 0}}, false)}
	a := &SeedGenerators{}

	if _, changed := a.Apply(nodes, store); changed {
		t.Error("single-point polyline must be skipped")
	}
	if store.Len() != 0 {
		t.Errorf("store should stay empty, has %d entities", store.Len())
	}
}

func TestPrimitiveUpsert(t *testing.T) {
	store := geom.NewStore()
	mesh := testBoxMesh(geom.Vec3{}, 2, 1, 1)
	nodes := []graph.Node{{
		ID:   graph.NewNodeID(),
		Type: graph.TypeBox,
		Outputs: map[string]any{
			"mesh":      mesh,
			"primitive": "box",
			"width":     2.0,
			"height":    1.0,
			"depth":     1.0,
		},
	}}
	a := &SeedGenerators{}

	nodes, changed := a.Apply(nodes, store)
	if !changed {
		t.Fatal("first pass should create the mesh entity")
	}
	id := nodes[0].Cache.EntityID
	e := store.Get(id)
	if e == nil {
		t.Fatal("box node should own a mesh entity")
	}
	d := e.Payload.(geom.MeshEntityData)
	if d.Provenance.Op != "primitive" || d.Provenance.Primitive != "box" {
		t.Errorf("provenance = %+v, want primitive/box", d.Provenance)
	}
	if e.Physical == nil {
		t.Error("mesh entity should carry physical props")
	}

	// Identical mesh on the next pass: identity kept, nothing changed.
	store.BeginPass()
	nodes, changed = a.Apply(nodes, store)
	if changed {
		t.Error("identical mesh should be a no-op")
	}
	if nodes[0].Cache.EntityID != id {
		t.Error("mesh entity identity must be stable")
	}
}
