package eval

import (
	"testing"

	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
	"github.com/chazu/armature/pkg/kernel"
)

// fakeSolid and fakeKernel produce exact analytic box meshes so evaluator
// tests don't depend on marching-cubes tessellation.
type fakeSolid struct {
	min, max geom.Vec3
}

func (s *fakeSolid) BoundingBox() (min, max geom.Vec3) { return s.min, s.max }

type fakeKernel struct{}

func (fakeKernel) Box(x, y, z float64) kernel.Solid {
	return &fakeSolid{min: geom.Vec3{X: -x / 2, Y: -y / 2, Z: -z / 2}, max: geom.Vec3{X: x / 2, Y: y / 2, Z: z / 2}}
}
func (k fakeKernel) Sphere(r float64) kernel.Solid           { return k.Box(2*r, 2*r, 2*r) }
func (k fakeKernel) Cylinder(h, r float64) kernel.Solid      { return k.Box(2*r, 2*r, h) }
func (k fakeKernel) Cone(h, r0, r1 float64) kernel.Solid     { return k.Box(2*r0, 2*r0, h) }
func (fakeKernel) Union(a, b kernel.Solid) kernel.Solid      { return a }
func (fakeKernel) Difference(a, b kernel.Solid) kernel.Solid { return a }
func (fakeKernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return b
}

func (fakeKernel) Translate(s kernel.Solid, v geom.Vec3) kernel.Solid {
	f := s.(*fakeSolid)
	return &fakeSolid{min: f.min.Add(v), max: f.max.Add(v)}
}

func (fakeKernel) RotateAxis(s kernel.Solid, axis geom.Vec3, angle float64) kernel.Solid { return s }
func (fakeKernel) Scale(s kernel.Solid, factors geom.Vec3) kernel.Solid                  { return s }

func (fakeKernel) ToMesh(s kernel.Solid) (*geom.Mesh, error) {
	f := s.(*fakeSolid)
	c := f.min.Add(f.max).Scale(0.5)
	d := f.max.Sub(f.min)
	m := &geom.Mesh{}
	corners := []geom.Vec3{
		{X: c.X - d.X/2, Y: c.Y - d.Y/2, Z: c.Z - d.Z/2}, {X: c.X + d.X/2, Y: c.Y - d.Y/2, Z: c.Z - d.Z/2},
		{X: c.X + d.X/2, Y: c.Y + d.Y/2, Z: c.Z - d.Z/2}, {X: c.X - d.X/2, Y: c.Y + d.Y/2, Z: c.Z - d.Z/2},
		{X: c.X - d.X/2, Y: c.Y - d.Y/2, Z: c.Z + d.Z/2}, {X: c.X + d.X/2, Y: c.Y - d.Y/2, Z: c.Z + d.Z/2},
		{X: c.X + d.X/2, Y: c.Y + d.Y/2, Z: c.Z + d.Z/2}, {X: c.X - d.X/2, Y: c.Y + d.Y/2, Z: c.Z + d.Z/2},
	}
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
	return m, nil
}

func (fakeKernel) Isosurface(f kernel.Field, min, max geom.Vec3, threshold float64) (*geom.Mesh, error) {
	return fakeKernel{}.ToMesh(&fakeSolid{min: min, max: max})
}

func TestEvaluateBoxNode(t *testing.T) {
	e := NewEngine(fakeKernel{})
	nodes := []graph.Node{{
		ID:   graph.NewNodeID(),
		Type: graph.TypeBox,
		Params: map[string]any{
			"width": 2.0, "height": 1.0, "depth": 1.0,
			"center": geom.Vec3{X: 0, Y: 3, Z: 0},
		},
	}}

	out := e.Evaluate(nodes, nil, geom.NewStore())
	n := &out[0]
	if n.EvalError != "" {
		t.Fatalf("eval error: %s", n.EvalError)
	}
	mesh, _ := n.Out("mesh").(*geom.Mesh)
	if mesh == nil {
		t.Fatal("box node should output a mesh")
	}
	if got, _ := n.Out("width").(float64); got != 2.0 {
		t.Errorf("width output = %v, want 2", got)
	}
	if got, _ := n.Out("primitive").(string); got != "box" {
		t.Errorf("primitive output = %q, want box", got)
	}
	// Center translation reaches the mesh.
	if p := mesh.Position(0); p.Y != 3-0.5 {
		t.Errorf("translated corner y = %g, want 2.5", p.Y)
	}
}

func TestEvaluateInvalidPrimitiveSkipped(t *testing.T) {
	e := NewEngine(fakeKernel{})
	nodes := []graph.Node{{
		ID:   graph.NewNodeID(),
		Type: graph.TypeBox,
		Params: map[string]any{
			"width": -2.0, "height": 1.0, "depth": 1.0,
		},
	}}

	out := e.Evaluate(nodes, nil, geom.NewStore())
	if out[0].Out("mesh") != nil {
		t.Error("negative dimension must produce no mesh output")
	}
	if out[0].EvalError != "" {
		t.Error("invalid configuration is a silent skip, not an error")
	}
}

func TestEvaluateDependencyOrder(t *testing.T) {
	e := NewEngine(fakeKernel{})
	box := graph.Node{
		ID:   graph.NewNodeID(),
		Type: graph.TypeBox,
		Params: map[string]any{
			"width": 1.0, "height": 1.0, "depth": 1.0,
		},
		Cache: graph.Cache{EntityID: geom.NewEntityID()},
	}
	move := graph.Node{
		ID:     graph.NewNodeID(),
		Type:   graph.TypeMove,
		Params: map[string]any{"offset": geom.Vec3{X: 0, Y: 3, Z: 0}},
	}
	edges := []graph.Edge{{From: box.ID, FromPort: "entity", To: move.ID, ToPort: "target"}}

	out := e.Evaluate([]graph.Node{move, box}, edges, geom.NewStore())
	idx := graph.NodeIndex(out)
	moved := out[idx[move.ID]]
	if got, _ := moved.Out("target").(geom.EntityID); got != box.Cache.EntityID {
		t.Errorf("move target = %s, want the box entity", got.Short())
	}
	if got, _ := moved.Out("offset").(geom.Vec3); got != (geom.Vec3{X: 0, Y: 3, Z: 0}) {
		t.Errorf("offset = %v, want (0,3,0)", got)
	}
}

func TestEvaluateCycleKeepsStaleOutputs(t *testing.T) {
	e := NewEngine(fakeKernel{})
	a := graph.Node{
		ID:      graph.NewNodeID(),
		Type:    graph.TypeMove,
		Outputs: map[string]any{"stale": "kept"},
	}
	b := graph.Node{ID: graph.NewNodeID(), Type: graph.TypeMove}
	edges := []graph.Edge{
		{From: a.ID, FromPort: "entity", To: b.ID, ToPort: "target"},
		{From: b.ID, FromPort: "entity", To: a.ID, ToPort: "target"},
	}

	out := e.Evaluate([]graph.Node{a, b}, edges, geom.NewStore())
	idx := graph.NodeIndex(out)
	if got := out[idx[a.ID]].Out("stale"); got != "kept" {
		t.Errorf("cycle node output = %v, want stale outputs preserved", got)
	}
}

func TestEvaluateDanglingEdgeIgnored(t *testing.T) {
	e := NewEngine(fakeKernel{})
	n := graph.Node{
		ID:     graph.NewNodeID(),
		Type:   graph.TypePoint,
		Params: map[string]any{"position": geom.Vec3{X: 1, Y: 0, Z: 0}},
	}
	edges := []graph.Edge{{From: "ghost", FromPort: "entity", To: n.ID, ToPort: "target"}}

	out := e.Evaluate([]graph.Node{n}, edges, geom.NewStore())
	if got, _ := out[0].Out("position").(geom.Vec3); got != (geom.Vec3{X: 1, Y: 0, Z: 0}) {
		t.Errorf("position = %v, want (1,0,0)", got)
	}
}

func TestEvaluatePolylineFromStoreEntity(t *testing.T) {
	store := geom.NewStore()
	v1 := &geom.Entity{Header: geom.Header{ID: geom.NewEntityID()}, Payload: geom.VertexData{Position: geom.Vec3{X: 0, Y: 0, Z: 0}}}
	v2 := &geom.Entity{Header: geom.Header{ID: geom.NewEntityID()}, Payload: geom.VertexData{Position: geom.Vec3{X: 1, Y: 0, Z: 0}}}
	store.Insert(v1)
	store.Insert(v2)
	poly := &geom.Entity{
		Header:  geom.Header{ID: geom.NewEntityID()},
		Payload: geom.PolylineData{Vertices: []geom.EntityID{v1.ID, v2.ID}},
	}
	store.Insert(poly)

	pts := EntityPoints(store, poly.ID, 16)
	if len(pts) != 2 {
		t.Fatalf("point count = %d, want 2", len(pts))
	}
	if pts[1] != (geom.Vec3{X: 1, Y: 0, Z: 0}) {
		t.Errorf("point 1 = %v, want (1,0,0)", pts[1])
	}
}
