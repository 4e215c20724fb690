package apply

import (
	"math"
	"testing"

	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
)

func insertTestMesh(s *geom.Store, m *geom.Mesh) geom.EntityID {
	e := &geom.Entity{
		Header:  geom.Header{ID: geom.NewEntityID(), Layer: DefaultLayer},
		Payload: geom.MeshEntityData{Mesh: *m.Clone()},
	}
	s.Insert(e)
	return e.ID
}

func meshPositions(t *testing.T, s *geom.Store, id geom.EntityID) []geom.Vec3 {
	t.Helper()
	e := s.Get(id)
	if e == nil {
		t.Fatalf("entity %s missing", id.Short())
	}
	return snapshotPositions(e)
}

func TestOffsetDisplacesFromBaseOnce(t *testing.T) {
	store := geom.NewStore()
	target := insertTestMesh(store, testBoxMesh(geom.Vec3{}, 1, 1, 1))
	base := meshPositions(t, store, target)
	nodes := []graph.Node{{
		ID:      graph.NewNodeID(),
		Type:    graph.TypeOffset,
		Params:  map[string]any{"distance": 0.1},
		Outputs: map[string]any{"target": target},
	}}
	a := &Deformers{Type: graph.TypeOffset, Eps: DefaultEpsilons()}

	nodes, changed := a.Apply(nodes, store)
	if !changed {
		t.Fatal("first application should displace the mesh")
	}
	after := meshPositions(t, store, target)
	for i, p := range after {
		// Unit normal times distance: every corner travels exactly 0.1.
		if d := p.Sub(base[i]).Length(); math.Abs(d-0.1) > 1e-9 {
			t.Fatalf("corner %d traveled %g, want 0.1", i, d)
		}
	}

	// Later passes re-derive from the cached base, never from the already
	// displaced positions.
	store.BeginPass()
	_, changed = a.Apply(nodes, store)
	if changed {
		t.Error("unchanged distance must be a no-op")
	}
	again := meshPositions(t, store, target)
	for i, p := range again {
		if !p.NearEqual(after[i], 1e-12) {
			t.Fatalf("corner %d drifted from %v to %v", i, after[i], p)
		}
	}
}

func TestOffsetDistanceEditIsNotCumulative(t *testing.T) {
	store := geom.NewStore()
	target := insertTestMesh(store, testBoxMesh(geom.Vec3{}, 1, 1, 1))
	base := meshPositions(t, store, target)
	nodes := []graph.Node{{
		ID:      graph.NewNodeID(),
		Type:    graph.TypeOffset,
		Params:  map[string]any{"distance": 0.1},
		Outputs: map[string]any{"target": target},
	}}
	a := &Deformers{Type: graph.TypeOffset, Eps: DefaultEpsilons()}

	nodes, _ = a.Apply(nodes, store)

	store.BeginPass()
	nodes[0].Params["distance"] = 0.3
	_, changed := a.Apply(nodes, store)
	if !changed {
		t.Fatal("distance edit should displace the mesh")
	}
	for i, p := range meshPositions(t, store, target) {
		if d := p.Sub(base[i]).Length(); math.Abs(d-0.3) > 1e-9 {
			t.Fatalf("corner %d is %g from base, want 0.3", i, d)
		}
	}
}

func TestOffsetRecapturesBaseOnRecreatedTarget(t *testing.T) {
	store := geom.NewStore()
	target := insertTestMesh(store, testBoxMesh(geom.Vec3{}, 1, 1, 1))
	nodes := []graph.Node{{
		ID:      graph.NewNodeID(),
		Type:    graph.TypeOffset,
		Params:  map[string]any{"distance": 0.1},
		Outputs: map[string]any{"target": target},
	}}
	a := &Deformers{Type: graph.TypeOffset, Eps: DefaultEpsilons()}

	nodes, _ = a.Apply(nodes, store)

	// Upstream recreates the target with different geometry.
	store.BeginPass()
	store.Delete(target)
	fresh := insertTestMesh(store, testBoxMesh(geom.Vec3{}, 2, 2, 2))
	base := meshPositions(t, store, fresh)
	nodes[0].SetOut("target", fresh)

	_, changed := a.Apply(nodes, store)
	if !changed {
		t.Fatal("fresh target should be displaced")
	}
	for i, p := range meshPositions(t, store, fresh) {
		if d := p.Sub(base[i]).Length(); math.Abs(d-0.1) > 1e-9 {
			t.Fatalf("corner %d is %g from the new base, want 0.1", i, d)
		}
	}
}

func TestPlasticWrapFalloff(t *testing.T) {
	store := geom.NewStore()
	target := insertTestMesh(store, testBoxMesh(geom.Vec3{}, 1, 1, 1))
	base := meshPositions(t, store, target)
	nodes := []graph.Node{{
		ID:   graph.NewNodeID(),
		Type: graph.TypePlasticWrap,
		Params: map[string]any{
			"attractor": geom.Vec3{X: 0.5, Y: 0, Z: 0},
			"strength":  0.5,
			"radius":    1.0,
		},
		Outputs: map[string]any{"target": target},
	}}
	a := &Deformers{Type: graph.TypePlasticWrap, Eps: DefaultEpsilons()}

	_, changed := a.Apply(nodes, store)
	if !changed {
		t.Fatal("corners inside the radius should be pulled")
	}
	after := meshPositions(t, store, target)
	for i, p := range after {
		inRange := geom.Vec3{X: 0.5, Y: 0, Z: 0}.Sub(base[i]).Length() <= 1.0
		moved := !p.NearEqual(base[i], 1e-12)
		if inRange && !moved {
			t.Errorf("corner %d inside the radius did not move", i)
		}
		if !inRange && moved {
			t.Errorf("corner %d outside the radius moved to %v", i, p)
		}
		// Pulled corners end up closer to the attractor.
		if moved {
			before := geom.Vec3{X: 0.5, Y: 0, Z: 0}.Sub(base[i]).Length()
			now := geom.Vec3{X: 0.5, Y: 0, Z: 0}.Sub(p).Length()
			if now >= before {
				t.Errorf("corner %d moved away from the attractor", i)
			}
		}
	}
}

func TestDeformerSkipsInvalidParams(t *testing.T) {
	store := geom.NewStore()
	target := insertTestMesh(store, testBoxMesh(geom.Vec3{}, 1, 1, 1))
	base := meshPositions(t, store, target)
	nodes := []graph.Node{{
		ID:      graph.NewNodeID(),
		Type:    graph.TypeOffset,
		Outputs: map[string]any{"target": target},
	}}
	a := &Deformers{Type: graph.TypeOffset, Eps: DefaultEpsilons()}

	_, changed := a.Apply(nodes, store)
	if changed {
		t.Error("missing distance must be a silent skip")
	}
	for i, p := range meshPositions(t, store, target) {
		if p != base[i] {
			t.Fatalf("corner %d moved without a valid distance", i)
		}
	}
}
