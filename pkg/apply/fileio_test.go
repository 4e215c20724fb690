package apply

import (
	"encoding/base64"
	"testing"

	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
)

func TestSTLRoundTrip(t *testing.T) {
	src := testBoxMesh(geom.Vec3{X: 1, Y: 2, Z: 3}, 2, 4, 6)
	decoded, err := DecodeSTL(EncodeSTL(src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, want := decoded.TriangleCount(), src.TriangleCount(); got != want {
		t.Fatalf("triangle count = %d, want %d", got, want)
	}
	// STL unwelds vertices; compare per-corner positions instead.
	for tr := 0; tr < src.TriangleCount(); tr++ {
		sa, sb, sc := src.Triangle(tr)
		da, db, dc := decoded.Triangle(tr)
		for _, pair := range [][2]int{{sa, da}, {sb, db}, {sc, dc}} {
			if !src.Position(pair[0]).NearEqual(decoded.Position(pair[1]), 1e-5) {
				t.Fatalf("triangle %d corner mismatch", tr)
			}
		}
	}
}

func TestDecodeSTLTruncated(t *testing.T) {
	raw := EncodeSTL(testBoxMesh(geom.Vec3{}, 1, 1, 1))
	if _, err := DecodeSTL(raw[:len(raw)-10]); err == nil {
		t.Error("truncated body should fail")
	}
	if _, err := DecodeSTL(raw[:40]); err == nil {
		t.Error("truncated header should fail")
	}
}

func TestDecodeOBJ(t *testing.T) {
	src := []byte(`# quad, fan-triangulated
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
f -4 -3 -2
`)
	m, err := DecodeOBJ(src)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := m.VertexCount(); got != 4 {
		t.Errorf("vertex count = %d, want 4", got)
	}
	// Quad fans into 2 triangles, plus 1 from the negative-index face.
	if got := m.TriangleCount(); got != 3 {
		t.Errorf("triangle count = %d, want 3", got)
	}
	a, b, c := m.Triangle(2)
	if a != 0 || b != 1 || c != 2 {
		t.Errorf("negative indices resolved to (%d,%d,%d), want (0,1,2)", a, b, c)
	}
}

func TestDecodeOBJOutOfRangeIndex(t *testing.T) {
	if _, err := DecodeOBJ([]byte("v 0 0 0\nf 1 2 3\n")); err == nil {
		t.Error("face index past the vertex list should fail")
	}
}

func TestFileImportClearsTriggerAndSkipsOnBadPayload(t *testing.T) {
	store := geom.NewStore()
	nodes := []graph.Node{{
		ID:   graph.NewNodeID(),
		Type: graph.TypeFileImport,
		Params: map[string]any{
			"load":    true,
			"format":  "stl",
			"payload": "not base64!!",
		},
	}}
	a := &FileImport{}

	nodes, changed := a.Apply(nodes, store)
	if changed {
		t.Error("failed parse must not touch the store")
	}
	if store.Len() != 0 {
		t.Errorf("store has %d entities, want 0", store.Len())
	}
	if nodes[0].Params["load"] != false {
		t.Error("trigger flag should be cleared after a failed attempt")
	}
	if nodes[0].EvalError == "" {
		t.Error("failure should be recorded on the node")
	}
}

func TestFileImportCreatesEntity(t *testing.T) {
	store := geom.NewStore()
	payload := base64.StdEncoding.EncodeToString(EncodeSTL(testBoxMesh(geom.Vec3{}, 2, 2, 2)))
	nodes := []graph.Node{{
		ID:   graph.NewNodeID(),
		Type: graph.TypeFileImport,
		Params: map[string]any{
			"load":    true,
			"format":  "stl",
			"payload": payload,
		},
	}}
	a := &FileImport{}

	nodes, changed := a.Apply(nodes, store)
	if !changed {
		t.Fatal("valid payload should create a mesh entity")
	}
	e := store.Get(nodes[0].Cache.EntityID)
	if e == nil {
		t.Fatal("import node should own the imported entity")
	}
	d := e.Payload.(geom.MeshEntityData)
	if d.Provenance.Op != "file-import" || d.Provenance.Primitive != "stl" {
		t.Errorf("provenance = %+v", d.Provenance)
	}
	if d.Mesh.TriangleCount() != 12 {
		t.Errorf("triangle count = %d, want 12", d.Mesh.TriangleCount())
	}

	// The trigger is one-shot: the next pass leaves everything alone.
	store.BeginPass()
	if _, changed := a.Apply(nodes, store); changed {
		t.Error("import must not re-run without a new trigger")
	}
}

func TestFileExportProducesPayload(t *testing.T) {
	store := geom.NewStore()
	target := &geom.Entity{
		Header:  geom.Header{ID: geom.NewEntityID()},
		Payload: geom.MeshEntityData{Mesh: *testBoxMesh(geom.Vec3{}, 1, 1, 1)},
	}
	store.Insert(target)

	nodes := []graph.Node{{
		ID:      graph.NewNodeID(),
		Type:    graph.TypeFileExport,
		Params:  map[string]any{"format": "obj"},
		Outputs: map[string]any{"target": target.ID},
	}}
	a := &FileExport{}

	nodes, changed := a.Apply(nodes, store)
	if changed {
		t.Error("export never mutates the store")
	}
	payload, _ := nodes[0].Out("payload").(string)
	if payload == "" {
		t.Fatal("export should publish a payload")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}
	m, err := DecodeOBJ(raw)
	if err != nil {
		t.Fatalf("payload is not OBJ: %v", err)
	}
	if m.TriangleCount() != 12 {
		t.Errorf("exported triangle count = %d, want 12", m.TriangleCount())
	}
}
