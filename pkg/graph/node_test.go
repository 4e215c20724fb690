package graph

import (
	"testing"

	"github.com/chazu/armature/pkg/geom"
)

func TestCloneNodeIsolatesMutableState(t *testing.T) {
	base := geom.Vec3{X: 1, Y: 2, Z: 3}
	n := Node{
		ID:     NewNodeID(),
		Type:   TypeMove,
		Params: map[string]any{"offset": base},
		Outputs: map[string]any{
			"points": []geom.Vec3{base},
		},
		Cache: Cache{
			VertexIDs:     []geom.EntityID{geom.NewEntityID()},
			PrevTransform: &TransformState{Offset: base},
			BasePositions: []geom.Vec3{base},
		},
	}

	c := CloneNode(n)
	c.Params["offset"] = geom.Vec3{X: 9, Y: 9, Z: 9}
	c.Outputs["points"].([]geom.Vec3)[0] = geom.Vec3{X: 9, Y: 9, Z: 9}
	c.Cache.VertexIDs[0] = geom.NewEntityID()
	c.Cache.PrevTransform.Offset = geom.Vec3{X: 9, Y: 9, Z: 9}
	c.Cache.BasePositions[0] = geom.Vec3{X: 9, Y: 9, Z: 9}

	if n.Params["offset"] != any(base) {
		t.Error("clone shares the params bag")
	}
	if n.Outputs["points"].([]geom.Vec3)[0] != base {
		t.Error("clone shares output slices")
	}
	if n.Cache.VertexIDs[0] == c.Cache.VertexIDs[0] {
		t.Error("clone shares the vertex id slice")
	}
	if n.Cache.PrevTransform.Offset != base {
		t.Error("clone shares the transform state")
	}
	if n.Cache.BasePositions[0] != base {
		t.Error("clone shares the base position snapshot")
	}
}

func TestNodeIndex(t *testing.T) {
	nodes := []Node{
		{ID: "b", Type: TypeBox},
		{ID: "a", Type: TypePoint},
	}
	idx := NodeIndex(nodes)
	if idx["a"] != 1 || idx["b"] != 0 {
		t.Errorf("index = %v, want a:1 b:0", idx)
	}
	if _, ok := idx["ghost"]; ok {
		t.Error("unknown id should not resolve")
	}
}

type knownTypes map[string]bool

func (k knownTypes) Knows(t string) bool               { return k[t] }
func (knownTypes) PortsOf(*Node) ([]Port, []Port)      { return nil, nil }
func (knownTypes) DefaultParams(string) map[string]any { return nil }
func (knownTypes) Compatible(from, to PortType) bool   { return true }

func TestPruneUnknown(t *testing.T) {
	nodes := []Node{
		{ID: "a", Type: TypeBox},
		{ID: "b", Type: "quantum-flux"},
		{ID: "c", Type: TypeMove},
	}
	edges := []Edge{
		{From: "a", FromPort: "entity", To: "c", ToPort: "target"},
		{From: "b", FromPort: "entity", To: "c", ToPort: "source"},
		{From: "a", FromPort: "entity", To: "ghost", ToPort: "target"},
	}

	kept, keptEdges := PruneUnknown(nodes, edges, knownTypes{TypeBox: true, TypeMove: true})
	if len(kept) != 2 {
		t.Fatalf("kept %d nodes, want 2", len(kept))
	}
	for _, n := range kept {
		if n.Type == "quantum-flux" {
			t.Error("unknown node type survived pruning")
		}
	}
	if len(keptEdges) != 1 {
		t.Fatalf("kept %d edges, want only a->c", len(keptEdges))
	}
	if keptEdges[0].To != "c" || keptEdges[0].From != "a" {
		t.Errorf("surviving edge = %+v", keptEdges[0])
	}
}

func TestDecodeConfig(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want NodeConfig
	}{
		{
			"box with typed params",
			Node{Type: TypeBox, Params: map[string]any{
				"width": 2.0, "height": 1.0, "depth": 3.0,
				"center": geom.Vec3{X: 0, Y: 1, Z: 0},
			}},
			BoxConfig{Center: geom.Vec3{X: 0, Y: 1, Z: 0}, Width: 2, Height: 1, Depth: 3},
		},
		{
			"box defaults",
			Node{Type: TypeBox},
			BoxConfig{Width: 1, Height: 1, Depth: 1},
		},
		{
			"vector from json object form",
			Node{Type: TypeMove, Params: map[string]any{
				"offset": map[string]any{"x": 1.0, "y": 2.0, "z": 3.0},
			}},
			MoveConfig{Offset: geom.Vec3{X: 1, Y: 2, Z: 3}},
		},
		{
			"vector from triple form",
			Node{Type: TypePoint, Params: map[string]any{
				"position": []any{1.0, 2, 3.0},
			}},
			PointConfig{Position: geom.Vec3{X: 1, Y: 2, Z: 3}},
		},
		{
			"rotate axis default",
			Node{Type: TypeRotate, Params: map[string]any{"angle": 0.5}},
			RotateConfig{Angle: 0.5, Axis: geom.Vec3{Z: 1}},
		},
		{
			"scale factors default",
			Node{Type: TypeScale},
			ScaleConfig{Factors: geom.Vec3{X: 1, Y: 1, Z: 1}},
		},
		{
			"unknown type has no config",
			Node{Type: "quantum-flux"},
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeConfig(&tt.node); got != tt.want {
				t.Errorf("DecodeConfig = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeConfigPolyline(t *testing.T) {
	n := Node{Type: TypePolyline, Params: map[string]any{
		"points": []any{
			map[string]any{"x": 0.0, "y": 0.0, "z": 0.0},
			map[string]any{"x": 1.0, "y": 0.0, "z": 0.0},
		},
		"closed": true,
	}}
	cfg, ok := DecodeConfig(&n).(PolylineConfig)
	if !ok {
		t.Fatal("polyline node should decode to PolylineConfig")
	}
	if len(cfg.Points) != 2 || cfg.Points[1] != (geom.Vec3{X: 1, Y: 0, Z: 0}) {
		t.Errorf("points = %v", cfg.Points)
	}
	if !cfg.Closed || cfg.Degree != 1 {
		t.Errorf("closed = %v degree = %d, want true / 1", cfg.Closed, cfg.Degree)
	}
}

func TestSortNodesIsStableById(t *testing.T) {
	nodes := []Node{{ID: "c"}, {ID: "a"}, {ID: "b"}}
	SortNodes(nodes)
	if nodes[0].ID != "a" || nodes[1].ID != "b" || nodes[2].ID != "c" {
		t.Errorf("order = %v %v %v", nodes[0].ID, nodes[1].ID, nodes[2].ID)
	}
}
