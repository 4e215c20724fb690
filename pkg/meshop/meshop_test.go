package meshop

import (
	"math"
	"testing"

	"github.com/chazu/armature/pkg/geom"
)

func square() []geom.Vec3 {
	return []geom.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0}}
}

func TestExtrudeClosedProfileIsWatertight(t *testing.T) {
	m := Extrude(square(), true, geom.Vec3{Z: 1}, 2)
	if m == nil {
		t.Fatal("extrude returned nil")
	}
	if got := m.VertexCount(); got != 8 {
		t.Errorf("vertex count = %d, want 8", got)
	}
	// 4 quads of wall + 2 triangles per cap.
	if got := m.TriangleCount(); got != 12 {
		t.Errorf("triangle count = %d, want 12", got)
	}
	if loops := boundaryLoops(m); len(loops) != 0 {
		t.Errorf("closed extrusion has %d boundary loops, want 0", len(loops))
	}
}

func TestExtrudeOpenProfileHasNoCaps(t *testing.T) {
	profile := []geom.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 2, Y: 0.5, Z: 0}}
	m := Extrude(profile, false, geom.Vec3{Z: 1}, 1)
	if m == nil {
		t.Fatal("extrude returned nil")
	}
	// 2 segments x 2 triangles, nothing else.
	if got := m.TriangleCount(); got != 4 {
		t.Errorf("triangle count = %d, want 4", got)
	}
}

func TestExtrudeRejectsDegenerateInput(t *testing.T) {
	if Extrude([]geom.Vec3{{X: 0, Y: 0, Z: 0}}, false, geom.Vec3{Z: 1}, 1) != nil {
		t.Error("single-point profile should yield nil")
	}
	if Extrude(square(), true, geom.Vec3{}, 1) != nil {
		t.Error("zero direction should yield nil")
	}
	if Extrude(square(), true, geom.Vec3{Z: 1}, math.NaN()) != nil {
		t.Error("NaN distance should yield nil")
	}
}

func TestLoftResamplesMismatchedSections(t *testing.T) {
	bottom := square()
	top := []geom.Vec3{{X: 0.25, Y: 0.25, Z: 2}, {X: 0.75, Y: 0.25, Z: 2}, {X: 0.75, Y: 0.75, Z: 2}, {X: 0.25, Y: 0.75, Z: 2}, {X: 0.25, Y: 0.5, Z: 2}, {X: 0.25, Y: 0.3, Z: 2}}
	m := Loft([][]geom.Vec3{bottom, top}, true)
	if m == nil {
		t.Fatal("loft returned nil")
	}
	// Both rings resampled to the larger count.
	if got := m.VertexCount(); got != 12 {
		t.Errorf("vertex count = %d, want 12", got)
	}
	if loops := boundaryLoops(m); len(loops) != 0 {
		t.Errorf("closed loft has %d boundary loops, want 0", len(loops))
	}
}

func TestLoftNeedsTwoSections(t *testing.T) {
	if Loft([][]geom.Vec3{square()}, true) != nil {
		t.Error("single-section loft should yield nil")
	}
}

func TestPipeRadius(t *testing.T) {
	path := []geom.Vec3{{X: 0, Y: 0, Z: 0}, {X: 0, Y: 0, Z: 5}, {X: 0, Y: 0, Z: 10}}
	m := Pipe(path, 2, 8)
	if m == nil {
		t.Fatal("pipe returned nil")
	}
	if got := m.VertexCount(); got != 24 {
		t.Fatalf("vertex count = %d, want 3 rings x 8", got)
	}
	// Every ring vertex sits at the pipe radius from its path point.
	for i := 0; i < m.VertexCount(); i++ {
		center := path[i/8]
		if r := m.Position(i).Sub(center).Length(); math.Abs(r-2) > 1e-9 {
			t.Fatalf("vertex %d radius = %g, want 2", i, r)
		}
	}
}

func TestMergeOffsetsIndicesAndReportsJoints(t *testing.T) {
	a := TriangulateLoop(square())
	b := TriangulateLoop([]geom.Vec3{{X: 5, Y: 0, Z: 0}, {X: 6, Y: 0, Z: 0}, {X: 6, Y: 1, Z: 0}})
	merged, joints := Merge(a, b)
	if merged == nil {
		t.Fatal("merge returned nil")
	}
	if got := merged.VertexCount(); got != 7 {
		t.Errorf("vertex count = %d, want 7", got)
	}
	if len(joints) != 2 || joints[0] != 0 || joints[1] != 4 {
		t.Errorf("joints = %v, want [0 4]", joints)
	}
	// Second mesh's triangle references the offset vertices.
	x, y, z := merged.Triangle(merged.TriangleCount() - 1)
	if x < 4 || y < 4 || z < 4 {
		t.Errorf("merged triangle (%d,%d,%d) references un-offset vertices", x, y, z)
	}
}

func TestCapOpenBoundaries(t *testing.T) {
	open := Extrude(square(), true, geom.Vec3{Z: 1}, 1)
	// Strip the caps back off to get an open tube.
	tube := open.Clone()
	tube.Indices = tube.Indices[:8*3]
	if loops := boundaryLoops(tube); len(loops) != 2 {
		t.Fatalf("tube has %d boundary loops, want 2", len(loops))
	}

	capped, did := CapOpenBoundaries(tube)
	if !did {
		t.Fatal("open tube should be capped")
	}
	if loops := boundaryLoops(capped); len(loops) != 0 {
		t.Errorf("capped tube still has %d boundary loops", len(loops))
	}

	// Watertight input is returned unchanged.
	if _, did := CapOpenBoundaries(capped); did {
		t.Error("watertight mesh must come back unchanged")
	}
}

func TestThickenDoublesSurface(t *testing.T) {
	sheet := TriangulateLoop(square())
	shell := Thicken(sheet, 0.5)
	if shell == nil {
		t.Fatal("thicken returned nil")
	}
	if got := shell.VertexCount(); got != 8 {
		t.Errorf("vertex count = %d, want 8", got)
	}
	if loops := boundaryLoops(shell); len(loops) != 0 {
		t.Errorf("shell has %d boundary loops, want 0", len(loops))
	}
}

func TestResampleArcLength(t *testing.T) {
	line := []geom.Vec3{{X: 0, Y: 0, Z: 0}, {X: 10, Y: 0, Z: 0}}
	out := Resample(line, 5, false)
	if len(out) != 5 {
		t.Fatalf("resample count = %d, want 5", len(out))
	}
	for i, p := range out {
		want := 2.5 * float64(i)
		if math.Abs(p.X-want) > 1e-9 {
			t.Errorf("point %d x = %g, want %g", i, p.X, want)
		}
	}
}

func TestSmoothFilletShrinksCorners(t *testing.T) {
	box := Extrude(square(), true, geom.Vec3{Z: 1}, 1)
	rounded := SmoothFillet(box, 2)
	if rounded == nil {
		t.Fatal("fillet returned nil")
	}
	if rounded.VertexCount() != box.VertexCount() {
		t.Fatal("fillet must not change topology")
	}
	// Corners pull inward, so the bounding extent shrinks.
	var maxBefore, maxAfter float64
	for i := 0; i < box.VertexCount(); i++ {
		maxBefore = math.Max(maxBefore, box.Position(i).Sub(geom.Vec3{X: 0.5, Y: 0.5, Z: 0.5}).Length())
		maxAfter = math.Max(maxAfter, rounded.Position(i).Sub(geom.Vec3{X: 0.5, Y: 0.5, Z: 0.5}).Length())
	}
	if maxAfter >= maxBefore {
		t.Errorf("extent after fillet %g, want < %g", maxAfter, maxBefore)
	}
}
