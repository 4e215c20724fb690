// Package meshop provides the pure geometry algorithms the default graph
// evaluator uses to fill node outputs: extrusion, lofting, pipe sweeps,
// capping and polygon triangulation. All functions are deterministic and
// never mutate their inputs. SDF-based operations (primitives, booleans,
// isosurfaces) live behind the kernel interface instead.
package meshop

import (
	"math"

	"github.com/chazu/armature/pkg/geom"
)

// Extrude sweeps a profile polyline along a direction, producing side walls
// plus end caps when the profile is closed.
func Extrude(profile []geom.Vec3, closed bool, direction geom.Vec3, distance float64) *geom.Mesh {
	if len(profile) < 2 || !direction.IsFinite() || !isFinite(distance) {
		return nil
	}
	dir := direction.Normalized()
	if dir.IsZero() {
		return nil
	}
	offset := dir.Scale(distance)

	n := len(profile)
	m := &geom.Mesh{}
	// Bottom ring then top ring.
	for _, p := range profile {
		pushPosition(m, p)
	}
	for _, p := range profile {
		pushPosition(m, p.Add(offset))
	}

	segs := n - 1
	if closed {
		segs = n
	}
	for i := 0; i < segs; i++ {
		a := uint32(i)
		b := uint32((i + 1) % n)
		at := a + uint32(n)
		bt := b + uint32(n)
		m.Indices = append(m.Indices, a, b, bt, a, bt, at)
	}

	if closed && n >= 3 {
		capFan(m, 0, n, true)
		capFan(m, n, n, false)
	}

	m.RecomputeNormals()
	return m
}

// Loft builds a ruled surface through the given sections. Sections with
// differing point counts are resampled to the largest count.
func Loft(sections [][]geom.Vec3, closed bool) *geom.Mesh {
	if len(sections) < 2 {
		return nil
	}
	maxN := 0
	for _, s := range sections {
		if len(s) < 2 {
			return nil
		}
		if len(s) > maxN {
			maxN = len(s)
		}
	}

	rings := make([][]geom.Vec3, len(sections))
	for i, s := range sections {
		rings[i] = Resample(s, maxN, closed)
	}

	m := &geom.Mesh{}
	for _, ring := range rings {
		for _, p := range ring {
			pushPosition(m, p)
		}
	}

	segs := maxN - 1
	if closed {
		segs = maxN
	}
	for r := 0; r < len(rings)-1; r++ {
		base := uint32(r * maxN)
		next := uint32((r + 1) * maxN)
		for i := 0; i < segs; i++ {
			a := base + uint32(i)
			b := base + uint32((i+1)%maxN)
			c := next + uint32((i+1)%maxN)
			d := next + uint32(i)
			m.Indices = append(m.Indices, a, b, c, a, c, d)
		}
	}

	if closed && maxN >= 3 {
		capFan(m, 0, maxN, true)
		capFan(m, (len(rings)-1)*maxN, maxN, false)
	}

	m.RecomputeNormals()
	return m
}

// Pipe sweeps a circular cross-section of the given radius along a path,
// producing an open tube. Frames are parallel-transported along the path to
// avoid twisting.
func Pipe(path []geom.Vec3, radius float64, segments int) *geom.Mesh {
	if len(path) < 2 || radius <= 0 {
		return nil
	}
	if segments < 3 {
		segments = 16
	}

	// Tangents per path point.
	tangents := make([]geom.Vec3, len(path))
	for i := range path {
		switch {
		case i == 0:
			tangents[i] = path[1].Sub(path[0]).Normalized()
		case i == len(path)-1:
			tangents[i] = path[i].Sub(path[i-1]).Normalized()
		default:
			tangents[i] = path[i+1].Sub(path[i-1]).Normalized()
		}
	}

	// Initial frame.
	normal := geom.Vec3{Z: 1}.Cross(tangents[0])
	if normal.Length() < 1e-9 {
		normal = geom.Vec3{X: 1}.Cross(tangents[0])
	}
	normal = normal.Normalized()

	m := &geom.Mesh{}
	for i, p := range path {
		if i > 0 {
			// Parallel transport: rotate the frame by the angle between
			// consecutive tangents.
			prev, cur := tangents[i-1], tangents[i]
			axis := prev.Cross(cur)
			if axis.Length() > 1e-12 {
				angle := math.Atan2(axis.Length(), prev.Dot(cur))
				normal = geom.RotateAbout(normal, geom.Vec3{}, axis, angle).Normalized()
			}
		}
		binormal := tangents[i].Cross(normal).Normalized()
		for s := 0; s < segments; s++ {
			theta := 2 * math.Pi * float64(s) / float64(segments)
			q := p.Add(normal.Scale(radius * math.Cos(theta))).Add(binormal.Scale(radius * math.Sin(theta)))
			pushPosition(m, q)
		}
	}

	for r := 0; r < len(path)-1; r++ {
		base := uint32(r * segments)
		next := uint32((r + 1) * segments)
		for s := 0; s < segments; s++ {
			a := base + uint32(s)
			b := base + uint32((s+1)%segments)
			c := next + uint32((s+1)%segments)
			d := next + uint32(s)
			m.Indices = append(m.Indices, a, b, c, a, c, d)
		}
	}

	m.RecomputeNormals()
	return m
}

// Merge concatenates meshes into one buffer set. Joint metadata (the index
// ranges where inputs begin) is returned alongside for provenance.
func Merge(meshes ...*geom.Mesh) (*geom.Mesh, []int) {
	out := &geom.Mesh{}
	var joints []int
	for _, m := range meshes {
		if m.IsEmpty() {
			continue
		}
		joints = append(joints, out.VertexCount())
		base := uint32(out.VertexCount())
		out.Positions = append(out.Positions, m.Positions...)
		for _, idx := range m.Indices {
			out.Indices = append(out.Indices, base+idx)
		}
	}
	if out.IsEmpty() {
		return nil, nil
	}
	out.RecomputeNormals()
	return out, joints
}

// CapOpenBoundaries closes open boundary loops of a mesh by fan
// triangulation. The second return reports whether any cap was added; a
// watertight input comes back unchanged, matching cap-planar-holes
// semantics.
func CapOpenBoundaries(m *geom.Mesh) (*geom.Mesh, bool) {
	if m.IsEmpty() {
		return m, false
	}
	loops := boundaryLoops(m)
	if len(loops) == 0 {
		return m, false
	}
	out := m.Clone()
	for _, loop := range loops {
		if len(loop) < 3 {
			continue
		}
		for i := 1; i < len(loop)-1; i++ {
			out.Indices = append(out.Indices, uint32(loop[0]), uint32(loop[i]), uint32(loop[i+1]))
		}
	}
	out.RecomputeNormals()
	return out, true
}

// Thicken shells an open mesh: the surface is duplicated offset along its
// vertex normals, the copy is flipped, and boundary loops are stitched.
func Thicken(m *geom.Mesh, distance float64) *geom.Mesh {
	if m.IsEmpty() || !isFinite(distance) || distance == 0 {
		return nil
	}
	src := m.Clone()
	src.RecomputeNormals()
	n := src.VertexCount()

	out := &geom.Mesh{}
	out.Positions = append(out.Positions, src.Positions...)
	for i := 0; i < n; i++ {
		p := src.Position(i).Add(src.Normal(i).Scale(distance))
		pushPosition(out, p)
	}
	out.Indices = append(out.Indices, src.Indices...)
	// Offset copy with reversed winding.
	for t := 0; t < src.TriangleCount(); t++ {
		a, b, c := src.Triangle(t)
		out.Indices = append(out.Indices, uint32(a+n), uint32(c+n), uint32(b+n))
	}
	// Stitch boundary loops.
	for _, loop := range boundaryLoops(src) {
		for i := 0; i < len(loop); i++ {
			a := loop[i]
			b := loop[(i+1)%len(loop)]
			out.Indices = append(out.Indices,
				uint32(a), uint32(b), uint32(b+n),
				uint32(a), uint32(b+n), uint32(a+n))
		}
	}
	out.RecomputeNormals()
	return out
}

// SmoothFillet rounds a mesh by blending each vertex toward the average of
// its neighbors. The radius controls blend strength relative to the mesh
// scale. This is the coarse fillet used when no exact B-Rep fillet is
// available.
func SmoothFillet(m *geom.Mesh, radius float64) *geom.Mesh {
	if m.IsEmpty() || radius <= 0 {
		return nil
	}
	return smoothVertices(m, radius, nil)
}

// SmoothFilletEdges rounds a mesh only near the given edge midpoints. The
// affected set is chosen by nearest-vertex distance, which can pick the
// wrong edge on near-degenerate meshes; this is a documented approximation.
func SmoothFilletEdges(m *geom.Mesh, edgeMidpoints []geom.Vec3, radius float64) *geom.Mesh {
	if m.IsEmpty() || radius <= 0 || len(edgeMidpoints) == 0 {
		return nil
	}
	affected := make(map[int]bool)
	for i := 0; i < m.VertexCount(); i++ {
		p := m.Position(i)
		for _, mid := range edgeMidpoints {
			if p.Sub(mid).Length() <= radius {
				affected[i] = true
				break
			}
		}
	}
	if len(affected) == 0 {
		return nil
	}
	return smoothVertices(m, radius, affected)
}

// Resample redistributes a polyline to n points by arc length.
func Resample(points []geom.Vec3, n int, closed bool) []geom.Vec3 {
	if len(points) == 0 || n <= 0 {
		return nil
	}
	if len(points) == n {
		return append([]geom.Vec3(nil), points...)
	}
	src := points
	if closed {
		src = append(append([]geom.Vec3(nil), points...), points[0])
	}
	total := 0.0
	for i := 1; i < len(src); i++ {
		total += src[i].Sub(src[i-1]).Length()
	}
	if total < 1e-12 {
		out := make([]geom.Vec3, n)
		for i := range out {
			out[i] = src[0]
		}
		return out
	}

	denom := float64(n - 1)
	if closed {
		denom = float64(n)
	}
	out := make([]geom.Vec3, 0, n)
	seg := 1
	traveled := 0.0
	for i := 0; i < n; i++ {
		want := total * float64(i) / denom
		for seg < len(src)-1 && traveled+src[seg].Sub(src[seg-1]).Length() < want {
			traveled += src[seg].Sub(src[seg-1]).Length()
			seg++
		}
		segLen := src[seg].Sub(src[seg-1]).Length()
		t := 0.0
		if segLen > 1e-12 {
			t = (want - traveled) / segLen
		}
		if t > 1 {
			t = 1
		}
		out = append(out, src[seg-1].Add(src[seg].Sub(src[seg-1]).Scale(t)))
	}
	return out
}

// TriangulateLoop fan-triangulates a planar loop into a surface mesh.
func TriangulateLoop(loop []geom.Vec3) *geom.Mesh {
	if len(loop) < 3 {
		return nil
	}
	m := &geom.Mesh{}
	for _, p := range loop {
		pushPosition(m, p)
	}
	for i := 1; i < len(loop)-1; i++ {
		m.Indices = append(m.Indices, 0, uint32(i), uint32(i+1))
	}
	m.RecomputeNormals()
	return m
}

// ---------------------------------------------------------------------------
// internals
// ---------------------------------------------------------------------------

func pushPosition(m *geom.Mesh, p geom.Vec3) {
	m.Positions = append(m.Positions, p.X, p.Y, p.Z)
}

// capFan fan-triangulates the ring [start, start+count) of mesh vertices.
// When reverse is true the winding is flipped.
func capFan(m *geom.Mesh, start, count int, reverse bool) {
	for i := 1; i < count-1; i++ {
		a := uint32(start)
		b := uint32(start + i)
		c := uint32(start + i + 1)
		if reverse {
			m.Indices = append(m.Indices, a, c, b)
		} else {
			m.Indices = append(m.Indices, a, b, c)
		}
	}
}

// boundaryLoops finds closed loops of edges used by exactly one triangle.
func boundaryLoops(m *geom.Mesh) [][]int {
	type edge struct{ a, b int }
	count := map[edge]int{}
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		for _, e := range [][2]int{{a, b}, {b, c}, {c, a}} {
			lo, hi := e[0], e[1]
			if lo > hi {
				lo, hi = hi, lo
			}
			count[edge{lo, hi}]++
		}
	}
	// Directed successor map over boundary edges.
	next := map[int]int{}
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		for _, e := range [][2]int{{a, b}, {b, c}, {c, a}} {
			lo, hi := e[0], e[1]
			if lo > hi {
				lo, hi = hi, lo
			}
			if count[edge{lo, hi}] == 1 {
				next[e[0]] = e[1]
			}
		}
	}

	var loops [][]int
	seen := map[int]bool{}
	for start := range next {
		if seen[start] {
			continue
		}
		var loop []int
		cur := start
		for {
			loop = append(loop, cur)
			seen[cur] = true
			n, ok := next[cur]
			if !ok {
				loop = nil // open chain, not a loop
				break
			}
			cur = n
			if cur == start {
				break
			}
			if seen[cur] && cur != start {
				loop = nil
				break
			}
		}
		if len(loop) >= 3 {
			loops = append(loops, loop)
		}
	}
	return loops
}

// smoothVertices blends each (affected) vertex toward its neighbor average.
func smoothVertices(m *geom.Mesh, radius float64, affected map[int]bool) *geom.Mesh {
	out := m.Clone()
	n := out.VertexCount()
	sums := make([]geom.Vec3, n)
	counts := make([]int, n)
	for t := 0; t < out.TriangleCount(); t++ {
		a, b, c := out.Triangle(t)
		for _, pair := range [][2]int{{a, b}, {b, c}, {c, a}} {
			sums[pair[0]] = sums[pair[0]].Add(out.Position(pair[1]))
			counts[pair[0]]++
			sums[pair[1]] = sums[pair[1]].Add(out.Position(pair[0]))
			counts[pair[1]]++
		}
	}
	// Blend factor saturates at 0.5 for large radii.
	blend := math.Min(0.5, radius/10.0)
	for i := 0; i < n; i++ {
		if counts[i] == 0 {
			continue
		}
		if affected != nil && !affected[i] {
			continue
		}
		avg := sums[i].Scale(1 / float64(counts[i]))
		p := out.Position(i)
		out.SetPosition(i, p.Add(avg.Sub(p).Scale(blend)))
	}
	out.RecomputeNormals()
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
