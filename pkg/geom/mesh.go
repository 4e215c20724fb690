package geom

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

// Mesh is an indexed triangle mesh. All buffers are flat: Positions and
// Normals carry 3 floats per vertex, UVs carries 2, Indices carries 3
// uint32s per triangle. Normals and UVs may be empty.
type Mesh struct {
	Positions []float64 `json:"positions"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals   []float64 `json:"normals"`   // [nx0,ny0,nz0, ...]
	UVs       []float64 `json:"uvs"`       // [u0,v0, ...]
	Indices   []uint32  `json:"indices"`   // [i0,i1,i2, ...] triangles
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty reports whether the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return m == nil || len(m.Positions) == 0
}

// Position returns the position of vertex i.
func (m *Mesh) Position(i int) Vec3 {
	return Vec3{m.Positions[3*i], m.Positions[3*i+1], m.Positions[3*i+2]}
}

// SetPosition overwrites the position of vertex i.
func (m *Mesh) SetPosition(i int, p Vec3) {
	m.Positions[3*i] = p.X
	m.Positions[3*i+1] = p.Y
	m.Positions[3*i+2] = p.Z
}

// Normal returns the stored normal of vertex i, or the zero vector when the
// mesh carries no normals.
func (m *Mesh) Normal(i int) Vec3 {
	if 3*i+2 >= len(m.Normals) {
		return Vec3{}
	}
	return Vec3{m.Normals[3*i], m.Normals[3*i+1], m.Normals[3*i+2]}
}

// Triangle returns the three vertex indices of triangle t.
func (m *Mesh) Triangle(t int) (a, b, c int) {
	return int(m.Indices[3*t]), int(m.Indices[3*t+1]), int(m.Indices[3*t+2])
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	if m == nil {
		return nil
	}
	c := &Mesh{
		Positions: make([]float64, len(m.Positions)),
		Indices:   make([]uint32, len(m.Indices)),
	}
	copy(c.Positions, m.Positions)
	copy(c.Indices, m.Indices)
	if len(m.Normals) > 0 {
		c.Normals = make([]float64, len(m.Normals))
		copy(c.Normals, m.Normals)
	}
	if len(m.UVs) > 0 {
		c.UVs = make([]float64, len(m.UVs))
		copy(c.UVs, m.UVs)
	}
	return c
}

// Digest returns a content hash over the position and index buffers.
// Generators compare it across recalculations to detect whether their
// output actually changed; normals and UVs are derived data and excluded.
func (m *Mesh) Digest() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, f := range m.Positions {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}
	for _, i := range m.Indices {
		binary.LittleEndian.PutUint32(buf[:4], i)
		h.Write(buf[:4])
	}
	return h.Sum64()
}

// Equal reports whether two meshes carry identical buffers.
func (m *Mesh) Equal(o *Mesh) bool {
	if m.IsEmpty() && o.IsEmpty() {
		return true
	}
	if m.IsEmpty() != o.IsEmpty() {
		return false
	}
	return float64SliceEqual(m.Positions, o.Positions) &&
		float64SliceEqual(m.Normals, o.Normals) &&
		float64SliceEqual(m.UVs, o.UVs) &&
		uint32SliceEqual(m.Indices, o.Indices)
}

// RecomputeNormals replaces the normal buffer with per-vertex normals
// averaged from adjacent face normals.
func (m *Mesh) RecomputeNormals() {
	if m.IsEmpty() {
		return
	}
	normals := make([]Vec3, m.VertexCount())
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		pa, pb, pc := m.Position(a), m.Position(b), m.Position(c)
		fn := pb.Sub(pa).Cross(pc.Sub(pa))
		normals[a] = normals[a].Add(fn)
		normals[b] = normals[b].Add(fn)
		normals[c] = normals[c].Add(fn)
	}
	m.Normals = make([]float64, 3*len(normals))
	for i, n := range normals {
		u := n.Normalized()
		m.Normals[3*i] = u.X
		m.Normals[3*i+1] = u.Y
		m.Normals[3*i+2] = u.Z
	}
}

func float64SliceEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func uint32SliceEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
