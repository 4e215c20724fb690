package apply

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
)

// FileImport materializes a mesh entity from a file payload attached to the
// node (base64 in the parameters). The import runs once per request: the
// "load" flag arms it and is cleared after the attempt, successful or not,
// so a failed parse does not retrigger every pass. A failed parse mutates
// nothing.
type FileImport struct {
	Density *float64
	Log     *slog.Logger
}

func (a *FileImport) Name() string { return "file-import" }

func (a *FileImport) Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool) {
	changed := false
	for _, i := range nodesOfType(nodes, graph.TypeFileImport) {
		n := &nodes[i]
		if !paramBool(n, "load") {
			if !n.Cache.EntityID.IsZero() {
				n.SetOut("entity", n.Cache.EntityID)
			}
			continue
		}
		n.Params["load"] = false

		payload := paramString(n, "payload", "")
		format := strings.ToLower(paramString(n, "format", "stl"))
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			a.logf(n, "decode payload: %v", err)
			continue
		}

		var mesh *geom.Mesh
		switch format {
		case "stl":
			mesh, err = DecodeSTL(raw)
		case "obj":
			mesh, err = DecodeOBJ(raw)
		default:
			err = fmt.Errorf("unsupported format %q", format)
		}
		if err != nil {
			a.logf(n, "parse %s: %v", format, err)
			continue
		}
		if mesh.IsEmpty() || mesh.TriangleCount() == 0 {
			a.logf(n, "parse %s: no triangles", format)
			continue
		}
		mesh.RecomputeNormals()

		changed = upsertMeshEntity(n, store, mesh, geom.MeshProvenance{
			Op:        "file-import",
			Primitive: format,
		}, a.Density) || changed
	}
	return nodes, changed
}

func (a *FileImport) logf(n *graph.Node, format string, args ...any) {
	n.EvalError = fmt.Sprintf(format, args...)
	if a.Log != nil {
		a.Log.Warn("file import failed", "node", n.ID.Short(), "err", n.EvalError)
	}
}

// FileExport encodes the resolved mesh of the target entity into the node's
// outputs as base64 in the requested format. The store is never mutated.
type FileExport struct{}

func (a *FileExport) Name() string { return "file-export" }

func (a *FileExport) Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool) {
	for _, i := range nodesOfType(nodes, graph.TypeFileExport) {
		n := &nodes[i]
		target := outEntityID(n, "target")
		if target.IsZero() {
			continue
		}
		e := store.Get(target)
		if e == nil {
			continue
		}
		mesh := geom.ResolvedMesh(e)
		if mesh.IsEmpty() || mesh.TriangleCount() == 0 {
			continue
		}

		format := strings.ToLower(paramString(n, "format", "stl"))
		var raw []byte
		switch format {
		case "stl":
			raw = EncodeSTL(mesh)
		case "obj":
			raw = EncodeOBJ(mesh)
		default:
			continue
		}
		n.SetOut("payload", base64.StdEncoding.EncodeToString(raw))
		n.SetOut("format", format)
		n.SetOut("entity", target)
	}
	return nodes, false
}

// ---------------------------------------------------------------------------
// STL (binary)
// ---------------------------------------------------------------------------

const stlHeaderSize = 80

// EncodeSTL renders a mesh as binary STL.
func EncodeSTL(m *geom.Mesh) []byte {
	count := m.TriangleCount()
	buf := bytes.NewBuffer(make([]byte, 0, stlHeaderSize+4+count*50))
	buf.Write(make([]byte, stlHeaderSize))
	binary.Write(buf, binary.LittleEndian, uint32(count))

	for t := 0; t < count; t++ {
		a, b, c := m.Triangle(t)
		pa, pb, pc := m.Position(a), m.Position(b), m.Position(c)
		n := pb.Sub(pa).Cross(pc.Sub(pa)).Normalized()
		writeVec32(buf, n)
		writeVec32(buf, pa)
		writeVec32(buf, pb)
		writeVec32(buf, pc)
		binary.Write(buf, binary.LittleEndian, uint16(0)) // attribute byte count
	}
	return buf.Bytes()
}

// DecodeSTL parses binary STL. Vertices are not welded; the importer keeps
// one vertex per triangle corner.
func DecodeSTL(raw []byte) (*geom.Mesh, error) {
	if len(raw) < stlHeaderSize+4 {
		return nil, fmt.Errorf("stl: truncated header (%d bytes)", len(raw))
	}
	count := binary.LittleEndian.Uint32(raw[stlHeaderSize:])
	want := stlHeaderSize + 4 + int(count)*50
	if len(raw) < want {
		return nil, fmt.Errorf("stl: expected %d bytes for %d triangles, have %d", want, count, len(raw))
	}

	m := &geom.Mesh{}
	off := stlHeaderSize + 4
	for t := 0; t < int(count); t++ {
		off += 12 // facet normal; recomputed after import
		base := uint32(m.VertexCount())
		for v := 0; v < 3; v++ {
			p := readVec32(raw[off:])
			if !p.IsFinite() {
				return nil, fmt.Errorf("stl: non-finite vertex in triangle %d", t)
			}
			m.Positions = append(m.Positions, p.X, p.Y, p.Z)
			off += 12
		}
		off += 2
		m.Indices = append(m.Indices, base, base+1, base+2)
	}
	return m, nil
}

func writeVec32(buf *bytes.Buffer, v geom.Vec3) {
	binary.Write(buf, binary.LittleEndian, float32(v.X))
	binary.Write(buf, binary.LittleEndian, float32(v.Y))
	binary.Write(buf, binary.LittleEndian, float32(v.Z))
}

func readVec32(b []byte) geom.Vec3 {
	return geom.Vec3{
		X: float64(math.Float32frombits(binary.LittleEndian.Uint32(b))),
		Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))),
		Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))),
	}
}

// ---------------------------------------------------------------------------
// OBJ (ASCII)
// ---------------------------------------------------------------------------

// EncodeOBJ renders a mesh as Wavefront OBJ with triangulated faces.
func EncodeOBJ(m *geom.Mesh) []byte {
	var sb strings.Builder
	for v := 0; v < m.VertexCount(); v++ {
		p := m.Position(v)
		fmt.Fprintf(&sb, "v %g %g %g\n", p.X, p.Y, p.Z)
	}
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		fmt.Fprintf(&sb, "f %d %d %d\n", a+1, b+1, c+1)
	}
	return []byte(sb.String())
}

// DecodeOBJ parses Wavefront OBJ, triangulating faces with more than three
// corners as a fan. Normals, UVs, groups and materials are ignored.
func DecodeOBJ(raw []byte) (*geom.Mesh, error) {
	m := &geom.Mesh{}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj: line %d: short vertex", line)
			}
			var p geom.Vec3
			var err error
			if p.X, err = strconv.ParseFloat(fields[1], 64); err == nil {
				if p.Y, err = strconv.ParseFloat(fields[2], 64); err == nil {
					p.Z, err = strconv.ParseFloat(fields[3], 64)
				}
			}
			if err != nil || !p.IsFinite() {
				return nil, fmt.Errorf("obj: line %d: bad vertex", line)
			}
			m.Positions = append(m.Positions, p.X, p.Y, p.Z)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj: line %d: short face", line)
			}
			idx := make([]uint32, 0, len(fields)-1)
			for _, f := range fields[1:] {
				i, err := objIndex(f, m.VertexCount())
				if err != nil {
					return nil, fmt.Errorf("obj: line %d: %v", line, err)
				}
				idx = append(idx, i)
			}
			for k := 1; k+1 < len(idx); k++ {
				m.Indices = append(m.Indices, idx[0], idx[k], idx[k+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("obj: %w", err)
	}
	return m, nil
}

// objIndex resolves one face corner ("7", "7/1", "7//3", "-1") to a
// zero-based vertex index.
func objIndex(field string, vertexCount int) (uint32, error) {
	if slash := strings.IndexByte(field, '/'); slash >= 0 {
		field = field[:slash]
	}
	i, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", field)
	}
	if i < 0 {
		i = vertexCount + i + 1
	}
	if i < 1 || i > vertexCount {
		return 0, fmt.Errorf("index %d out of range", i)
	}
	return uint32(i - 1), nil
}
