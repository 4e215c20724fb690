package geom

// Kind enumerates the entity variant types.
type Kind int

const (
	KindVertex Kind = iota
	KindPolyline
	KindNurbsCurve
	KindNurbsSurface
	KindSurface
	KindBRep
	KindMesh
)

func (k Kind) String() string {
	switch k {
	case KindVertex:
		return "vertex"
	case KindPolyline:
		return "polyline"
	case KindNurbsCurve:
		return "nurbs-curve"
	case KindNurbsSurface:
		return "nurbs-surface"
	case KindSurface:
		return "surface"
	case KindBRep:
		return "brep"
	case KindMesh:
		return "mesh"
	default:
		return "unknown"
	}
}

// Header carries the fields shared by every entity variant.
type Header struct {
	ID         EntityID       `json:"id"`
	Layer      LayerID        `json:"layer"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	SourceNode string         `json:"source_node,omitempty"` // owning graph node, if any
	Physical   *PhysicalProps `json:"physical,omitempty"`    // nil until first computed
}

// Entity is a single geometric object: a shared header plus a kind-specific
// payload.
type Entity struct {
	Header
	Payload Payload `json:"payload"`
}

// Kind returns the variant kind of the entity's payload.
func (e *Entity) Kind() Kind { return e.Payload.kind() }

// Meta returns the metadata bag, allocating it on first use.
func (e *Entity) Meta() map[string]any {
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	return e.Metadata
}

// Payload is the interface for kind-specific entity payloads.
type Payload interface {
	kind() Kind // marker method restricting implementations to this package
}

// ---------------------------------------------------------------------------
// Vertex
// ---------------------------------------------------------------------------

// VertexData is a single 3D point.
type VertexData struct {
	Position Vec3 `json:"position"`
}

func (VertexData) kind() Kind { return KindVertex }

// ---------------------------------------------------------------------------
// Polyline
// ---------------------------------------------------------------------------

// MinPolylineVertices is the minimum number of vertex references a polyline
// needs to stay valid. Below this the polyline is deleted.
const MinPolylineVertices = 2

// PolylineData is an ordered sequence of vertex references. References are
// one-directional: the polyline knows its vertices, the vertices know
// nothing back.
type PolylineData struct {
	Vertices []EntityID `json:"vertices"`
	Closed   bool       `json:"closed"`
	Degree   int        `json:"degree"`
}

func (PolylineData) kind() Kind { return KindPolyline }

// ---------------------------------------------------------------------------
// NURBS
// ---------------------------------------------------------------------------

// NurbsCurveData is a NURBS curve given by control points, optional weights
// and a knot vector.
type NurbsCurveData struct {
	Points  []Vec3    `json:"points"`
	Weights []float64 `json:"weights,omitempty"`
	Knots   []float64 `json:"knots"`
	Degree  int       `json:"degree"`
	Closed  bool      `json:"closed"`
	Cached  *Mesh     `json:"cached,omitempty"` // tessellation, if computed
}

func (NurbsCurveData) kind() Kind { return KindNurbsCurve }

// NurbsSurfaceData is a NURBS surface. Control points are stored row-major
// as CountU x CountV.
type NurbsSurfaceData struct {
	Points  []Vec3    `json:"points"`
	Weights []float64 `json:"weights,omitempty"`
	CountU  int       `json:"count_u"`
	CountV  int       `json:"count_v"`
	KnotsU  []float64 `json:"knots_u"`
	KnotsV  []float64 `json:"knots_v"`
	DegreeU int       `json:"degree_u"`
	DegreeV int       `json:"degree_v"`
	ClosedU bool      `json:"closed_u"`
	ClosedV bool      `json:"closed_v"`
	Cached  *Mesh     `json:"cached,omitempty"`
}

func (NurbsSurfaceData) kind() Kind { return KindNurbsSurface }

// ---------------------------------------------------------------------------
// Planar surface
// ---------------------------------------------------------------------------

// SurfaceData is a planar surface bounded by loops of vertex references.
type SurfaceData struct {
	Loops  [][]EntityID `json:"loops"` // first loop outer, rest holes
	Plane  Plane        `json:"plane"`
	Cached *Mesh        `json:"cached,omitempty"`
}

func (SurfaceData) kind() Kind { return KindSurface }

// ---------------------------------------------------------------------------
// B-Rep
// ---------------------------------------------------------------------------

// BRepVertex is a topological vertex of a B-Rep.
type BRepVertex struct {
	Position Vec3 `json:"position"`
}

// BRepEdge joins two B-Rep vertices and may carry curve geometry.
type BRepEdge struct {
	Start int    `json:"start"` // index into Vertices
	End   int    `json:"end"`
	Curve []Vec3 `json:"curve,omitempty"` // sampled curve points, if non-linear
}

// BRepFace is bounded by edges and may carry surface geometry.
type BRepFace struct {
	Edges   []int  `json:"edges"` // indices into Edges
	Surface *Plane `json:"surface,omitempty"`
}

// BRepData is a boundary-representation solid: a vertex/edge/face graph
// plus an optional cached tessellation.
type BRepData struct {
	Vertices []BRepVertex `json:"vertices"`
	Edges    []BRepEdge   `json:"edges"`
	Faces    []BRepFace   `json:"faces"`
	Cached   *Mesh        `json:"cached,omitempty"`
}

func (BRepData) kind() Kind { return KindBRep }

// ---------------------------------------------------------------------------
// Mesh-bearing variants
// ---------------------------------------------------------------------------

// MeshProvenance records how a mesh entity was produced so it can be
// regenerated. It is metadata, not an ownership relationship.
type MeshProvenance struct {
	Op        string             `json:"op,omitempty"`        // "primitive", "loft", "extrude", "boolean", ...
	Primitive string             `json:"primitive,omitempty"` // primitive kind for Op == "primitive"
	Params    map[string]float64 `json:"params,omitempty"`
	Sections  []EntityID         `json:"sections,omitempty"` // loft section entities
	Profile   []EntityID         `json:"profile,omitempty"`  // extrude/pipe profile entities
	Distance  float64            `json:"distance,omitempty"` // extrusion distance
	Direction Vec3               `json:"direction,omitempty"`
}

// MeshEntityData is a mesh-bearing entity (raw mesh, loft, extrude,
// primitive, boolean result, solver output, ...).
type MeshEntityData struct {
	Mesh       Mesh           `json:"mesh"`
	Provenance MeshProvenance `json:"provenance"`
}

func (MeshEntityData) kind() Kind { return KindMesh }
