package geom

import (
	"reflect"
	"sort"
)

// Store is the canonical arena of geometry entities, keyed by EntityID.
// Lookup is O(1). The store is owned by one recalculation at a time; it is
// not safe for concurrent writers.
type Store struct {
	entities map[EntityID]*Entity
	fresh    map[EntityID]bool // ids created or recreated in the current pass
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entities: make(map[EntityID]*Entity),
		fresh:    make(map[EntityID]bool),
	}
}

// Get returns the entity with the given id, or nil.
func (s *Store) Get(id EntityID) *Entity {
	return s.entities[id]
}

// Len returns the number of entities.
func (s *Store) Len() int { return len(s.entities) }

// IDs returns all entity ids in sorted order.
func (s *Store) IDs() []EntityID {
	ids := make([]EntityID, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// All returns all entities sorted by id.
func (s *Store) All() []*Entity {
	out := make([]*Entity, 0, len(s.entities))
	for _, id := range s.IDs() {
		out = append(out, s.entities[id])
	}
	return out
}

// IDSet returns the set of entity ids.
func (s *Store) IDSet() map[EntityID]bool {
	set := make(map[EntityID]bool, len(s.entities))
	for id := range s.entities {
		set[id] = true
	}
	return set
}

// Insert adds an entity and marks it fresh. The caller owns id uniqueness.
func (s *Store) Insert(e *Entity) {
	s.entities[e.ID] = e
	s.fresh[e.ID] = true
}

// BeginPass clears the fresh-id tracking at the start of a recalculation.
func (s *Store) BeginPass() {
	s.fresh = make(map[EntityID]bool)
}

// IsFresh reports whether the id was created or recreated since BeginPass.
func (s *Store) IsFresh(id EntityID) bool { return s.fresh[id] }

// MarkFresh flags an existing entity as rebuilt in the current pass, so
// downstream appliers treat it like a newly created one.
func (s *Store) MarkFresh(id EntityID) { s.fresh[id] = true }

// Upsert resolves the identity rule for a single entity slot. When an
// entity with the given id exists, has the wanted kind, and passes the
// optional compat check, it is returned for in-place mutation. Otherwise
// the stale entity (and its orphaned dependents) is deleted and a fresh
// entity built by build is inserted under a new id.
//
// A zero id always builds fresh.
func (s *Store) Upsert(id EntityID, want Kind, compat func(*Entity) bool, build func(id EntityID) *Entity) *Entity {
	if !id.IsZero() {
		if e := s.entities[id]; e != nil {
			if e.Kind() == want && (compat == nil || compat(e)) {
				return e
			}
			s.Delete(id)
		}
	}
	e := build(NewEntityID())
	s.Insert(e)
	return e
}

// Delete removes the given entities and cascades per the reference rules:
// polylines lose references to deleted vertices and are themselves deleted
// (with their now-unreferenced vertices) when they drop below the minimum
// vertex count; surface loops are pruned the same way.
func (s *Store) Delete(ids ...EntityID) {
	doomed := map[EntityID]bool{}
	for _, id := range ids {
		if _, ok := s.entities[id]; ok {
			doomed[id] = true
		}
	}
	if len(doomed) == 0 {
		return
	}
	for id := range doomed {
		delete(s.entities, id)
		delete(s.fresh, id)
	}
	s.cascade(doomed)
}

// cascade repairs references after a deletion, deleting dependents that
// became invalid. Runs to a fixed point.
func (s *Store) cascade(removed map[EntityID]bool) {
	for {
		var next []EntityID
		for _, e := range s.entities {
			switch d := e.Payload.(type) {
			case PolylineData:
				kept := pruneRefs(d.Vertices, removed)
				if len(kept) < len(d.Vertices) {
					if len(kept) < MinPolylineVertices {
						// The polyline dies and takes its remaining
						// vertices with it, unless shared.
						next = append(next, e.ID)
						for _, vid := range kept {
							if s.refCount(vid, e.ID) == 0 {
								next = append(next, vid)
							}
						}
					} else {
						d.Vertices = kept
						e.Payload = d
					}
				}
			case SurfaceData:
				changed := false
				loops := make([][]EntityID, 0, len(d.Loops))
				for _, loop := range d.Loops {
					kept := pruneRefs(loop, removed)
					if len(kept) < len(loop) {
						changed = true
					}
					if len(kept) >= 3 {
						loops = append(loops, kept)
					} else if len(kept) < len(loop) {
						// degenerate loop dropped entirely
						continue
					} else {
						loops = append(loops, kept)
					}
				}
				if changed {
					if len(loops) == 0 || len(loops[0]) < 3 {
						next = append(next, e.ID)
					} else {
						d.Loops = loops
						e.Payload = d
					}
				}
			}
		}
		if len(next) == 0 {
			return
		}
		removed = map[EntityID]bool{}
		for _, id := range next {
			if _, ok := s.entities[id]; ok {
				delete(s.entities, id)
				delete(s.fresh, id)
				removed[id] = true
			}
		}
		if len(removed) == 0 {
			return
		}
	}
}

// DeleteBySource removes every entity owned by the given graph node.
func (s *Store) DeleteBySource(nodeID string) {
	var ids []EntityID
	for id, e := range s.entities {
		if e.SourceNode == nodeID {
			ids = append(ids, id)
		}
	}
	s.Delete(ids...)
}

// refCount counts references to id from polylines and surfaces, excluding
// the given referrer.
func (s *Store) refCount(id EntityID, exclude EntityID) int {
	n := 0
	for _, e := range s.entities {
		if e.ID == exclude {
			continue
		}
		switch d := e.Payload.(type) {
		case PolylineData:
			for _, vid := range d.Vertices {
				if vid == id {
					n++
				}
			}
		case SurfaceData:
			for _, loop := range d.Loops {
				for _, vid := range loop {
					if vid == id {
						n++
					}
				}
			}
		}
	}
	return n
}

func pruneRefs(refs []EntityID, removed map[EntityID]bool) []EntityID {
	kept := refs[:0:0]
	for _, r := range refs {
		if !removed[r] {
			kept = append(kept, r)
		}
	}
	return kept
}

// ResolvedMesh returns the triangle mesh an entity resolves to for physical
// property computation, or nil when it has none.
func ResolvedMesh(e *Entity) *Mesh {
	switch d := e.Payload.(type) {
	case MeshEntityData:
		return &d.Mesh
	case NurbsCurveData:
		return d.Cached
	case NurbsSurfaceData:
		return d.Cached
	case SurfaceData:
		return d.Cached
	case BRepData:
		return d.Cached
	default:
		return nil
	}
}

// RecomputePhysical refreshes an entity's cached physical properties from
// its resolved mesh. The density, if any, comes from the entity metadata
// ("density", mass per cubic model unit) or the supplied fallback.
// Entities with no resolved mesh keep Physical nil.
func (s *Store) RecomputePhysical(e *Entity, fallbackDensity *float64) {
	mesh := ResolvedMesh(e)
	if mesh.IsEmpty() {
		e.Physical = nil
		return
	}
	density := fallbackDensity
	if raw, ok := e.Metadata["density"]; ok {
		switch v := raw.(type) {
		case float64:
			density = &v
		case int:
			f := float64(v)
			density = &f
		}
	}
	e.Physical = ComputeMeshProps(mesh, density)
}

// Equal reports whether two stores hold value-identical entities.
func (s *Store) Equal(o *Store) bool {
	return reflect.DeepEqual(s.entities, o.entities)
}

// EntityEqual reports whether two entities are value-identical, payload
// and physical properties included.
func EntityEqual(a, b *Entity) bool {
	return reflect.DeepEqual(a, b)
}

// Clone returns a deep copy of the store sharing no mutable substructure
// with the original.
func (s *Store) Clone() *Store {
	c := NewStore()
	for id, e := range s.entities {
		c.entities[id] = CloneEntity(e)
	}
	return c
}

// CloneEntity deep-copies a single entity.
func CloneEntity(e *Entity) *Entity {
	n := &Entity{Header: e.Header}
	if e.Metadata != nil {
		n.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			n.Metadata[k] = v
		}
	}
	if e.Physical != nil {
		p := *e.Physical
		if e.Physical.MassKg != nil {
			m := *e.Physical.MassKg
			p.MassKg = &m
		}
		if e.Physical.Inertia != nil {
			i := *e.Physical.Inertia
			p.Inertia = &i
		}
		n.Physical = &p
	}
	n.Payload = clonePayload(e.Payload)
	return n
}

func clonePayload(p Payload) Payload {
	switch d := p.(type) {
	case VertexData:
		return d
	case PolylineData:
		d.Vertices = append([]EntityID(nil), d.Vertices...)
		return d
	case NurbsCurveData:
		d.Points = append([]Vec3(nil), d.Points...)
		d.Weights = append([]float64(nil), d.Weights...)
		d.Knots = append([]float64(nil), d.Knots...)
		d.Cached = d.Cached.Clone()
		return d
	case NurbsSurfaceData:
		d.Points = append([]Vec3(nil), d.Points...)
		d.Weights = append([]float64(nil), d.Weights...)
		d.KnotsU = append([]float64(nil), d.KnotsU...)
		d.KnotsV = append([]float64(nil), d.KnotsV...)
		d.Cached = d.Cached.Clone()
		return d
	case SurfaceData:
		loops := make([][]EntityID, len(d.Loops))
		for i, loop := range d.Loops {
			loops[i] = append([]EntityID(nil), loop...)
		}
		d.Loops = loops
		d.Cached = d.Cached.Clone()
		return d
	case BRepData:
		d.Vertices = append([]BRepVertex(nil), d.Vertices...)
		edges := make([]BRepEdge, len(d.Edges))
		for i, e := range d.Edges {
			e.Curve = append([]Vec3(nil), e.Curve...)
			edges[i] = e
		}
		d.Edges = edges
		faces := make([]BRepFace, len(d.Faces))
		for i, f := range d.Faces {
			f.Edges = append([]int(nil), f.Edges...)
			if f.Surface != nil {
				sf := *f.Surface
				f.Surface = &sf
			}
			faces[i] = f
		}
		d.Faces = faces
		d.Cached = d.Cached.Clone()
		return d
	case MeshEntityData:
		d.Mesh = *d.Mesh.Clone()
		if d.Provenance.Params != nil {
			params := make(map[string]float64, len(d.Provenance.Params))
			for k, v := range d.Provenance.Params {
				params[k] = v
			}
			d.Provenance.Params = params
		}
		d.Provenance.Sections = append([]EntityID(nil), d.Provenance.Sections...)
		d.Provenance.Profile = append([]EntityID(nil), d.Provenance.Profile...)
		return d
	default:
		return p
	}
}

// ForEachPosition visits every mutable position carried directly by the
// entity payload: vertex positions, NURBS control points, mesh buffers,
// B-Rep vertices and sampled edge curves, plus any cached tessellations.
// Referenced vertices of polylines and surfaces are not visited; callers
// that move composites must move the referenced vertex entities too.
func ForEachPosition(e *Entity, visit func(Vec3) Vec3) {
	switch d := e.Payload.(type) {
	case VertexData:
		d.Position = visit(d.Position)
		e.Payload = d
	case NurbsCurveData:
		for i := range d.Points {
			d.Points[i] = visit(d.Points[i])
		}
		visitMesh(d.Cached, visit)
		e.Payload = d
	case NurbsSurfaceData:
		for i := range d.Points {
			d.Points[i] = visit(d.Points[i])
		}
		visitMesh(d.Cached, visit)
		e.Payload = d
	case SurfaceData:
		d.Plane.Origin = visit(d.Plane.Origin)
		visitMesh(d.Cached, visit)
		e.Payload = d
	case BRepData:
		for i := range d.Vertices {
			d.Vertices[i].Position = visit(d.Vertices[i].Position)
		}
		for i := range d.Edges {
			for j := range d.Edges[i].Curve {
				d.Edges[i].Curve[j] = visit(d.Edges[i].Curve[j])
			}
		}
		visitMesh(d.Cached, visit)
		e.Payload = d
	case MeshEntityData:
		visitMesh(&d.Mesh, visit)
		e.Payload = d
	}
}

func visitMesh(m *Mesh, visit func(Vec3) Vec3) {
	if m.IsEmpty() {
		return
	}
	for i := 0; i < m.VertexCount(); i++ {
		m.SetPosition(i, visit(m.Position(i)))
	}
}
