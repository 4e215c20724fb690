package apply

import (
	"strconv"

	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
)

// DerivedMesh is the applier family for operators whose mesh is computed
// upstream (loft, extrude, boolean, pipe, fillet, thicken, capping, field
// transformation, isosurface extraction): the evaluated outputs carry a
// finished mesh and the applier performs the identity-preserving store
// upsert plus provenance and physical-property bookkeeping.
type DerivedMesh struct {
	// Type is the node type tag this instance covers.
	Type string
	// Op is the provenance operation recorded on produced entities.
	Op      string
	Density *float64
}

func (a *DerivedMesh) Name() string { return a.Op }

func (a *DerivedMesh) Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool) {
	changed := false
	for _, i := range nodesOfType(nodes, a.Type) {
		n := &nodes[i]
		mesh := outMesh(n, "mesh")
		if mesh == nil {
			continue
		}
		prov := a.provenance(n)
		changed = upsertMeshEntity(n, store, mesh, prov, a.Density) || changed
	}
	return nodes, changed
}

// provenance collects the type-specific regeneration metadata.
func (a *DerivedMesh) provenance(n *graph.Node) geom.MeshProvenance {
	prov := geom.MeshProvenance{Op: a.Op}
	switch a.Type {
	case graph.TypeLoft:
		prov.Sections = outEntityIDs(n, "sections")
	case graph.TypeExtrude:
		if id := outEntityID(n, "profile"); !id.IsZero() {
			prov.Profile = []geom.EntityID{id}
		}
		if d, ok := outFloat(n, "distance"); ok {
			prov.Distance = d
		}
		if dir, ok := outVec3(n, "direction"); ok {
			prov.Direction = dir
		}
	case graph.TypePipeSweep:
		if id := outEntityID(n, "path"); !id.IsZero() {
			prov.Profile = []geom.EntityID{id}
		}
		if r, ok := outFloat(n, "radius"); ok {
			prov.Params = map[string]float64{"radius": r}
		}
	case graph.TypePipeMerge:
		if joints, ok := n.Out("joints").([]int); ok {
			prov.Params = map[string]float64{}
			for i, j := range joints {
				prov.Params[jointKey(i)] = float64(j)
			}
		}
	case graph.TypeBoolean:
		prov.Primitive = paramString(n, "op", "union")
	case graph.TypeFillet, graph.TypeFilletEdges, graph.TypeThicken:
		prov.Params = map[string]float64{"radius": paramFloat(n, "radius", 0), "distance": paramFloat(n, "distance", 0)}
	case graph.TypeFieldTransform:
		prov.Params = map[string]float64{
			"radius":   paramFloat(n, "radius", 0),
			"strength": paramFloat(n, "strength", 0),
		}
	case graph.TypeIsosurface:
		prov.Primitive = paramString(n, "field", "sphere")
		prov.Params = map[string]float64{"threshold": paramFloat(n, "threshold", 0)}
	}
	return prov
}

func jointKey(i int) string {
	return "joint" + strconv.Itoa(i)
}

// FieldMetadata decorates field-transform entities with their smoothing
// and falloff settings after the mesh upsert.
type FieldMetadata struct{}

func (a *FieldMetadata) Name() string { return "field-metadata" }

func (a *FieldMetadata) Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool) {
	for _, i := range nodesOfType(nodes, graph.TypeFieldTransform) {
		n := &nodes[i]
		e := store.Get(n.Cache.EntityID)
		if e == nil {
			continue
		}
		if falloff, ok := n.Out("falloff").(string); ok {
			e.Meta()["falloff"] = falloff
		}
		if r, ok := outFloat(n, "radius"); ok {
			e.Meta()["fieldRadius"] = r
		}
	}
	return nodes, false
}

// MeshConvert converts the resolved tessellation of a curve, surface or
// B-Rep entity into a standalone mesh entity.
type MeshConvert struct {
	Density *float64
}

func (a *MeshConvert) Name() string { return "mesh-convert" }

func (a *MeshConvert) Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool) {
	changed := false
	for _, i := range nodesOfType(nodes, graph.TypeMeshConvert) {
		n := &nodes[i]
		target := outEntityID(n, "target")
		if target.IsZero() {
			continue
		}
		src := store.Get(target)
		if src == nil {
			continue
		}
		mesh := geom.ResolvedMesh(src)
		if mesh.IsEmpty() || mesh.TriangleCount() == 0 {
			continue
		}
		changed = upsertMeshEntity(n, store, mesh.Clone(), geom.MeshProvenance{
			Op:      "mesh-convert",
			Profile: []geom.EntityID{target},
		}, a.Density) || changed
	}
	return nodes, changed
}
