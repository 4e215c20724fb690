package apply

import (
	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
)

// SolverImport persists the output of an external solver run (physics
// deformation, chemistry field) as a mesh entity annotated with the run's
// scalar summary. A result without a usable mesh is skipped whole; a
// solver never partially lands.
type SolverImport struct {
	// Type is the solver node type this instance covers.
	Type    string
	Density *float64
}

func (a *SolverImport) Name() string { return a.Type }

func (a *SolverImport) Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool) {
	changed := false
	for _, i := range nodesOfType(nodes, a.Type) {
		n := &nodes[i]
		result, ok := n.Out("result").(map[string]any)
		if !ok {
			continue
		}
		mesh, ok := result["mesh"].(*geom.Mesh)
		if !ok || mesh.IsEmpty() || mesh.TriangleCount() == 0 {
			continue
		}

		applied := upsertMeshEntity(n, store, mesh, geom.MeshProvenance{Op: a.Type}, a.Density)
		if e := store.Get(n.Cache.EntityID); e != nil {
			meta := e.Meta()
			meta["solver"] = a.Type
			for k, v := range result {
				switch val := v.(type) {
				case float64:
					meta["solver."+k] = val
				case string:
					meta["solver."+k] = val
				case int:
					meta["solver."+k] = float64(val)
				}
			}
		}
		changed = applied || changed
	}
	return nodes, changed
}

// CustomMaterial stamps material identity and density onto a target entity
// and refreshes its mass properties. The entity's geometry is untouched.
type CustomMaterial struct {
	Density *float64
}

func (a *CustomMaterial) Name() string { return "custom-material" }

func (a *CustomMaterial) Apply(nodes []graph.Node, store *geom.Store) ([]graph.Node, bool) {
	changed := false
	for _, i := range nodesOfType(nodes, graph.TypeCustomMaterial) {
		n := &nodes[i]
		target := outEntityID(n, "target")
		if target.IsZero() {
			continue
		}
		e := store.Get(target)
		if e == nil {
			continue
		}

		name := paramString(n, "material", "")
		density := paramFloat(n, "density", 0)
		if name == "" && density <= 0 {
			continue
		}

		meta := e.Meta()
		touched := false
		if name != "" && meta["material"] != name {
			meta["material"] = name
			touched = true
		}
		if density > 0 {
			prev, _ := meta["density"].(float64)
			if prev != density {
				meta["density"] = density
				touched = true
			}
		}
		if touched {
			store.RecomputePhysical(e, a.Density)
			changed = true
		}
		n.SetOut("entity", target)
	}
	return nodes, changed
}
