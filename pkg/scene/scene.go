// Package scene holds the presentation-side state of a project: layers,
// the display tree, material assignments and per-entity flags. The scene
// references geometry by ID only; Reconcile repairs those references after
// the entity store changes.
package scene

import (
	"sort"

	"github.com/chazu/armature/pkg/geom"
)

// Layer groups entities for display. Order in State.Layers is draw order.
type Layer struct {
	ID          geom.LayerID    `json:"id"`
	Name        string          `json:"name"`
	Visible     bool            `json:"visible"`
	GeometryIDs []geom.EntityID `json:"geometry_ids"`
}

// Node is one element of the display tree. EntityID is zero for pure
// grouping nodes.
type Node struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	EntityID geom.EntityID `json:"entity_id,omitempty"`
	Parent   string        `json:"parent,omitempty"`
	Children []string      `json:"children,omitempty"`
}

// State is the full scene: everything outside the entity store that the
// viewport needs. All entity references are by ID.
type State struct {
	Layers      []Layer                  `json:"layers"`
	Nodes       map[string]*Node         `json:"nodes"`
	Assignments map[geom.EntityID]string `json:"assignments,omitempty"` // entity -> material name
	Hidden      map[geom.EntityID]bool   `json:"hidden,omitempty"`
	Locked      map[geom.EntityID]bool   `json:"locked,omitempty"`
	Selected    map[geom.EntityID]bool   `json:"selected,omitempty"`

	// lastIDs is the entity id set as of the last reconcile, used to
	// short-circuit repeated reconciles against an unchanged store.
	lastIDs map[geom.EntityID]bool
}

// NewState returns an empty scene with a single default layer.
func NewState() *State {
	return &State{
		Layers: []Layer{{
			ID:      "default",
			Name:    "Default",
			Visible: true,
		}},
		Nodes:       map[string]*Node{},
		Assignments: map[geom.EntityID]string{},
		Hidden:      map[geom.EntityID]bool{},
		Locked:      map[geom.EntityID]bool{},
		Selected:    map[geom.EntityID]bool{},
	}
}

// LayerByID returns the layer with the given id, or nil.
func (s *State) LayerByID(id geom.LayerID) *Layer {
	for i := range s.Layers {
		if s.Layers[i].ID == id {
			return &s.Layers[i]
		}
	}
	return nil
}

// Select replaces the current selection.
func (s *State) Select(ids ...geom.EntityID) {
	s.Selected = map[geom.EntityID]bool{}
	for _, id := range ids {
		s.Selected[id] = true
	}
}

// Reconcile repairs the scene against the current entity store: layer
// geometry lists are rebuilt, layers referenced by entities but missing
// from the scene are synthesized, and scene nodes, assignments and flags
// pointing at deleted entities are dropped. Returns whether anything
// changed. Pruning only runs when the id set differs from the previous
// reconcile; layer lists are always rebuilt, since an entity can change
// layers without the id set changing.
func (s *State) Reconcile(store *geom.Store) bool {
	changed := s.rebuildLayers(store)

	ids := store.IDSet()
	if !sameIDSet(ids, s.lastIDs) {
		s.lastIDs = ids
		changed = s.pruneNodes(ids) || changed
		changed = s.pruneFlags(ids) || changed
	}
	return changed
}

// rebuildLayers recomputes each layer's geometry list from entity layer
// membership and synthesizes layers the store references but the scene
// does not know.
func (s *State) rebuildLayers(store *geom.Store) bool {
	byLayer := map[geom.LayerID][]geom.EntityID{}
	for _, id := range store.IDs() {
		e := store.Get(id)
		byLayer[e.Layer] = append(byLayer[e.Layer], id)
	}

	changed := false
	known := map[geom.LayerID]bool{}
	for i := range s.Layers {
		l := &s.Layers[i]
		known[l.ID] = true
		next := byLayer[l.ID]
		if !sameIDList(l.GeometryIDs, next) {
			l.GeometryIDs = next
			changed = true
		}
	}

	var missing []geom.LayerID
	for id := range byLayer {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	for _, id := range missing {
		s.Layers = append(s.Layers, Layer{
			ID:          id,
			Name:        string(id),
			Visible:     true,
			GeometryIDs: byLayer[id],
		})
		changed = true
	}
	return changed
}

// pruneNodes drops display nodes whose entity no longer exists and removes
// them from their parents' child lists. Grouping nodes (zero entity) are
// kept.
func (s *State) pruneNodes(live map[geom.EntityID]bool) bool {
	var dead []string
	for id, n := range s.Nodes {
		if !n.EntityID.IsZero() && !live[n.EntityID] {
			dead = append(dead, id)
		}
	}
	if len(dead) == 0 {
		return false
	}
	for _, id := range dead {
		n := s.Nodes[id]
		// Reparent surviving children to the deleted node's parent.
		for _, c := range n.Children {
			if child, ok := s.Nodes[c]; ok {
				child.Parent = n.Parent
				if p, ok := s.Nodes[n.Parent]; ok {
					p.Children = append(p.Children, c)
				}
			}
		}
		if p, ok := s.Nodes[n.Parent]; ok {
			p.Children = removeString(p.Children, id)
		}
		delete(s.Nodes, id)
	}
	return true
}

// pruneFlags drops assignment, hidden, locked and selection entries for
// entities that no longer exist.
func (s *State) pruneFlags(live map[geom.EntityID]bool) bool {
	changed := false
	for id := range s.Assignments {
		if !live[id] {
			delete(s.Assignments, id)
			changed = true
		}
	}
	for _, set := range []map[geom.EntityID]bool{s.Hidden, s.Locked, s.Selected} {
		for id := range set {
			if !live[id] {
				delete(set, id)
				changed = true
			}
		}
	}
	return changed
}

func sameIDSet(a, b map[geom.EntityID]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b[id] {
			return false
		}
	}
	return true
}

func sameIDList(a, b []geom.EntityID) bool {
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

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
