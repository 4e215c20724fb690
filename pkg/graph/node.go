// Package graph defines the workflow node and edge model the
// synchronization engine operates on. Node types, ports and default
// parameters are owned by an external registry; this package keeps the
// structural model plus the typed caches the appliers need.
package graph

import (
	"sort"

	"github.com/chazu/armature/pkg/geom"
	"github.com/google/uuid"
)

// NodeID identifies a workflow node.
type NodeID string

// ZeroID is the zero NodeID.
const ZeroID NodeID = ""

// IsZero reports whether the ID is unset.
func (id NodeID) IsZero() bool { return id == "" }

// Short returns a truncated form of the ID for log messages.
func (id NodeID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// NewNodeID mints a fresh random node ID.
func NewNodeID() NodeID {
	return NodeID(uuid.NewString())
}

// Node is a unit in the workflow graph. Params is the open bag of
// registry-defined parameters; Config is the typed view of the parameters
// for node types this engine knows natively. Outputs holds the
// last-evaluated per-port values and is rewritten by every evaluation.
type Node struct {
	ID        NodeID         `json:"id"`
	Type      string         `json:"type"`
	Params    map[string]any `json:"params,omitempty"`
	Config    NodeConfig     `json:"-"`
	Outputs   map[string]any `json:"outputs,omitempty"`
	Cache     Cache          `json:"cache,omitempty"`
	EvalError string         `json:"eval_error,omitempty"`
}

// Out returns an output port value, or nil.
func (n *Node) Out(port string) any {
	if n.Outputs == nil {
		return nil
	}
	return n.Outputs[port]
}

// SetOut writes an output port value, allocating the map on first use.
func (n *Node) SetOut(port string, v any) {
	if n.Outputs == nil {
		n.Outputs = make(map[string]any)
	}
	n.Outputs[port] = v
}

// Cache holds the typed per-node state appliers remember between
// recalculations. It is engine-internal and never evaluated against.
type Cache struct {
	// EntityID is the primary entity this node owns in the store.
	EntityID geom.EntityID `json:"entity_id,omitempty"`
	// MeshDigest is the content hash of the mesh this node last emitted.
	// While it matches, the stored entity keeps its downstream transforms
	// instead of being overwritten with the generator's untransformed mesh.
	MeshDigest uint64 `json:"mesh_digest,omitempty"`
	// VertexIDs are the seed vertices owned by generator nodes, in order.
	VertexIDs []geom.EntityID `json:"vertex_ids,omitempty"`
	// PrevTargetID is the entity a transform node last applied to.
	PrevTargetID geom.EntityID `json:"prev_target_id,omitempty"`
	// PrevTransform is the transform value last applied, for delta
	// computation. Nil means no transform has been applied yet.
	PrevTransform *TransformState `json:"prev_transform,omitempty"`
	// BasePositions is the un-deformed position snapshot used by
	// origin-relative operators (offset along normal, plastic wrap).
	BasePositions []geom.Vec3 `json:"base_positions,omitempty"`
	// BaseTargetID is the entity BasePositions was captured from.
	BaseTargetID geom.EntityID `json:"base_target_id,omitempty"`
	// CloneIDs are the entities minted by an array-duplicate node, in
	// positional order.
	CloneIDs []geom.EntityID `json:"clone_ids,omitempty"`
}

// TransformState is the remembered value of a transform node.
type TransformState struct {
	Offset  geom.Vec3 `json:"offset"`  // move
	Angle   float64   `json:"angle"`   // rotate, radians
	Axis    geom.Vec3 `json:"axis"`    // rotate
	Pivot   geom.Vec3 `json:"pivot"`   // rotate, scale
	Factors geom.Vec3 `json:"factors"` // scale
}

// Edge connects a typed output port to a typed input port.
type Edge struct {
	From     NodeID `json:"from"`
	FromPort string `json:"from_port"`
	To       NodeID `json:"to"`
	ToPort   string `json:"to_port"`
}

// SortNodes orders nodes by id so that per-pass iteration is reproducible
// even though converged state is order-independent.
func SortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}

// NodeIndex builds an id -> slice-index lookup.
func NodeIndex(nodes []Node) map[NodeID]int {
	idx := make(map[NodeID]int, len(nodes))
	for i := range nodes {
		idx[nodes[i].ID] = i
	}
	return idx
}

// CloneNodes deep-copies a node slice, including params, outputs and caches.
func CloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i := range nodes {
		out[i] = CloneNode(nodes[i])
	}
	return out
}

// CloneNode deep-copies a single node.
func CloneNode(n Node) Node {
	c := n
	c.Params = cloneBag(n.Params)
	c.Outputs = cloneBag(n.Outputs)
	c.Cache.VertexIDs = append([]geom.EntityID(nil), n.Cache.VertexIDs...)
	c.Cache.CloneIDs = append([]geom.EntityID(nil), n.Cache.CloneIDs...)
	c.Cache.BasePositions = append([]geom.Vec3(nil), n.Cache.BasePositions...)
	if n.Cache.PrevTransform != nil {
		ts := *n.Cache.PrevTransform
		c.Cache.PrevTransform = &ts
	}
	return c
}

func cloneBag(bag map[string]any) map[string]any {
	if bag == nil {
		return nil
	}
	out := make(map[string]any, len(bag))
	for k, v := range bag {
		switch vv := v.(type) {
		case *geom.Mesh:
			out[k] = vv.Clone()
		case []geom.Vec3:
			out[k] = append([]geom.Vec3(nil), vv...)
		case []float64:
			out[k] = append([]float64(nil), vv...)
		case []geom.EntityID:
			out[k] = append([]geom.EntityID(nil), vv...)
		case map[string]any:
			out[k] = cloneBag(vv)
		default:
			out[k] = v
		}
	}
	return out
}
