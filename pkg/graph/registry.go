package graph

// Port describes a single input or output port of a node.
type Port struct {
	Name string
	Type PortType
}

// PortType tags the value kind a port carries.
type PortType string

// Port value kinds.
const (
	PortNumber PortType = "number"
	PortVector PortType = "vector"
	PortEntity PortType = "entity"
	PortMesh   PortType = "mesh"
	PortAny    PortType = "any"
)

// Registry is the external node-type/port registry collaborator. It owns
// per-type schemas; the engine only consults it.
type Registry interface {
	// Knows reports whether the node type is registered.
	Knows(nodeType string) bool
	// PortsOf returns the input and output ports of a node.
	PortsOf(n *Node) (inputs, outputs []Port)
	// DefaultParams returns the default parameter bag for a node type.
	DefaultParams(nodeType string) map[string]any
	// Compatible reports whether an output port type may feed an input
	// port type.
	Compatible(from, to PortType) bool
}

// PruneUnknown drops nodes whose type the registry does not know, plus any
// edge touching a dropped or missing node. Projects saved by newer builds
// survive loading this way.
func PruneUnknown(nodes []Node, edges []Edge, reg Registry) ([]Node, []Edge) {
	kept := make([]Node, 0, len(nodes))
	alive := make(map[NodeID]bool, len(nodes))
	for _, n := range nodes {
		if reg != nil && !reg.Knows(n.Type) {
			continue
		}
		kept = append(kept, n)
		alive[n.ID] = true
	}
	keptEdges := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if alive[e.From] && alive[e.To] {
			keptEdges = append(keptEdges, e)
		}
	}
	return kept, keptEdges
}
