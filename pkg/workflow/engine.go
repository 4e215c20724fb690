// Package workflow is the editing service around a project: it owns the
// node graph, the entity store, the scene and the undo history, and funnels
// every edit through a full synchronization pass. Edits run against clones
// and commit only when the pass succeeds, so a failed pass leaves the
// project exactly as it was.
package workflow

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/chazu/armature/pkg/config"
	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
	"github.com/chazu/armature/pkg/history"
	"github.com/chazu/armature/pkg/pipeline"
	"github.com/chazu/armature/pkg/scene"
)

// graphSnapshot is one undo point of the graph editing domain. Geometry is
// snapshotted alongside the graph: transform deltas make recalculation
// non-invertible, so restoring the graph alone would not restore positions.
type graphSnapshot struct {
	Nodes []graph.Node
	Edges []graph.Edge
	Store *geom.Store
}

// cloneGraphSnapshot is the history cloner for the graph domain; the store
// keeps its own deep copy since its internals are unexported.
func cloneGraphSnapshot(s graphSnapshot) (graphSnapshot, error) {
	return graphSnapshot{
		Nodes: graph.CloneNodes(s.Nodes),
		Edges: append([]graph.Edge(nil), s.Edges...),
		Store: s.Store.Clone(),
	}, nil
}

// Engine is the project editing service.
type Engine struct {
	nodes []graph.Node
	edges []graph.Edge
	store *geom.Store
	scene *scene.State

	orch     *pipeline.Orchestrator
	registry graph.Registry // optional; nil skips connection checks
	log      *slog.Logger

	graphHist *history.Stack[graphSnapshot]
	sceneHist *history.Stack[scene.State]
}

// portType resolves the declared type of a node port, defaulting to "any"
// for ports the registry does not describe.
func portType(reg graph.Registry, n *graph.Node, port string, input bool) graph.PortType {
	inputs, outputs := reg.PortsOf(n)
	ports := outputs
	if input {
		ports = inputs
	}
	for _, p := range ports {
		if p.Name == port {
			return p.Type
		}
	}
	return graph.PortAny
}

// Options configures an Engine.
type Options struct {
	Config   config.Config
	Registry graph.Registry
	Log      *slog.Logger
}

// New builds an engine around an orchestrator. The orchestrator must have
// been constructed with the same scene as returned by Scene.
func New(orch *pipeline.Orchestrator, sc *scene.State, opts Options) *Engine {
	cfg := opts.Config
	if cfg.History.SceneDepth < 1 {
		cfg = config.Default()
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:     geom.NewStore(),
		scene:     sc,
		orch:      orch,
		registry:  opts.Registry,
		log:       log,
		graphHist: history.NewFunc(cfg.History.GraphDepth, cloneGraphSnapshot),
		sceneHist: history.New[scene.State](cfg.History.SceneDepth),
	}
}

// Store exposes the live entity store read-only by convention; callers
// must not mutate it.
func (e *Engine) Store() *geom.Store { return e.store }

// Scene returns the live scene state.
func (e *Engine) Scene() *scene.State { return e.scene }

// Nodes returns a deep copy of the current nodes.
func (e *Engine) Nodes() []graph.Node { return graph.CloneNodes(e.nodes) }

// Edges returns a copy of the current edges.
func (e *Engine) Edges() []graph.Edge { return append([]graph.Edge(nil), e.edges...) }

// ---------------------------------------------------------------------------
// Graph edits
// ---------------------------------------------------------------------------

// AddNode inserts a node and synchronizes.
func (e *Engine) AddNode(n graph.Node) error {
	if n.ID.IsZero() {
		n.ID = graph.NewNodeID()
	}
	if _, exists := graph.NodeIndex(e.nodes)[n.ID]; exists {
		return fmt.Errorf("add node: duplicate id %s", n.ID.Short())
	}
	if e.registry != nil && !e.registry.Knows(n.Type) {
		return fmt.Errorf("add node: unknown type %q", n.Type)
	}
	return e.commitGraphEdit(func(nodes []graph.Node, edges []graph.Edge) ([]graph.Node, []graph.Edge, error) {
		return append(nodes, graph.CloneNode(n)), edges, nil
	})
}

// RemoveNode deletes a node, its edges and every entity it owns.
func (e *Engine) RemoveNode(id graph.NodeID) error {
	return e.commitGraphEditStore(func(nodes []graph.Node, edges []graph.Edge, store *geom.Store) ([]graph.Node, []graph.Edge, error) {
		kept := nodes[:0]
		found := false
		for _, n := range nodes {
			if n.ID == id {
				found = true
				continue
			}
			kept = append(kept, n)
		}
		if !found {
			return nil, nil, fmt.Errorf("remove node: unknown id %s", id.Short())
		}
		keptEdges := edges[:0]
		for _, ed := range edges {
			if ed.From != id && ed.To != id {
				keptEdges = append(keptEdges, ed)
			}
		}
		store.DeleteBySource(string(id))
		return kept, keptEdges, nil
	})
}

// Connect adds an edge after checking port compatibility when a node
// registry is configured.
func (e *Engine) Connect(ed graph.Edge) error {
	idx := graph.NodeIndex(e.nodes)
	fi, okF := idx[ed.From]
	ti, okT := idx[ed.To]
	if !okF || !okT {
		return fmt.Errorf("connect: unknown endpoint")
	}
	if e.registry != nil {
		from, to := &e.nodes[fi], &e.nodes[ti]
		if !e.registry.Compatible(portType(e.registry, from, ed.FromPort, false), portType(e.registry, to, ed.ToPort, true)) {
			return fmt.Errorf("connect: %s.%s does not feed %s.%s", from.Type, ed.FromPort, to.Type, ed.ToPort)
		}
	}
	return e.commitGraphEdit(func(nodes []graph.Node, edges []graph.Edge) ([]graph.Node, []graph.Edge, error) {
		for _, existing := range edges {
			if existing == ed {
				return nil, nil, fmt.Errorf("connect: duplicate edge")
			}
		}
		return nodes, append(edges, ed), nil
	})
}

// Disconnect removes an edge.
func (e *Engine) Disconnect(ed graph.Edge) error {
	return e.commitGraphEdit(func(nodes []graph.Node, edges []graph.Edge) ([]graph.Node, []graph.Edge, error) {
		kept := edges[:0]
		found := false
		for _, existing := range edges {
			if existing == ed {
				found = true
				continue
			}
			kept = append(kept, existing)
		}
		if !found {
			return nil, nil, fmt.Errorf("disconnect: no such edge")
		}
		return nodes, kept, nil
	})
}

// ApplyParameterChange sets one node parameter and synchronizes.
func (e *Engine) ApplyParameterChange(id graph.NodeID, key string, value any) error {
	if _, exists := graph.NodeIndex(e.nodes)[id]; !exists {
		return fmt.Errorf("set parameter: unknown node %s", id.Short())
	}
	return e.commitGraphEdit(func(nodes []graph.Node, edges []graph.Edge) ([]graph.Node, []graph.Edge, error) {
		for i := range nodes {
			if nodes[i].ID == id {
				if nodes[i].Params == nil {
					nodes[i].Params = map[string]any{}
				}
				nodes[i].Params[key] = value
				break
			}
		}
		return nodes, edges, nil
	})
}

// Recalculate runs a synchronization pass without editing the graph. It is
// not an undo point. Like edits, the pass runs against clones and commits
// only on success.
func (e *Engine) Recalculate() error {
	store := e.store.Clone()
	nodes, err := e.orch.Run(graph.CloneNodes(e.nodes), e.Edges(), store)
	if err != nil {
		return err
	}
	e.nodes = nodes
	e.store = store
	return nil
}

// commitGraphEdit applies an edit to cloned nodes/edges, runs a pass on a
// cloned store, and commits all three plus an undo point only on success.
func (e *Engine) commitGraphEdit(edit func([]graph.Node, []graph.Edge) ([]graph.Node, []graph.Edge, error)) error {
	return e.commitGraphEditStore(func(nodes []graph.Node, edges []graph.Edge, _ *geom.Store) ([]graph.Node, []graph.Edge, error) {
		return edit(nodes, edges)
	})
}

func (e *Engine) commitGraphEditStore(edit func([]graph.Node, []graph.Edge, *geom.Store) ([]graph.Node, []graph.Edge, error)) error {
	prior := graphSnapshot{
		Nodes: graph.CloneNodes(e.nodes),
		Edges: e.Edges(),
		Store: e.store.Clone(),
	}

	nodes, edges, err := edit(graph.CloneNodes(e.nodes), e.Edges(), e.store)
	if err != nil {
		// Edits run on clones except for store deletions; restore those.
		e.store = prior.Store
		return err
	}

	nodes, err = e.orch.Run(nodes, edges, e.store)
	if err != nil {
		e.store = prior.Store
		return err
	}

	if histErr := e.graphHist.Push(prior); histErr != nil {
		e.log.Warn("graph history push failed", "err", histErr)
	}
	e.nodes = nodes
	e.edges = edges
	return nil
}

// ---------------------------------------------------------------------------
// Undo / redo
// ---------------------------------------------------------------------------

// UndoGraph restores the previous graph edit, geometry included, then
// reconciles the scene against the restored store.
func (e *Engine) UndoGraph() error {
	current := graphSnapshot{Nodes: graph.CloneNodes(e.nodes), Edges: e.Edges(), Store: e.store.Clone()}
	snap, err := e.graphHist.Undo(current)
	if err != nil {
		return err
	}
	e.restoreGraph(snap)
	return nil
}

// RedoGraph re-applies the last undone graph edit.
func (e *Engine) RedoGraph() error {
	current := graphSnapshot{Nodes: graph.CloneNodes(e.nodes), Edges: e.Edges(), Store: e.store.Clone()}
	snap, err := e.graphHist.Redo(current)
	if err != nil {
		return err
	}
	e.restoreGraph(snap)
	return nil
}

func (e *Engine) restoreGraph(snap graphSnapshot) {
	e.nodes = snap.Nodes
	e.edges = snap.Edges
	e.store = snap.Store
	e.scene.Reconcile(e.store)
}

// EditScene applies a scene-only edit (selection, visibility, layer or
// material changes) as one undo point in the scene domain.
func (e *Engine) EditScene(edit func(*scene.State)) error {
	if err := e.sceneHist.Push(*e.scene); err != nil {
		return fmt.Errorf("scene history push: %w", err)
	}
	edit(e.scene)
	return nil
}

// UndoScene restores the scene state before the last scene edit.
func (e *Engine) UndoScene() error {
	snap, err := e.sceneHist.Undo(*e.scene)
	if err != nil {
		return err
	}
	*e.scene = snap
	return nil
}

// RedoScene re-applies the last undone scene edit.
func (e *Engine) RedoScene() error {
	snap, err := e.sceneHist.Redo(*e.scene)
	if err != nil {
		return err
	}
	*e.scene = snap
	return nil
}

// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

// Project is the serialized form of an engine's graph.
type Project struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// ProjectPayload serializes the current graph.
func (e *Engine) ProjectPayload() ([]byte, error) {
	return json.MarshalIndent(Project{Nodes: e.nodes, Edges: e.edges}, "", "  ")
}

// LoadProject replaces the graph from a serialized project and rebuilds
// all geometry from scratch. Nodes of unknown type and their edges are
// dropped when a registry is configured. History is cleared; a load is not
// undoable into the previous project.
func (e *Engine) LoadProject(raw []byte) error {
	var p Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	if e.registry != nil {
		p.Nodes, p.Edges = graph.PruneUnknown(p.Nodes, p.Edges, e.registry)
	}
	for i := range p.Nodes {
		p.Nodes[i].Cache = graph.Cache{}
		p.Nodes[i].Outputs = nil
	}

	store := geom.NewStore()
	nodes, err := e.orch.Run(p.Nodes, p.Edges, store)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}

	e.nodes = nodes
	e.edges = p.Edges
	e.store = store
	e.graphHist.Clear()
	e.sceneHist.Clear()
	e.scene.Reconcile(e.store)
	return nil
}
