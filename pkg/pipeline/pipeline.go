// Package pipeline sequences one full graph-to-geometry synchronization
// pass: evaluate the node graph, run the per-type appliers in dependency
// order, re-evaluate so downstream nodes observe the entities the appliers
// produced, and reconcile the scene.
package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/chazu/armature/pkg/apply"
	"github.com/chazu/armature/pkg/eval"
	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
	"github.com/chazu/armature/pkg/scene"
)

// Orchestrator runs synchronization passes. Construct with New.
type Orchestrator struct {
	eval     eval.Evaluator
	scene    *scene.State
	log      *slog.Logger
	seeds    apply.Applier
	deps     apply.Applier
	appliers []apply.Applier
}

// Options configures an Orchestrator.
type Options struct {
	Epsilons apply.Epsilons
	// Density is the fallback material density per cubic model unit; nil
	// leaves mass properties unset for entities without a density of
	// their own.
	Density *float64
	// Scene, when non-nil, is reconciled at the end of every pass.
	Scene *scene.State
	Log   *slog.Logger
}

// New builds an orchestrator with the standard applier order. The order is
// load-bearing: seeds first, then entity-wired generators once seeded
// entities are visible, transforms before mesh-derived operators,
// deformers after booleans so they displace final meshes, array
// duplication after all shaping, solvers and file IO last.
func New(evaluator eval.Evaluator, opts Options) *Orchestrator {
	eps := opts.Epsilons
	if eps == (apply.Epsilons{}) {
		eps = apply.DefaultEpsilons()
	}
	d := opts.Density
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	derived := func(t, op string) apply.Applier {
		return &apply.DerivedMesh{Type: t, Op: op, Density: d}
	}
	return &Orchestrator{
		eval:  evaluator,
		scene: opts.Scene,
		log:   log,
		seeds: &apply.SeedGenerators{Density: d},
		deps:  &apply.DependentGenerators{Density: d},
		appliers: []apply.Applier{
			&apply.ResetStaleTransformCaches{},
			&apply.Move{Eps: eps, Density: d},
			&apply.Rotate{Eps: eps, Density: d},
			&apply.Scale{Eps: eps, Density: d},
			derived(graph.TypeLoft, "loft"),
			derived(graph.TypeExtrude, "extrude"),
			derived(graph.TypeBoolean, "boolean"),
			derived(graph.TypePipeSweep, "pipe"),
			derived(graph.TypePipeMerge, "pipe-merge"),
			&apply.Deformers{Type: graph.TypeOffset, Eps: eps, Density: d},
			&apply.Deformers{Type: graph.TypeOffsetSurface, Eps: eps, Density: d},
			derived(graph.TypeFillet, "fillet"),
			derived(graph.TypeFilletEdges, "fillet-edges"),
			derived(graph.TypeThicken, "thicken"),
			&apply.Deformers{Type: graph.TypePlasticWrap, Eps: eps, Density: d},
			derived(graph.TypeSolidCap, "solid-cap"),
			derived(graph.TypeFieldTransform, "field"),
			&apply.FieldMetadata{},
			&apply.ArrayDuplicate{Density: d},
			derived(graph.TypeIsosurface, "isosurface"),
			&apply.MeshConvert{Density: d},
			&apply.SolverImport{Type: graph.TypeSolverPhysics, Density: d},
			&apply.SolverImport{Type: graph.TypeSolverChemistry, Density: d},
			&apply.FileImport{Density: d, Log: log},
			&apply.CustomMaterial{Density: d},
			&apply.FileExport{},
		},
	}
}

// Run executes one synchronization pass over the given nodes, edges and
// store, mutating all three in place. A panic anywhere inside the pass is
// recovered at this boundary and returned as an error; callers pass clones
// and discard them on error, so a failed pass commits nothing.
func (o *Orchestrator) Run(nodes []graph.Node, edges []graph.Edge, store *geom.Store) (out []graph.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("synchronization pass panicked", "panic", r)
			out, err = nil, fmt.Errorf("synchronization pass: panic: %v", r)
		}
	}()

	store.BeginPass()

	// First evaluation: node outputs from parameters and stale caches.
	nodes = o.eval.Evaluate(nodes, edges, store)

	// Seeds first, so dependent nodes can resolve their target entities on
	// the second evaluation.
	nodes, seeded := o.seeds.Apply(nodes, store)
	if seeded {
		o.log.Debug("applied stage", "stage", o.seeds.Name())
	}
	nodes = o.eval.Evaluate(nodes, edges, store)

	// Entity-wired generators resolve their profiles against the seeded
	// entities, then a further evaluation exposes what they produced.
	nodes, built := o.deps.Apply(nodes, store)
	if built {
		o.log.Debug("applied stage", "stage", o.deps.Name())
	}
	nodes = o.eval.Evaluate(nodes, edges, store)

	for _, a := range o.appliers {
		var changed bool
		nodes, changed = a.Apply(nodes, store)
		if changed {
			o.log.Debug("applied stage", "stage", a.Name())
		}
	}

	// Final evaluation publishes the entity ids minted this pass.
	nodes = o.eval.Evaluate(nodes, edges, store)

	if o.scene != nil && o.scene.Reconcile(store) {
		o.log.Debug("scene reconciled")
	}
	return nodes, nil
}
