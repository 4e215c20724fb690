// Package eval provides the graph evaluator: the pure pass that derives
// per-node output values from node parameters, upstream outputs and the
// current geometry. The evaluator never mutates the entity store; it only
// rewrites node Outputs. Malformed graphs are tolerated, never raised:
// dangling edges are ignored and nodes with invalid inputs keep stale
// outputs plus an EvalError string.
package eval

import (
	"fmt"
	"math"

	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/graph"
	"github.com/chazu/armature/pkg/kernel"
	"github.com/chazu/armature/pkg/meshop"
)

// Evaluator is the external-collaborator contract the orchestrator
// depends on: (nodes, edges, entities) -> nodes with fresh outputs.
// Implementations must be deterministic and side-effect free with respect
// to the store.
type Evaluator interface {
	Evaluate(nodes []graph.Node, edges []graph.Edge, store *geom.Store) []graph.Node
}

// DefaultCurveSamples is the tessellation density for curve sampling.
const DefaultCurveSamples = 64

// Engine is the default Evaluator. The kernel supplies primitive, boolean
// and isosurface geometry; the expression engine evaluates scripted nodes.
type Engine struct {
	Kernel  kernel.Kernel
	Expr    *ExprEngine
	Samples int
}

// NewEngine builds an Engine around the given kernel.
func NewEngine(k kernel.Kernel) *Engine {
	return &Engine{Kernel: k, Expr: NewExprEngine(), Samples: DefaultCurveSamples}
}

func (e *Engine) samples() int {
	if e.Samples >= 2 {
		return e.Samples
	}
	return DefaultCurveSamples
}

// Evaluate derives fresh outputs for every node in dependency order.
// Nodes on cycles keep their previous outputs.
func (e *Engine) Evaluate(nodes []graph.Node, edges []graph.Edge, store *geom.Store) []graph.Node {
	out := graph.CloneNodes(nodes)
	graph.SortNodes(out)
	idx := graph.NodeIndex(out)

	for i := range out {
		out[i].Config = graph.DecodeConfig(&out[i])
	}

	for _, i := range topoOrder(out, edges, idx) {
		n := &out[i]
		inputs := gatherInputs(out, edges, idx, n.ID)
		e.evaluateNode(n, inputs, store)
	}
	return out
}

// topoOrder returns node slice indices in dependency order (Kahn). Nodes
// on cycles are omitted.
func topoOrder(nodes []graph.Node, edges []graph.Edge, idx map[graph.NodeID]int) []int {
	indeg := make([]int, len(nodes))
	succ := make([][]int, len(nodes))
	for _, ed := range edges {
		fi, okF := idx[ed.From]
		ti, okT := idx[ed.To]
		if !okF || !okT {
			continue // dangling edge, ignored
		}
		succ[fi] = append(succ[fi], ti)
		indeg[ti]++
	}
	var queue []int
	for i := range nodes {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}
	var order []int
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		for _, j := range succ[i] {
			indeg[j]--
			if indeg[j] == 0 {
				queue = append(queue, j)
			}
		}
	}
	return order
}

// gatherInputs resolves the per-port input values of a node from its
// upstream edges. Multi-edge ports accumulate into slices.
func gatherInputs(nodes []graph.Node, edges []graph.Edge, idx map[graph.NodeID]int, id graph.NodeID) map[string][]any {
	inputs := map[string][]any{}
	for _, ed := range edges {
		if ed.To != id {
			continue
		}
		fi, ok := idx[ed.From]
		if !ok {
			continue
		}
		v := nodes[fi].Out(ed.FromPort)
		if v == nil {
			continue
		}
		inputs[ed.ToPort] = append(inputs[ed.ToPort], v)
	}
	return inputs
}

func (e *Engine) evaluateNode(n *graph.Node, inputs map[string][]any, store *geom.Store) {
	n.EvalError = ""

	switch n.Type {
	case graph.TypePoint:
		cfg, _ := n.Config.(graph.PointConfig)
		n.SetOut("position", cfg.Position)

	case graph.TypeLine:
		cfg, _ := n.Config.(graph.LineConfig)
		n.SetOut("points", []geom.Vec3{cfg.Start, cfg.End})
		n.SetOut("closed", false)

	case graph.TypePolyline:
		cfg, _ := n.Config.(graph.PolylineConfig)
		n.SetOut("points", append([]geom.Vec3(nil), cfg.Points...))
		n.SetOut("closed", cfg.Closed)
		n.SetOut("degree", cfg.Degree)

	case graph.TypeRectangle:
		cfg, _ := n.Config.(graph.RectangleConfig)
		w, h := cfg.Width/2, cfg.Height/2
		c := cfg.Center
		n.SetOut("points", []geom.Vec3{
			{X: c.X - w, Y: c.Y - h, Z: c.Z},
			{X: c.X + w, Y: c.Y - h, Z: c.Z},
			{X: c.X + w, Y: c.Y + h, Z: c.Z},
			{X: c.X - w, Y: c.Y + h, Z: c.Z},
		})
		n.SetOut("closed", true)

	case graph.TypeCircle:
		cfg, _ := n.Config.(graph.CircleConfig)
		circle := meshop.NurbsCircle(cfg.Center, cfg.Normal, cfg.Radius)
		if circle == nil {
			n.EvalError = "circle: invalid radius"
			return
		}
		n.SetOut("points", circle.Points)
		n.SetOut("weights", circle.Weights)
		n.SetOut("knots", circle.Knots)
		n.SetOut("degree", circle.Degree)
		n.SetOut("samples", meshop.SampleNurbsCurve(circle.Points, circle.Weights, circle.Knots, circle.Degree, e.samples()))

	case graph.TypeBox:
		cfg, _ := n.Config.(graph.BoxConfig)
		e.primitiveOutputs(n, "box", cfg.Center, map[string]float64{
			"width": cfg.Width, "height": cfg.Height, "depth": cfg.Depth,
		}, func() kernel.Solid {
			return e.Kernel.Box(cfg.Width, cfg.Height, cfg.Depth)
		})

	case graph.TypeSphere:
		cfg, _ := n.Config.(graph.SphereConfig)
		e.primitiveOutputs(n, "sphere", cfg.Center, map[string]float64{
			"radius": cfg.Radius,
		}, func() kernel.Solid {
			return e.Kernel.Sphere(cfg.Radius)
		})

	case graph.TypeCylinder:
		cfg, _ := n.Config.(graph.CylinderConfig)
		e.primitiveOutputs(n, "cylinder", cfg.Center, map[string]float64{
			"radius": cfg.Radius, "height": cfg.Height,
		}, func() kernel.Solid {
			return e.Kernel.Cylinder(cfg.Height, cfg.Radius)
		})

	case graph.TypeSurface:
		loop := e.inputPoints(inputs, "profile", store)
		if len(loop) < 3 {
			return
		}
		n.SetOut("loop", loop)
		n.SetOut("mesh", meshop.TriangulateLoop(loop))

	case graph.TypeMove:
		cfg, _ := n.Config.(graph.MoveConfig)
		n.SetOut("offset", cfg.Offset)
		e.forwardTarget(n, inputs)

	case graph.TypeRotate:
		cfg, _ := n.Config.(graph.RotateConfig)
		n.SetOut("angle", cfg.Angle)
		n.SetOut("axis", cfg.Axis)
		n.SetOut("pivot", cfg.Pivot)
		e.forwardTarget(n, inputs)

	case graph.TypeScale:
		cfg, _ := n.Config.(graph.ScaleConfig)
		n.SetOut("factors", cfg.Factors)
		n.SetOut("pivot", cfg.Pivot)
		e.forwardTarget(n, inputs)

	case graph.TypeLoft:
		var sections [][]geom.Vec3
		var sectionIDs []geom.EntityID
		for _, v := range inputs["sections"] {
			id, pts := e.resolvePoints(v, store)
			if len(pts) >= 2 {
				sections = append(sections, pts)
				sectionIDs = append(sectionIDs, id)
			}
		}
		mesh := meshop.Loft(sections, boolOut(n, "closed", true))
		if mesh == nil {
			return
		}
		n.SetOut("mesh", mesh)
		n.SetOut("sections", sectionIDs)

	case graph.TypeExtrude:
		id, profile := e.firstPoints(inputs, "profile", store)
		dist := floatParamOf(n, "distance", 0)
		dir := vec3ParamOf(n, "direction", geom.Vec3{Z: 1})
		closed := e.profileClosed(inputs, "profile", store)
		mesh := meshop.Extrude(profile, closed, dir, dist)
		if mesh == nil {
			return
		}
		n.SetOut("mesh", mesh)
		n.SetOut("profile", id)
		n.SetOut("distance", dist)
		n.SetOut("direction", dir)

	case graph.TypeBoolean:
		a := firstSolid(inputs, "a")
		b := firstSolid(inputs, "b")
		if a == nil || b == nil {
			// Tolerate missing operands: no output, no error.
			return
		}
		var result kernel.Solid
		switch stringParamOf(n, "op", "union") {
		case "difference":
			result = e.Kernel.Difference(a, b)
		case "intersection":
			result = e.Kernel.Intersection(a, b)
		default:
			result = e.Kernel.Union(a, b)
		}
		mesh, err := e.Kernel.ToMesh(result)
		if err != nil {
			n.EvalError = fmt.Sprintf("boolean: %v", err)
			return
		}
		n.SetOut("solid", result)
		n.SetOut("mesh", mesh)

	case graph.TypePipeSweep:
		id, path := e.firstPoints(inputs, "path", store)
		radius := floatParamOf(n, "radius", 1)
		mesh := meshop.Pipe(path, radius, intParamOf(n, "segments", 16))
		if mesh == nil {
			return
		}
		n.SetOut("mesh", mesh)
		n.SetOut("path", id)
		n.SetOut("radius", radius)

	case graph.TypePipeMerge:
		var meshes []*geom.Mesh
		for _, port := range []string{"a", "b"} {
			if m := firstMesh(inputs, port); m != nil {
				meshes = append(meshes, m)
			}
		}
		merged, joints := meshop.Merge(meshes...)
		if merged == nil {
			return
		}
		n.SetOut("mesh", merged)
		n.SetOut("joints", joints)

	case graph.TypeOffset, graph.TypeOffsetSurface, graph.TypePlasticWrap:
		// In-place deformers: the applier does the position math against
		// its cached base snapshot; evaluation just resolves the target.
		e.forwardTarget(n, inputs)

	case graph.TypeFillet:
		mesh := e.targetMesh(inputs, store)
		result := meshop.SmoothFillet(mesh, floatParamOf(n, "radius", 1))
		if result == nil {
			return
		}
		n.SetOut("mesh", result)

	case graph.TypeFilletEdges:
		mesh := e.targetMesh(inputs, store)
		mids := vecListParamOf(n, "edges")
		result := meshop.SmoothFilletEdges(mesh, mids, floatParamOf(n, "radius", 1))
		if result == nil {
			return
		}
		n.SetOut("mesh", result)
		n.SetOut("edges", mids)

	case graph.TypeThicken:
		mesh := e.targetMesh(inputs, store)
		result := meshop.Thicken(mesh, floatParamOf(n, "distance", 1))
		if result == nil {
			return
		}
		n.SetOut("mesh", result)

	case graph.TypeSolidCap:
		mesh := e.targetMesh(inputs, store)
		if mesh.IsEmpty() {
			return
		}
		capped, did := meshop.CapOpenBoundaries(mesh)
		n.SetOut("mesh", capped.Clone())
		n.SetOut("capped", did)

	case graph.TypeFieldTransform:
		mesh := e.targetMesh(inputs, store)
		if mesh.IsEmpty() {
			return
		}
		center := vec3ParamOf(n, "center", geom.Vec3{})
		strength := floatParamOf(n, "strength", 1)
		radius := floatParamOf(n, "radius", 10)
		falloff := stringParamOf(n, "falloff", "smooth")
		n.SetOut("mesh", displaceByField(mesh, center, strength, radius, falloff))
		n.SetOut("falloff", falloff)
		n.SetOut("radius", radius)

	case graph.TypeArray:
		e.forwardTarget(n, inputs)

	case graph.TypeIsosurface:
		if e.Kernel == nil {
			return
		}
		min := vec3ParamOf(n, "min", geom.Vec3{X: -10, Y: -10, Z: -10})
		max := vec3ParamOf(n, "max", geom.Vec3{X: 10, Y: 10, Z: 10})
		threshold := floatParamOf(n, "threshold", 0)
		field := builtinField(stringParamOf(n, "field", "sphere"), floatParamOf(n, "scale", 1))
		mesh, err := e.Kernel.Isosurface(field, min, max, threshold)
		if err != nil {
			n.EvalError = fmt.Sprintf("isosurface: %v", err)
			return
		}
		n.SetOut("mesh", mesh)

	case graph.TypeMeshConvert:
		e.forwardTarget(n, inputs)

	case graph.TypeSolverPhysics, graph.TypeSolverChemistry:
		// Solver results arrive pre-resolved in the parameter bag; the
		// evaluator only surfaces them to the applier.
		if result, ok := n.Params["result"].(map[string]any); ok {
			n.SetOut("result", result)
		}
		e.forwardTarget(n, inputs)

	case graph.TypeCustomMaterial, graph.TypeFileExport:
		e.forwardTarget(n, inputs)

	case graph.TypeFileImport:
		// Payload parsing happens in the applier so a parse failure can
		// clear the trigger flag without touching entities.

	case graph.TypeExpression:
		cfg, _ := n.Config.(graph.ExpressionConfig)
		if e.Expr == nil || cfg.Source == "" {
			return
		}
		value, err := e.Expr.EvalNumber(cfg.Source, n.Params)
		if err != nil {
			n.EvalError = err.Error()
			return
		}
		n.SetOut("value", value)

	default:
		// Registry-defined custom types pass through untouched.
	}

	// Republish the owned entity so downstream nodes can reference it.
	if !n.Cache.EntityID.IsZero() {
		n.SetOut("entity", n.Cache.EntityID)
	}
}

// primitiveOutputs fills the common outputs of a primitive generator.
func (e *Engine) primitiveOutputs(n *graph.Node, kind string, center geom.Vec3, params map[string]float64, build func() kernel.Solid) {
	for k, v := range params {
		if !isFinite(v) || v <= 0 {
			return // invalid configuration, silent skip
		}
		n.SetOut(k, v)
	}
	if e.Kernel == nil {
		return
	}
	s := build()
	if !center.IsZero() {
		s = e.Kernel.Translate(s, center)
	}
	mesh, err := e.Kernel.ToMesh(s)
	if err != nil {
		n.EvalError = fmt.Sprintf("%s: %v", kind, err)
		return
	}
	n.SetOut("solid", s)
	n.SetOut("mesh", mesh)
	n.SetOut("primitive", kind)
	n.SetOut("center", center)
}

// forwardTarget publishes the upstream entity reference on the node's
// "target" output.
func (e *Engine) forwardTarget(n *graph.Node, inputs map[string][]any) {
	for _, port := range []string{"target", "source", "geometry"} {
		for _, v := range inputs[port] {
			if id, ok := v.(geom.EntityID); ok && !id.IsZero() {
				n.SetOut("target", id)
				return
			}
		}
	}
}

// resolvePoints extracts an ordered point list from an input value: either
// a literal point slice or an entity reference resolved against the store.
func (e *Engine) resolvePoints(v any, store *geom.Store) (geom.EntityID, []geom.Vec3) {
	switch t := v.(type) {
	case []geom.Vec3:
		return geom.ZeroEntity, t
	case geom.EntityID:
		return t, EntityPoints(store, t, e.samples())
	default:
		return geom.ZeroEntity, nil
	}
}

func (e *Engine) inputPoints(inputs map[string][]any, port string, store *geom.Store) []geom.Vec3 {
	_, pts := e.firstPoints(inputs, port, store)
	return pts
}

func (e *Engine) firstPoints(inputs map[string][]any, port string, store *geom.Store) (geom.EntityID, []geom.Vec3) {
	for _, v := range inputs[port] {
		if id, pts := e.resolvePoints(v, store); len(pts) > 0 {
			return id, pts
		}
	}
	return geom.ZeroEntity, nil
}

func (e *Engine) profileClosed(inputs map[string][]any, port string, store *geom.Store) bool {
	for _, v := range inputs[port] {
		if id, ok := v.(geom.EntityID); ok {
			if ent := store.Get(id); ent != nil {
				switch d := ent.Payload.(type) {
				case geom.PolylineData:
					return d.Closed
				case geom.NurbsCurveData:
					return d.Closed
				}
			}
		}
	}
	return false
}

// targetMesh resolves the mesh of the first entity reference on the target
// port, cloned so downstream mutation cannot alias the store.
func (e *Engine) targetMesh(inputs map[string][]any, store *geom.Store) *geom.Mesh {
	for _, port := range []string{"target", "source", "geometry"} {
		for _, v := range inputs[port] {
			switch t := v.(type) {
			case *geom.Mesh:
				return t.Clone()
			case geom.EntityID:
				if ent := store.Get(t); ent != nil {
					if m := geom.ResolvedMesh(ent); !m.IsEmpty() {
						return m.Clone()
					}
				}
			}
		}
	}
	return nil
}

// EntityPoints resolves the ordered positions an entity contributes as a
// profile or section: a vertex's position, a polyline's vertex positions,
// or a sampled NURBS curve.
func EntityPoints(store *geom.Store, id geom.EntityID, samples int) []geom.Vec3 {
	ent := store.Get(id)
	if ent == nil {
		return nil
	}
	switch d := ent.Payload.(type) {
	case geom.VertexData:
		return []geom.Vec3{d.Position}
	case geom.PolylineData:
		pts := make([]geom.Vec3, 0, len(d.Vertices))
		for _, vid := range d.Vertices {
			v := store.Get(vid)
			if v == nil {
				continue
			}
			if vd, ok := v.Payload.(geom.VertexData); ok {
				pts = append(pts, vd.Position)
			}
		}
		return pts
	case geom.NurbsCurveData:
		return meshop.SampleNurbsCurve(d.Points, d.Weights, d.Knots, d.Degree, samples)
	default:
		return nil
	}
}

// displaceByField pushes mesh positions away from a field center with a
// distance falloff, recording the smoothing profile used.
func displaceByField(m *geom.Mesh, center geom.Vec3, strength, radius float64, falloff string) *geom.Mesh {
	out := m.Clone()
	for i := 0; i < out.VertexCount(); i++ {
		p := out.Position(i)
		d := p.Sub(center)
		dist := d.Length()
		if dist > radius || dist < 1e-9 {
			continue
		}
		t := 1 - dist/radius
		switch falloff {
		case "linear":
			// t unchanged
		default: // smooth
			t = t * t * (3 - 2*t)
		}
		out.SetPosition(i, p.Add(d.Normalized().Scale(strength*t)))
	}
	out.RecomputeNormals()
	return out
}

// builtinField returns a named scalar field for isosurface extraction.
func builtinField(name string, scale float64) kernel.Field {
	if scale == 0 {
		scale = 1
	}
	switch name {
	case "gyroid":
		return func(p geom.Vec3) float64 {
			x, y, z := p.X/scale, p.Y/scale, p.Z/scale
			return math.Sin(x)*math.Cos(y) + math.Sin(y)*math.Cos(z) + math.Sin(z)*math.Cos(x)
		}
	default: // sphere of radius scale
		return func(p geom.Vec3) float64 {
			return p.Length() - scale
		}
	}
}

// ---------------------------------------------------------------------------
// Output / parameter access helpers
// ---------------------------------------------------------------------------

func boolOut(n *graph.Node, key string, def bool) bool {
	if v, ok := n.Params[key].(bool); ok {
		return v
	}
	return def
}

func floatParamOf(n *graph.Node, key string, def float64) float64 {
	switch v := n.Params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

func intParamOf(n *graph.Node, key string, def int) int {
	switch v := n.Params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func stringParamOf(n *graph.Node, key, def string) string {
	if v, ok := n.Params[key].(string); ok && v != "" {
		return v
	}
	return def
}

func vec3ParamOf(n *graph.Node, key string, def geom.Vec3) geom.Vec3 {
	switch v := n.Params[key].(type) {
	case geom.Vec3:
		return v
	case map[string]any:
		out := def
		if x, ok := v["x"].(float64); ok {
			out.X = x
		}
		if y, ok := v["y"].(float64); ok {
			out.Y = y
		}
		if z, ok := v["z"].(float64); ok {
			out.Z = z
		}
		return out
	default:
		return def
	}
}

func vecListParamOf(n *graph.Node, key string) []geom.Vec3 {
	switch v := n.Params[key].(type) {
	case []geom.Vec3:
		return v
	case []any:
		var out []geom.Vec3
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				p := geom.Vec3{}
				if x, ok := m["x"].(float64); ok {
					p.X = x
				}
				if y, ok := m["y"].(float64); ok {
					p.Y = y
				}
				if z, ok := m["z"].(float64); ok {
					p.Z = z
				}
				out = append(out, p)
			}
		}
		return out
	default:
		return nil
	}
}

func firstSolid(inputs map[string][]any, port string) kernel.Solid {
	for _, v := range inputs[port] {
		if s, ok := v.(kernel.Solid); ok {
			return s
		}
	}
	return nil
}

func firstMesh(inputs map[string][]any, port string) *geom.Mesh {
	for _, v := range inputs[port] {
		if m, ok := v.(*geom.Mesh); ok && !m.IsEmpty() {
			return m
		}
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
