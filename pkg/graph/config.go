package graph

import "github.com/chazu/armature/pkg/geom"

// Node type tags for the types this engine handles natively. The registry
// may define more; unknown types are pruned at project load and otherwise
// pass through evaluation untouched.
const (
	TypePoint           = "point"
	TypeLine            = "line"
	TypePolyline        = "polyline"
	TypeCircle          = "circle"
	TypeRectangle       = "rectangle"
	TypeBox             = "box"
	TypeSphere          = "sphere"
	TypeCylinder        = "cylinder"
	TypeSurface         = "surface"
	TypeMove            = "move"
	TypeRotate          = "rotate"
	TypeScale           = "scale"
	TypeLoft            = "loft"
	TypeExtrude         = "extrude"
	TypeBoolean         = "boolean"
	TypePipeSweep       = "pipe-sweep"
	TypePipeMerge       = "pipe-merge"
	TypeOffset          = "offset"
	TypeOffsetSurface   = "offset-surface"
	TypeFillet          = "fillet"
	TypeFilletEdges     = "fillet-edges"
	TypeThicken         = "thicken"
	TypePlasticWrap     = "plastic-wrap"
	TypeSolidCap        = "solid-cap"
	TypeFieldTransform  = "field-transform"
	TypeArray           = "array"
	TypeIsosurface      = "isosurface"
	TypeMeshConvert     = "mesh-convert"
	TypeSolverPhysics   = "solver-physics"
	TypeSolverChemistry = "solver-chemistry"
	TypeFileImport      = "file-import"
	TypeFileExport      = "file-export"
	TypeCustomMaterial  = "custom-material"
	TypeExpression      = "expression"
)

// NodeConfig is the interface for type-specific node configuration.
// Known node types decode their Params bag into one of these; the bag
// remains authoritative for registry-defined custom parameters.
type NodeConfig interface {
	nodeConfig() // marker method restricting implementations to this package
}

// PointConfig configures a point generator.
type PointConfig struct {
	Position geom.Vec3
}

func (PointConfig) nodeConfig() {}

// LineConfig configures a two-point line generator.
type LineConfig struct {
	Start geom.Vec3
	End   geom.Vec3
}

func (LineConfig) nodeConfig() {}

// PolylineConfig configures a polyline generator.
type PolylineConfig struct {
	Points []geom.Vec3
	Closed bool
	Degree int
}

func (PolylineConfig) nodeConfig() {}

// CircleConfig configures a NURBS circle generator.
type CircleConfig struct {
	Center geom.Vec3
	Normal geom.Vec3
	Radius float64
}

func (CircleConfig) nodeConfig() {}

// RectangleConfig configures a rectangle generator on the XY plane of its
// center.
type RectangleConfig struct {
	Center geom.Vec3
	Width  float64
	Height float64
}

func (RectangleConfig) nodeConfig() {}

// BoxConfig configures a box primitive generator.
type BoxConfig struct {
	Center geom.Vec3
	Width  float64 // X
	Height float64 // Y
	Depth  float64 // Z
}

func (BoxConfig) nodeConfig() {}

// SphereConfig configures a sphere primitive generator.
type SphereConfig struct {
	Center geom.Vec3
	Radius float64
}

func (SphereConfig) nodeConfig() {}

// CylinderConfig configures a cylinder primitive generator.
type CylinderConfig struct {
	Center geom.Vec3
	Radius float64
	Height float64
}

func (CylinderConfig) nodeConfig() {}

// MoveConfig configures a translation applied to a target entity.
type MoveConfig struct {
	Offset geom.Vec3
}

func (MoveConfig) nodeConfig() {}

// RotateConfig configures a rotation about an axis through a pivot.
// Angle is in radians.
type RotateConfig struct {
	Angle float64
	Axis  geom.Vec3
	Pivot geom.Vec3
}

func (RotateConfig) nodeConfig() {}

// ScaleConfig configures per-axis scaling about a pivot.
type ScaleConfig struct {
	Factors geom.Vec3
	Pivot   geom.Vec3
}

func (ScaleConfig) nodeConfig() {}

// ExpressionConfig configures a scripted expression node.
type ExpressionConfig struct {
	Source string
}

func (ExpressionConfig) nodeConfig() {}

// DecodeConfig builds the typed config for a node from its parameter bag.
// Unknown or custom types get a nil config and keep only the bag.
func DecodeConfig(n *Node) NodeConfig {
	p := n.Params
	switch n.Type {
	case TypePoint:
		return PointConfig{Position: vec3Param(p, "position")}
	case TypeLine:
		return LineConfig{Start: vec3Param(p, "start"), End: vec3Param(p, "end")}
	case TypePolyline:
		return PolylineConfig{
			Points: vecListParam(p, "points"),
			Closed: boolParam(p, "closed"),
			Degree: intParam(p, "degree", 1),
		}
	case TypeCircle:
		return CircleConfig{
			Center: vec3Param(p, "center"),
			Normal: vec3ParamDefault(p, "normal", geom.Vec3{Z: 1}),
			Radius: floatParam(p, "radius", 1),
		}
	case TypeRectangle:
		return RectangleConfig{
			Center: vec3Param(p, "center"),
			Width:  floatParam(p, "width", 1),
			Height: floatParam(p, "height", 1),
		}
	case TypeBox:
		return BoxConfig{
			Center: vec3Param(p, "center"),
			Width:  floatParam(p, "width", 1),
			Height: floatParam(p, "height", 1),
			Depth:  floatParam(p, "depth", 1),
		}
	case TypeSphere:
		return SphereConfig{Center: vec3Param(p, "center"), Radius: floatParam(p, "radius", 1)}
	case TypeCylinder:
		return CylinderConfig{
			Center: vec3Param(p, "center"),
			Radius: floatParam(p, "radius", 1),
			Height: floatParam(p, "height", 1),
		}
	case TypeMove:
		return MoveConfig{Offset: vec3Param(p, "offset")}
	case TypeRotate:
		return RotateConfig{
			Angle: floatParam(p, "angle", 0),
			Axis:  vec3ParamDefault(p, "axis", geom.Vec3{Z: 1}),
			Pivot: vec3Param(p, "pivot"),
		}
	case TypeScale:
		return ScaleConfig{
			Factors: vec3ParamDefault(p, "factors", geom.Vec3{X: 1, Y: 1, Z: 1}),
			Pivot:   vec3Param(p, "pivot"),
		}
	case TypeExpression:
		src, _ := p["source"].(string)
		return ExpressionConfig{Source: src}
	default:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Parameter bag decoding
// ---------------------------------------------------------------------------

func floatParam(p map[string]any, key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

func intParam(p map[string]any, key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

func boolParam(p map[string]any, key string) bool {
	b, _ := p[key].(bool)
	return b
}

func vec3Param(p map[string]any, key string) geom.Vec3 {
	return vec3ParamDefault(p, key, geom.Vec3{})
}

func vec3ParamDefault(p map[string]any, key string, def geom.Vec3) geom.Vec3 {
	switch v := p[key].(type) {
	case geom.Vec3:
		return v
	case map[string]any:
		return geom.Vec3{
			X: floatParam(v, "x", def.X),
			Y: floatParam(v, "y", def.Y),
			Z: floatParam(v, "z", def.Z),
		}
	case []any:
		if len(v) == 3 {
			out := def
			if x, ok := toFloat(v[0]); ok {
				out.X = x
			}
			if y, ok := toFloat(v[1]); ok {
				out.Y = y
			}
			if z, ok := toFloat(v[2]); ok {
				out.Z = z
			}
			return out
		}
		return def
	default:
		return def
	}
}

func vecListParam(p map[string]any, key string) []geom.Vec3 {
	switch v := p[key].(type) {
	case []geom.Vec3:
		return v
	case []any:
		out := make([]geom.Vec3, 0, len(v))
		for _, item := range v {
			switch m := item.(type) {
			case geom.Vec3:
				out = append(out, m)
			case map[string]any:
				out = append(out, geom.Vec3{
					X: floatParam(m, "x", 0),
					Y: floatParam(m, "y", 0),
					Z: floatParam(m, "z", 0),
				})
			}
		}
		return out
	default:
		return nil
	}
}

func toFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case int:
		return float64(f), true
	default:
		return 0, false
	}
}
