package geom

import (
	"math"
	"testing"
)

func TestComputeMeshPropsBox(t *testing.T) {
	// 2x1x1 box centered at (0,3,0).
	m := boxMesh(Vec3{0, 3, 0}, 2, 1, 1)
	props := ComputeMeshProps(m, nil)
	if props == nil {
		t.Fatal("closed box should yield props")
	}

	if got, want := props.Volume, 2.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("volume = %g, want %g", got, want)
	}
	// Surface area: 2*(2*1 + 2*1 + 1*1) = 10.
	if got, want := props.Area, 10.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("area = %g, want %g", got, want)
	}
	if !props.Centroid.NearEqual(Vec3{0, 3, 0}, 1e-9) {
		t.Errorf("centroid = %v, want (0,3,0)", props.Centroid)
	}
	if props.MassKg != nil || props.Inertia != nil {
		t.Error("mass and inertia must stay nil without a density")
	}
}

func TestComputeMeshPropsInertia(t *testing.T) {
	density := 500.0
	m := boxMesh(Vec3{1, 2, 3}, 10, 10, 10)
	props := ComputeMeshProps(m, &density)
	if props == nil || props.MassKg == nil || props.Inertia == nil {
		t.Fatal("density should yield mass and inertia")
	}

	mass := *props.MassKg
	if want := density * 1000.0; math.Abs(mass-want) > 1e-6 {
		t.Fatalf("mass = %g, want %g", mass, want)
	}

	// Centroidal inertia of a cube with edge a: m*a^2/6 on the diagonal,
	// regardless of where the cube sits.
	want := mass * 100.0 / 6
	for i := 0; i < 3; i++ {
		if got := props.Inertia[i][i]; math.Abs(got-want) > want*1e-9 {
			t.Errorf("inertia[%d][%d] = %g, want %g", i, i, got, want)
		}
		for j := 0; j < 3; j++ {
			if i != j && math.Abs(props.Inertia[i][j]) > want*1e-9 {
				t.Errorf("off-diagonal inertia[%d][%d] = %g, want 0", i, j, props.Inertia[i][j])
			}
		}
	}
}

func TestComputeMeshPropsEmpty(t *testing.T) {
	if ComputeMeshProps(&Mesh{}, nil) != nil {
		t.Error("empty mesh should yield nil props")
	}
}
