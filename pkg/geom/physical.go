package geom

import "math"

// PhysicalProps are the derived physical properties of an entity, computed
// from its resolved triangle mesh in model units. Mass and inertia stay
// nil when no density is known; zero is a valid computed value and never a
// default.
type PhysicalProps struct {
	Area     float64        `json:"area"`
	Volume   float64        `json:"volume"`
	Centroid Vec3           `json:"centroid"`
	MassKg   *float64       `json:"mass_kg,omitempty"`
	Inertia  *[3][3]float64 `json:"inertia,omitempty"` // about the centroid
}

// ComputeMeshProps integrates area, volume and centroid over a closed
// triangle mesh using the divergence theorem, plus mass and inertia when a
// density is supplied. All results are in model units: density is mass per
// cubic model unit, inertia is mass times model unit squared.
// Returns nil for empty meshes.
func ComputeMeshProps(m *Mesh, density *float64) *PhysicalProps {
	if m.IsEmpty() || m.TriangleCount() == 0 {
		return nil
	}

	// Order: 1, x, y, z, x^2, y^2, z^2, xy, yz, zx.
	var intg [10]float64
	var area float64

	for t := 0; t < m.TriangleCount(); t++ {
		ia, ib, ic := m.Triangle(t)
		p0 := m.Position(ia)
		p1 := m.Position(ib)
		p2 := m.Position(ic)

		d1 := p1.Sub(p0)
		d2 := p2.Sub(p0)
		n := d1.Cross(d2) // non-normalized face normal

		area += n.Length() / 2

		f1x, f2x, f3x, g0x, g1x, g2x := subexpressions(p0.X, p1.X, p2.X)
		_, f2y, f3y, g0y, g1y, g2y := subexpressions(p0.Y, p1.Y, p2.Y)
		_, f2z, f3z, g0z, g1z, g2z := subexpressions(p0.Z, p1.Z, p2.Z)

		intg[0] += n.X * f1x
		intg[1] += n.X * f2x
		intg[2] += n.Y * f2y
		intg[3] += n.Z * f2z
		intg[4] += n.X * f3x
		intg[5] += n.Y * f3y
		intg[6] += n.Z * f3z
		intg[7] += n.X * (p0.Y*g0x + p1.Y*g1x + p2.Y*g2x)
		intg[8] += n.Y * (p0.Z*g0y + p1.Z*g1y + p2.Z*g2y)
		intg[9] += n.Z * (p0.X*g0z + p1.X*g1z + p2.X*g2z)
	}

	scales := [10]float64{
		1.0 / 6, 1.0 / 24, 1.0 / 24, 1.0 / 24,
		1.0 / 60, 1.0 / 60, 1.0 / 60,
		1.0 / 120, 1.0 / 120, 1.0 / 120,
	}
	for i := range intg {
		intg[i] *= scales[i]
	}

	volume := intg[0]
	props := &PhysicalProps{Area: area, Volume: math.Abs(volume)}

	if math.Abs(volume) > 1e-18 {
		props.Centroid = Vec3{intg[1] / volume, intg[2] / volume, intg[3] / volume}
	}

	if density != nil {
		mass := *density * math.Abs(volume)
		props.MassKg = &mass

		cm := Vec3{0, 0, 0}
		if math.Abs(volume) > 1e-18 {
			cm = Vec3{intg[1] / volume, intg[2] / volume, intg[3] / volume}
		}
		rho := *density
		sign := 1.0
		if volume < 0 {
			sign = -1.0
		}

		// Inertia about the origin, then shifted to the centroid.
		ixx := sign*rho*(intg[5]+intg[6]) - mass*(cm.Y*cm.Y+cm.Z*cm.Z)
		iyy := sign*rho*(intg[4]+intg[6]) - mass*(cm.X*cm.X+cm.Z*cm.Z)
		izz := sign*rho*(intg[4]+intg[5]) - mass*(cm.X*cm.X+cm.Y*cm.Y)
		ixy := -(sign*rho*intg[7] - mass*cm.X*cm.Y)
		iyz := -(sign*rho*intg[8] - mass*cm.Y*cm.Z)
		izx := -(sign*rho*intg[9] - mass*cm.Z*cm.X)

		props.Inertia = &[3][3]float64{
			{ixx, ixy, izx},
			{ixy, iyy, iyz},
			{izx, iyz, izz},
		}
	}

	return props
}

// subexpressions computes the polynomial terms shared by the surface
// integrals (Eberly, "Polyhedral Mass Properties").
func subexpressions(w0, w1, w2 float64) (f1, f2, f3, g0, g1, g2 float64) {
	t0 := w0 + w1
	f1 = t0 + w2
	t1 := w0 * w0
	t2 := t1 + w1*t0
	f2 = t2 + w2*f1
	f3 = w0*t1 + w1*t2 + w2*f2
	g0 = f2 + w0*(f1+w0)
	g1 = f2 + w1*(f1+w1)
	g2 = f2 + w2*(f1+w2)
	return
}
