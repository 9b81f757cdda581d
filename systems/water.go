package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// WaterParams holds the per-tick constants for the water solve.
type WaterParams struct {
	DT                float64
	Gravity           float64 // downward acceleration
	ForceRadius       float64 // blob-blob interaction cutoff
	WaterForce        float64 // blob-blob repulsion strength
	WaterDamping      float64 // quadratic drag coefficient
	BoundaryForce     float64 // containment stiffness
	BoatPartRadius    float64 // blob-boat interaction cutoff
	BoatForceStrength float64 // blob-boat coupling strength
	Bounds            Bounds
}

// WaterFrame bundles the buffers a water solve reads and writes.
// Positions, Velocities, BoatPositions and both grids are read-only during
// the solve; particle i writes only NextPositions[i] and NextVelocities[i].
type WaterFrame struct {
	Positions      []r3.Vec
	Velocities     []r3.Vec
	NextPositions  []r3.Vec
	NextVelocities []r3.Vec

	Water *CellGrid

	// Boat is nil when no boat is present.
	Boat          *CellGrid
	BoatPositions []r3.Vec
}

// PairRepulsion returns the force pushing a point away from a neighbour at
// offset delta (neighbour minus point). Falls off as sqrt((r-d)/r) and is
// zero at and beyond radius. ok is false when the pair does not interact.
func PairRepulsion(delta r3.Vec, radius, strength, dt float64) (f r3.Vec, ok bool) {
	if !(radius > 0) {
		return r3.Vec{}, false
	}
	dist := r3.Norm(delta)
	if dist <= 0 || dist > radius {
		return r3.Vec{}, false
	}

	amount := clamp01((radius - dist) / radius)
	scale := math.Sqrt(amount) * strength * dt / dist
	return r3.Scale(-scale, delta), true
}

// SolveWater integrates one particle into the next generation and returns
// scratch for reuse.
func SolveWater(p *WaterParams, f *WaterFrame, i int, scratch []int32) []int32 {
	pos := f.Positions[i]
	vel := f.Velocities[i]

	total := r3.Vec{Y: -p.Gravity * p.DT}
	total = r3.Add(total, BoundaryForce(pos, vel, p.Bounds, p.BoundaryForce, p.DT, AllAxes))

	// Blob-blob repulsion
	scratch = f.Water.NeighborsInto(scratch[:0], pos)
	for _, j := range scratch {
		delta := r3.Sub(f.Positions[j], pos)
		if force, ok := PairRepulsion(delta, p.ForceRadius, p.WaterForce, p.DT); ok {
			total = r3.Add(total, force)
		}
	}

	// Submerged boat parts push the water aside
	if f.Boat != nil && len(f.BoatPositions) > 0 {
		scratch = f.Boat.NeighborsInto(scratch[:0], pos)
		for _, j := range scratch {
			delta := r3.Sub(f.BoatPositions[j], pos)
			if force, ok := PairRepulsion(delta, p.BoatPartRadius, p.BoatForceStrength, p.DT); ok {
				total = r3.Add(total, force)
			}
		}
	}

	damping := r3.Scale(r3.Norm(vel)*p.WaterDamping*p.DT, vel)
	next := r3.Sub(r3.Add(vel, total), damping)

	f.NextVelocities[i] = next
	f.NextPositions[i] = r3.Add(pos, r3.Scale(p.DT, next))
	return scratch
}

// SolveWaterRange runs SolveWater for particles [i0, i1).
func SolveWaterRange(p *WaterParams, f *WaterFrame, i0, i1 int, scratch []int32) []int32 {
	for i := i0; i < i1; i++ {
		scratch = SolveWater(p, f, i, scratch)
	}
	return scratch
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
