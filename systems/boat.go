package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultDownPushMultiplier amplifies the downward part of the water's push
// on a boat sample, so sinking meets more resistance than rising.
const DefaultDownPushMultiplier = 5.0

// BoatParams holds the per-tick constants for the boat solve.
type BoatParams struct {
	DT                 float64
	PartRadius         float64
	ForceStrength      float64
	DownPushMultiplier float64
	BoundaryForce      float64
	Bounds             Bounds
}

// BoatFrame bundles the buffers a boat solve reads and writes.
// Sample i writes only Forces[i].
type BoatFrame struct {
	Samples        []r3.Vec
	Forces         []r3.Vec
	WaterPositions []r3.Vec
	Water          *CellGrid
}

// SolveBoatSample computes the force the water exerts on sample i.
// Returns scratch for reuse.
func SolveBoatSample(p *BoatParams, f *BoatFrame, i int, scratch []int32) []int32 {
	pos := f.Samples[i]
	var total r3.Vec

	if p.PartRadius > 0 {
		scratch = f.Water.NeighborsInto(scratch[:0], pos)
		for _, j := range scratch {
			delta := r3.Sub(f.WaterPositions[j], pos)
			dist := r3.Norm(delta)
			if dist <= 0 || dist > p.PartRadius {
				continue
			}

			dir := r3.Scale(-1/dist, delta)
			if dir.Y < 0 {
				dir.Y *= p.DownPushMultiplier
			}
			amount := math.Sqrt(clamp01((p.PartRadius - dist) / p.PartRadius))
			total = r3.Add(total, r3.Scale(amount*p.ForceStrength*p.DT, dir))
		}
	}

	// Boats float, so only keep them inside horizontally
	total = r3.Add(total, BoundaryForce(pos, r3.Vec{}, p.Bounds, p.BoundaryForce, p.DT, HorizontalAxes))

	f.Forces[i] = total
	return scratch
}

// SolveBoatRange runs SolveBoatSample for samples [i0, i1).
func SolveBoatRange(p *BoatParams, f *BoatFrame, i0, i1 int, scratch []int32) []int32 {
	for i := i0; i < i1; i++ {
		scratch = SolveBoatSample(p, f, i, scratch)
	}
	return scratch
}
