package systems

import "gonum.org/v1/gonum/spatial/r3"

// MaxBoundaryDepth caps how far outside the volume a point is treated as being.
// Beyond this depth the containment force stops growing.
const MaxBoundaryDepth = 3.0

// floorBounceDamping scales the anti-penetration term applied below the floor.
const floorBounceDamping = 0.8

// Bounds is an axis-aligned containment volume in world space.
type Bounds struct {
	Center      r3.Vec
	HalfExtents r3.Vec
}

// Min returns the low corner of the volume.
func (b Bounds) Min() r3.Vec {
	return r3.Sub(b.Center, b.HalfExtents)
}

// Max returns the high corner of the volume.
func (b Bounds) Max() r3.Vec {
	return r3.Add(b.Center, b.HalfExtents)
}

// Contains reports whether p lies inside the volume (faces inclusive).
func (b Bounds) Contains(p r3.Vec) bool {
	lo, hi := b.Min(), b.Max()
	return p.X >= lo.X && p.X <= hi.X &&
		p.Y >= lo.Y && p.Y <= hi.Y &&
		p.Z >= lo.Z && p.Z <= hi.Z
}

// Axes selects which axes a boundary force acts on.
type Axes uint8

const (
	AxisX Axes = 1 << iota
	AxisY
	AxisZ

	AllAxes        = AxisX | AxisY | AxisZ
	HorizontalAxes = AxisX | AxisZ
)

// Has reports whether a is enabled.
func (a Axes) Has(axis Axes) bool {
	return a&axis != 0
}

// BoundaryForce returns the soft containment force for a point at pos.
// Each enabled axis pushes inward with depth² * strength, depth clamped to
// MaxBoundaryDepth. Below the floor a velocity term softens the bounce.
// Position is never clamped: points may cross a face and get pulled back.
func BoundaryForce(pos, vel r3.Vec, b Bounds, strength, dt float64, axes Axes) r3.Vec {
	var f r3.Vec
	lo, hi := b.Min(), b.Max()

	if axes.Has(AxisX) {
		f.X = containAxis(pos.X, lo.X, hi.X, strength)
	}
	if axes.Has(AxisZ) {
		f.Z = containAxis(pos.Z, lo.Z, hi.Z, strength)
	}
	if axes.Has(AxisY) {
		f.Y = containAxis(pos.Y, lo.Y, hi.Y, strength)

		// Less bouncing off the floor
		if lo.Y-pos.Y > 0 && vel.Y < 0 {
			f.Y -= vel.Y * floorBounceDamping * dt
		}
	}

	return f
}

// containAxis computes the signed single-axis containment term.
func containAxis(x, lo, hi, strength float64) float64 {
	var f float64
	if d := lo - x; d > 0 {
		d = min(d, MaxBoundaryDepth)
		f += d * d * strength
	}
	if d := x - hi; d > 0 {
		d = min(d, MaxBoundaryDepth)
		f -= d * d * strength
	}
	return f
}
