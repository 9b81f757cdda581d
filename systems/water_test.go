package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// newWaterFrame builds a frame over positions with zero velocities and a
// freshly built water grid.
func newWaterFrame(t *testing.T, positions []r3.Vec) *WaterFrame {
	t.Helper()
	g := newTestGrid(t, 32)
	g.Build(positions)
	n := len(positions)
	return &WaterFrame{
		Positions:      positions,
		Velocities:     make([]r3.Vec, n),
		NextPositions:  make([]r3.Vec, n),
		NextVelocities: make([]r3.Vec, n),
		Water:          g,
	}
}

func baseWaterParams() *WaterParams {
	return &WaterParams{
		DT:          0.02,
		ForceRadius: 3,
		WaterForce:  20,
		Bounds:      testBounds,
	}
}

func TestPairRepulsion(t *testing.T) {
	const radius, strength, dt = 3.0, 20.0, 0.02

	tests := []struct {
		name   string
		delta  r3.Vec
		wantOK bool
		want   r3.Vec
	}{
		{"coincident", r3.Vec{}, false, r3.Vec{}},
		{"beyond radius", r3.Vec{X: 3.01}, false, r3.Vec{}},
		{"exactly at radius", r3.Vec{Z: radius}, true, r3.Vec{}},
		{
			name:   "half radius",
			delta:  r3.Vec{X: 1.5},
			wantOK: true,
			want:   r3.Vec{X: -math.Sqrt(0.5) * strength * dt},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PairRepulsion(tt.delta, radius, strength, dt)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !vecApprox(got, tt.want) {
				t.Errorf("force = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPairRepulsion_NonPositiveRadius(t *testing.T) {
	for _, r := range []float64{0, -1} {
		if f, ok := PairRepulsion(r3.Vec{X: 0.1}, r, 20, 0.02); ok || f != (r3.Vec{}) {
			t.Errorf("radius %v: got %v, %v", r, f, ok)
		}
	}
}

func TestPairRepulsion_Symmetric(t *testing.T) {
	deltas := []r3.Vec{
		{X: 1.5},
		{X: 0.3, Y: -0.7, Z: 1.1},
		{Y: 2.9},
	}
	for _, d := range deltas {
		fij, _ := PairRepulsion(d, 3, 20, 0.02)
		fji, _ := PairRepulsion(r3.Scale(-1, d), 3, 20, 0.02)
		if !vecApprox(fij, r3.Scale(-1, fji)) {
			t.Errorf("delta %v: %v is not the negation of %v", d, fij, fji)
		}
		// Points away from the neighbour
		if r3.Dot(fij, d) >= 0 {
			t.Errorf("delta %v: force %v is not repulsive", d, fij)
		}
	}
}

func TestSolveWater_SingleParticleEuler(t *testing.T) {
	p := baseWaterParams()
	p.Gravity = 8

	start := r3.Vec{X: 1, Y: 2, Z: -1}
	f := newWaterFrame(t, []r3.Vec{start})
	SolveWater(p, f, 0, nil)

	wantVel := r3.Vec{Y: -8 * 0.02}
	if !vecApprox(f.NextVelocities[0], wantVel) {
		t.Errorf("velocity = %v, want %v", f.NextVelocities[0], wantVel)
	}
	wantPos := r3.Add(start, r3.Scale(0.02, wantVel))
	if !vecApprox(f.NextPositions[0], wantPos) {
		t.Errorf("position = %v, want %v", f.NextPositions[0], wantPos)
	}

	// Current generation untouched
	if f.Positions[0] != start || f.Velocities[0] != (r3.Vec{}) {
		t.Error("solve wrote to the current generation")
	}
}

func TestSolveWater_NoPairForceWithoutRadius(t *testing.T) {
	positions := []r3.Vec{{}, {X: 0.5}, {Z: 0.5}, {X: 0.2, Y: 0.2}}

	for _, r := range []float64{0, -2} {
		p := baseWaterParams()
		p.ForceRadius = r
		f := newWaterFrame(t, positions)
		SolveWaterRange(p, f, 0, len(positions), nil)

		for i := range positions {
			if f.NextVelocities[i] != (r3.Vec{}) {
				t.Errorf("radius %v: particle %d moved with velocity %v", r, i, f.NextVelocities[i])
			}
		}
	}
}

func TestSolveWater_PairAtRadiusIsZero(t *testing.T) {
	p := baseWaterParams()
	f := newWaterFrame(t, []r3.Vec{{}, {X: p.ForceRadius}})
	SolveWaterRange(p, f, 0, 2, nil)

	for i := 0; i < 2; i++ {
		if !vecApprox(f.NextVelocities[i], r3.Vec{}) {
			t.Errorf("particle %d velocity = %v, want zero", i, f.NextVelocities[i])
		}
	}
}

func TestSolveWater_PairAtHalfRadius(t *testing.T) {
	p := baseWaterParams()
	f := newWaterFrame(t, []r3.Vec{{}, {X: p.ForceRadius / 2}})
	SolveWaterRange(p, f, 0, 2, nil)

	v0, v1 := f.NextVelocities[0], f.NextVelocities[1]
	if !(v0.X < 0) || !(v1.X > 0) {
		t.Fatalf("particles should separate along X: %v, %v", v0, v1)
	}
	if v0.Y != 0 || v0.Z != 0 {
		t.Errorf("force off the connecting line: %v", v0)
	}
	if !vecApprox(v0, r3.Scale(-1, v1)) {
		t.Errorf("forces not equal and opposite: %v, %v", v0, v1)
	}
}

func TestSolveWater_QuadraticDamping(t *testing.T) {
	p := baseWaterParams()
	p.ForceRadius = 0
	p.WaterDamping = 0.5

	f := newWaterFrame(t, []r3.Vec{{}})
	f.Velocities[0] = r3.Vec{X: 2}
	SolveWater(p, f, 0, nil)

	// 2 - 2*|2|*0.5*0.02
	want := r3.Vec{X: 2 - 0.04}
	if !vecApprox(f.NextVelocities[0], want) {
		t.Errorf("velocity = %v, want %v", f.NextVelocities[0], want)
	}
}

func TestSolveWater_BoatPushesWater(t *testing.T) {
	p := baseWaterParams()
	p.ForceRadius = 0
	p.BoatPartRadius = 1.5
	p.BoatForceStrength = 30

	f := newWaterFrame(t, []r3.Vec{{}})
	boat := []r3.Vec{{X: 0.5}}
	f.Boat = newTestGrid(t, 8)
	f.Boat.Build(boat)
	f.BoatPositions = boat

	SolveWater(p, f, 0, nil)

	want, _ := PairRepulsion(boat[0], 1.5, 30, 0.02)
	if !vecApprox(f.NextVelocities[0], want) {
		t.Errorf("velocity = %v, want %v", f.NextVelocities[0], want)
	}
	if !(want.X < 0) {
		t.Errorf("water should be pushed away from the boat, got %v", want)
	}
}

func TestSolveWater_RangeMatchesSingle(t *testing.T) {
	positions := []r3.Vec{{}, {X: 1}, {X: 2, Z: 1}, {X: -1, Y: 1}, {Z: -2}}
	p := baseWaterParams()
	p.Gravity = 8
	p.WaterDamping = 0.2
	p.BoundaryForce = 0.2

	a := newWaterFrame(t, positions)
	b := newWaterFrame(t, positions)

	SolveWaterRange(p, a, 0, len(positions), nil)
	var scratch []int32
	for i := len(positions) - 1; i >= 0; i-- {
		scratch = SolveWater(p, b, i, scratch)
	}

	for i := range positions {
		if a.NextPositions[i] != b.NextPositions[i] || a.NextVelocities[i] != b.NextVelocities[i] {
			t.Errorf("particle %d depends on solve order", i)
		}
	}
}

func TestSolveWater_SettlesWithoutDiverging(t *testing.T) {
	p := baseWaterParams()
	p.Gravity = 8
	p.BoundaryForce = 0.2
	p.Bounds = Bounds{HalfExtents: r3.Vec{X: 10, Y: 10, Z: 10}}

	g, err := NewCellGrid(p.Bounds, 3, 7, 7, 8)
	if err != nil {
		t.Fatal(err)
	}
	f := &WaterFrame{
		Positions:      []r3.Vec{{}},
		Velocities:     []r3.Vec{{}},
		NextPositions:  []r3.Vec{{}},
		NextVelocities: []r3.Vec{{}},
		Water:          g,
	}

	for tick := 0; tick < 1000; tick++ {
		g.Build(f.Positions)
		SolveWater(p, f, 0, nil)
		f.Positions, f.NextPositions = f.NextPositions, f.Positions
		f.Velocities, f.NextVelocities = f.NextVelocities, f.Velocities

		pos, vel := f.Positions[0], f.Velocities[0]
		for _, c := range []float64{pos.X, pos.Y, pos.Z, vel.X, vel.Y, vel.Z} {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				t.Fatalf("tick %d: non-finite state pos=%v vel=%v", tick, pos, vel)
			}
		}

		// Held near the floor by the boundary, not in free fall
		if pos.Y < -10-2*MaxBoundaryDepth || pos.Y > 1 {
			t.Fatalf("tick %d: escaped the volume, y = %v", tick, pos.Y)
		}
		if math.Abs(vel.Y) > 20 {
			t.Fatalf("tick %d: vertical speed diverging: %v", tick, vel.Y)
		}
	}
}
