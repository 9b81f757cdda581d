package game

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/blobsea/config"
	"github.com/pthm-cable/blobsea/scene"
	"github.com/pthm-cable/blobsea/telemetry"
)

// sliceSource is a ParticleSource backed by a plain slice.
type sliceSource struct {
	pos []r3.Vec
}

func (s *sliceSource) Len() int { return len(s.pos) }
func (s *sliceSource) Position(i int) r3.Vec { return s.pos[i] }
func (s *sliceSource) SetPosition(i int, p r3.Vec) { s.pos[i] = p }

// fakeBoat records everything the simulation hands it.
type fakeBoat struct {
	samples []r3.Vec
	forces  []r3.Vec
	mass    []float64
}

func (b *fakeBoat) SampleCount() int { return len(b.samples) }
func (b *fakeBoat) SamplePosition(i int) r3.Vec { return b.samples[i] }
func (b *fakeBoat) ApplyForceAt(f, _ r3.Vec) { b.forces = append(b.forces, f) }
func (b *fakeBoat) SetMass(m float64) { b.mass = append(b.mass, m) }

// testConfig is a lattice of size x*y*z in a cube of half extent 10.
func testConfig(x, y, z int) *config.Config {
	cfg := config.Default()
	cfg.Blobs.Size = config.Size3{X: x, Y: y, Z: z}
	cfg.Blobs.Jitter = 0
	cfg.Volume.HalfExtents = config.Vec3{X: 10, Y: 10, Z: 10}
	cfg.Boat.Enabled = false
	cfg.ComputeDerived()
	return cfg
}

func latticeSource(cfg *config.Config) *sliceSource {
	w := scene.New(cfg, nil).Water()
	src := &sliceSource{pos: make([]r3.Vec, w.Len())}
	for i := range src.pos {
		src.pos[i] = w.Position(i)
	}
	return src
}

func newSim(t *testing.T, cfg *config.Config, src ParticleSource, boat BoatAdapter, opts Options) *Simulation {
	t.Helper()
	sim, err := NewWithOptions(cfg, src, boat, opts)
	require.NoError(t, err)
	t.Cleanup(sim.Close)
	return sim
}

func requireFinite(t *testing.T, tick int, vs []r3.Vec) {
	t.Helper()
	for i, v := range vs {
		for _, c := range []float64{v.X, v.Y, v.Z} {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				t.Fatalf("tick %d: blob %d non-finite: %v", tick, i, v)
			}
		}
	}
}

func TestSimulation_FirstTickEuler(t *testing.T) {
	cfg := testConfig(1, 1, 1)
	src := latticeSource(cfg)
	start := src.pos[0]
	sim := newSim(t, cfg, src, nil, Options{})

	require.NoError(t, sim.Step())

	dt := cfg.Physics.DT
	wantVel := r3.Vec{Y: -cfg.Water.Gravity * dt}
	assert.InDelta(t, wantVel.Y, sim.Velocities()[0].Y, 1e-12)
	assert.Zero(t, sim.Velocities()[0].X)
	assert.Zero(t, sim.Velocities()[0].Z)

	want := r3.Add(start, r3.Scale(dt, wantVel))
	assert.Equal(t, want, sim.Positions()[0])
	assert.Equal(t, want, src.pos[0], "position written back to the source")
	assert.Equal(t, int32(1), sim.Tick())
}

func TestSimulation_SingleBlobStaysBounded(t *testing.T) {
	cfg := testConfig(1, 1, 1)
	sim := newSim(t, cfg, latticeSource(cfg), nil, Options{})

	minY := 0.0
	for tick := 0; tick < 1000; tick++ {
		require.NoError(t, sim.Step())
		requireFinite(t, tick, sim.Positions())
		requireFinite(t, tick, sim.Velocities())
		minY = min(minY, sim.Positions()[0].Y)
	}

	// Caught by the floor, never far below it
	assert.Greater(t, minY, -10-2*3.0)
	assert.Less(t, minY, -10.0, "blob should have reached the floor")
	assert.Less(t, math.Abs(sim.Velocities()[0].Y), 20.0)
}

func TestSimulation_LatticeSettles(t *testing.T) {
	cfg := testConfig(6, 3, 6)
	cfg.Volume.HalfExtents = config.Vec3{X: 4, Y: 4, Z: 4}
	cfg.ComputeDerived()
	sim := newSim(t, cfg, latticeSource(cfg), nil, Options{})

	for tick := 0; tick < 300; tick++ {
		require.NoError(t, sim.Step())
	}
	requireFinite(t, 300, sim.Positions())
	requireFinite(t, 300, sim.Velocities())
}

func TestNew_CountMismatch(t *testing.T) {
	cfg := testConfig(2, 2, 2)
	src := &sliceSource{pos: make([]r3.Vec, 5)}

	_, err := New(cfg, src, nil)
	assert.True(t, errors.Is(err, ErrParticleCountMismatch), "got %v", err)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(1, 1, 1)
	cfg.Grid.CellSize = 0
	cfg.ComputeDerived()

	_, err := New(cfg, latticeSource(testConfig(1, 1, 1)), nil)
	assert.True(t, errors.Is(err, config.ErrInvalid), "got %v", err)
}

func TestStep_CountMismatch(t *testing.T) {
	cfg := testConfig(2, 1, 1)
	src := latticeSource(cfg)
	sim := newSim(t, cfg, src, nil, Options{})

	require.NoError(t, sim.Step())
	src.pos = append(src.pos, r3.Vec{})

	err := sim.Step()
	assert.True(t, errors.Is(err, ErrParticleCountMismatch), "got %v", err)
	assert.Equal(t, int32(1), sim.Tick(), "failed step must not advance")
}

func TestSimulation_BoatResize(t *testing.T) {
	cfg := testConfig(4, 2, 4)
	cfg.Boat.Enabled = true
	cfg.ComputeDerived()

	src := latticeSource(cfg)
	boat := &fakeBoat{samples: []r3.Vec{{Y: 0.5}, {X: 1, Y: 0.5}}}
	sim := newSim(t, cfg, src, boat, Options{})

	require.NoError(t, sim.Step())
	require.Len(t, sim.BoatForces(), 2)
	assert.Equal(t, []float64{2 * cfg.Boat.Density}, boat.mass)

	before := append([]r3.Vec(nil), sim.Positions()...)
	n := len(before)

	boat.samples = append(boat.samples, r3.Vec{X: -1, Y: 0.5})
	require.NoError(t, sim.Step())

	assert.Len(t, sim.BoatForces(), 3)
	assert.Equal(t, []float64{2 * cfg.Boat.Density, 3 * cfg.Boat.Density}, boat.mass)
	assert.Len(t, sim.Positions(), n, "water buffers keep their length")
	requireFinite(t, 2, sim.Positions())

	// Same count again: no reallocation, no mass update
	require.NoError(t, sim.Step())
	assert.Len(t, boat.mass, 2)

	boat.samples = nil
	require.NoError(t, sim.Step())
	assert.Empty(t, sim.BoatForces())
	assert.Equal(t, 0.0, boat.mass[len(boat.mass)-1])
}

func TestSimulation_BoatReceivesForces(t *testing.T) {
	cfg := testConfig(4, 2, 4)
	cfg.Boat.Enabled = true
	cfg.ComputeDerived()

	src := latticeSource(cfg)
	// Just above the top layer of blobs
	boat := &fakeBoat{samples: []r3.Vec{{Y: 0.5}}}
	sim := newSim(t, cfg, src, boat, Options{})

	require.NoError(t, sim.Step())
	require.Len(t, boat.forces, 1)
	assert.Equal(t, sim.BoatForces()[0], boat.forces[0])
	assert.Greater(t, boat.forces[0].Y, 0.0, "water below lifts the sample")
}

func TestSimulation_ParallelMatchesInline(t *testing.T) {
	run := func(workers, threshold int) []r3.Vec {
		cfg := testConfig(8, 3, 8)
		cfg.Boat.Enabled = true
		cfg.Parallel.Workers = workers
		cfg.Parallel.Threshold = threshold
		cfg.ComputeDerived()

		boat := &fakeBoat{samples: []r3.Vec{{Y: 1}, {X: 1, Y: 1}, {Z: 1, Y: 1}}}
		sim := newSim(t, cfg, latticeSource(cfg), boat, Options{})
		for i := 0; i < 25; i++ {
			require.NoError(t, sim.Step())
		}
		return append([]r3.Vec(nil), sim.Positions()...)
	}

	inline := run(1, 1)
	parallel := run(4, 1)
	require.Equal(t, len(inline), len(parallel))
	for i := range inline {
		assert.Equal(t, inline[i], parallel[i], "blob %d", i)
	}
}

func TestSimulation_Resync(t *testing.T) {
	cfg := testConfig(2, 1, 1)
	src := latticeSource(cfg)
	sim := newSim(t, cfg, src, nil, Options{})
	require.NoError(t, sim.Step())

	src.pos[0] = r3.Vec{X: 3, Y: 3, Z: 3}
	assert.NotEqual(t, src.pos[0], sim.Positions()[0])
	sim.Resync()
	assert.Equal(t, src.pos[0], sim.Positions()[0])
}

func TestSimulation_StatsWindow(t *testing.T) {
	cfg := testConfig(3, 2, 3)
	cfg.Telemetry.StatsWindow = 5 * cfg.Physics.DT
	cfg.ComputeDerived()

	var windows []telemetry.WindowStats
	sim := newSim(t, cfg, latticeSource(cfg), nil, Options{
		StatsCallback: func(s telemetry.WindowStats) { windows = append(windows, s) },
	})

	for i := 0; i < 12; i++ {
		require.NoError(t, sim.Step())
	}

	require.Len(t, windows, 2)
	assert.Equal(t, int32(5), windows[0].WindowEndTick)
	assert.Equal(t, int32(10), windows[1].WindowEndTick)
	assert.Equal(t, 18, windows[0].Blobs)
	assert.Zero(t, windows[0].NonFinite)
	assert.Greater(t, windows[1].SpeedMean, 0.0)
}

func TestSimulation_OverflowCounted(t *testing.T) {
	cfg := testConfig(2, 2, 2)
	cfg.Grid.CellCapacity = 3 // two blobs per cell
	cfg.Telemetry.StatsWindow = cfg.Physics.DT
	cfg.ComputeDerived()

	// All eight blobs in one cell
	src := &sliceSource{pos: make([]r3.Vec, 8)}
	for i := range src.pos {
		src.pos[i] = r3.Vec{X: 0.1 * float64(i), Y: 0.1 * float64(i)}
	}

	var stats telemetry.WindowStats
	sim := newSim(t, cfg, src, nil, Options{
		StatsCallback: func(s telemetry.WindowStats) { stats = s },
	})
	require.NoError(t, sim.Step())

	assert.Equal(t, 6, stats.WaterOverflow)
	assert.Equal(t, 1, stats.OverflowTicks)
	assert.Equal(t, 6, sim.WaterGrid().Dropped())
}

func TestSimulation_WritesOutput(t *testing.T) {
	cfg := testConfig(2, 2, 2)
	cfg.Telemetry.StatsWindow = 2 * cfg.Physics.DT
	cfg.ComputeDerived()

	dir := t.TempDir()
	out, err := telemetry.NewOutputManager(dir)
	require.NoError(t, err)

	sim := newSim(t, cfg, latticeSource(cfg), nil, Options{Output: out})
	for i := 0; i < 4; i++ {
		require.NoError(t, sim.Step())
	}
	require.NoError(t, out.Close())

	data, err := os.ReadFile(filepath.Join(dir, "stats.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3, "header plus two windows")
	assert.True(t, strings.HasPrefix(lines[0], "window_end,"))

	data, err = os.ReadFile(filepath.Join(dir, "perf.csv"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)
}

func TestSimulation_PerfStats(t *testing.T) {
	cfg := testConfig(2, 2, 2)
	sim := newSim(t, cfg, latticeSource(cfg), nil, Options{})
	for i := 0; i < 3; i++ {
		require.NoError(t, sim.Step())
	}

	stats := sim.PerfStats()
	assert.Greater(t, stats.AvgTickDuration.Nanoseconds(), int64(0))
	assert.Contains(t, stats.PhaseAvg, telemetry.PhaseWaterSolve)
}

func TestLogPerfBreakdown(t *testing.T) {
	var sb strings.Builder
	SetLogWriter(&sb)
	t.Cleanup(func() { SetLogWriter(nil) })

	cfg := testConfig(2, 2, 2)
	sim := newSim(t, cfg, latticeSource(cfg), nil, Options{})
	require.NoError(t, sim.Step())
	sim.LogPerfBreakdown()

	out := sb.String()
	assert.Contains(t, out, "Perf @ Tick 1")
	for _, phase := range telemetry.Phases {
		assert.Contains(t, out, phase)
	}
}
