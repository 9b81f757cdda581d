// Package game drives the per-tick water and boat pipeline.
package game

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/blobsea/config"
	"github.com/pthm-cable/blobsea/systems"
	"github.com/pthm-cable/blobsea/telemetry"
)

// ErrParticleCountMismatch is returned when the particle source length does
// not match the preallocated buffers.
var ErrParticleCountMismatch = errors.New("particle count mismatch")

// ParticleSource is the externally maintained, fixed-order set of blobs.
type ParticleSource interface {
	Len() int
	Position(i int) r3.Vec
	SetPosition(i int, p r3.Vec)
}

// BoatAdapter exposes the boat's sample points and accepts the forces the
// water puts on them. The sample count may change between ticks.
type BoatAdapter interface {
	SampleCount() int
	SamplePosition(i int) r3.Vec
	ApplyForceAt(force, point r3.Vec)
	SetMass(mass float64)
}

// Options configures optional simulation behavior.
type Options struct {
	LogStats      bool                        // Log window and perf stats via slog
	Output        *telemetry.OutputManager    // CSV output, nil = disabled
	StatsCallback func(telemetry.WindowStats) // Called on every window flush
}

// Simulation owns both blob generations, the grids and the worker pool.
// Step must not be called concurrently.
type Simulation struct {
	cfg   *config.Config
	water ParticleSource
	boat  BoatAdapter

	buf     *doubleBuffer
	boatBuf boatBuffers

	waterGrid *systems.CellGrid
	boatGrid  *systems.CellGrid

	waterParams systems.WaterParams
	boatParams  systems.BoatParams

	pool *workerPool

	// Telemetry
	perf          *telemetry.PerfCollector
	collector     *telemetry.Collector
	output        *telemetry.OutputManager
	logStats      bool
	statsCallback func(telemetry.WindowStats)

	tick int32
}

// New creates a simulation with default options. boat may be nil.
func New(cfg *config.Config, water ParticleSource, boat BoatAdapter) (*Simulation, error) {
	return NewWithOptions(cfg, water, boat, Options{})
}

// NewWithOptions creates a simulation, reading the initial blob positions
// from water. Velocities start at zero.
func NewWithOptions(cfg *config.Config, water ParticleSource, boat BoatAdapter, opts Options) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if n := water.Len(); n != cfg.Derived.BlobCount {
		return nil, fmt.Errorf("%w: source has %d blobs, lattice needs %d",
			ErrParticleCountMismatch, n, cfg.Derived.BlobCount)
	}

	bounds := systems.Bounds{Center: cfg.Derived.Center, HalfExtents: cfg.Derived.HalfExtents}

	waterGrid, err := systems.NewCellGrid(bounds, cfg.Grid.CellSize,
		cfg.Derived.XCells, cfg.Derived.ZCells, cfg.Grid.CellCapacity)
	if err != nil {
		return nil, fmt.Errorf("water grid: %w", err)
	}

	s := &Simulation{
		cfg:       cfg,
		water:     water,
		boat:      boat,
		buf:       newDoubleBuffer(water.Len()),
		waterGrid: waterGrid,
		waterParams: systems.WaterParams{
			DT:                cfg.Physics.DT,
			Gravity:           cfg.Water.Gravity,
			ForceRadius:       cfg.Water.ForceRadius,
			WaterForce:        cfg.Water.WaterForce,
			WaterDamping:      cfg.Water.WaterDamping,
			BoundaryForce:     cfg.Water.BoundaryForce,
			BoatPartRadius:    cfg.Boat.PartRadius,
			BoatForceStrength: cfg.Boat.ForceStrength,
			Bounds:            bounds,
		},
		boatParams: systems.BoatParams{
			DT:                 cfg.Physics.DT,
			PartRadius:         cfg.Boat.PartRadius,
			ForceStrength:      cfg.Boat.ForceStrength,
			DownPushMultiplier: cfg.Boat.DownPushMultiplier,
			BoundaryForce:      cfg.Water.BoundaryForce,
			Bounds:             bounds,
		},
		pool:          newWorkerPool(cfg.Parallel.Workers, cfg.Parallel.Threshold),
		perf:          telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		collector:     telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Physics.DT),
		output:        opts.Output,
		logStats:      opts.LogStats,
		statsCallback: opts.StatsCallback,
	}

	if boat != nil {
		// The boat grid shares the water grid's cell layout
		s.boatGrid, err = systems.NewCellGrid(bounds, cfg.Grid.CellSize,
			cfg.Derived.XCells, cfg.Derived.ZCells, cfg.Boat.GridCapacity)
		if err != nil {
			return nil, fmt.Errorf("boat grid: %w", err)
		}
	}

	s.Resync()
	return s, nil
}

// Step runs one fixed tick: rebuild grids, solve water, solve boat,
// write back, swap generations.
func (s *Simulation) Step() error {
	if n := s.water.Len(); n != s.buf.Len() {
		return fmt.Errorf("%w: source has %d blobs, buffers hold %d",
			ErrParticleCountMismatch, n, s.buf.Len())
	}

	s.perf.StartTick()

	s.perf.StartPhase(telemetry.PhaseWaterGrid)
	waterDropped := s.rebuildWaterGrid()

	s.perf.StartPhase(telemetry.PhaseBoatSync)
	s.syncBoat()

	s.perf.StartPhase(telemetry.PhaseBoatGrid)
	boatDropped := s.rebuildBoatGrid()
	s.recordOverflow(waterDropped, boatDropped)

	// The boat solve reads the rebuilt water grid, so phases stay ordered
	s.perf.StartPhase(telemetry.PhaseWaterSolve)
	s.solveWater()

	s.perf.StartPhase(telemetry.PhaseBoatSolve)
	s.solveBoat()

	s.perf.StartPhase(telemetry.PhaseWriteback)
	net := s.writeBack()
	s.buf.Swap()
	s.tick++

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	if s.boat != nil {
		s.collector.RecordBoatForce(net)
	}
	s.flushTelemetry()

	s.perf.EndTick()
	return nil
}

// Resync overwrites the current generation's positions with the source's.
// Velocities are kept.
func (s *Simulation) Resync() {
	cur := s.buf.Current()
	for i := range cur.Positions {
		cur.Positions[i] = s.water.Position(i)
	}
}

// Close stops the worker goroutines.
func (s *Simulation) Close() {
	s.pool.stopWorkers()
}

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() int32 {
	return s.tick
}

// Config returns the configuration the simulation was built with.
func (s *Simulation) Config() *config.Config {
	return s.cfg
}

// Positions returns the current generation's blob positions.
// The slice is owned by the simulation and only valid until the next Step.
func (s *Simulation) Positions() []r3.Vec {
	return s.buf.Current().Positions
}

// Velocities returns the current generation's blob velocities.
// The slice is owned by the simulation and only valid until the next Step.
func (s *Simulation) Velocities() []r3.Vec {
	return s.buf.Current().Velocities
}

// BoatForces returns the per-sample forces from the last tick.
func (s *Simulation) BoatForces() []r3.Vec {
	return s.boatBuf.Forces
}

// WaterGrid returns the water grid as built during the last tick.
func (s *Simulation) WaterGrid() *systems.CellGrid {
	return s.waterGrid
}

// PerfStats returns timing aggregated over the perf window.
func (s *Simulation) PerfStats() telemetry.PerfStats {
	return s.perf.Stats()
}
