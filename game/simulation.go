package game

import (
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/blobsea/systems"
)

// rebuildWaterGrid indexes the current generation's positions.
func (s *Simulation) rebuildWaterGrid() int {
	return s.waterGrid.Build(s.buf.Current().Positions)
}

// syncBoat reallocates the boat buffers when the part count changed, then
// copies the sample positions for this tick.
func (s *Simulation) syncBoat() {
	if s.boat == nil {
		return
	}

	n := s.boat.SampleCount()
	if s.boatBuf.resize(n) {
		s.boat.SetMass(float64(n) * s.cfg.Boat.Density)
		if s.tick > 0 {
			s.collector.RecordBoatResize()
			slog.Debug("boat resized", "tick", s.tick, "samples", n)
		}
	}

	for i := range s.boatBuf.Positions {
		s.boatBuf.Positions[i] = s.boat.SamplePosition(i)
	}
}

// rebuildBoatGrid indexes this tick's sample positions.
func (s *Simulation) rebuildBoatGrid() int {
	if s.boatGrid == nil {
		return 0
	}
	return s.boatGrid.Build(s.boatBuf.Positions)
}

// recordOverflow counts dropped grid insertions, warning once per stats window.
func (s *Simulation) recordOverflow(water, boat int) {
	if (water > 0 || boat > 0) && !s.collector.OverflowThisWindow() {
		slog.Warn("grid overflow",
			"tick", s.tick,
			"water_dropped", water,
			"boat_dropped", boat,
			"water_capacity", s.waterGrid.Capacity()-1,
		)
	}
	s.collector.RecordOverflow(water, boat)
}

// solveWater integrates every blob from the current into the next generation.
func (s *Simulation) solveWater() {
	cur, next := s.buf.Current(), s.buf.Next()
	frame := systems.WaterFrame{
		Positions:      cur.Positions,
		Velocities:     cur.Velocities,
		NextPositions:  next.Positions,
		NextVelocities: next.Velocities,
		Water:          s.waterGrid,
	}
	if s.boatGrid != nil {
		frame.Boat = s.boatGrid
		frame.BoatPositions = s.boatBuf.Positions
	}

	s.pool.Run(len(cur.Positions), func(start, end int, scratch *workerScratch) {
		scratch.Neighbors = systems.SolveWaterRange(&s.waterParams, &frame, start, end, scratch.Neighbors)
	})
}

// solveBoat computes the water's force on every boat sample.
func (s *Simulation) solveBoat() {
	n := len(s.boatBuf.Positions)
	if s.boat == nil || n == 0 {
		return
	}

	frame := systems.BoatFrame{
		Samples:        s.boatBuf.Positions,
		Forces:         s.boatBuf.Forces,
		WaterPositions: s.buf.Current().Positions,
		Water:          s.waterGrid,
	}

	s.pool.Run(n, func(start, end int, scratch *workerScratch) {
		scratch.Neighbors = systems.SolveBoatRange(&s.boatParams, &frame, start, end, scratch.Neighbors)
	})
}

// writeBack publishes next-generation positions to the source and applies
// sample forces to the boat. Returns the net force on the boat.
func (s *Simulation) writeBack() r3.Vec {
	for i, p := range s.buf.Next().Positions {
		s.water.SetPosition(i, p)
	}

	var net r3.Vec
	if s.boat == nil {
		return net
	}
	for i, f := range s.boatBuf.Forces {
		s.boat.ApplyForceAt(f, s.boatBuf.Positions[i])
		net = r3.Add(net, f)
	}
	return net
}
