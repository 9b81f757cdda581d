package telemetry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Collector accumulates per-tick events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	dt                  float64

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	waterOverflow  int
	boatOverflow   int
	overflowTicks  int
	boatResizes    int
	boatForceSum   float64
	boatForceTicks int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := int32(1)
	if dt > 0 {
		ticksPerWindow = max(int32(math.Round(windowDurationSec/dt)), 1)
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordOverflow records grid insertions dropped during one tick.
func (c *Collector) RecordOverflow(water, boat int) {
	c.waterOverflow += water
	c.boatOverflow += boat
	if water > 0 || boat > 0 {
		c.overflowTicks++
	}
}

// RecordBoatResize records a reallocation of the boat sample arrays.
func (c *Collector) RecordBoatResize() {
	c.boatResizes++
}

// RecordBoatForce records the net force the water put on the boat in one tick.
func (c *Collector) RecordBoatForce(net r3.Vec) {
	c.boatForceSum += r3.Norm(net)
	c.boatForceTicks++
}

// OverflowThisWindow reports whether any overflow has been recorded since
// the last flush.
func (c *Collector) OverflowThisWindow() bool {
	return c.overflowTicks > 0
}

// ShouldFlush returns true if the current window has ended.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces WindowStats for the window ending at currentTick and resets
// the counters. positions and velocities are sampled at window end.
func (c *Collector) Flush(currentTick int32, positions, velocities []r3.Vec, boatSamples int) WindowStats {
	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,
		Blobs:           len(positions),
		BoatSamples:     boatSamples,
		WaterOverflow:   c.waterOverflow,
		BoatOverflow:    c.boatOverflow,
		OverflowTicks:   c.overflowTicks,
		BoatResizes:     c.boatResizes,
	}
	if c.boatForceTicks > 0 {
		stats.BoatForceMean = c.boatForceSum / float64(c.boatForceTicks)
	}

	stats.fillDistributions(positions, velocities)

	c.windowStartTick = currentTick
	c.waterOverflow = 0
	c.boatOverflow = 0
	c.overflowTicks = 0
	c.boatResizes = 0
	c.boatForceSum = 0
	c.boatForceTicks = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
