package game

import (
	"log/slog"
)

// flushTelemetry checks if the stats window should be flushed and emits it.
func (s *Simulation) flushTelemetry() {
	if !s.collector.ShouldFlush(s.tick) {
		return
	}

	boatSamples := 0
	if s.boat != nil {
		boatSamples = len(s.boatBuf.Positions)
	}

	// Flush the stats window
	cur := s.buf.Current()
	stats := s.collector.Flush(s.tick, cur.Positions, cur.Velocities, boatSamples)
	perfStats := s.perf.Stats()

	// Call stats callback if provided
	if s.statsCallback != nil {
		s.statsCallback(stats)
	}

	// Log stats if enabled (console output)
	if s.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if stats.NonFinite > 0 {
		slog.Warn("non-finite blob state", "tick", s.tick, "count", stats.NonFinite)
	}

	// Write to CSV if output manager is enabled
	if s.output != nil {
		if err := s.output.WriteStats(stats); err != nil {
			slog.Error("failed to write stats", "error", err)
		}
		if err := s.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}
}
