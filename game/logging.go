package game

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pthm-cable/blobsea/telemetry"
)

// logWriter is the destination for log output.
var logWriter io.Writer = os.Stdout

// SetLogWriter sets the log output destination.
func SetLogWriter(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	logWriter = w
}

// Logf writes a formatted log message.
func Logf(format string, args ...interface{}) {
	fmt.Fprintln(logWriter, fmt.Sprintf(format, args...))
}

// LogPerfBreakdown prints a human-readable per-phase timing table.
func (s *Simulation) LogPerfBreakdown() {
	stats := s.perf.Stats()
	Logf("=== Perf @ Tick %d | %d blobs, %d workers ===",
		s.tick, s.buf.Len(), s.pool.numWorkers)
	Logf("Avg tick: %s (min %s, max %s, %.0f ticks/s)",
		stats.AvgTickDuration.Round(time.Microsecond),
		stats.MinTickDuration.Round(time.Microsecond),
		stats.MaxTickDuration.Round(time.Microsecond),
		stats.TicksPerSecond)

	for _, phase := range telemetry.Phases {
		avg := stats.PhaseAvg[phase]
		Logf("  %-12s %10s  %5.1f%%", phase, avg.Round(time.Microsecond), stats.PhasePct[phase])
	}

	water, boat := s.waterGrid.Dropped(), 0
	if s.boatGrid != nil {
		boat = s.boatGrid.Dropped()
	}
	if water > 0 || boat > 0 {
		Logf("  last tick dropped: water=%d boat=%d", water, boat)
	}
	Logf("")
}
