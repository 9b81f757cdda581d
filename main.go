package main

import (
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/pthm-cable/blobsea/config"
	"github.com/pthm-cable/blobsea/game"
	"github.com/pthm-cable/blobsea/scene"
	"github.com/pthm-cable/blobsea/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed for blob jitter (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	noBoat := flag.Bool("no-boat", false, "Run the water without a boat")
	shedEvery := flag.Int("shed-every", 0, "Remove one boat part every N ticks (0 = never)")
	perfEvery := flag.Int("perf-every", 0, "Print a phase timing table every N ticks (0 = never)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	game.SetLogWriter(os.Stderr)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// CLI overrides
	if *statsWindow > 0 {
		cfg.Telemetry.StatsWindow = *statsWindow
	}
	if *noBoat {
		cfg.Boat.Enabled = false
	}
	cfg.ComputeDerived()

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	if err := run(cfg, rngSeed, *outputDir, *logStats, *maxTicks, *shedEvery, *perfEvery); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, seed int64, outputDir string, logStats bool, maxTicks, shedEvery, perfEvery int) error {
	output, err := telemetry.NewOutputManager(outputDir)
	if err != nil {
		return err
	}
	defer output.Close()

	if err := output.WriteConfig(cfg); err != nil {
		return err
	}

	sc := scene.New(cfg, rand.New(rand.NewSource(seed)))

	// Avoid handing a typed nil to the BoatAdapter interface
	var boat game.BoatAdapter
	if b := sc.Boat(); b != nil {
		boat = b
	}

	sim, err := game.NewWithOptions(cfg, sc.Water(), boat, game.Options{
		LogStats: logStats,
		Output:   output,
	})
	if err != nil {
		return err
	}
	defer sim.Close()

	slog.Info("starting simulation",
		"seed", seed,
		"blobs", sc.Water().Len(),
		"boat", boat != nil,
		"grid_x", cfg.Derived.XCells,
		"grid_z", cfg.Derived.ZCells,
		"max_ticks", maxTicks,
		"output_dir", output.Dir(),
	)

	dt := cfg.Physics.DT
	for {
		if err := sim.Step(); err != nil {
			return err
		}
		sc.Update(dt)

		tick := int(sim.Tick())
		if shedEvery > 0 && tick%shedEvery == 0 {
			if b := sc.Boat(); b != nil && b.SampleCount() > 0 {
				b.RemovePart(b.SampleCount() - 1)
			}
		}
		if perfEvery > 0 && tick%perfEvery == 0 {
			sim.LogPerfBreakdown()
		}

		if maxTicks > 0 && tick >= maxTicks {
			slog.Info("max ticks reached", "tick", tick)
			return nil
		}
	}
}
