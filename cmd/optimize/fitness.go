package main

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/pthm-cable/blobsea/config"
	"github.com/pthm-cable/blobsea/game"
	"github.com/pthm-cable/blobsea/scene"
	"github.com/pthm-cable/blobsea/telemetry"
)

// Fitness component weights.
const (
	weightSettle      = 1.0
	weightOverflow    = 10.0
	weightCompression = 1.0
	weightSink        = 1.0

	divergedPenalty = 1000.0
	warmupWindows   = 2 // skip first N windows while the lattice collapses
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	maxTicks    int32
	seeds       []int64
	baseConfig  *config.Config
	statsWindow float64

	// Best run tracking
	mu          sync.Mutex
	bestFitness float64
	bestWindows []telemetry.WindowStats
	last        Breakdown
}

// Breakdown is the per-component fitness of one evaluation, averaged over seeds.
type Breakdown struct {
	Settle      float64
	Overflow    float64
	Compression float64
	Sink        float64
	Diverged    int
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int32, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		statsWindow: 1.0,
		bestFitness: math.Inf(1),
	}
}

// BestWindows returns the window stats of the best seed of the best evaluation.
func (fe *FitnessEvaluator) BestWindows() []telemetry.WindowStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestWindows
}

// LastBreakdown returns the fitness components from the most recent evaluation.
func (fe *FitnessEvaluator) LastBreakdown() Breakdown {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last
}

// runResult holds the results from a single simulation run.
type runResult struct {
	ticks       int32                   // ticks completed before divergence (or maxTicks)
	diverged    bool                    // a window reported non-finite blob state
	windowStats []telemetry.WindowStats // collected via StatsCallback each window
	boatHeight  float64                 // boat center Y at the end of the run
	hasBoat     bool
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness   float64
	breakdown Breakdown
	windows   []telemetry.WindowStats
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	// Run all seeds in parallel
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			result, err := fe.runSimulation(x, s)
			if err != nil {
				slog.Warn("evaluation failed", "seed", s, "error", err)
				results[idx] = seedResult{fitness: 2 * divergedPenalty, breakdown: Breakdown{Diverged: 1}}
				return
			}
			fitness, breakdown := fe.computeFitness(result)
			results[idx] = seedResult{fitness: fitness, breakdown: breakdown, windows: result.windowStats}
		}(i, seed)
	}
	wg.Wait()

	// Aggregate results
	var total float64
	var sum Breakdown
	best := 0
	for i, r := range results {
		total += r.fitness
		sum.Settle += r.breakdown.Settle
		sum.Overflow += r.breakdown.Overflow
		sum.Compression += r.breakdown.Compression
		sum.Sink += r.breakdown.Sink
		sum.Diverged += r.breakdown.Diverged
		if r.fitness < results[best].fitness {
			best = i
		}
	}

	n := float64(len(fe.seeds))
	avgFitness := total / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
		fe.bestWindows = results[best].windows
	}
	fe.last = Breakdown{
		Settle:      sum.Settle / n,
		Overflow:    sum.Overflow / n,
		Compression: sum.Compression / n,
		Sink:        sum.Sink / n,
		Diverged:    sum.Diverged,
	}
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation executes a single headless simulation run.
// Runs until a window reports non-finite state or maxTicks, whichever comes first.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) (*runResult, error) {
	cfg := fe.baseConfig.Clone()
	cfg.Telemetry.StatsWindow = fe.statsWindow
	cfg.Parallel.Workers = 1 // seeds already run in parallel
	fe.params.ApplyToConfig(cfg, x)

	result := &runResult{}

	sc := scene.New(cfg, rand.New(rand.NewSource(seed)))
	var boat game.BoatAdapter
	if b := sc.Boat(); b != nil {
		boat = b
		result.hasBoat = true
	}

	sim, err := game.NewWithOptions(cfg, sc.Water(), boat, game.Options{
		StatsCallback: func(stats telemetry.WindowStats) {
			result.windowStats = append(result.windowStats, stats)
			if stats.NonFinite > 0 {
				result.diverged = true
			}
		},
	})
	if err != nil {
		return nil, err
	}
	defer sim.Close()

	dt := cfg.Physics.DT
	for sim.Tick() < fe.maxTicks && !result.diverged {
		if err := sim.Step(); err != nil {
			return nil, err
		}
		sc.Update(dt)
	}

	result.ticks = sim.Tick()
	if b := sc.Boat(); b != nil {
		result.boatHeight = b.Center().Y
	}
	return result, nil
}

// targetSpread is the initial lattice height, the spread a well-tuned
// body of water should roughly keep.
func targetSpread(cfg *config.Config) float64 {
	return float64(cfg.Blobs.Size.Y-1) * cfg.Blobs.Spacing
}

// computeFitness calculates the scalar fitness (lower = better).
// Diverged runs are ranked by how long they lasted and always lose to stable ones.
func (fe *FitnessEvaluator) computeFitness(r *runResult) (float64, Breakdown) {
	if r.diverged {
		lost := 1 - float64(r.ticks)/float64(max(fe.maxTicks, 1))
		return divergedPenalty * (1 + lost), Breakdown{Diverged: 1}
	}
	if len(r.windowStats) <= warmupWindows {
		return divergedPenalty, Breakdown{}
	}

	late := r.windowStats[warmupWindows:]
	last := late[len(late)-1]

	var b Breakdown

	// 1. Settle: water at rest moves slowly
	for _, w := range late {
		b.Settle += w.SpeedMean
	}
	b.Settle /= float64(len(late))

	// 2. Overflow: fraction of insertions the grid had to drop
	var dropped, inserted float64
	for _, w := range late {
		dropped += float64(w.WaterOverflow)
		ticks := float64(w.WindowEndTick - w.WindowStartTick)
		inserted += float64(w.Blobs) * ticks
	}
	if inserted > 0 {
		b.Overflow = dropped / inserted
	}

	// 3. Compression: log ratio of final height spread to the lattice height
	target := targetSpread(fe.baseConfig)
	spread := last.HeightP90 - last.HeightP10
	if target > 0 && spread > 0 {
		b.Compression = math.Abs(math.Log(spread / target))
	} else if target > 0 {
		b.Compression = 1
	}

	// 4. Sink: the boat should ride above the median blob
	if r.hasBoat {
		b.Sink = max(0, last.HeightP50-r.boatHeight)
	}

	fitness := weightSettle*b.Settle +
		weightOverflow*b.Overflow +
		weightCompression*b.Compression +
		weightSink*b.Sink

	return fitness, b
}
