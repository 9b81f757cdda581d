package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Counts at window end
	Blobs       int `csv:"blobs"`
	BoatSamples int `csv:"boat_samples"`

	// Events during window
	WaterOverflow int `csv:"water_overflow"` // Grid insertions dropped
	BoatOverflow  int `csv:"boat_overflow"`
	OverflowTicks int `csv:"overflow_ticks"`
	BoatResizes   int `csv:"boat_resizes"`

	// Mean net force magnitude on the boat per tick
	BoatForceMean float64 `csv:"boat_force_mean"`

	// Speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP90  float64 `csv:"speed_p90"`
	SpeedMax  float64 `csv:"speed_max"`

	// Mean of 0.5*|v|^2 over blobs (unit mass)
	KineticEnergy float64 `csv:"kinetic_energy"`

	// Height distribution (sampled at window end)
	HeightMean float64 `csv:"height_mean"`
	HeightP10  float64 `csv:"height_p10"`
	HeightP50  float64 `csv:"height_p50"`
	HeightP90  float64 `csv:"height_p90"`

	// Blobs with a NaN or infinite component
	NonFinite int `csv:"non_finite"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDistribution calculates mean, std, and percentiles from values.
func ComputeDistribution(values []float64) (mean, std, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0, 0
	}

	mean, std = stat.PopMeanStdDev(values, nil)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, std, p10, p50, p90
}

// fillDistributions samples speed, energy and height from the blob state.
// Non-finite blobs are counted and excluded.
func (s *WindowStats) fillDistributions(positions, velocities []r3.Vec) {
	n := min(len(positions), len(velocities))
	if n == 0 {
		return
	}

	speeds := make([]float64, 0, n)
	heights := make([]float64, 0, n)
	var energy float64
	for i := 0; i < n; i++ {
		p, v := positions[i], velocities[i]
		if !finite(p) || !finite(v) {
			s.NonFinite++
			continue
		}
		speed := r3.Norm(v)
		speeds = append(speeds, speed)
		heights = append(heights, p.Y)
		energy += 0.5 * speed * speed
		s.SpeedMax = max(s.SpeedMax, speed)
	}
	if len(speeds) == 0 {
		return
	}

	var p90 float64
	s.SpeedMean, s.SpeedStd, _, _, p90 = ComputeDistribution(speeds)
	s.SpeedP90 = p90
	s.KineticEnergy = energy / float64(len(speeds))
	s.HeightMean, _, s.HeightP10, s.HeightP50, s.HeightP90 = ComputeDistribution(heights)
}

func finite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("blobs", s.Blobs),
		slog.Int("boat_samples", s.BoatSamples),
		slog.Int("water_overflow", s.WaterOverflow),
		slog.Int("boat_overflow", s.BoatOverflow),
		slog.Int("overflow_ticks", s.OverflowTicks),
		slog.Int("boat_resizes", s.BoatResizes),
		slog.Float64("boat_force_mean", s.BoatForceMean),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Float64("height_mean", s.HeightMean),
		slog.Float64("height_p10", s.HeightP10),
		slog.Float64("height_p50", s.HeightP50),
		slog.Float64("height_p90", s.HeightP90),
		slog.Int("non_finite", s.NonFinite),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"blobs", s.Blobs,
		"boat_samples", s.BoatSamples,
		"speed_mean", s.SpeedMean,
		"speed_max", s.SpeedMax,
		"kinetic_energy", s.KineticEnergy,
		"height_p50", s.HeightP50,
		"water_overflow", s.WaterOverflow,
		"boat_overflow", s.BoatOverflow,
		"boat_force_mean", s.BoatForceMean,
		"non_finite", s.NonFinite,
	)
}
