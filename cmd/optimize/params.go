package main

import (
	"github.com/pthm-cable/blobsea/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Water (gravity locked, it sets the scale)
			{Name: "force_radius", Path: "water.force_radius", Min: 1.0, Max: 4.5, Default: 3.0},
			{Name: "water_force", Path: "water.water_force", Min: 2.0, Max: 60.0, Default: 20.0},
			{Name: "water_damping", Path: "water.water_damping", Min: 0.0, Max: 1.0, Default: 0.2},
			{Name: "boundary_force", Path: "water.boundary_force", Min: 0.05, Max: 2.0, Default: 0.2},
			// Boat coupling
			{Name: "boat_part_radius", Path: "boat.part_radius", Min: 0.5, Max: 3.0, Default: 1.5},
			{Name: "boat_force_strength", Path: "boat.force_strength", Min: 5.0, Max: 80.0, Default: 30.0},
			{Name: "boat_down_push", Path: "boat.down_push_multiplier", Min: 1.0, Max: 10.0, Default: 5.0},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct and recomputes
// derived values. Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	cfg.Water.ForceRadius = clamped[0]
	cfg.Water.WaterForce = clamped[1]
	cfg.Water.WaterDamping = clamped[2]
	cfg.Water.BoundaryForce = clamped[3]

	cfg.Boat.PartRadius = clamped[4]
	cfg.Boat.ForceStrength = clamped[5]
	cfg.Boat.DownPushMultiplier = clamped[6]

	cfg.ComputeDerived()
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Water.ForceRadius,
		cfg.Water.WaterForce,
		cfg.Water.WaterDamping,
		cfg.Water.BoundaryForce,
		cfg.Boat.PartRadius,
		cfg.Boat.ForceStrength,
		cfg.Boat.DownPushMultiplier,
	}
}
