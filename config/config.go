// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all simulation configuration parameters.
type Config struct {
	Physics   PhysicsConfig   `yaml:"physics"`
	Water     WaterConfig     `yaml:"water"`
	Blobs     BlobsConfig     `yaml:"blobs"`
	Volume    VolumeConfig    `yaml:"volume"`
	Grid      GridConfig      `yaml:"grid"`
	Boat      BoatConfig      `yaml:"boat"`
	Parallel  ParallelConfig  `yaml:"parallel"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// Vec3 is a YAML-friendly 3D vector.
type Vec3 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Vec converts to an r3 vector.
func (v Vec3) Vec() r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

// Size3 is a YAML-friendly integer lattice size.
type Size3 struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

// Count returns X*Y*Z.
func (s Size3) Count() int {
	return s.X * s.Y * s.Z
}

// PhysicsConfig holds the fixed tick length.
type PhysicsConfig struct {
	DT float64 `yaml:"dt"`
}

// WaterConfig holds the blob force constants.
type WaterConfig struct {
	Gravity       float64 `yaml:"gravity"`        // Downward acceleration
	ForceRadius   float64 `yaml:"force_radius"`   // Blob-blob interaction cutoff
	WaterForce    float64 `yaml:"water_force"`    // Blob-blob repulsion strength
	WaterDamping  float64 `yaml:"water_damping"`  // Quadratic drag coefficient
	BoundaryForce float64 `yaml:"boundary_force"` // Containment stiffness
}

// BlobsConfig describes the initial blob lattice.
type BlobsConfig struct {
	Size    Size3   `yaml:"size"`
	Spacing float64 `yaml:"spacing"`
	Jitter  float64 `yaml:"jitter"` // Radius of the random offset per blob
}

// VolumeConfig holds the containment volume.
// Zero half extents are derived from the blob lattice.
type VolumeConfig struct {
	Center      Vec3 `yaml:"center"`
	HalfExtents Vec3 `yaml:"half_extents"`
}

// GridConfig holds the spatial grid layout.
// Zero cell counts are derived from the volume and cell size.
type GridConfig struct {
	CellSize     float64 `yaml:"cell_size"`
	XCells       int     `yaml:"x_cells"`
	ZCells       int     `yaml:"z_cells"`
	CellCapacity int     `yaml:"cell_capacity"` // Slots per cell, one reserved for the count
}

// BoatConfig holds the water-boat coupling constants and the boat stand-in.
type BoatConfig struct {
	Enabled            bool    `yaml:"enabled"`
	PartRadius         float64 `yaml:"part_radius"`          // Blob-boat interaction cutoff
	ForceStrength      float64 `yaml:"force_strength"`       // Blob-boat coupling strength
	Density            float64 `yaml:"density"`              // Mass per sample point
	DownPushMultiplier float64 `yaml:"down_push_multiplier"` // Extra resistance against sinking
	GridCapacity       int     `yaml:"grid_capacity"`        // Slots per boat grid cell

	// Stand-in rigid body used by the headless runner
	Parts       Size3   `yaml:"parts"`
	PartSpacing float64 `yaml:"part_spacing"`
	SpawnHeight float64 `yaml:"spawn_height"` // Above the volume center
	Gravity     float64 `yaml:"gravity"`
	Drag        float64 `yaml:"drag"`
	SettleDrag  float64 `yaml:"settle_drag"`
	SettleTime  float64 `yaml:"settle_time"` // Seconds of settle drag after spawn
}

// ParallelConfig holds worker pool settings.
type ParallelConfig struct {
	Workers   int `yaml:"workers"`   // 0 = GOMAXPROCS
	Threshold int `yaml:"threshold"` // Below this many items a phase runs inline
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"` // Seconds of sim time per stats window
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Center      r3.Vec
	HalfExtents r3.Vec
	XCells      int
	ZCells      int
	BlobCount   int
	StatsTicks  int // Stats window length in ticks
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.ComputeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Clone returns a deep copy with derived values recomputed.
func (c *Config) Clone() *Config {
	cp := *c
	cp.ComputeDerived()
	return &cp
}

// ComputeDerived calculates values derived from the loaded config.
// Call again after mutating fields programmatically.
func (c *Config) ComputeDerived() {
	c.Derived.Center = c.Volume.Center.Vec()
	c.Derived.BlobCount = c.Blobs.Size.Count()

	// The volume defaults to the footprint of the initial lattice
	half := c.Volume.HalfExtents.Vec()
	if half.X == 0 {
		half.X = float64(c.Blobs.Size.X) * c.Blobs.Spacing * 0.5
	}
	if half.Y == 0 {
		half.Y = float64(c.Blobs.Size.Y) * c.Blobs.Spacing * 0.5
	}
	if half.Z == 0 {
		half.Z = float64(c.Blobs.Size.Z) * c.Blobs.Spacing * 0.5
	}
	c.Derived.HalfExtents = half

	c.Derived.XCells = c.Grid.XCells
	c.Derived.ZCells = c.Grid.ZCells
	if c.Grid.CellSize > 0 {
		if c.Derived.XCells == 0 {
			c.Derived.XCells = int(math.Ceil(2 * half.X / c.Grid.CellSize))
		}
		if c.Derived.ZCells == 0 {
			c.Derived.ZCells = int(math.Ceil(2 * half.Z / c.Grid.CellSize))
		}
	}

	c.Derived.StatsTicks = 0
	if c.Physics.DT > 0 && c.Telemetry.StatsWindow > 0 {
		c.Derived.StatsTicks = max(1, int(math.Round(c.Telemetry.StatsWindow/c.Physics.DT)))
	}
}

// Validate reports the first configuration error that would make the
// simulation impossible to initialize.
func (c *Config) Validate() error {
	switch {
	case !(c.Physics.DT > 0):
		return fmt.Errorf("%w: physics.dt must be positive, got %v", ErrInvalid, c.Physics.DT)
	case !(c.Grid.CellSize > 0):
		return fmt.Errorf("%w: grid.cell_size must be positive, got %v", ErrInvalid, c.Grid.CellSize)
	case c.Derived.XCells <= 0 || c.Derived.ZCells <= 0:
		return fmt.Errorf("%w: grid dimensions must be positive, got %dx%d", ErrInvalid, c.Derived.XCells, c.Derived.ZCells)
	case c.Grid.CellCapacity < 2:
		return fmt.Errorf("%w: grid.cell_capacity must be at least 2, got %d", ErrInvalid, c.Grid.CellCapacity)
	case c.Blobs.Size.X <= 0 || c.Blobs.Size.Y <= 0 || c.Blobs.Size.Z <= 0:
		return fmt.Errorf("%w: blobs.size must be positive on every axis, got %+v", ErrInvalid, c.Blobs.Size)
	case c.Volume.HalfExtents.X < 0 || c.Volume.HalfExtents.Y < 0 || c.Volume.HalfExtents.Z < 0:
		return fmt.Errorf("%w: volume.half_extents must not be negative", ErrInvalid)
	case c.Boat.Enabled && c.Boat.GridCapacity < 2:
		return fmt.Errorf("%w: boat.grid_capacity must be at least 2, got %d", ErrInvalid, c.Boat.GridCapacity)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
