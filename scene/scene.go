// Package scene hosts the external side of the simulation: an ECS world
// holding the water blobs and the boat the solver couples against.
package scene

import (
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/blobsea/config"
)

// Scene owns the ECS world and the entities spawned into it.
type Scene struct {
	world *ecs.World
	water *Water
	boat  *Boat
}

// New creates a world, spawns the blob lattice and, if enabled, the boat.
func New(cfg *config.Config, rng *rand.Rand) *Scene {
	world := ecs.NewWorld()

	s := &Scene{
		world: world,
		water: SpawnBlobs(world, cfg, rng),
	}
	if cfg.Boat.Enabled {
		s.boat = SpawnBoat(world, cfg)
	}
	return s
}

// World returns the underlying ECS world.
func (s *Scene) World() *ecs.World {
	return s.world
}

// Water returns the blob particle source.
func (s *Scene) Water() *Water {
	return s.water
}

// Boat returns the boat, or nil when the boat is disabled.
func (s *Scene) Boat() *Boat {
	return s.boat
}

// Update advances everything the scene integrates itself.
func (s *Scene) Update(dt float64) {
	if s.boat != nil {
		s.boat.Integrate(dt)
	}
}
