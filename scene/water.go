package scene

import (
	"math/rand"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/blobsea/components"
	"github.com/pthm-cable/blobsea/config"
)

// Water exposes the blob entities as an index-ordered particle source.
type Water struct {
	posMap  *ecs.Map1[components.Position]
	blobMap *ecs.Map1[components.Blob]
	blobs   []ecs.Entity
}

// SpawnBlobs fills the configured lattice with blobs, x outermost and z
// innermost, each nudged by a random offset inside a sphere of radius
// blobs.jitter. Blob i is the i-th entity spawned.
func SpawnBlobs(world *ecs.World, cfg *config.Config, rng *rand.Rand) *Water {
	mapper := ecs.NewMap2[components.Position, components.Blob](world)
	size := cfg.Blobs.Size
	spacing := cfg.Blobs.Spacing
	center := cfg.Derived.Center

	w := &Water{
		posMap:  ecs.NewMap1[components.Position](world),
		blobMap: ecs.NewMap1[components.Blob](world),
		blobs:   make([]ecs.Entity, 0, size.Count()),
	}

	for x := 0; x < size.X; x++ {
		for y := 0; y < size.Y; y++ {
			for z := 0; z < size.Z; z++ {
				local := r3.Scale(spacing, r3.Vec{
					X: float64(x) - float64(size.X)*0.5,
					Y: float64(y) - float64(size.Y)*0.5,
					Z: float64(z) - float64(size.Z)*0.5,
				})
				local = r3.Add(local, r3.Scale(cfg.Blobs.Jitter, randomInUnitSphere(rng)))

				pos := components.PositionOf(r3.Add(center, local))
				blob := components.Blob{Index: len(w.blobs)}
				w.blobs = append(w.blobs, mapper.NewEntity(&pos, &blob))
			}
		}
	}

	return w
}

// Len returns the number of blobs.
func (w *Water) Len() int {
	return len(w.blobs)
}

// Position returns blob i's world position.
func (w *Water) Position(i int) r3.Vec {
	return w.posMap.Get(w.blobs[i]).Vec()
}

// SetPosition moves blob i.
func (w *Water) SetPosition(i int, p r3.Vec) {
	w.posMap.Get(w.blobs[i]).Set(p)
}

// Entity returns the entity backing blob i.
func (w *Water) Entity(i int) ecs.Entity {
	return w.blobs[i]
}

// Index returns the simulation index stored on a blob entity.
func (w *Water) Index(e ecs.Entity) int {
	return w.blobMap.Get(e).Index
}

// randomInUnitSphere draws a uniform point inside the unit sphere.
func randomInUnitSphere(rng *rand.Rand) r3.Vec {
	if rng == nil {
		return r3.Vec{}
	}
	for {
		v := r3.Vec{
			X: rng.Float64()*2 - 1,
			Y: rng.Float64()*2 - 1,
			Z: rng.Float64()*2 - 1,
		}
		if r3.Dot(v, v) <= 1 {
			return v
		}
	}
}
