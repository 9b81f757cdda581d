package scene

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/blobsea/components"
	"github.com/pthm-cable/blobsea/config"
)

// Boat is a translational rigid body built from sample-point entities.
// Parts keep a fixed offset from the center; rotation is not modelled.
type Boat struct {
	world      *ecs.World
	partMapper *ecs.Map2[components.Position, components.BoatPart]
	partFilter *ecs.Filter2[components.Position, components.BoatPart]
	posMap     *ecs.Map1[components.Position]
	bodyMap    *ecs.Map2[components.Position, components.Body]

	self  ecs.Entity
	parts []ecs.Entity

	gravity    float64
	drag       float64
	settleDrag float64
	settleTime float64
}

// SpawnBoat creates the boat body and a lattice of parts centered
// boat.spawn_height above the volume center.
func SpawnBoat(world *ecs.World, cfg *config.Config) *Boat {
	bc := cfg.Boat
	b := &Boat{
		world:      world,
		partMapper: ecs.NewMap2[components.Position, components.BoatPart](world),
		partFilter: ecs.NewFilter2[components.Position, components.BoatPart](world),
		posMap:     ecs.NewMap1[components.Position](world),
		bodyMap:    ecs.NewMap2[components.Position, components.Body](world),
		gravity:    bc.Gravity,
		drag:       bc.Drag,
		settleDrag: bc.SettleDrag,
		settleTime: bc.SettleTime,
	}

	center := components.PositionOf(r3.Add(cfg.Derived.Center, r3.Vec{Y: bc.SpawnHeight}))
	body := components.Body{}
	b.self = b.bodyMap.NewEntity(&center, &body)

	n := bc.Parts
	for x := 0; x < n.X; x++ {
		for y := 0; y < n.Y; y++ {
			for z := 0; z < n.Z; z++ {
				b.AddPart(r3.Scale(bc.PartSpacing, r3.Vec{
					X: float64(x) - float64(n.X-1)*0.5,
					Y: float64(y) - float64(n.Y-1)*0.5,
					Z: float64(z) - float64(n.Z-1)*0.5,
				}))
			}
		}
	}

	return b
}

// AddPart attaches a new sample point at offset from the center.
func (b *Boat) AddPart(offset r3.Vec) ecs.Entity {
	center, _ := b.bodyMap.Get(b.self)
	pos := components.PositionOf(r3.Add(center.Vec(), offset))
	part := components.BoatPart{Offset: components.PositionOf(offset)}
	e := b.partMapper.NewEntity(&pos, &part)
	b.parts = append(b.parts, e)
	return e
}

// RemovePart detaches part i. Later parts shift down one index.
func (b *Boat) RemovePart(i int) {
	b.world.RemoveEntity(b.parts[i])
	b.parts = append(b.parts[:i], b.parts[i+1:]...)
}

// SampleCount returns the current number of parts.
func (b *Boat) SampleCount() int {
	return len(b.parts)
}

// SamplePosition returns part i's world position.
func (b *Boat) SamplePosition(i int) r3.Vec {
	return b.posMap.Get(b.parts[i]).Vec()
}

// ApplyForceAt queues an impulse for the next integration.
// The application point only matters for torque, which is not modelled.
func (b *Boat) ApplyForceAt(force, _ r3.Vec) {
	_, body := b.bodyMap.Get(b.self)
	body.Impulse.Set(r3.Add(body.Impulse.Vec(), force))
}

// SetMass sets the body's mass.
func (b *Boat) SetMass(mass float64) {
	_, body := b.bodyMap.Get(b.self)
	body.Mass = mass
}

// Mass returns the body's mass.
func (b *Boat) Mass() float64 {
	_, body := b.bodyMap.Get(b.self)
	return body.Mass
}

// Center returns the body's center of mass.
func (b *Boat) Center() r3.Vec {
	center, _ := b.bodyMap.Get(b.self)
	return center.Vec()
}

// Velocity returns the body's linear velocity.
func (b *Boat) Velocity() r3.Vec {
	_, body := b.bodyMap.Get(b.self)
	return body.Velocity.Vec()
}

// Integrate applies queued impulses, gravity and drag, then moves the body
// and its parts. A massless boat ignores impulses.
func (b *Boat) Integrate(dt float64) {
	center, body := b.bodyMap.Get(b.self)

	vel := body.Velocity.Vec()
	if body.Mass > 0 {
		vel = r3.Add(vel, r3.Scale(1/body.Mass, body.Impulse.Vec()))
	}
	vel.Y -= b.gravity * dt

	// Heavy drag while the boat settles onto the water
	drag := b.drag
	if body.Age < b.settleTime {
		drag = b.settleDrag
	}
	vel = r3.Scale(1/(1+drag*dt), vel)

	center.Set(r3.Add(center.Vec(), r3.Scale(dt, vel)))
	body.Velocity.Set(vel)
	body.Impulse = components.Position{}
	body.Age += dt

	c := center.Vec()
	query := b.partFilter.Query()
	for query.Next() {
		pos, part := query.Get()
		pos.Set(r3.Add(c, part.Offset.Vec()))
	}
}
