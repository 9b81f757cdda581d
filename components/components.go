// Package components defines ECS components for the simulation.
package components

// Blob tags a water blob entity with its stable simulation index.
type Blob struct {
	Index int
}

// BoatPart marks one sample point of the boat. Offset is the part's
// position relative to the boat's center of mass.
type BoatPart struct {
	Offset Position
}
