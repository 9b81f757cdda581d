package components

// Body holds the translational rigid-body state of the boat.
type Body struct {
	Mass     float64
	Velocity Position
	Impulse  Position // accumulated since the last integration
	Age      float64  // seconds since spawn
}
