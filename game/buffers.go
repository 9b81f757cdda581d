package game

import "gonum.org/v1/gonum/spatial/r3"

// generation is one complete set of blob state.
type generation struct {
	Positions  []r3.Vec
	Velocities []r3.Vec
}

func newGeneration(n int) generation {
	return generation{
		Positions:  make([]r3.Vec, n),
		Velocities: make([]r3.Vec, n),
	}
}

// doubleBuffer holds two generations. Solvers read Current and write Next;
// Swap flips which one is current without copying.
type doubleBuffer struct {
	gens [2]generation
	cur  int
}

func newDoubleBuffer(n int) *doubleBuffer {
	return &doubleBuffer{gens: [2]generation{newGeneration(n), newGeneration(n)}}
}

func (b *doubleBuffer) Current() *generation { return &b.gens[b.cur] }
func (b *doubleBuffer) Next() *generation    { return &b.gens[1-b.cur] }
func (b *doubleBuffer) Swap()                { b.cur = 1 - b.cur }
func (b *doubleBuffer) Len() int             { return len(b.gens[0].Positions) }

// boatBuffers is per-tick scratch for boat samples. It is reallocated
// whenever the sample count changes.
type boatBuffers struct {
	Positions []r3.Vec
	Forces    []r3.Vec
}

// resize reallocates to n samples if needed and reports whether it did.
// Previous contents are dropped: sample identity does not survive a resize.
func (b *boatBuffers) resize(n int) bool {
	if len(b.Positions) == n && b.Positions != nil {
		return false
	}
	b.Positions = make([]r3.Vec, n)
	b.Forces = make([]r3.Vec, n)
	return true
}
