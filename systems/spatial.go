// Package systems provides the per-tick force kernels for the water simulation.
package systems

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidGrid is returned when a grid is configured with non-positive
// dimensions, cell size or capacity.
var ErrInvalidGrid = errors.New("invalid cell grid")

// CellGrid is a uniform X-Z bucket index over point indices.
// Cells live in one flat slice: cell c owns slots [c*capacity, (c+1)*capacity),
// slot 0 holds the live count and the rest hold point indices.
// Y is not partitioned; the water is treated as a height field over X-Z.
type CellGrid struct {
	cellSize float64
	invCell  float64
	xCells   int
	zCells   int
	capacity int
	minX     float64
	minZ     float64
	cells    []int32
	dropped  int
}

// NewCellGrid allocates a grid covering bounds in X-Z.
// capacity counts the reserved count slot, so each cell stores at most
// capacity-1 entries.
func NewCellGrid(bounds Bounds, cellSize float64, xCells, zCells, capacity int) (*CellGrid, error) {
	if !(cellSize > 0) {
		return nil, fmt.Errorf("%w: cell size %v", ErrInvalidGrid, cellSize)
	}
	if xCells <= 0 || zCells <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidGrid, xCells, zCells)
	}
	if capacity < 2 {
		return nil, fmt.Errorf("%w: cell capacity %d", ErrInvalidGrid, capacity)
	}

	lo := bounds.Min()
	return &CellGrid{
		cellSize: cellSize,
		invCell:  1 / cellSize,
		xCells:   xCells,
		zCells:   zCells,
		capacity: capacity,
		minX:     lo.X,
		minZ:     lo.Z,
		cells:    make([]int32, xCells*zCells*capacity),
	}, nil
}

// Dims returns the number of cells along X and Z.
func (g *CellGrid) Dims() (xCells, zCells int) {
	return g.xCells, g.zCells
}

// Capacity returns the slot count per cell, including the count slot.
func (g *CellGrid) Capacity() int {
	return g.capacity
}

// Dropped returns how many insertions overflowed since the last Clear.
func (g *CellGrid) Dropped() int {
	return g.dropped
}

// Clear empties every cell.
func (g *CellGrid) Clear() {
	for c := 0; c < g.xCells*g.zCells; c++ {
		g.cells[c*g.capacity] = 0
	}
	g.dropped = 0
}

// Build clears the grid and inserts every position in ascending index order.
// Returns the number of entries dropped because their cell was full.
func (g *CellGrid) Build(positions []r3.Vec) int {
	g.Clear()
	for i, p := range positions {
		g.Insert(i, p)
	}
	return g.dropped
}

// Insert adds index i to the cell containing p. Points outside the grid
// extent land in the nearest edge cell. Returns false if the cell was full.
func (g *CellGrid) Insert(i int, p r3.Vec) bool {
	cx, cz := g.CellCoords(p)
	base := g.cellBase(cx, cz)
	n := g.cells[base]
	if int(n) >= g.capacity-1 {
		g.dropped++
		return false
	}
	g.cells[base+1+int(n)] = int32(i)
	g.cells[base] = n + 1
	return true
}

// CellCoords maps a world position to its clamped cell coordinates.
func (g *CellGrid) CellCoords(p r3.Vec) (cx, cz int) {
	cx = clampCell((p.X-g.minX)*g.invCell, g.xCells)
	cz = clampCell((p.Z-g.minZ)*g.invCell, g.zCells)
	return cx, cz
}

// Count returns the number of entries stored in cell (cx, cz).
func (g *CellGrid) Count(cx, cz int) int {
	return int(g.cells[g.cellBase(cx, cz)])
}

// Cell returns a read-only view of the entries in cell (cx, cz).
func (g *CellGrid) Cell(cx, cz int) []int32 {
	base := g.cellBase(cx, cz)
	n := int(g.cells[base])
	return g.cells[base+1 : base+1+n]
}

// NeighborsInto appends the entries of the 3x3 cells around p's home cell to dst.
// The window is clamped at the grid edges, not wrapped, so edge cells see
// fewer neighbours. Reuse dst across calls to avoid allocations.
func (g *CellGrid) NeighborsInto(dst []int32, p r3.Vec) []int32 {
	cx, cz := g.CellCoords(p)

	x0, x1 := max(cx-1, 0), min(cx+1, g.xCells-1)
	z0, z1 := max(cz-1, 0), min(cz+1, g.zCells-1)

	for z := z0; z <= z1; z++ {
		for x := x0; x <= x1; x++ {
			dst = append(dst, g.Cell(x, z)...)
		}
	}
	return dst
}

func (g *CellGrid) cellBase(cx, cz int) int {
	return (cz*g.xCells + cx) * g.capacity
}

// clampCell floors a fractional cell coordinate into [0, n-1].
// NaN maps to cell 0.
func clampCell(f float64, n int) int {
	f = math.Floor(f)
	if !(f > 0) {
		return 0
	}
	if f >= float64(n-1) {
		return n - 1
	}
	return int(f)
}
