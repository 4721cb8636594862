package model

import (
	"fmt"
	"strings"
)

// Change is the pending transition computed for a cell during phase 1
type Change int8

const (
	Death Change = -1
	None  Change = 0
	Birth Change = 1
)

func (c Change) String() string {
	switch c {
	case Death:
		return "death"
	case Birth:
		return "birth"
	default:
		return "none"
	}
}

// Handle addresses a cell slot in an Allocator. The zero Handle is NoCell.
type Handle uint32

// NoCell is the null link
const NoCell Handle = 0

// Direction indexes the 8 neighbor links in compass order.
//
//	NW N NE
//	W     E
//	SW S SE
//
// Opposite directions always sum to 7.
type Direction uint8

const (
	NW Direction = iota
	N
	NE
	W
	E
	SW
	S
	SE

	numDirections = 8
)

var directionNames = [numDirections]string{"NW", "N", "NE", "W", "E", "SW", "S", "SE"}

func (d Direction) String() string {
	if d >= numDirections {
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
	return directionNames[d]
}

// Reverse returns the direction pointing back at the origin
func (d Direction) Reverse() Direction {
	return numDirections - 1 - d
}

// neighborhood maps each direction to its lattice offset. Rows grow
// downward, so N is y-1.
var neighborhood = [numDirections]struct {
	dx, dy int32
}{
	NW: {-1, -1},
	N:  {0, -1},
	NE: {1, -1},
	W:  {-1, 0},
	E:  {1, 0},
	SW: {-1, 1},
	S:  {0, 1},
	SE: {1, 1},
}

// Cell is one materialized lattice point
type Cell struct {
	key        Key
	occupied   bool
	neighbors  uint8 // live neighbor count, 0-8
	change     Change
	voidLength uint32 // consecutive ticks unoccupied with no live neighbors
	links      [numDirections]Handle
}

// reset zeroes a recycled slot for a new coordinate
func (c *Cell) reset(key Key) {
	*c = Cell{key: key}
}

// Key returns the cell coordinate
func (c *Cell) Key() Key { return c.key }

// Occupied reports whether the cell is alive
func (c *Cell) Occupied() bool { return c.occupied }

// Neighbors returns the live neighbor count
func (c *Cell) Neighbors() int { return int(c.neighbors) }

// VoidLength returns how many ticks the cell has been void
func (c *Cell) VoidLength() int { return int(c.voidLength) }

// Link returns the neighbor handle in direction d, or NoCell
func (c *Cell) Link(d Direction) Handle { return c.links[d] }

// linked reports whether any neighbor link is set
func (c *Cell) linked() bool {
	for _, l := range c.links {
		if l != NoCell {
			return true
		}
	}
	return false
}

// CellState is the exported view of one cell at a tick boundary
type CellState struct {
	X, Y      int32
	Occupied  bool
	Neighbors int
	// Linked lists which directions have a materialized neighbor.
	Linked [numDirections]bool
}

// String renders the cell and its linked directions for debugging
func (s CellState) String() string {
	var b strings.Builder
	occ := 0
	if s.Occupied {
		occ = 1
	}
	fmt.Fprintf(&b, "(%d,%d) occ/nbc=%d/%d nb=[", s.X, s.Y, occ, s.Neighbors)
	first := true
	for d, ok := range s.Linked {
		if !ok {
			continue
		}
		if !first {
			b.WriteString(" ")
		}
		first = false
		b.WriteString(Direction(d).String())
	}
	b.WriteString("]")
	return b.String()
}
