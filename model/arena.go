package model

import "github.com/pkg/errors"

// Allocator owns cell storage for a universe. Handles stay valid, and the
// *Cell returned for them stays at the same address, until Free.
type Allocator interface {
	Alloc(key Key) (Handle, error)
	Free(h Handle)
	Cell(h Handle) *Cell
	Live() int
}

const arenaPageSize = 1024

// CellArena is a paged slab of cells with a free list for slot reuse.
// Pages are never moved, so cell pointers survive growth.
type CellArena struct {
	pages [][]Cell
	free  []Handle
	next  uint32 // next never-used slot index
	live  int
	limit int
}

// NewCellArena creates an arena. limit caps the number of live cells;
// zero or negative means unbounded.
func NewCellArena(limit int) *CellArena {
	return &CellArena{limit: limit}
}

// Alloc hands out a zeroed cell for key, recycling freed slots first
func (a *CellArena) Alloc(key Key) (Handle, error) {
	if a.limit > 0 && a.live >= a.limit {
		return NoCell, errors.Wrapf(ErrAllocation, "[CellArena.Alloc] limit of %d cells reached at %v", a.limit, key)
	}

	var h Handle
	if n := len(a.free); n > 0 {
		h = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		if a.next == ^uint32(0) {
			return NoCell, errors.Wrapf(ErrAllocation, "[CellArena.Alloc] handle space exhausted at %v", key)
		}
		slot := a.next
		a.next++
		if int(slot/arenaPageSize) == len(a.pages) {
			a.pages = append(a.pages, make([]Cell, arenaPageSize))
		}
		h = Handle(slot + 1)
	}

	a.Cell(h).reset(key)
	a.live++
	return h, nil
}

// Free returns the slot to the free list
func (a *CellArena) Free(h Handle) {
	if h == NoCell {
		return
	}
	a.Cell(h).reset(0)
	a.free = append(a.free, h)
	a.live--
}

// Cell resolves a handle. It panics on NoCell like a nil dereference would.
func (a *CellArena) Cell(h Handle) *Cell {
	slot := uint32(h) - 1
	return &a.pages[slot/arenaPageSize][slot%arenaPageSize]
}

// Live returns the number of allocated cells
func (a *CellArena) Live() int {
	return a.live
}

// Reset drops every cell but keeps the pages for reuse
func (a *CellArena) Reset() {
	for _, p := range a.pages {
		clear(p)
	}
	a.free = a.free[:0]
	a.next = 0
	a.live = 0
}
