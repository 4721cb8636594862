package model

import (
	"github.com/google/btree"
	"github.com/pkg/errors"
)

const indexDegree = 32

type indexEntry struct {
	key    Key
	handle Handle
}

func indexLess(a, b indexEntry) bool { return a.key < b.key }

// Index is the ordered set of materialized cells. It is the only owner of
// cell storage; links between cells are plain handles into it.
type Index struct {
	tree  *btree.BTreeG[indexEntry]
	alloc Allocator
}

// NewIndex creates an empty index backed by alloc
func NewIndex(alloc Allocator) *Index {
	return &Index{
		tree:  btree.NewG(indexDegree, indexLess),
		alloc: alloc,
	}
}

// Len returns the number of materialized cells
func (ix *Index) Len() int {
	return ix.tree.Len()
}

// Cell resolves a handle owned by this index
func (ix *Index) Cell(h Handle) *Cell {
	return ix.alloc.Cell(h)
}

// Lookup returns the handle stored for key, or NoCell
func (ix *Index) Lookup(key Key) Handle {
	e, ok := ix.tree.Get(indexEntry{key: key})
	if !ok {
		return NoCell
	}
	return e.handle
}

// LookupOrCreate returns the cell at key, materializing an empty one if
// it is not indexed yet.
func (ix *Index) LookupOrCreate(key Key) (Handle, error) {
	if h := ix.Lookup(key); h != NoCell {
		return h, nil
	}
	h, err := ix.alloc.Alloc(key)
	if err != nil {
		return NoCell, errors.Wrapf(err, "[Index.LookupOrCreate] materializing %v", key)
	}
	ix.tree.ReplaceOrInsert(indexEntry{key: key, handle: h})
	return h, nil
}

// Erase removes and releases a cell. The cell must already be untangled.
func (ix *Index) Erase(h Handle) error {
	c := ix.alloc.Cell(h)
	if c.linked() {
		return invariantf("[Index.Erase] cell %v still has neighbor links", c.key)
	}
	if _, ok := ix.tree.Delete(indexEntry{key: c.key}); !ok {
		return invariantf("[Index.Erase] cell %v is not indexed", c.key)
	}
	ix.alloc.Free(h)
	return nil
}

// Clear releases every cell without untangling
func (ix *Index) Clear() {
	ix.tree.Ascend(func(e indexEntry) bool {
		ix.alloc.Free(e.handle)
		return true
	})
	ix.tree.Clear(false)
}

// Iter starts an ascending pass over the index
func (ix *Index) Iter() *Iterator {
	return &Iterator{ix: ix}
}

// Handles appends every handle in ascending key order to dst
func (ix *Index) Handles(dst []Handle) []Handle {
	ix.tree.Ascend(func(e indexEntry) bool {
		dst = append(dst, e.handle)
		return true
	})
	return dst
}

// Iterator walks the index in ascending key order. It re-seeks from the
// last visited key on every step, so erasing the current cell, or
// inserting elsewhere, does not invalidate it.
type Iterator struct {
	ix      *Index
	cur     indexEntry
	started bool
	done    bool
}

// Next advances to the next cell and reports whether there is one
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}

	found := false
	visit := func(e indexEntry) bool {
		it.cur = e
		found = true
		return false
	}

	if !it.started {
		it.started = true
		it.ix.tree.Ascend(visit)
	} else if it.cur.key != ^Key(0) {
		it.ix.tree.AscendGreaterOrEqual(indexEntry{key: it.cur.key + 1}, visit)
	}

	if !found {
		it.done = true
	}
	return found
}

// Handle returns the current cell handle
func (it *Iterator) Handle() Handle {
	return it.cur.handle
}

// Key returns the current cell coordinate
func (it *Iterator) Key() Key {
	return it.cur.key
}
