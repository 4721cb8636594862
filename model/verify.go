package model

// Verify walks the whole index and checks the structural invariants:
// links are symmetric and point at indexed cells of the right coordinate,
// live cells are fully linked, no change tag is left over, and every
// cell's count matches its occupied neighbors. It is only meaningful
// between ticks and costs a full scan.
func (u *Universe) Verify() error {
	if u.pending {
		return usagef("[Verify] tick is incomplete")
	}

	ix := u.index
	for it := ix.Iter(); it.Next(); {
		h := it.Handle()
		c := ix.Cell(h)
		if c.key != it.Key() {
			return invariantf("[Verify] handle %d holds %v but is indexed at %v", h, c.key, it.Key())
		}
		if c.change != None {
			return invariantf("[Verify] %v still tagged %v", c.key, c.change)
		}

		live := 0
		for d := range Direction(numDirections) {
			off := neighborhood[d]
			want := c.key.Offset(off.dx, off.dy)

			nh := c.links[d]
			if nh == NoCell {
				if c.occupied {
					return invariantf("[Verify] live cell %v has no %v link", c.key, d)
				}
				// an unlinked neighbor may still be indexed, it just must not be alive
				if other := ix.Lookup(want); other != NoCell && ix.Cell(other).occupied {
					return invariantf("[Verify] %v is not linked to live neighbor %v", c.key, want)
				}
				continue
			}

			if ix.Lookup(want) != nh {
				return invariantf("[Verify] %v link %v dangles (handle %d, want %v)", c.key, d, nh, want)
			}
			n := ix.Cell(nh)
			if n.links[d.Reverse()] != h {
				return invariantf("[Verify] %v -> %v via %v is not reciprocated", c.key, n.key, d)
			}
			if n.occupied {
				live++
			}
		}
		if live != int(c.neighbors) {
			return invariantf("[Verify] %v counts %d live neighbors, found %d", c.key, c.neighbors, live)
		}
	}

	if ix.Len() != u.alloc.Live() {
		return invariantf("[Verify] index holds %d cells, allocator %d", ix.Len(), u.alloc.Live())
	}
	return nil
}
