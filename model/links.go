package model

// untangle severs every link of h in both directions. Afterwards the cell
// participates in no neighbor relationship and may be erased.
func (ix *Index) untangle(h Handle) error {
	c := ix.Cell(h)
	for d := range Direction(numDirections) {
		nh := c.links[d]
		if nh == NoCell {
			continue
		}
		n := ix.Cell(nh)
		if back := n.links[d.Reverse()]; back != h {
			return invariantf("[untangle] %v links %v to %v but it links back to handle %d", c.key, d, n.key, back)
		}
		n.links[d.Reverse()] = NoCell
		c.links[d] = NoCell
	}
	return nil
}

// link ensures h has a neighbor in direction d, materializing the
// neighbor cell and both reciprocal links when it is missing.
func (ix *Index) link(h Handle, d Direction) (Handle, error) {
	c := ix.Cell(h)
	if nh := c.links[d]; nh != NoCell {
		return nh, nil
	}

	off := neighborhood[d]
	nh, err := ix.LookupOrCreate(c.key.Offset(off.dx, off.dy))
	if err != nil {
		return NoCell, err
	}
	n := ix.Cell(nh)
	if back := n.links[d.Reverse()]; back != NoCell && back != h {
		return NoCell, invariantf("[link] %v already links %v to handle %d", n.key, d.Reverse(), back)
	}
	c.links[d] = nh
	n.links[d.Reverse()] = h
	return nh, nil
}

// linkAll materializes every missing neighbor of h without touching counts.
// It is idempotent, so a failed call can be repeated.
func (ix *Index) linkAll(h Handle) error {
	for d := range Direction(numDirections) {
		if _, err := ix.link(h, d); err != nil {
			return err
		}
	}
	return nil
}

// materializeBirthLinks links h to all 8 neighbors, creating missing ones,
// and counts h as a live neighbor of each.
func (ix *Index) materializeBirthLinks(h Handle) error {
	if err := ix.linkAll(h); err != nil {
		return err
	}
	return ix.adjustNeighbors(h, 1)
}

// propagateDeathDecrement removes h from the live counts of its neighbors.
// A dying cell was alive, so all of its links must be set.
func (ix *Index) propagateDeathDecrement(h Handle) error {
	return ix.adjustNeighbors(h, -1)
}

// adjustNeighbors adds delta to the live count of every neighbor of h
func (ix *Index) adjustNeighbors(h Handle, delta int) error {
	c := ix.Cell(h)
	for d, nh := range c.links {
		if nh == NoCell {
			return invariantf("[adjustNeighbors] %v has no %v neighbor", c.key, Direction(d))
		}
	}
	for d, nh := range c.links {
		n := ix.Cell(nh)
		next := int(n.neighbors) + delta
		if next < 0 || next > numDirections {
			return invariantf("[adjustNeighbors] %v count would become %d via %v from %v", n.key, next, Direction(d), c.key)
		}
		n.neighbors = uint8(next)
	}
	return nil
}
