package model

import "fmt"

// coordBias shifts a signed 32-bit value into unsigned space so that
// unsigned comparison matches signed comparison.
const coordBias = 1 << 31

// Key is a lattice coordinate packed into 64 bits: x in the high half,
// y in the low half. Keys compare like (x, y) pairs compared lexicographically.
type Key uint64

// Encode packs (x, y) into a Key
func Encode(x, y int32) Key {
	hi := uint64(uint32(x) ^ coordBias)
	lo := uint64(uint32(y) ^ coordBias)
	return Key(hi<<32 | lo)
}

// Decode unpacks the key back into (x, y)
func (k Key) Decode() (x, y int32) {
	x = int32(uint32(k>>32) ^ coordBias)
	y = int32(uint32(k) ^ coordBias)
	return x, y
}

// X returns the x coordinate of the key
func (k Key) X() int32 {
	x, _ := k.Decode()
	return x
}

// Y returns the y coordinate of the key
func (k Key) Y() int32 {
	_, y := k.Decode()
	return y
}

// Offset returns the key translated by (dx, dy), wrapping at the int32 edge.
func (k Key) Offset(dx, dy int32) Key {
	x, y := k.Decode()
	return Encode(x+dx, y+dy)
}

func (k Key) String() string {
	x, y := k.Decode()
	return fmt.Sprintf("(%d,%d)", x, y)
}
