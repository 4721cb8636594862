package model

import (
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// Pattern is a set of live cells relative to an origin
type Pattern [][2]int32

// Glider moves one step diagonally (+1, +1) every 4 generations
var Glider = Pattern{{-1, 1}, {0, -1}, {0, 1}, {1, 0}, {1, 1}}

// Blinker is a period 2 oscillator
var Blinker = Pattern{{-1, 0}, {0, 0}, {1, 0}}

// Block is a still life
var Block = Pattern{{0, 0}, {1, 0}, {0, 1}, {1, 1}}

// RPentomino is a methuselah that stabilizes after 1103 generations
var RPentomino = Pattern{{0, -1}, {1, -1}, {-1, 0}, {0, 0}, {0, 1}}

// Patterns lists the named patterns accepted by the demo config
var Patterns = map[string]Pattern{
	"glider":     Glider,
	"blinker":    Blinker,
	"block":      Block,
	"rpentomino": RPentomino,
}

// PatternNames returns the registered pattern names in sorted order
func PatternNames() []string {
	names := make([]string, 0, len(Patterns))
	for name := range Patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Seed activates the pattern translated to (x, y). Cells that are already
// alive are left as they are.
func (u *Universe) Seed(p Pattern, x, y int32) error {
	for _, off := range p {
		cx, cy := x+off[0], y+off[1]
		if u.Alive(cx, cy) {
			continue
		}
		if err := u.Activate(cx, cy); err != nil {
			return errors.Wrapf(err, "[Seed] activating (%d,%d)", cx, cy)
		}
	}
	return nil
}

// Randomize activates each cell of the w x h box at (x, y) with the given
// probability
func (u *Universe) Randomize(rng *rand.Rand, x, y int32, w, h int, density float64) error {
	for dy := range h {
		for dx := range w {
			if rng.Float64() >= density {
				continue
			}
			cx, cy := x+int32(dx), y+int32(dy)
			if u.Alive(cx, cy) {
				continue
			}
			if err := u.Activate(cx, cy); err != nil {
				return errors.Wrapf(err, "[Randomize] activating (%d,%d)", cx, cy)
			}
		}
	}
	return nil
}
