package model

import (
	"context"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct{ x, y int32 }

func seed(t *testing.T, u *Universe, cells ...point) {
	t.Helper()
	for _, c := range cells {
		require.NoError(t, u.Activate(c.x, c.y))
	}
}

func tick(t *testing.T, u *Universe) {
	t.Helper()
	require.NoError(t, u.Tick(context.Background()))
	requireConsistent(t, u)
}

func alive(u *Universe) map[point]bool {
	out := map[point]bool{}
	for s := range u.Snapshot() {
		if s.Occupied {
			out[point{s.X, s.Y}] = true
		}
	}
	return out
}

func pointsOf(p Pattern, dx, dy int32) map[point]bool {
	out := map[point]bool{}
	for _, off := range p {
		out[point{off[0] + dx, off[1] + dy}] = true
	}
	return out
}

// requireConsistent recomputes every count from the snapshot alone and
// checks that every link lands on a materialized cell.
func requireConsistent(t *testing.T, u *Universe) {
	t.Helper()
	require.NoError(t, u.Verify())

	states := map[point]CellState{}
	var prev *CellState
	for s := range u.Snapshot() {
		if prev != nil {
			require.True(t, prev.X < s.X || (prev.X == s.X && prev.Y < s.Y), "snapshot out of order at (%d,%d)", s.X, s.Y)
		}
		states[point{s.X, s.Y}] = s
		prev = &s
	}
	require.Equal(t, u.Materialized(), len(states))

	for p, s := range states {
		live := 0
		for d := range Direction(numDirections) {
			off := neighborhood[d]
			q := point{p.x + off.dx, p.y + off.dy}
			n, ok := states[q]
			if s.Linked[d] {
				require.True(t, ok, "(%d,%d) links %v to missing cell", p.x, p.y, d)
				require.True(t, n.Linked[d.Reverse()], "(%d,%d) link %v not reciprocated", p.x, p.y, d)
			}
			if ok && n.Occupied {
				live++
			}
		}
		require.Equal(t, live, s.Neighbors, "count at (%d,%d)", p.x, p.y)
	}
}

func TestLoneCellDiesAfterOneTick(t *testing.T) {
	u := NewUniverse(Options{})
	seed(t, u, point{0, 0})
	requireConsistent(t, u)
	assert.Equal(t, 1, u.Census())
	assert.Equal(t, 9, u.Materialized())

	tick(t, u)
	assert.Zero(t, u.Census())
	assert.Equal(t, 1, u.Generation())
	assert.Equal(t, TickStats{Generation: 1, Deaths: 1, Materialized: 9}, withoutDuration(u.LastTick()))
}

func withoutDuration(s TickStats) TickStats {
	s.Duration = 0
	return s
}

func TestBlockIsStill(t *testing.T) {
	u := NewUniverse(Options{RetentionThreshold: 1})
	require.NoError(t, u.Seed(Block, 10, -3))
	want := pointsOf(Block, 10, -3)

	for range 20 {
		tick(t, u)
		assert.Equal(t, want, alive(u))
	}
	// a 4x4 neighborhood ring around the block never changes
	assert.Equal(t, 16, u.Materialized())
}

func TestBlinkerOscillation(t *testing.T) {
	u := NewUniverse(Options{})
	require.NoError(t, u.Seed(Blinker, 0, 0))
	horizontal := pointsOf(Blinker, 0, 0)
	vertical := map[point]bool{{0, -1}: true, {0, 0}: true, {0, 1}: true}

	tick(t, u)
	assert.Equal(t, vertical, alive(u))
	tick(t, u)
	assert.Equal(t, horizontal, alive(u))
}

func TestGliderTranslates(t *testing.T) {
	for _, threshold := range []int{0, 1, 4} {
		u := NewUniverse(Options{RetentionThreshold: threshold})
		require.NoError(t, u.Seed(Glider, 0, 0))

		for i := 1; i <= 4; i++ {
			tick(t, u)
			require.Equal(t, 5, u.Census(), "threshold %d tick %d", threshold, i)
		}
		assert.Equal(t, pointsOf(Glider, 1, 1), alive(u), "threshold %d", threshold)

		for range 40 {
			tick(t, u)
		}
		assert.Equal(t, pointsOf(Glider, 11, 11), alive(u), "threshold %d", threshold)
	}
}

func TestRetentionThreshold(t *testing.T) {
	for _, k := range []int{0, 1, 3} {
		u := NewUniverse(Options{RetentionThreshold: k})
		seed(t, u, point{0, 0})

		// the cell dies and its neighborhood goes void at the end of this tick
		tick(t, u)
		require.Equal(t, 9, u.Materialized())

		for i := range k {
			tick(t, u)
			require.Equal(t, 9, u.Materialized(), "k=%d: collected after %d void ticks", k, i+1)
		}
		tick(t, u)
		assert.Zero(t, u.Materialized(), "k=%d: not collected after %d void ticks", k, k+1)
		assert.Equal(t, 9, u.LastTick().Collected)
	}
}

func TestRetentionResetByReactivation(t *testing.T) {
	const k = 3
	u := NewUniverse(Options{RetentionThreshold: k})
	seed(t, u, point{0, 0})
	tick(t, u)
	tick(t, u)
	tick(t, u)

	corner := u.index.Cell(u.index.Lookup(Encode(1, 1)))
	require.Equal(t, 2, corner.VoidLength())

	// reactivating gives every neighbor a live neighbor, resetting its void length
	seed(t, u, point{0, 0})
	tick(t, u)
	assert.Zero(t, corner.VoidLength())
	require.Equal(t, 9, u.Materialized())

	for range k {
		tick(t, u)
		require.Equal(t, 9, u.Materialized())
	}
	tick(t, u)
	assert.Zero(t, u.Materialized())
}

func TestTickWithOverridesThreshold(t *testing.T) {
	u := NewUniverse(Options{RetentionThreshold: 100})
	seed(t, u, point{0, 0})
	require.NoError(t, u.TickWith(context.Background(), 0))
	require.NoError(t, u.TickWith(context.Background(), 0))
	assert.Zero(t, u.Materialized())

	err := u.TickWith(context.Background(), -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUsage))
}

func TestActivateOccupiedIsUsageError(t *testing.T) {
	u := NewUniverse(Options{})
	seed(t, u, point{2, 2})

	err := u.Activate(2, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUsage))
	assert.NoError(t, u.Err(), "usage errors do not stop the universe")
	requireConsistent(t, u)
}

func TestRandomSoupStaysConsistent(t *testing.T) {
	for _, threshold := range []int{0, 2, 5} {
		rng := rand.New(rand.NewSource(int64(42 + threshold)))
		u := NewUniverse(Options{RetentionThreshold: threshold})
		require.NoError(t, u.Randomize(rng, -8, -8, 16, 16, 0.4))
		requireConsistent(t, u)

		for range 60 {
			tick(t, u)
		}
	}
}

func TestSparseMatchesDenseReference(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	u := NewUniverse(Options{RetentionThreshold: 1})
	require.NoError(t, u.Randomize(rng, 0, 0, 12, 12, 0.35))
	want := alive(u)

	for range 30 {
		want = denseStep(want)
		tick(t, u)
		require.Equal(t, want, alive(u))
	}
}

// denseStep is a direct B3/S23 step over a set of live points
func denseStep(live map[point]bool) map[point]bool {
	counts := map[point]int{}
	for p := range live {
		for _, off := range neighborhood {
			counts[point{p.x + off.dx, p.y + off.dy}]++
		}
	}
	next := map[point]bool{}
	for p, n := range counts {
		if n == 3 || (n == 2 && live[p]) {
			next[p] = true
		}
	}
	return next
}

func TestParallelEvaluationMatchesSequential(t *testing.T) {
	build := func(workers int) *Universe {
		rng := rand.New(rand.NewSource(11))
		u := NewUniverse(Options{RetentionThreshold: 2, Workers: workers})
		require.NoError(t, u.Randomize(rng, 0, 0, 96, 96, 0.35))
		return u
	}
	seq, par := build(0), build(4)
	require.GreaterOrEqual(t, par.Materialized(), parallelMinCells)

	for range 15 {
		require.NoError(t, seq.Tick(context.Background()))
		require.NoError(t, par.Tick(context.Background()))
		require.Equal(t, seq.Hash(), par.Hash())
		require.Equal(t, seq.Materialized(), par.Materialized())
	}
	requireConsistent(t, par)
}

func TestAllocationFailureResumesPhaseTwo(t *testing.T) {
	arena := NewCellArena(18)
	u := NewUniverse(Options{Allocator: arena})
	require.NoError(t, u.Seed(Blinker, 0, 0))
	require.Equal(t, 15, u.Materialized())

	err := u.Tick(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllocation))
	assert.NoError(t, u.Err(), "allocation failure must not stop the universe")
	assert.Zero(t, u.Generation())
	assert.True(t, errors.Is(u.Verify(), ErrUsage), "mid-tick state is not verifiable")
	assert.True(t, errors.Is(u.Activate(5, 5), ErrUsage))

	// same failure again, nothing is re-evaluated
	require.True(t, errors.Is(u.Tick(context.Background()), ErrAllocation))

	arena.limit = 0
	tick(t, u)
	assert.Equal(t, 1, u.Generation())
	assert.Equal(t, map[point]bool{{0, -1}: true, {0, 0}: true, {0, 1}: true}, alive(u))
	assert.Equal(t, 2, u.LastTick().Births)
	assert.Equal(t, 2, u.LastTick().Deaths)

	tick(t, u)
	assert.Equal(t, pointsOf(Blinker, 0, 0), alive(u))
}

func TestActivateAllocationFailureRollsBack(t *testing.T) {
	u := NewUniverse(Options{MaxCells: 4})

	err := u.Activate(0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllocation))
	assert.False(t, u.Alive(0, 0))
	assert.Zero(t, u.Census())
	requireConsistent(t, u)
}

func TestDeathWithMissingLinkStopsUniverse(t *testing.T) {
	u := NewUniverse(Options{})
	h, err := u.index.LookupOrCreate(Encode(0, 0))
	require.NoError(t, err)
	u.index.Cell(h).occupied = true // alive but never linked

	err = u.Tick(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariantViolation))
	assert.True(t, errors.Is(u.Err(), ErrInvariantViolation))

	err = u.Tick(context.Background())
	assert.True(t, errors.Is(err, ErrInvariantViolation))
	assert.True(t, errors.Is(u.Activate(3, 3), ErrInvariantViolation))

	u.Reset()
	assert.NoError(t, u.Err())
	assert.Zero(t, u.Materialized())
}

func TestVerifyDetectsBadCount(t *testing.T) {
	u := NewUniverse(Options{})
	require.NoError(t, u.Seed(Block, 0, 0))
	u.index.Cell(u.index.Lookup(Encode(0, 0))).neighbors = 2

	err := u.Verify()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariantViolation))
}

func TestCancelledContextDoesNotStartTick(t *testing.T) {
	u := NewUniverse(Options{})
	require.NoError(t, u.Seed(Blinker, 0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := u.Tick(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, u.Generation())
	requireConsistent(t, u)
}

func TestStagnationAndReset(t *testing.T) {
	u := NewUniverse(Options{})
	require.NoError(t, u.Seed(Block, 0, 0))
	assert.False(t, u.IsStagnant())
	for range 3 {
		u.UpdateHistory()
		tick(t, u)
	}
	assert.True(t, u.IsStagnant())

	u.Reset()
	assert.False(t, u.IsStagnant())
	assert.Zero(t, u.Generation())
	assert.Zero(t, u.Census())
	require.NoError(t, u.Seed(Glider, 0, 0))
	assert.Equal(t, 5, u.Census())
	requireConsistent(t, u)
}

func TestBounds(t *testing.T) {
	u := NewUniverse(Options{})
	_, _, _, _, ok := u.Bounds()
	assert.False(t, ok)

	require.NoError(t, u.Seed(Glider, 0, 0))
	minX, minY, maxX, maxY, ok := u.Bounds()
	require.True(t, ok)
	assert.Equal(t, []int32{-1, -1, 1, 1}, []int32{minX, minY, maxX, maxY})
}

func TestSeedSkipsLiveCells(t *testing.T) {
	u := NewUniverse(Options{})
	require.NoError(t, u.Seed(Block, 0, 0))
	require.NoError(t, u.Seed(Block, 1, 1))
	assert.Equal(t, 7, u.Census())
	requireConsistent(t, u)
}
