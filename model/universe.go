package model

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/sheikhrachel/sparse-gol/rules"
)

const (
	tracerName = "github.com/sheikhrachel/sparse-gol/model"

	// parallelMinCells is the smallest index worth splitting across workers
	parallelMinCells = 4096

	historySize = 5
)

// Options configures a Universe
type Options struct {
	// RetentionThreshold is how many ticks a void cell is kept before it is
	// collected. Zero collects it on the first tick it is seen void.
	RetentionThreshold int
	// Workers evaluates the rule over this many goroutines. Values below 2
	// keep phase 1 on the calling goroutine; negative means runtime.NumCPU().
	Workers int
	// MaxCells caps the materialized cells of the default allocator
	MaxCells int
	// Allocator overrides the default CellArena
	Allocator Allocator
	Logger    *slog.Logger
}

// TickStats summarizes the last completed tick
type TickStats struct {
	Generation   int
	Births       int
	Deaths       int
	Collected    int
	Materialized int
	Duration     time.Duration
}

// Universe is one sparse Life simulation. It owns its allocator and index
// and is not safe for concurrent use.
type Universe struct {
	opts   Options
	alloc  Allocator
	index  *Index
	logger *slog.Logger
	tracer trace.Tracer

	generation int
	last       TickStats

	// phase 1 outcome, kept until phase 2 completes so a failed tick can resume
	pending   bool
	collected int
	births    []Handle
	deaths    []Handle
	order     []Handle

	// err is set once an invariant breaks; the universe is unusable after
	err error

	history []string // recent Hash values for cycle detection
}

// NewUniverse creates an empty universe
func NewUniverse(opts Options) *Universe {
	alloc := opts.Allocator
	if alloc == nil {
		alloc = NewCellArena(opts.MaxCells)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Workers < 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Universe{
		opts:   opts,
		alloc:  alloc,
		index:  NewIndex(alloc),
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Generation returns the number of completed ticks
func (u *Universe) Generation() int {
	return u.generation
}

// Materialized returns the number of cells held in the index
func (u *Universe) Materialized() int {
	return u.index.Len()
}

// LastTick returns the statistics of the most recent completed tick
func (u *Universe) LastTick() TickStats {
	return u.last
}

// Err returns the invariant violation that stopped the universe, if any
func (u *Universe) Err() error {
	return u.err
}

// Activate makes (x, y) occupied and links it into its neighborhood.
// It is meant for seeding between ticks.
func (u *Universe) Activate(x, y int32) error {
	if err := u.usable("[Activate]"); err != nil {
		return err
	}
	if u.pending {
		return usagef("[Activate] (%d,%d) while a tick is incomplete", x, y)
	}

	h, err := u.index.LookupOrCreate(Encode(x, y))
	if err != nil {
		return err
	}
	c := u.index.Cell(h)
	if c.occupied {
		return usagef("[Activate] (%d,%d) is already occupied", x, y)
	}

	c.occupied = true
	c.change = Birth
	c.voidLength = 0
	err = u.index.materializeBirthLinks(h)
	c.change = None
	if err != nil {
		if errors.Is(err, ErrAllocation) {
			// no counts were touched yet; the cell goes back to empty
			c.occupied = false
			return err
		}
		return u.fail(err)
	}
	return nil
}

// Alive reports whether (x, y) is occupied
func (u *Universe) Alive(x, y int32) bool {
	h := u.index.Lookup(Encode(x, y))
	return h != NoCell && u.index.Cell(h).occupied
}

// Tick advances one generation using the configured retention threshold
func (u *Universe) Tick(ctx context.Context) error {
	return u.TickWith(ctx, u.opts.RetentionThreshold)
}

// TickWith advances one generation. Phase 1 applies the rule to every cell
// and collects expired void cells; phase 2 then pushes the resulting births
// and deaths into the neighbor counts. If phase 2 fails to allocate, the
// next call resumes phase 2 without evaluating the rule again.
func (u *Universe) TickWith(ctx context.Context, retentionThreshold int) (err error) {
	if err = u.usable("[Tick]"); err != nil {
		return err
	}
	if retentionThreshold < 0 {
		return usagef("[Tick] negative retention threshold %d", retentionThreshold)
	}

	ctx, span := u.tracer.Start(ctx, "sparse-gol.Tick",
		trace.WithAttributes(
			attribute.Int("generation", u.generation),
			attribute.Bool("resumed", u.pending),
		),
	)
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "tick failed")
		}
	}()

	start := time.Now()
	if !u.pending {
		if err = ctx.Err(); err != nil {
			return errors.Wrap(err, "[Tick] not started")
		}
		if err = u.evaluate(retentionThreshold); err != nil {
			return u.fail(err)
		}
		u.pending = true
	}

	if err = u.propagate(); err != nil {
		if errors.Is(err, ErrAllocation) {
			u.logger.Warn("tick suspended in phase 2",
				slog.Int("generation", u.generation),
				slog.String("error", err.Error()),
			)
			return err
		}
		return u.fail(err)
	}

	u.generation++
	u.last = TickStats{
		Generation:   u.generation,
		Births:       len(u.births),
		Deaths:       len(u.deaths),
		Collected:    u.collected,
		Materialized: u.index.Len(),
		Duration:     time.Since(start),
	}
	u.births = u.births[:0]
	u.deaths = u.deaths[:0]
	u.collected = 0
	u.pending = false

	span.SetAttributes(
		attribute.Int("births", u.last.Births),
		attribute.Int("deaths", u.last.Deaths),
		attribute.Int("collected", u.last.Collected),
		attribute.Int("materialized", u.last.Materialized),
	)
	u.logger.Debug("tick",
		slog.Int("generation", u.last.Generation),
		slog.Int("births", u.last.Births),
		slog.Int("deaths", u.last.Deaths),
		slog.Int("collected", u.last.Collected),
		slog.Int("materialized", u.last.Materialized),
		slog.Duration("duration", u.last.Duration),
	)
	return nil
}

// evaluate is phase 1. Every cell's outcome depends only on its own count
// from the previous tick, so cells are evaluated independently.
func (u *Universe) evaluate(retentionThreshold int) error {
	u.order = u.index.Handles(u.order[:0])

	if workers := u.opts.Workers; workers > 1 && len(u.order) >= parallelMinCells {
		var (
			eg        errgroup.Group
			perWorker = (len(u.order) + workers - 1) / workers // Ceiling division
		)
		for i := range workers {
			var (
				lo = i * perWorker
				hi = min(lo+perWorker, len(u.order))
			)
			if lo >= len(u.order) {
				break
			}
			chunk := u.order[lo:hi]
			eg.Go(func() error {
				for _, h := range chunk {
					evaluateCell(u.index.Cell(h))
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return errors.Wrap(err, "[evaluate] parallel rule evaluation")
		}
	} else {
		for _, h := range u.order {
			evaluateCell(u.index.Cell(h))
		}
	}

	// A void cell has no live neighbor, so no pending birth or death reads
	// its links.
	threshold := uint64(retentionThreshold)
	for it := u.index.Iter(); it.Next(); {
		h := it.Handle()
		c := u.index.Cell(h)
		switch c.change {
		case Birth:
			u.births = append(u.births, h)
		case Death:
			u.deaths = append(u.deaths, h)
		default:
			if c.occupied || c.neighbors != 0 || uint64(c.voidLength) <= threshold {
				continue
			}
			if err := u.index.untangle(h); err != nil {
				return err
			}
			if err := u.index.Erase(h); err != nil {
				return err
			}
			u.collected++
		}
	}
	return nil
}

// evaluateCell applies the rule to one cell and records the change tag
func evaluateCell(c *Cell) {
	switch rules.Transition(int(c.neighbors), c.occupied) {
	case -1:
		c.change = Death
		c.occupied = false
	case 1:
		c.change = Birth
		c.occupied = true
		c.voidLength = 0
	default:
		c.change = None
		if c.occupied {
			return
		}
		if c.neighbors != 0 {
			c.voidLength = 0
		} else if c.voidLength < math.MaxUint32 {
			c.voidLength++
		}
	}
}

// propagate is phase 2. Links for all births are materialized first; counts
// are applied only once every link exists, so an allocation failure leaves
// every count as phase 1 saw it.
func (u *Universe) propagate() error {
	for _, h := range u.births {
		if err := u.index.linkAll(h); err != nil {
			return errors.Wrap(err, "[propagate] materializing birth neighborhood")
		}
	}
	for _, h := range u.births {
		if err := u.index.adjustNeighbors(h, 1); err != nil {
			return err
		}
		u.index.Cell(h).change = None
	}
	for _, h := range u.deaths {
		if err := u.index.propagateDeathDecrement(h); err != nil {
			return err
		}
		u.index.Cell(h).change = None
	}
	return nil
}

// Census counts occupied cells
func (u *Universe) Census() (count int) {
	for it := u.index.Iter(); it.Next(); {
		if u.index.Cell(it.Handle()).occupied {
			count++
		}
	}
	return
}

// Snapshot yields every materialized cell in ascending (x, y) order. The
// universe must not be modified while the sequence is being consumed.
func (u *Universe) Snapshot() iter.Seq[CellState] {
	return func(yield func(CellState) bool) {
		u.index.tree.Ascend(func(e indexEntry) bool {
			return yield(u.state(e.handle))
		})
	}
}

func (u *Universe) state(h Handle) CellState {
	c := u.index.Cell(h)
	x, y := c.key.Decode()
	s := CellState{X: x, Y: y, Occupied: c.occupied, Neighbors: int(c.neighbors)}
	for d, l := range c.links {
		s.Linked[d] = l != NoCell
	}
	return s
}

// Bounds returns the bounding box of occupied cells; ok is false when
// nothing is alive.
func (u *Universe) Bounds() (minX, minY, maxX, maxY int32, ok bool) {
	for s := range u.Snapshot() {
		if !s.Occupied {
			continue
		}
		if !ok {
			minX, maxX, minY, maxY = s.X, s.X, s.Y, s.Y
			ok = true
			continue
		}
		minX, maxX = min(minX, s.X), max(maxX, s.X)
		minY, maxY = min(minY, s.Y), max(maxY, s.Y)
	}
	return
}

// Hash returns an MD5 digest of the occupied coordinates
func (u *Universe) Hash() string {
	h := md5.New()
	var buf [8]byte
	for it := u.index.Iter(); it.Next(); {
		if !u.index.Cell(it.Handle()).occupied {
			continue
		}
		k := uint64(it.Key())
		for i := range buf {
			buf[i] = byte(k >> (56 - 8*i))
		}
		h.Write(buf[:])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// UpdateHistory adds the current state to history and maintains size
func (u *Universe) UpdateHistory() {
	u.history = append(u.history, u.Hash())

	if len(u.history) > historySize {
		u.history = u.history[1:]
	}
}

// IsStagnant checks whether the current state repeats one of the last three
// recorded states
func (u *Universe) IsStagnant() bool {
	if len(u.history) < 3 {
		return false
	}

	current := u.Hash()
	for _, prev := range u.history[len(u.history)-3:] {
		if prev == current {
			return true
		}
	}
	return false
}

// Reset drops every cell and starts again from generation zero
func (u *Universe) Reset() {
	u.index.Clear()
	if r, ok := u.alloc.(interface{ Reset() }); ok {
		r.Reset()
	}
	u.generation = 0
	u.last = TickStats{}
	u.pending = false
	u.collected = 0
	u.births = u.births[:0]
	u.deaths = u.deaths[:0]
	u.err = nil
	u.history = nil
}

func (u *Universe) usable(op string) error {
	if u.err != nil {
		return errors.Wrapf(u.err, "%s universe stopped", op)
	}
	return nil
}

// fail records an invariant violation so later calls refuse to run
func (u *Universe) fail(err error) error {
	if errors.Is(err, ErrInvariantViolation) {
		u.err = err
		u.logger.Error("invariant violation",
			slog.Int("generation", u.generation),
			slog.String("error", err.Error()),
		)
	}
	return err
}
