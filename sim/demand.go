package sim

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// DemandContext is everything a DemandGenerator may condition on for one step.
type DemandContext struct {
	Step      int
	Date      time.Time
	TimeSlot  int
	Stage     Stage
	NumBlocks int
}

// DemandGenerator produces the number of new vehicles arriving at each block
// for one step. Implementations must return NumBlocks non-negative counts and
// draw randomness only from the supplied rng.
type DemandGenerator interface {
	Demand(ctx DemandContext, rng *rand.Rand) []int
}

// DemandRecord is one already-parsed row of the historical demand table.
type DemandRecord struct {
	BlockID  string  `yaml:"block_id" json:"block_id"`
	TimeSlot int     `yaml:"slot" json:"slot"`
	Demand   float64 `yaml:"demand" json:"demand"`
}

// DemandTable holds historical demand rows. The default generator accepts but
// ignores it.
type DemandTable struct {
	Records []DemandRecord
}

// Len returns the number of rows.
func (t *DemandTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// ConstantDemand spawns PerBlock vehicles at every block every step.
type ConstantDemand struct {
	PerBlock int
}

func (d *ConstantDemand) Demand(ctx DemandContext, _ *rand.Rand) []int {
	out := make([]int, ctx.NumBlocks)
	for i := range out {
		out[i] = d.PerBlock
	}
	return out
}

// TableDemand conditions arrivals on the (block, time slot) entries of a
// DemandTable, rounding fractional demand to the nearest integer. Blocks or
// slots missing from the table use Fallback.
type TableDemand struct {
	Fallback int
	bySlot   map[int]map[int]int // slot -> block index -> count
}

// NewTableDemand indexes table rows against the registry. Rows naming unknown
// blocks, out-of-range slots or negative demand are rejected.
func NewTableDemand(table *DemandTable, reg *BlockRegistry, fallback int) (*TableDemand, error) {
	if fallback < 0 {
		return nil, fmt.Errorf("%w: demand fallback must be non-negative, got %d", ErrInvalidConfig, fallback)
	}
	td := &TableDemand{Fallback: fallback, bySlot: make(map[int]map[int]int)}
	if table == nil {
		return td, nil
	}
	for i, rec := range table.Records {
		block, ok := reg.Lookup(rec.BlockID)
		if !ok {
			return nil, fmt.Errorf("%w: demand row %d: unknown block %q", ErrInvalidConfig, i, rec.BlockID)
		}
		if rec.TimeSlot < 0 || rec.TimeSlot >= SlotsPerDay {
			return nil, fmt.Errorf("%w: demand row %d: slot must be in [0, %d), got %d", ErrInvalidConfig, i, SlotsPerDay, rec.TimeSlot)
		}
		if !isFinite(rec.Demand) || rec.Demand < 0 {
			return nil, fmt.Errorf("%w: demand row %d: demand must be finite and non-negative, got %v", ErrInvalidConfig, i, rec.Demand)
		}
		slot, ok := td.bySlot[rec.TimeSlot]
		if !ok {
			slot = make(map[int]int)
			td.bySlot[rec.TimeSlot] = slot
		}
		slot[block] = int(math.Round(rec.Demand))
	}
	return td, nil
}

func (d *TableDemand) Demand(ctx DemandContext, _ *rand.Rand) []int {
	out := make([]int, ctx.NumBlocks)
	slot := d.bySlot[ctx.TimeSlot]
	for i := range out {
		if n, ok := slot[i]; ok {
			out[i] = n
		} else {
			out[i] = d.Fallback
		}
	}
	return out
}

// PoissonDemand draws each block's arrivals from a Poisson distribution with
// the given mean.
type PoissonDemand struct {
	Mean float64
}

func (d *PoissonDemand) Demand(ctx DemandContext, rng *rand.Rand) []int {
	out := make([]int, ctx.NumBlocks)
	if d.Mean <= 0 {
		return out
	}
	dist := distuv.Poisson{Lambda: d.Mean, Src: rng}
	for i := range out {
		out[i] = int(dist.Rand())
	}
	return out
}

// DemandFunc adapts an ordinary function to DemandGenerator.
type DemandFunc func(ctx DemandContext, rng *rand.Rand) []int

func (f DemandFunc) Demand(ctx DemandContext, rng *rand.Rand) []int {
	return f(ctx, rng)
}
