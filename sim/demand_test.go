package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantDemand(t *testing.T) {
	d := &ConstantDemand{PerBlock: 1}
	assert.Equal(t, []int{1, 1, 1, 1}, d.Demand(DemandContext{NumBlocks: 4}, nil))
}

func TestTableDemand_ConditionsOnSlot(t *testing.T) {
	// GIVEN a table with demand for block 1 at slot 16 and block 0 at slot 17
	reg := mustRegistry(t, testRecords(3, 1))
	table := &DemandTable{Records: []DemandRecord{
		{BlockID: "blk_001", TimeSlot: 16, Demand: 3.4},
		{BlockID: "blk_000", TimeSlot: 17, Demand: 0.6},
	}}
	td, err := NewTableDemand(table, reg, 0)
	require.NoError(t, err)

	// THEN each slot uses its rows (rounded) and the fallback elsewhere
	assert.Equal(t, []int{0, 3, 0}, td.Demand(DemandContext{TimeSlot: 16, NumBlocks: 3}, nil))
	assert.Equal(t, []int{1, 0, 0}, td.Demand(DemandContext{TimeSlot: 17, NumBlocks: 3}, nil))
	assert.Equal(t, []int{0, 0, 0}, td.Demand(DemandContext{TimeSlot: 5, NumBlocks: 3}, nil))

	withFallback, err := NewTableDemand(table, reg, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 2}, withFallback.Demand(DemandContext{TimeSlot: 16, NumBlocks: 3}, nil))
}

func TestNewTableDemand_Rejects(t *testing.T) {
	reg := mustRegistry(t, testRecords(2, 1))
	tests := []struct {
		name string
		rec  DemandRecord
	}{
		{"unknown block", DemandRecord{BlockID: "zzz", TimeSlot: 1, Demand: 1}},
		{"slot out of range", DemandRecord{BlockID: "blk_000", TimeSlot: 48, Demand: 1}},
		{"negative demand", DemandRecord{BlockID: "blk_000", TimeSlot: 1, Demand: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTableDemand(&DemandTable{Records: []DemandRecord{tt.rec}}, reg, 1)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := NewTableDemand(nil, reg, -1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPoissonDemand_MeanAndDeterminism(t *testing.T) {
	d := &PoissonDemand{Mean: 2}
	ctx := DemandContext{NumBlocks: 500}

	a := d.Demand(ctx, rand.New(rand.NewSource(8)))
	b := d.Demand(ctx, rand.New(rand.NewSource(8)))
	assert.Equal(t, a, b)

	total := 0
	for _, n := range a {
		require.GreaterOrEqual(t, n, 0)
		total += n
	}
	assert.InDelta(t, 2.0, float64(total)/float64(len(a)), 0.25)

	zero := &PoissonDemand{Mean: 0}
	assert.Equal(t, []int{0, 0}, zero.Demand(DemandContext{NumBlocks: 2}, rand.New(rand.NewSource(1))))
}

func TestDemandTable_Len(t *testing.T) {
	var nilTable *DemandTable
	assert.Equal(t, 0, nilTable.Len())
	assert.Equal(t, 1, (&DemandTable{Records: []DemandRecord{{}}}).Len())
}
