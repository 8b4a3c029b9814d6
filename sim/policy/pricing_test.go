package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbsim/curbsim/sim"
	"github.com/curbsim/curbsim/sim/internal/testutil"
)

func TestConstant_PricesEveryBlock(t *testing.T) {
	eng := testutil.MustEngine(t, testutil.GridRecords(4, 2), testutil.ShortConfig(1, 3))
	p, err := NewPricingPolicy(Config{Name: NameConstant, Price: 2.5}, eng)
	require.NoError(t, err)

	prices := p.Price(eng.Reset())
	assert.Equal(t, []float64{2.5, 2.5, 2.5, 2.5}, prices)

	// the engine accepts the prices as an action
	_, err = eng.Step(prices)
	assert.NoError(t, err)
}

func TestNewPricingPolicy_EmptyNameIsConstant(t *testing.T) {
	eng := testutil.MustEngine(t, testutil.GridRecords(2, 1), testutil.ShortConfig(1, 1))
	p, err := NewPricingPolicy(Config{Price: 1}, eng)
	require.NoError(t, err)
	assert.IsType(t, &Constant{}, p)
}

func TestUniformRandom_StaysInRangeAndIsSeeded(t *testing.T) {
	cfg := Config{Name: NameUniformRandom, Price: 1, MaxPrice: 3}

	draw := func(seed int64) [][]float64 {
		eng := testutil.MustEngine(t, testutil.GridRecords(5, 1), testutil.ShortConfig(seed, 10))
		p, err := NewPricingPolicy(cfg, eng)
		require.NoError(t, err)
		obs := eng.Reset()
		var out [][]float64
		for i := 0; i < 10; i++ {
			prices := p.Price(obs)
			out = append(out, prices)
			res, err := eng.Step(prices)
			require.NoError(t, err)
			obs = res.Observation
		}
		return out
	}

	a, b := draw(42), draw(42)
	assert.Equal(t, a, b, "same seed must give the same prices")
	for _, prices := range a {
		for _, p := range prices {
			assert.GreaterOrEqual(t, p, 1.0)
			assert.Less(t, p, 3.0)
		}
	}
	assert.NotEqual(t, a, draw(43))
}

func TestUniformRandom_DoesNotShiftChoiceStream(t *testing.T) {
	// GIVEN two engines with the same seed
	records := testutil.GridRecords(6, 1)
	plain := testutil.MustEngine(t, records, testutil.ShortConfig(9, 5))
	priced := testutil.MustEngine(t, records, testutil.ShortConfig(9, 5))

	// WHEN one of them also feeds a uniform-random policy
	p, err := NewPricingPolicy(Config{Name: NameUniformRandom, Price: 0, MaxPrice: 1}, priced)
	require.NoError(t, err)
	fixed := make([]float64, 6)

	obs := priced.Reset()
	plain.Reset()
	for i := 0; i < 5; i++ {
		_ = p.Price(obs)
		r1, err := plain.Step(fixed)
		require.NoError(t, err)
		r2, err := priced.Step(fixed)
		require.NoError(t, err)

		// THEN occupancy evolves identically
		assert.Equal(t, r1.Observation, r2.Observation)
		obs = r2.Observation
	}
}

func TestOccupancyResponsive_RampsAboveTarget(t *testing.T) {
	p := &OccupancyResponsive{Base: 1, Max: 3, Target: 0.5, Capacities: []int{4, 4, 4, 2}}
	obs := sim.Observation{0, 0, 0, 2, 3, 2}

	prices := p.Price(obs)
	require.Len(t, prices, 4)
	assert.Equal(t, 1.0, prices[0], "empty block charges base")
	assert.Equal(t, 1.0, prices[1], "block at target charges base")
	assert.InDelta(t, 2.0, prices[2], 1e-12, "75% full is halfway between target and full")
	assert.InDelta(t, 3.0, prices[3], 1e-12, "full block charges max")
}

func TestOccupancyResponsive_TargetOneNeverRamps(t *testing.T) {
	p := &OccupancyResponsive{Base: 1, Max: 3, Target: 1, Capacities: []int{1}}
	assert.Equal(t, []float64{1}, p.Price(sim.Observation{0, 0, 1}))
}

func TestNewPricingPolicy_Errors(t *testing.T) {
	eng := testutil.MustEngine(t, testutil.GridRecords(2, 1), testutil.ShortConfig(1, 1))
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"unknown name", Config{Name: "surge", Price: 1}, sim.ErrInvalidConfig},
		{"negative price", Config{Name: NameConstant, Price: -1}, sim.ErrInvalidPrice},
		{"max below price", Config{Name: NameUniformRandom, Price: 2, MaxPrice: 1}, sim.ErrInvalidPrice},
		{"target out of range", Config{Name: NameOccupancyResponsive, Price: 1, MaxPrice: 2, TargetOccupancy: 1.5}, sim.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPricingPolicy(tt.cfg, eng)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
