// Package testutil provides shared test fixtures for the sim sub-packages:
// small block grids, short-episode engines and float assertions.
package testutil

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/curbsim/curbsim/sim"
)

// GridRecords returns n blocks on a 5-wide grid of 0.001° cells in San
// Francisco, each with the given capacity.
func GridRecords(n, capacity int) []sim.BlockRecord {
	records := make([]sim.BlockRecord, n)
	for i := range records {
		records[i] = sim.BlockRecord{
			ID:        fmt.Sprintf("blk_%03d", i),
			Longitude: -122.42 + 0.001*float64(i%5),
			Latitude:  37.77 + 0.001*float64(i/5),
			Capacity:  capacity,
		}
	}
	return records
}

// ShortConfig returns the default model seeded with seed whose episode ends
// after steps periods.
func ShortConfig(seed int64, steps int) sim.EngineConfig {
	cfg := sim.DefaultEngineConfig()
	cfg.Seed = seed
	cfg.Calendar.TerminalDate = cfg.Calendar.Epoch.Add(time.Duration(steps) * cfg.Calendar.Period)
	return cfg
}

// MustRegistry builds a registry or fails the test.
func MustRegistry(t testing.TB, records []sim.BlockRecord) *sim.BlockRegistry {
	t.Helper()
	reg, err := sim.NewBlockRegistry(records)
	require.NoError(t, err)
	return reg
}

// MustEngine builds an engine over a fresh registry or fails the test.
func MustEngine(t testing.TB, records []sim.BlockRecord, cfg sim.EngineConfig, opts ...sim.Option) *sim.Engine {
	t.Helper()
	eng, err := sim.NewEngine(MustRegistry(t, records), nil, cfg, opts...)
	require.NoError(t, err)
	return eng
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t testing.TB, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
