package sim

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fixedUniform replays the given draws in order, then repeats the last one.
type fixedUniform struct {
	draws []float64
	next  int
}

func (f *fixedUniform) Float64() float64 {
	if f.next >= len(f.draws) {
		return f.draws[len(f.draws)-1]
	}
	v := f.draws[f.next]
	f.next++
	return v
}

// countingUniform wraps a source and counts draws.
type countingUniform struct {
	src   UniformSource
	count int
}

func (c *countingUniform) Float64() float64 {
	c.count++
	return c.src.Float64()
}

// testRecords mirrors testutil.GridRecords, which package sim cannot import.
func testRecords(n, capacity int) []BlockRecord {
	records := make([]BlockRecord, n)
	for i := range records {
		records[i] = BlockRecord{
			ID:        fmt.Sprintf("blk_%03d", i),
			Longitude: -122.42 + 0.001*float64(i%5),
			Latitude:  37.77 + 0.001*float64(i/5),
			Capacity:  capacity,
		}
	}
	return records
}

// randomRecords scatters n blocks with random capacities over a few km.
func randomRecords(rng *rand.Rand, n int) []BlockRecord {
	records := make([]BlockRecord, n)
	for i := range records {
		records[i] = BlockRecord{
			ID:        fmt.Sprintf("rnd_%03d", i),
			Longitude: -122.45 + 0.05*rng.Float64(),
			Latitude:  37.75 + 0.05*rng.Float64(),
			Capacity:  1 + rng.Intn(4),
		}
	}
	return records
}

func mustRegistry(t testing.TB, records []BlockRecord) *BlockRegistry {
	t.Helper()
	reg, err := NewBlockRegistry(records)
	require.NoError(t, err)
	return reg
}

func mustEngine(t testing.TB, records []BlockRecord, cfg EngineConfig, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(mustRegistry(t, records), nil, cfg, opts...)
	require.NoError(t, err)
	return e
}

// shortConfig returns the default model with an episode of the given number of steps.
func shortConfig(seed int64, steps int) EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.Seed = seed
	cfg.Calendar.TerminalDate = cfg.Calendar.Epoch.Add(time.Duration(steps) * cfg.Calendar.Period)
	return cfg
}

func uniformPrices(n int, p float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = p
	}
	return out
}
