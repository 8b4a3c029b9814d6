package sim

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_AggregatesEpisode(t *testing.T) {
	// GIVEN metrics observing a single-block engine
	m := NewMetrics(1)
	e := mustEngine(t, testRecords(1, 1), shortConfig(1, 10),
		WithObserver(m), WithUniformSource(&fixedUniform{draws: []float64{0.5}}))

	// WHEN two steps run: one parks, one is lost
	_, err := e.Step([]float64{3})
	require.NoError(t, err)
	_, err = e.Step([]float64{1})
	require.NoError(t, err)

	// THEN the totals reflect both steps
	assert.Equal(t, 2, m.Steps)
	assert.Equal(t, 1.0, m.TotalReward)
	assert.Equal(t, 2, m.Spawned)
	assert.Equal(t, 1, m.Parked)
	assert.Equal(t, 1, m.Unparked)
	assert.Equal(t, 6.0, m.Fees)
	assert.Equal(t, 5.0, m.LossCost)
	assert.Equal(t, 0.5, m.ParkingRate())
	assert.Equal(t, 1.0, m.MeanOccupancy())
	assert.Equal(t, 1.0, m.Utilization())
	assert.Equal(t, 1, m.PeakOccupancy)
	assert.Equal(t, 1.0, m.MinPrice)
	assert.Equal(t, 3.0, m.MaxPrice)

	// WHEN the engine resets
	e.Reset()

	// THEN a new episode starts from zero but keeps capacity
	assert.Equal(t, 0, m.Steps)
	assert.Equal(t, 1, m.Capacity)
}

func TestMetrics_Print(t *testing.T) {
	m := NewMetrics(10)
	m.Steps, m.Spawned, m.Parked = 4, 8, 6

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	m.Print()
	_ = w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)

	assert.Contains(t, buf.String(), "Simulation Metrics")
	assert.Contains(t, buf.String(), "75.00%")
}
