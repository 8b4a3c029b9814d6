package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbsim/curbsim/sim"
	simtest "github.com/curbsim/curbsim/sim/internal/testutil"
)

func TestCollector_CountsEngineActivity(t *testing.T) {
	// GIVEN a collector observing a 4-block engine with one space each
	c, err := NewCollector(4)
	require.NoError(t, err)
	eng := simtest.MustEngine(t, simtest.GridRecords(4, 1), simtest.ShortConfig(5, 3), sim.WithObserver(c.Observer(0)))

	// WHEN three steps run with one arrival per block each
	var spawned, parked, unparked int
	for !eng.Done() {
		res, err := eng.Step([]float64{1, 1, 1, 1})
		require.NoError(t, err)
		spawned += res.Info.Spawned
		parked += res.Info.Parked
		unparked += res.Info.Unparked
	}

	// THEN the counters match the step diagnostics
	assert.Equal(t, 1.0, testutil.ToFloat64(c.episodes.WithLabelValues("0")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.steps.WithLabelValues("0")))
	assert.Equal(t, float64(spawned), testutil.ToFloat64(c.vehicles.WithLabelValues("0", OutcomeSpawned)))
	assert.Equal(t, float64(parked), testutil.ToFloat64(c.vehicles.WithLabelValues("0", OutcomeParked)))
	assert.Equal(t, float64(unparked), testutil.ToFloat64(c.vehicles.WithLabelValues("0", OutcomeUnparked)))
	assert.Equal(t, float64(eng.Registry().TotalOccupancy())/4, testutil.ToFloat64(c.occupancy.WithLabelValues("0")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.reward))
}

func TestCollector_WorkersAreLabelledSeparately(t *testing.T) {
	c, err := NewCollector(2)
	require.NoError(t, err)
	for w := 0; w < 2; w++ {
		eng := simtest.MustEngine(t, simtest.GridRecords(2, 1), simtest.ShortConfig(int64(w), 2), sim.WithObserver(c.Observer(w)))
		for !eng.Done() {
			_, err := eng.Step([]float64{0, 0})
			require.NoError(t, err)
		}
	}

	expected := `
# HELP curbsim_steps_total Simulation steps taken
# TYPE curbsim_steps_total counter
curbsim_steps_total{worker="0"} 2
curbsim_steps_total{worker="1"} 2
`
	assert.NoError(t, testutil.CollectAndCompare(c.steps, strings.NewReader(expected)))
}

func TestNewCollectorWithRegisterer_ReusesExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewCollectorWithRegisterer(reg, 1)
	require.NoError(t, err)
	b, err := NewCollectorWithRegisterer(reg, 1)
	require.NoError(t, err)

	a.Observer(0).ObserveReset(nil)
	b.Observer(0).ObserveReset(nil)
	assert.Equal(t, 2.0, testutil.ToFloat64(a.episodes.WithLabelValues("0")))
	assert.Nil(t, a.Registry())
}

func TestCollector_HandlerServesMetrics(t *testing.T) {
	c, err := NewCollector(1)
	require.NoError(t, err)
	c.Observer(3).ObserveReset(nil)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `curbsim_episodes_total{worker="3"} 1`)
}

func TestCollector_ServeStopsOnCancel(t *testing.T) {
	c, err := NewCollector(1)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}
