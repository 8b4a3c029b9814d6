package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbsim/curbsim/sim"
	"github.com/curbsim/curbsim/sim/internal/testutil"
)

func runEpisode(t *testing.T, st *SimulationTrace, steps int) {
	t.Helper()
	eng := testutil.MustEngine(t, testutil.GridRecords(4, 1), testutil.ShortConfig(3, steps), sim.WithObserver(st))
	prices := []float64{1, 1, 1, 1}
	for !eng.Done() {
		_, err := eng.Step(prices)
		require.NoError(t, err)
	}
}

func TestSimulationTrace_StepsLevel_RecordsOnlySteps(t *testing.T) {
	// GIVEN a trace at steps level attached to an engine
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelSteps})

	// WHEN a 3-step episode runs
	runEpisode(t, st, 3)

	// THEN one episode with three step records and no parking records is kept
	require.Len(t, st.Episodes, 1)
	_, err := uuid.Parse(st.Episodes[0])
	assert.NoError(t, err, "episode IDs are UUIDs")
	require.Len(t, st.Steps, 3)
	assert.Empty(t, st.Parkings)
	for i, s := range st.Steps {
		assert.Equal(t, i+1, s.Step)
		assert.Equal(t, st.Episodes[0], s.Episode)
		assert.Len(t, s.Observation, 6)
		assert.Equal(t, []float64{1, 1, 1, 1}, s.Action)
	}
	assert.True(t, st.Steps[2].Done)
}

func TestSimulationTrace_DecisionsLevel_RecordsEveryArrival(t *testing.T) {
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})
	runEpisode(t, st, 2)

	// default demand is one arrival per block per step
	require.Len(t, st.Parkings, 8)
	for _, p := range st.Parkings {
		switch p.Outcome {
		case string(sim.VehicleParked):
			assert.GreaterOrEqual(t, p.Block, 0)
		case string(sim.VehicleUnparked):
			assert.Equal(t, -1, p.Block)
		default:
			t.Fatalf("unexpected outcome %q", p.Outcome)
		}
	}
}

func TestSimulationTrace_NoneLevel_RecordsNothing(t *testing.T) {
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelNone})
	runEpisode(t, st, 2)
	assert.Empty(t, st.Episodes)
	assert.Empty(t, st.Steps)
	assert.Empty(t, st.Parkings)
}

func TestSimulationTrace_ResetOpensNewEpisode(t *testing.T) {
	// GIVEN a trace observing an engine
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelSteps})
	eng := testutil.MustEngine(t, testutil.GridRecords(2, 1), testutil.ShortConfig(1, 5), sim.WithObserver(st))

	// WHEN the engine is reset mid-episode
	_, err := eng.Step([]float64{0, 0})
	require.NoError(t, err)
	eng.Reset()
	_, err = eng.Step([]float64{0, 0})
	require.NoError(t, err)

	// THEN the records belong to two distinct episodes
	require.Len(t, st.Episodes, 2)
	assert.NotEqual(t, st.Episodes[0], st.Episodes[1])
	assert.Equal(t, st.Episodes[0], st.Steps[0].Episode)
	assert.Equal(t, st.Episodes[1], st.Steps[1].Episode)
	assert.Equal(t, st.Episodes[1], st.Episode())
}

func TestSimulationTrace_WriteJSONL_InterleavesParkings(t *testing.T) {
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})
	st.RecordStep(StepRecord{Episode: "e", Step: 1, Reward: 1})
	st.RecordParking(ParkingRecord{Episode: "e", Step: 1, VehicleID: 0, Block: 2, Outcome: "parked"})
	st.RecordStep(StepRecord{Episode: "e", Step: 2, Reward: -5})
	st.RecordParking(ParkingRecord{Episode: "e", Step: 2, VehicleID: 1, Block: -1, Outcome: "unparked"})

	var buf bytes.Buffer
	require.NoError(t, st.WriteJSONL(&buf))

	var kinds []string
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		kinds = append(kinds, line["kind"].(string))
	}
	assert.Equal(t, []string{"step", "parking", "step", "parking"}, kinds)
}

func TestIsValidTraceLevel(t *testing.T) {
	for _, level := range []string{"", "none", "steps", "decisions"} {
		assert.True(t, IsValidTraceLevel(level), level)
	}
	for _, level := range []string{"all", "DECISIONS", "verbose"} {
		assert.False(t, IsValidTraceLevel(level), level)
	}
}
