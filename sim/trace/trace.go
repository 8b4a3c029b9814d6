package trace

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/curbsim/curbsim/sim"
)

// TraceLevel controls the verbosity of trajectory recording.
type TraceLevel string

const (
	// TraceLevelNone disables recording.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelSteps records one StepRecord per transition.
	TraceLevelSteps TraceLevel = "steps"
	// TraceLevelDecisions additionally records every arrival's parking outcome.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelSteps:     true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects records across one or more episodes. It implements
// sim.StepObserver; every Reset opens a new episode with a fresh ID.
type SimulationTrace struct {
	Config   TraceConfig
	Episodes []string
	Steps    []StepRecord
	Parkings []ParkingRecord

	episode string
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:   config,
		Steps:    make([]StepRecord, 0),
		Parkings: make([]ParkingRecord, 0),
	}
}

// Enabled reports whether anything is recorded at this level.
func (st *SimulationTrace) Enabled() bool {
	return st.Config.Level == TraceLevelSteps || st.Config.Level == TraceLevelDecisions
}

// Episode returns the ID of the episode currently being recorded.
func (st *SimulationTrace) Episode() string {
	return st.episode
}

func (st *SimulationTrace) ObserveReset(_ sim.Observation) {
	if !st.Enabled() {
		return
	}
	st.episode = uuid.NewString()
	st.Episodes = append(st.Episodes, st.episode)
	logrus.Debugf("trace: episode %s started", st.episode)
}

func (st *SimulationTrace) ObserveStep(ev sim.StepEvent) {
	if !st.Enabled() {
		return
	}
	res := ev.Result
	st.RecordStep(StepRecord{
		Episode:     st.episode,
		Step:        res.Info.Step,
		Date:        res.Info.Date,
		Observation: append([]float64(nil), res.Observation...),
		Action:      ev.Action,
		Reward:      res.Reward,
		Done:        res.Done,
	})
	if st.Config.Level != TraceLevelDecisions {
		return
	}
	for _, v := range ev.Arrivals {
		st.RecordParking(ParkingRecord{
			Episode:      st.episode,
			Step:         res.Info.Step,
			VehicleID:    v.ID,
			Origin:       v.Origin,
			Block:        v.Block,
			Rank:         v.Rank,
			Outcome:      string(v.State),
			CruisingDist: v.CruisingDist,
			Fee:          v.Fee,
		})
	}
}

// RecordStep appends a step record.
func (st *SimulationTrace) RecordStep(record StepRecord) {
	st.Steps = append(st.Steps, record)
}

// RecordParking appends a parking decision record.
func (st *SimulationTrace) RecordParking(record ParkingRecord) {
	st.Parkings = append(st.Parkings, record)
}

// jsonLine is one line of the JSONL export.
type jsonLine struct {
	Kind    string         `json:"kind"`
	Step    *StepRecord    `json:"step,omitempty"`
	Parking *ParkingRecord `json:"parking,omitempty"`
}

// WriteJSONL writes every step record followed by its parking records, one
// JSON object per line, in recording order.
func (st *SimulationTrace) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	p := 0
	for i := range st.Steps {
		s := &st.Steps[i]
		if err := enc.Encode(jsonLine{Kind: "step", Step: s}); err != nil {
			return fmt.Errorf("writing step record: %w", err)
		}
		for p < len(st.Parkings) && st.Parkings[p].Episode == s.Episode && st.Parkings[p].Step == s.Step {
			if err := enc.Encode(jsonLine{Kind: "parking", Parking: &st.Parkings[p]}); err != nil {
				return fmt.Errorf("writing parking record: %w", err)
			}
			p++
		}
	}
	for ; p < len(st.Parkings); p++ {
		if err := enc.Encode(jsonLine{Kind: "parking", Parking: &st.Parkings[p]}); err != nil {
			return fmt.Errorf("writing parking record: %w", err)
		}
	}
	return nil
}

var _ sim.StepObserver = (*SimulationTrace)(nil)
