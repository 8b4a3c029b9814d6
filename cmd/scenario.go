package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/curbsim/curbsim/sim"
	"github.com/curbsim/curbsim/sim/rollout"
	"github.com/curbsim/curbsim/sim/trace"
)

// TraceSettings selects trajectory recording for a run.
type TraceSettings struct {
	Level string `yaml:"level"`
	Out   string `yaml:"out"` // JSONL destination; empty keeps the trace in memory
}

// Scenario is the full YAML run description. Every section is optional;
// omitted fields keep their defaults. Unknown keys are rejected.
type Scenario struct {
	Blocks      string           `yaml:"blocks"`
	Demand      string           `yaml:"demand"`
	Engine      sim.EngineConfig `yaml:"engine"`
	Rollout     rollout.Config   `yaml:"rollout"`
	Trace       TraceSettings    `yaml:"trace"`
	MetricsAddr string           `yaml:"metrics_addr"`
}

// DefaultScenario returns the reference model with a one-day constant-price
// rollout and tracing disabled.
func DefaultScenario() Scenario {
	return Scenario{
		Engine:  sim.DefaultEngineConfig(),
		Rollout: rollout.DefaultConfig(),
		Trace:   TraceSettings{Level: string(trace.TraceLevelNone)},
	}
}

// LoadScenario reads a scenario file over the defaults. An empty path returns
// the defaults.
func LoadScenario(path string) (Scenario, error) {
	if path == "" {
		return DefaultScenario(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes YAML with strict field checking: typos are errors.
func ParseScenario(data []byte) (Scenario, error) {
	sc := DefaultScenario()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("%w: parsing scenario yaml: %v", sim.ErrInvalidConfig, err)
	}
	return sc, sc.Validate()
}

// Validate checks every section.
func (sc *Scenario) Validate() error {
	if err := sc.Engine.Validate(); err != nil {
		return err
	}
	if err := sc.Rollout.Validate(); err != nil {
		return err
	}
	if !trace.IsValidTraceLevel(sc.Trace.Level) {
		return fmt.Errorf("%w: unknown trace level %q; valid: none, steps, decisions", sim.ErrInvalidConfig, sc.Trace.Level)
	}
	return nil
}

// applyFlagOverrides copies explicitly set flags over the scenario. Flags
// left at their defaults never overwrite scenario values.
func applyFlagOverrides(cmd *cobra.Command, sc *Scenario) {
	flags := cmd.Flags()
	if flags.Changed("blocks") {
		sc.Blocks = blocksPath
	}
	if flags.Changed("demand") {
		sc.Demand = demandPath
	}
	if flags.Changed("seed") {
		sc.Engine.Seed = seed
	}
	if flags.Changed("policy") {
		sc.Rollout.Policy.Name = policyName
	}
	if flags.Changed("price") {
		sc.Rollout.Policy.Price = price
	}
	if flags.Changed("max-price") {
		sc.Rollout.Policy.MaxPrice = maxPrice
	}
	if flags.Changed("target-occupancy") {
		sc.Rollout.Policy.TargetOccupancy = targetOccupancy
	}
	if flags.Changed("ep-len") {
		sc.Rollout.EpisodeLength = episodeLength
	}
	if flags.Changed("episodes") {
		sc.Rollout.Episodes = episodes
	}
	if flags.Changed("workers") {
		sc.Rollout.Workers = workers
	}
	if flags.Changed("trace-level") {
		sc.Trace.Level = traceLevel
	}
	if flags.Changed("trace-out") {
		sc.Trace.Out = traceOut
	}
	if flags.Changed("metrics-addr") {
		sc.MetricsAddr = metricsAddr
	}
}
