package sim

import (
	"fmt"
	"math"
	"time"
)

// Demand generator selectors for EngineConfig.DemandMode.
const (
	DemandConstant  = "constant" // PerBlock arrivals at every block (default)
	DemandTableMode = "table"    // conditioned on the demand table by (block, slot)
	DemandPoisson   = "poisson"  // Poisson arrivals with mean PerBlock
)

var validDemandModes = map[string]bool{
	"": true, DemandConstant: true, DemandTableMode: true, DemandPoisson: true,
}

// ChoiceConfig groups the parking choice model parameters.
type ChoiceConfig struct {
	MaxE         int     `yaml:"max_e"`         // search rounds per step are MaxE-1
	RejectProb   float64 `yaml:"reject_prob"`   // chance a driver passes on a free block
	ParkDuration int     `yaml:"park_duration"` // periods a parked vehicle stays
}

// CostConfig groups the reward model constants.
type CostConfig struct {
	Speed    float64 `yaml:"speed"`     // cruising speed, km per hour
	VOT      float64 `yaml:"vot"`       // value of time per hour cruised
	LossCost float64 `yaml:"loss_cost"` // penalty for a driver who never parks
}

// CalendarConfig groups simulation clock parameters.
type CalendarConfig struct {
	Epoch        time.Time     `yaml:"epoch"`
	TerminalDate time.Time     `yaml:"terminal_date"`
	Period       time.Duration `yaml:"period"`
}

// DemandConfig selects and parameterizes the demand generator.
type DemandConfig struct {
	Mode     string  `yaml:"mode"`
	PerBlock float64 `yaml:"per_block"` // constant count, table fallback, or Poisson mean
}

// EngineConfig is the full engine configuration.
type EngineConfig struct {
	Seed     int64          `yaml:"seed"`
	Choice   ChoiceConfig   `yaml:"choice"`
	Cost     CostConfig     `yaml:"cost"`
	Calendar CalendarConfig `yaml:"calendar"`
	Demand   DemandConfig   `yaml:"demand"`

	// StrictInvariants turns occupancy invariant violations into errors
	// instead of clamping them with a warning.
	StrictInvariants bool `yaml:"strict_invariants"`
}

// DefaultEngineConfig returns the reference model parameters.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Seed: 0,
		Choice: ChoiceConfig{
			MaxE:         10,
			RejectProb:   0.1,
			ParkDuration: 2,
		},
		Cost: CostConfig{
			Speed:    30,
			VOT:      0.1,
			LossCost: 5,
		},
		Calendar: CalendarConfig{
			Epoch:        time.Date(2019, 12, 1, 0, 0, 0, 0, time.UTC),
			TerminalDate: time.Date(2020, 11, 30, 0, 0, 0, 0, time.UTC),
			Period:       30 * time.Minute,
		},
		Demand: DemandConfig{
			Mode:     DemandConstant,
			PerBlock: 1,
		},
	}
}

// SearchRounds returns the number of choice rounds run per step.
func (c ChoiceConfig) SearchRounds() int {
	return c.MaxE - 1
}

// Validate checks that all fields hold usable values.
func (c *EngineConfig) Validate() error {
	if c.Choice.MaxE < 2 {
		return fmt.Errorf("%w: choice.max_e must be at least 2, got %d", ErrInvalidConfig, c.Choice.MaxE)
	}
	if !isFinite(c.Choice.RejectProb) || c.Choice.RejectProb < 0 || c.Choice.RejectProb >= 1 {
		return fmt.Errorf("%w: choice.reject_prob must be in [0, 1), got %v", ErrInvalidConfig, c.Choice.RejectProb)
	}
	if c.Choice.ParkDuration <= 0 {
		return fmt.Errorf("%w: choice.park_duration must be positive, got %d", ErrInvalidConfig, c.Choice.ParkDuration)
	}
	if err := validateFinitePositive("cost.speed", c.Cost.Speed); err != nil {
		return err
	}
	if !isFinite(c.Cost.VOT) || c.Cost.VOT < 0 {
		return fmt.Errorf("%w: cost.vot must be finite and non-negative, got %v", ErrInvalidConfig, c.Cost.VOT)
	}
	if !isFinite(c.Cost.LossCost) || c.Cost.LossCost < 0 {
		return fmt.Errorf("%w: cost.loss_cost must be finite and non-negative, got %v", ErrInvalidConfig, c.Cost.LossCost)
	}
	if c.Calendar.Period <= 0 {
		return fmt.Errorf("%w: calendar.period must be positive, got %s", ErrInvalidConfig, c.Calendar.Period)
	}
	if !c.Calendar.TerminalDate.After(c.Calendar.Epoch) {
		return fmt.Errorf("%w: calendar.terminal_date %s must be after epoch %s",
			ErrInvalidConfig, c.Calendar.TerminalDate.Format(time.RFC3339), c.Calendar.Epoch.Format(time.RFC3339))
	}
	if !validDemandModes[c.Demand.Mode] {
		return fmt.Errorf("%w: unknown demand.mode %q; valid: constant, table, poisson", ErrInvalidConfig, c.Demand.Mode)
	}
	if !isFinite(c.Demand.PerBlock) || c.Demand.PerBlock < 0 {
		return fmt.Errorf("%w: demand.per_block must be finite and non-negative, got %v", ErrInvalidConfig, c.Demand.PerBlock)
	}
	if c.Demand.Mode != DemandPoisson && c.Demand.PerBlock != math.Trunc(c.Demand.PerBlock) {
		return fmt.Errorf("%w: demand.per_block must be a whole number for mode %q, got %v", ErrInvalidConfig, c.Demand.Mode, c.Demand.PerBlock)
	}
	return nil
}

// EpisodeLength returns the number of steps from epoch until Done.
func (c *EngineConfig) EpisodeLength() int {
	span := c.Calendar.TerminalDate.Sub(c.Calendar.Epoch)
	return int((span + c.Calendar.Period - 1) / c.Calendar.Period)
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%w: %s must be a finite number, got %f", ErrInvalidConfig, name, val)
	}
	if val <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %f", ErrInvalidConfig, name, val)
	}
	return nil
}
