// Package policy provides baseline pricing policies that drive an engine
// during rollouts. Learning policies live outside this module; anything with
// a Price method can stand in for these.
package policy

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/curbsim/curbsim/sim"
)

// PricingPolicy maps an observation to one non-negative price per block.
type PricingPolicy interface {
	Price(obs sim.Observation) []float64
}

// Config selects and parameterizes a baseline policy.
type Config struct {
	Name string `yaml:"name"`

	// Price is the constant price, the lower bound of uniform-random and the
	// base price of occupancy-responsive.
	Price float64 `yaml:"price"`

	// MaxPrice caps uniform-random and occupancy-responsive.
	MaxPrice float64 `yaml:"max_price"`

	// TargetOccupancy is the occupied fraction of a block above which
	// occupancy-responsive starts raising its price.
	TargetOccupancy float64 `yaml:"target_occupancy"`
}

// Policy names accepted by NewPricingPolicy.
const (
	NameConstant            = "constant"
	NameUniformRandom       = "uniform-random"
	NameOccupancyResponsive = "occupancy-responsive"
)

// ValidNames lists the registered policy names.
func ValidNames() []string {
	return []string{NameConstant, NameUniformRandom, NameOccupancyResponsive}
}

// DefaultConfig returns a constant policy charging 1.0 per period.
func DefaultConfig() Config {
	return Config{Name: NameConstant, Price: 1, MaxPrice: 4, TargetOccupancy: 0.85}
}

// Constant charges the same price at every block.
type Constant struct {
	Value  float64
	Blocks int
}

func (c *Constant) Price(_ sim.Observation) []float64 {
	out := make([]float64, c.Blocks)
	for i := range out {
		out[i] = c.Value
	}
	return out
}

// UniformRandom draws every block's price independently from [Low, High).
type UniformRandom struct {
	Low, High float64
	Blocks    int
	rng       *rand.Rand
}

// NewUniformRandom returns a policy drawing from rng.
func NewUniformRandom(low, high float64, blocks int, rng *rand.Rand) *UniformRandom {
	return &UniformRandom{Low: low, High: high, Blocks: blocks, rng: rng}
}

func (u *UniformRandom) Price(_ sim.Observation) []float64 {
	out := make([]float64, u.Blocks)
	for i := range out {
		out[i] = u.Low + u.rng.Float64()*(u.High-u.Low)
	}
	return out
}

// OccupancyResponsive charges Base at blocks at or below Target occupancy and
// ramps linearly to Max as a block fills up.
type OccupancyResponsive struct {
	Base, Max  float64
	Target     float64
	Capacities []int
}

func (o *OccupancyResponsive) Price(obs sim.Observation) []float64 {
	occ := obs.Occupancy()
	out := make([]float64, len(o.Capacities))
	for i, capacity := range o.Capacities {
		out[i] = o.Base
		ratio := occ[i] / float64(capacity)
		if ratio <= o.Target || o.Target >= 1 {
			continue
		}
		excess := (ratio - o.Target) / (1 - o.Target)
		out[i] = math.Min(o.Max, o.Base+excess*(o.Max-o.Base))
	}
	return out
}

// NewPricingPolicy builds the named policy for eng. Randomized policies draw
// from the engine's "policy" RNG subsystem so they never shift the choice
// stream.
func NewPricingPolicy(cfg Config, eng *sim.Engine) (PricingPolicy, error) {
	if math.IsNaN(cfg.Price) || math.IsInf(cfg.Price, 0) || cfg.Price < 0 {
		return nil, fmt.Errorf("%w: policy price must be finite and non-negative, got %v", sim.ErrInvalidPrice, cfg.Price)
	}
	n := eng.ActDim()
	switch cfg.Name {
	case "", NameConstant:
		return &Constant{Value: cfg.Price, Blocks: n}, nil
	case NameUniformRandom:
		if err := checkMax(cfg); err != nil {
			return nil, err
		}
		return NewUniformRandom(cfg.Price, cfg.MaxPrice, n, eng.RNG().ForSubsystem(sim.SubsystemPolicy)), nil
	case NameOccupancyResponsive:
		if err := checkMax(cfg); err != nil {
			return nil, err
		}
		if cfg.TargetOccupancy < 0 || cfg.TargetOccupancy > 1 {
			return nil, fmt.Errorf("%w: target occupancy must be in [0, 1], got %v", sim.ErrInvalidConfig, cfg.TargetOccupancy)
		}
		return &OccupancyResponsive{
			Base:       cfg.Price,
			Max:        cfg.MaxPrice,
			Target:     cfg.TargetOccupancy,
			Capacities: eng.Registry().Capacities(),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown pricing policy %q; valid policies: %v", sim.ErrInvalidConfig, cfg.Name, ValidNames())
	}
}

func checkMax(cfg Config) error {
	if math.IsNaN(cfg.MaxPrice) || math.IsInf(cfg.MaxPrice, 0) || cfg.MaxPrice < cfg.Price {
		return fmt.Errorf("%w: max price %v must be finite and at least price %v", sim.ErrInvalidPrice, cfg.MaxPrice, cfg.Price)
	}
	return nil
}
