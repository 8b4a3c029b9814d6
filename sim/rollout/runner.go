// Package rollout evaluates a pricing policy over many episodes, running
// independent engines on parallel workers.
package rollout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/curbsim/curbsim/sim"
	"github.com/curbsim/curbsim/sim/policy"
)

// Config controls the shape of a rollout.
type Config struct {
	Workers       int           `yaml:"workers"`
	Episodes      int           `yaml:"episodes"`       // per worker
	EpisodeLength int           `yaml:"episode_length"` // max steps; 0 runs to the terminal date
	Policy        policy.Config `yaml:"policy"`
}

// DefaultConfig runs one worker for one episode of 48 steps (a day).
func DefaultConfig() Config {
	return Config{Workers: 1, Episodes: 1, EpisodeLength: sim.SlotsPerDay, Policy: policy.DefaultConfig()}
}

// Validate checks worker and episode counts.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", sim.ErrInvalidConfig, c.Workers)
	}
	if c.Episodes < 1 {
		return fmt.Errorf("%w: episodes must be >= 1, got %d", sim.ErrInvalidConfig, c.Episodes)
	}
	if c.EpisodeLength < 0 {
		return fmt.Errorf("%w: episode length must be >= 0, got %d", sim.ErrInvalidConfig, c.EpisodeLength)
	}
	return nil
}

// EpisodeResult summarizes one finished episode.
type EpisodeResult struct {
	Worker        int     `json:"worker"`
	Episode       int     `json:"episode"`
	Seed          int64   `json:"seed"`
	Return        float64 `json:"return"`
	Length        int     `json:"length"`
	MeanOccupancy float64 `json:"mean_occupancy"` // fraction of total capacity
	ParkingRate   float64 `json:"parking_rate"`
	MinAction     float64 `json:"min_action"`
	MaxAction     float64 `json:"max_action"`
}

// EvalReport aggregates all episodes of a rollout.
type EvalReport struct {
	Episodes      int             `json:"episodes"`
	AverageReturn float64         `json:"average_return"`
	StdReturn     float64         `json:"std_return"`
	MaxReturn     float64         `json:"max_return"`
	MinReturn     float64         `json:"min_return"`
	AverageEpLen  float64         `json:"average_ep_len"`
	MaxAction     float64         `json:"max_action"`
	MinAction     float64         `json:"min_action"`
	MeanOccupancy float64         `json:"mean_occupancy"`
	Results       []EpisodeResult `json:"results"`
}

// ObserverFactory returns extra observers for one worker's engine. Observers
// shared between workers must be safe for concurrent use.
type ObserverFactory func(worker int) []sim.StepObserver

// Runner owns the shared, read-only inputs of a rollout.
type Runner struct {
	registry  *sim.BlockRegistry
	demand    *sim.DemandTable
	engineCfg sim.EngineConfig
	cfg       Config
	observers ObserverFactory
}

// NewRunner validates both configurations. registry is never stepped directly;
// every worker steps its own clone.
func NewRunner(registry *sim.BlockRegistry, demand *sim.DemandTable, engineCfg sim.EngineConfig, cfg Config) (*Runner, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, fmt.Errorf("%w: rollout needs at least one block", sim.ErrInvalidConfig)
	}
	if err := engineCfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{registry: registry, demand: demand, engineCfg: engineCfg, cfg: cfg}, nil
}

// WithObservers sets the factory consulted when each worker builds its engine.
func (r *Runner) WithObservers(f ObserverFactory) *Runner {
	r.observers = f
	return r
}

// WorkerSeed returns the engine seed of worker id. Seeds are derived from the
// base seed through the worker's RNG subsystem so they do not depend on
// scheduling.
func WorkerSeed(base int64, id int) int64 {
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(base))
	return rng.ForSubsystem(sim.SubsystemWorker(id)).Int63()
}

// Run executes every worker and aggregates their episodes. Results are
// ordered by worker then episode. A worker error or cancelled context stops
// that worker; the errors of all workers are joined.
func (r *Runner) Run(ctx context.Context) (*EvalReport, error) {
	results := make([][]EpisodeResult, r.cfg.Workers)
	errs := make([]error, r.cfg.Workers)

	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			results[id], errs[id] = r.runWorker(ctx, id)
		}(w)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	var all []EpisodeResult
	for _, rs := range results {
		all = append(all, rs...)
	}
	return Aggregate(all), nil
}

func (r *Runner) runWorker(ctx context.Context, id int) ([]EpisodeResult, error) {
	cfg := r.engineCfg
	cfg.Seed = WorkerSeed(r.engineCfg.Seed, id)

	reg := r.registry.Clone()
	metrics := sim.NewMetrics(reg.TotalCapacity())
	opts := []sim.Option{sim.WithObserver(metrics)}
	if r.observers != nil {
		for _, o := range r.observers(id) {
			opts = append(opts, sim.WithObserver(o))
		}
	}
	eng, err := sim.NewEngine(reg, r.demand, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("worker %d: %w", id, err)
	}
	pol, err := policy.NewPricingPolicy(r.cfg.Policy, eng)
	if err != nil {
		return nil, fmt.Errorf("worker %d: %w", id, err)
	}

	log := logrus.WithField("worker", id)
	out := make([]EpisodeResult, 0, r.cfg.Episodes)
	for ep := 0; ep < r.cfg.Episodes; ep++ {
		obs := eng.Reset()
		for steps := 0; !eng.Done() && (r.cfg.EpisodeLength == 0 || steps < r.cfg.EpisodeLength); steps++ {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("worker %d episode %d: %w", id, ep, err)
			}
			res, err := eng.Step(pol.Price(obs))
			if err != nil {
				return nil, fmt.Errorf("worker %d episode %d: %w", id, ep, err)
			}
			obs = res.Observation
		}
		result := EpisodeResult{
			Worker:        id,
			Episode:       ep,
			Seed:          cfg.Seed,
			Return:        metrics.TotalReward,
			Length:        metrics.Steps,
			MeanOccupancy: metrics.Utilization(),
			ParkingRate:   metrics.ParkingRate(),
			MinAction:     metrics.MinPrice,
			MaxAction:     metrics.MaxPrice,
		}
		log.Infof("episode %d: return=%.4f len=%d occupancy=%.3f", ep, result.Return, result.Length, result.MeanOccupancy)
		out = append(out, result)
	}
	return out, nil
}

// Aggregate folds episode results into an EvalReport. Returns a zero report
// with no results for an empty input.
func Aggregate(results []EpisodeResult) *EvalReport {
	report := &EvalReport{Episodes: len(results), Results: results}
	if len(results) == 0 {
		return report
	}

	returns := make([]float64, len(results))
	lengths := make([]float64, len(results))
	occupancy := make([]float64, len(results))
	minActions := make([]float64, len(results))
	maxActions := make([]float64, len(results))
	for i, r := range results {
		returns[i] = r.Return
		lengths[i] = float64(r.Length)
		occupancy[i] = r.MeanOccupancy
		minActions[i] = r.MinAction
		maxActions[i] = r.MaxAction
	}

	report.AverageReturn = stat.Mean(returns, nil)
	if len(returns) > 1 {
		report.StdReturn = stat.StdDev(returns, nil)
	}
	report.MaxReturn = floats.Max(returns)
	report.MinReturn = floats.Min(returns)
	report.AverageEpLen = stat.Mean(lengths, nil)
	report.MeanOccupancy = stat.Mean(occupancy, nil)
	report.MinAction = floats.Min(minActions)
	report.MaxAction = floats.Max(maxActions)
	return report
}
