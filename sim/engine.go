// sim/engine.go
package sim

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// Observation is [stage, time slot, occupancy_0, ..., occupancy_{N-1}].
type Observation []float64

// Stage returns the stage label carried in the observation.
func (o Observation) Stage() Stage { return Stage(o[0]) }

// TimeSlot returns the half-hour slot carried in the observation.
func (o Observation) TimeSlot() int { return int(o[1]) }

// Occupancy returns the per-block occupancy part of the observation.
func (o Observation) Occupancy() []float64 { return o[2:] }

// StepInfo carries diagnostics for one Step. Nothing in it feeds the reward
// or the next observation.
type StepInfo struct {
	Step         int
	Date         time.Time
	Spawned      int     // vehicles that arrived this step
	Parked       int     // arrivals that found a space
	Unparked     int     // arrivals that exhausted their search
	Retired      int     // vehicles from earlier steps that left
	Fees         float64 // sum of fees of parked arrivals
	CruisingCost float64 // sum of cruising time cost of parked arrivals
	LossCost     float64 // sum of loss penalties of unparked arrivals
}

// StepResult is the outcome of Engine.Step.
type StepResult struct {
	Observation Observation
	Reward      float64
	Done        bool
	Info        StepInfo
}

// StepEvent is delivered to observers after every successful Step.
type StepEvent struct {
	Result   StepResult
	Action   []float64
	Arrivals []Vehicle // this step's arrivals in their final state
}

// StepObserver receives episode boundaries and completed steps. Observers run
// synchronously inside Reset/Step and must not call back into the engine.
type StepObserver interface {
	ObserveReset(obs Observation)
	ObserveStep(ev StepEvent)
}

// UniformSource yields uniform samples in [0, 1). *rand.Rand satisfies it.
type UniformSource interface {
	Float64() float64
}

// Engine is a single-trajectory parking search simulation. It is not safe for
// concurrent use; parallel rollouts use one Engine per goroutine.
type Engine struct {
	cfg         EngineConfig
	registry    *BlockRegistry
	demandTable *DemandTable
	demand      DemandGenerator
	classify    StageClassifier
	rng         *PartitionedRNG
	uniform     UniformSource // overrides the choice stream when set
	clock       *Clock
	pool        *VehiclePool
	stage       Stage
	slot        int
	observers   []StepObserver
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithDemandGenerator replaces the generator selected by EngineConfig.Demand.
func WithDemandGenerator(g DemandGenerator) Option {
	return func(e *Engine) { e.demand = g }
}

// WithStageClassifier replaces ClassifyStage.
func WithStageClassifier(c StageClassifier) Option {
	return func(e *Engine) { e.classify = c }
}

// WithObserver registers a StepObserver. May be given more than once.
func WithObserver(o StepObserver) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithUniformSource makes the choice process draw from src instead of the
// seeded choice stream.
func WithUniformSource(src UniformSource) Option {
	return func(e *Engine) { e.uniform = src }
}

// NewEngine builds an engine over registry. The engine takes ownership of the
// registry's occupancy state; pass registry.Clone() to share one block table
// between engines. demandTable may be nil.
func NewEngine(registry *BlockRegistry, demandTable *DemandTable, cfg EngineConfig, opts ...Option) (*Engine, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, fmt.Errorf("%w: engine needs at least one block", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		registry:    registry,
		demandTable: demandTable,
		classify:    ClassifyStage,
		rng:         NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		clock:       NewClock(cfg.Calendar.Epoch, cfg.Calendar.Period),
		pool:        NewVehiclePool(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.demand == nil {
		g, err := newDemandGenerator(cfg.Demand, demandTable, registry)
		if err != nil {
			return nil, err
		}
		e.demand = g
	}
	e.Reset()
	return e, nil
}

func newDemandGenerator(dc DemandConfig, table *DemandTable, reg *BlockRegistry) (DemandGenerator, error) {
	switch dc.Mode {
	case "", DemandConstant:
		return &ConstantDemand{PerBlock: int(dc.PerBlock)}, nil
	case DemandTableMode:
		return NewTableDemand(table, reg, int(dc.PerBlock))
	case DemandPoisson:
		return &PoissonDemand{Mean: dc.PerBlock}, nil
	default:
		return nil, fmt.Errorf("%w: unknown demand mode %q", ErrInvalidConfig, dc.Mode)
	}
}

// Seed reseeds every random stream owned by the engine. It does not reset
// the episode.
func (e *Engine) Seed(seed int64) {
	e.cfg.Seed = seed
	e.rng.Reseed(NewSimulationKey(seed))
}

// Reset clears all vehicles, empties every block and rewinds the clock to its
// epoch. Returns the initial observation.
func (e *Engine) Reset() Observation {
	e.pool.Reset()
	e.registry.ResetAll()
	e.clock.Reset()
	e.stage = e.classify(e.clock.Now)
	e.slot = e.clock.TimeSlot()

	obs := e.observation()
	for _, o := range e.observers {
		o.ObserveReset(obs)
	}
	return obs
}

// Step advances the simulation one period using action as per-block prices.
// An invalid action or demand vector is rejected before any state changes.
func (e *Engine) Step(action []float64) (StepResult, error) {
	if err := e.validateAction(action); err != nil {
		return StepResult{}, err
	}

	// demand is drawn for the upcoming period and checked before mutation
	next := e.clock.Now.Add(e.clock.Period)
	nextStage := e.classify(next)
	nextSlot := TimeSlotOf(next)
	demand := e.demand.Demand(DemandContext{
		Step:      e.clock.Steps + 1,
		Date:      next,
		TimeSlot:  nextSlot,
		Stage:     nextStage,
		NumBlocks: e.registry.Len(),
	}, e.rng.ForSubsystem(SubsystemDemand))
	if err := e.validateDemand(demand); err != nil {
		return StepResult{}, err
	}

	// a strict retire failure leaves the pool untouched, so it runs before the clock moves
	retired, err := e.pool.Retire(e.registry, e.cfg.StrictInvariants)
	if err != nil {
		return StepResult{}, err
	}

	e.clock.Advance()
	e.stage, e.slot = nextStage, nextSlot

	first := e.pool.Spawn(demand, e.clock.Steps)
	arrivals := e.pool.Vehicles[first:]
	if err := e.runChoice(arrivals, action); err != nil {
		return StepResult{}, err
	}

	info := StepInfo{Step: e.clock.Steps, Date: e.clock.Now, Spawned: len(arrivals), Retired: retired}
	reward := e.stepReward(arrivals, &info)

	var snapshot []Vehicle
	if len(e.observers) > 0 {
		snapshot = make([]Vehicle, len(arrivals))
		for i, v := range arrivals {
			snapshot[i] = *v
		}
	}
	e.pool.DropUnparked()

	res := StepResult{
		Observation: e.observation(),
		Reward:      reward,
		Done:        e.Done(),
		Info:        info,
	}
	logrus.Debugf("[step %05d] %s stage=%s slot=%02d spawned=%d parked=%d unparked=%d retired=%d reward=%.4f",
		info.Step, info.Date.Format(time.RFC3339), e.stage, e.slot, info.Spawned, info.Parked, info.Unparked, info.Retired, reward)

	if len(e.observers) > 0 {
		ev := StepEvent{Result: res, Action: append([]float64(nil), action...), Arrivals: snapshot}
		for _, o := range e.observers {
			o.ObserveStep(ev)
		}
	}
	return res, nil
}

// stepReward folds over this step's arrivals only; vehicles parked in earlier
// steps were already charged when they parked.
func (e *Engine) stepReward(arrivals []*Vehicle, info *StepInfo) float64 {
	reward := 0.0
	for _, v := range arrivals {
		if v.Parked() {
			cruise := v.CruisingDist / e.cfg.Cost.Speed * e.cfg.Cost.VOT
			reward += v.Fee - cruise
			info.Parked++
			info.Fees += v.Fee
			info.CruisingCost += cruise
		} else {
			reward -= e.cfg.Cost.LossCost
			info.Unparked++
			info.LossCost += e.cfg.Cost.LossCost
		}
	}
	return reward
}

func (e *Engine) validateAction(action []float64) error {
	if len(action) != e.registry.Len() {
		return fmt.Errorf("%w: got %d prices for %d blocks", ErrActionLength, len(action), e.registry.Len())
	}
	for i, p := range action {
		if !isFinite(p) || p < 0 {
			return fmt.Errorf("%w: action[%d] = %v", ErrInvalidPrice, i, p)
		}
	}
	return nil
}

func (e *Engine) validateDemand(demand []int) error {
	if len(demand) != e.registry.Len() {
		return fmt.Errorf("%w: demand generator returned %d counts for %d blocks", ErrInvalidConfig, len(demand), e.registry.Len())
	}
	for i, d := range demand {
		if d < 0 {
			return fmt.Errorf("%w: demand[%d] = %d is negative", ErrInvalidConfig, i, d)
		}
	}
	return nil
}

func (e *Engine) observation() Observation {
	obs := make(Observation, 2+e.registry.Len())
	obs[0] = float64(e.stage)
	obs[1] = float64(e.slot)
	for i := 0; i < e.registry.Len(); i++ {
		obs[2+i] = float64(e.registry.Block(i).Occupancy())
	}
	return obs
}

func (e *Engine) choiceSource() UniformSource {
	if e.uniform != nil {
		return e.uniform
	}
	return e.rng.ForSubsystem(SubsystemChoice)
}

// Done reports whether the clock has reached the terminal date.
func (e *Engine) Done() bool {
	return !e.clock.Now.Before(e.cfg.Calendar.TerminalDate)
}

// ObsDim returns the observation length, 2 + number of blocks.
func (e *Engine) ObsDim() int { return 2 + e.registry.Len() }

// ActDim returns the action length, the number of blocks.
func (e *Engine) ActDim() int { return e.registry.Len() }

// Date returns the current simulation date.
func (e *Engine) Date() time.Time { return e.clock.Now }

// StepCount returns the number of steps taken since the last Reset.
func (e *Engine) StepCount() int { return e.clock.Steps }

// Stage returns the current stage label.
func (e *Engine) Stage() Stage { return e.stage }

// TimeSlot returns the current half-hour slot.
func (e *Engine) TimeSlot() int { return e.slot }

// Registry returns the engine's block registry.
func (e *Engine) Registry() *BlockRegistry { return e.registry }

// DemandTable returns the table passed at construction (may be nil).
func (e *Engine) DemandTable() *DemandTable { return e.demandTable }

// Config returns the engine configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

// Vehicles returns value copies of the active vehicle pool.
func (e *Engine) Vehicles() []Vehicle { return e.pool.Snapshot() }

// RNG returns the engine-owned partitioned RNG. Baseline policies draw from
// their own subsystem so they never perturb the choice stream.
func (e *Engine) RNG() *PartitionedRNG { return e.rng }

func (e *Engine) String() string {
	return fmt.Sprintf("At %s (step %d), there are %d blocks and %d vehicles.",
		e.clock.Now.Format(time.RFC3339), e.clock.Steps, e.registry.Len(), e.pool.Len())
}

var _ UniformSource = (*rand.Rand)(nil)
