// Package telemetry exports engine activity as Prometheus metrics.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/curbsim/curbsim/sim"
)

// Vehicle outcome label values.
const (
	OutcomeSpawned  = "spawned"
	OutcomeParked   = "parked"
	OutcomeUnparked = "unparked"
	OutcomeRetired  = "retired"
)

// Collector records steps, vehicle outcomes, rewards and occupancy. All
// methods are safe for concurrent use, so one Collector can serve every
// rollout worker.
type Collector struct {
	registry  *prometheus.Registry
	episodes  *prometheus.CounterVec
	steps     *prometheus.CounterVec
	vehicles  *prometheus.CounterVec
	fees      *prometheus.CounterVec
	reward    *prometheus.HistogramVec
	occupancy *prometheus.GaugeVec
	capacity  float64
}

// NewCollector registers the curbsim collectors on a fresh registry. capacity
// is the total number of spaces used to report the occupancy ratio.
func NewCollector(capacity int) (*Collector, error) {
	reg := prometheus.NewRegistry()
	c, err := NewCollectorWithRegisterer(reg, capacity)
	if err != nil {
		return nil, err
	}
	c.registry = reg
	return c, nil
}

// NewCollectorWithRegisterer registers the collectors on reg, reusing any that
// are already registered there.
func NewCollectorWithRegisterer(reg prometheus.Registerer, capacity int) (*Collector, error) {
	c := &Collector{
		episodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curbsim_episodes_total",
			Help: "Episodes started (engine resets)",
		}, []string{"worker"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curbsim_steps_total",
			Help: "Simulation steps taken",
		}, []string{"worker"}),
		vehicles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curbsim_vehicles_total",
			Help: "Vehicles by search outcome",
		}, []string{"worker", "outcome"}),
		fees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curbsim_fees_total",
			Help: "Parking fees charged to arriving vehicles",
		}, []string{"worker"}),
		reward: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "curbsim_step_reward",
			Help:    "Reward returned by each step",
			Buckets: []float64{-50, -20, -10, -5, -1, 0, 1, 5, 10, 20, 50},
		}, []string{"worker"}),
		occupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curbsim_occupancy_ratio",
			Help: "Occupied fraction of all spaces after the last step",
		}, []string{"worker"}),
		capacity: float64(capacity),
	}

	var err error
	if c.episodes, err = register(reg, c.episodes); err != nil {
		return nil, err
	}
	if c.steps, err = register(reg, c.steps); err != nil {
		return nil, err
	}
	if c.vehicles, err = register(reg, c.vehicles); err != nil {
		return nil, err
	}
	if c.fees, err = register(reg, c.fees); err != nil {
		return nil, err
	}
	if c.reward, err = register(reg, c.reward); err != nil {
		return nil, err
	}
	if c.occupancy, err = register(reg, c.occupancy); err != nil {
		return nil, err
	}
	return c, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, col C) (C, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

// Registry returns the registry created by NewCollector, or nil when the
// collector was registered elsewhere.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observer returns a sim.StepObserver labelling its samples with worker.
func (c *Collector) Observer(worker int) sim.StepObserver {
	return &workerObserver{c: c, worker: strconv.Itoa(worker)}
}

type workerObserver struct {
	c      *Collector
	worker string
}

func (w *workerObserver) ObserveReset(_ sim.Observation) {
	w.c.episodes.WithLabelValues(w.worker).Inc()
	w.c.occupancy.WithLabelValues(w.worker).Set(0)
}

func (w *workerObserver) ObserveStep(ev sim.StepEvent) {
	c, info := w.c, ev.Result.Info
	c.steps.WithLabelValues(w.worker).Inc()
	c.vehicles.WithLabelValues(w.worker, OutcomeSpawned).Add(float64(info.Spawned))
	c.vehicles.WithLabelValues(w.worker, OutcomeParked).Add(float64(info.Parked))
	c.vehicles.WithLabelValues(w.worker, OutcomeUnparked).Add(float64(info.Unparked))
	c.vehicles.WithLabelValues(w.worker, OutcomeRetired).Add(float64(info.Retired))
	c.fees.WithLabelValues(w.worker).Add(info.Fees)
	c.reward.WithLabelValues(w.worker).Observe(ev.Result.Reward)

	if c.capacity > 0 {
		occupied := 0.0
		for _, o := range ev.Result.Observation.Occupancy() {
			occupied += o
		}
		c.occupancy.WithLabelValues(w.worker).Set(occupied / c.capacity)
	}
}
