// Package sim provides the curbside parking search simulation engine.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - block.go: parking blocks, occupancy tracking and ranked alternatives
//   - vehicle.go: vehicle search state machine and the active vehicle pool
//   - engine.go, choice.go: the Reset/Step contract and the bounded search process
//
// # Step
//
// Each Step advances the clock one period (30 minutes by default), retires
// vehicles whose parking time has elapsed, spawns arrivals from the
// DemandGenerator and lets every arrival search the blocks ranked by distance
// from its origin for up to MaxE-1 rounds. The reward is the sum over arrivals
// of fee minus cruising time cost for those that parked, and minus the loss
// penalty for those that did not.
//
// # Architecture
//
// Implementations outside the kernel live in sub-packages:
//   - sim/input/: block and demand table parsing (CSV, YAML)
//   - sim/policy/: baseline pricing policies for rollouts
//   - sim/rollout/: parallel episode runner, one Engine per worker
//   - sim/trace/: trajectory and parking decision recording
//   - sim/telemetry/: Prometheus collectors fed by StepObserver
//
// # Determinism
//
// Every Engine owns a PartitionedRNG keyed by EngineConfig.Seed. Two engines
// with the same seed, block table and action sequence produce identical
// observations and rewards.
package sim
