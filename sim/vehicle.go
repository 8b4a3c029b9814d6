// Defines the Vehicle search agent and the pool of active vehicles.
// A vehicle is Searching until it parks or runs out of alternatives.

package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// VehicleState represents the lifecycle state of a vehicle's parking search.
type VehicleState string

const (
	VehicleSearching VehicleState = "searching"
	VehicleParked    VehicleState = "parked"
	VehicleUnparked  VehicleState = "unparked" // search exhausted; leaves at step end
)

// Vehicle is one driver looking for (or occupying) a curbside space.
type Vehicle struct {
	ID     int64 // unique within an episode, assigned in spawn order
	Origin int   // block the driver wants to park at
	Rank   int   // index into the origin's ranking of the block being attempted
	Block  int   // block the vehicle is parked at; -1 while not parked

	// CruisingDist is the distance from the last attempted block to the next
	// block in the ranking; only charged once the vehicle parks.
	CruisingDist  float64
	Fee           float64
	RemainingTime int // periods left before the parked vehicle leaves
	State         VehicleState
	SpawnStep     int
}

// Parked reports whether the vehicle currently occupies a space.
func (v *Vehicle) Parked() bool {
	return v.State == VehicleParked
}

func (v Vehicle) String() string {
	if v.Parked() {
		return fmt.Sprintf("Vehicle %d from block %d parked at block %d (rank %d, cruising %.4f km, fee %.2f, remaining %d)",
			v.ID, v.Origin, v.Block, v.Rank, v.CruisingDist, v.Fee, v.RemainingTime)
	}
	return fmt.Sprintf("Vehicle %d from block %d %s (rank %d)", v.ID, v.Origin, v.State, v.Rank)
}

// VehiclePool is the ordered collection of active vehicles.
type VehiclePool struct {
	Vehicles []*Vehicle
	nextID   int64
}

// NewVehiclePool returns an empty pool.
func NewVehiclePool() *VehiclePool {
	return &VehiclePool{Vehicles: make([]*Vehicle, 0)}
}

// Len returns the number of active vehicles.
func (p *VehiclePool) Len() int { return len(p.Vehicles) }

// ParkedCount returns the number of vehicles currently occupying a space.
func (p *VehiclePool) ParkedCount() int {
	n := 0
	for _, v := range p.Vehicles {
		if v.Parked() {
			n++
		}
	}
	return n
}

// Reset removes every vehicle and restarts ID assignment.
func (p *VehiclePool) Reset() {
	p.Vehicles = p.Vehicles[:0]
	p.nextID = 0
}

// Retire counts down every parked vehicle and removes those whose time has
// elapsed, freeing their space. Returns the number of vehicles retired.
// In strict mode a retirement that would free a space its block does not hold
// is reported before anything changes; otherwise it is logged and clamped.
func (p *VehiclePool) Retire(reg *BlockRegistry, strict bool) (int, error) {
	if strict {
		if err := p.checkRetire(reg); err != nil {
			return 0, err
		}
	}

	kept := make([]*Vehicle, 0, len(p.Vehicles))
	retired := 0
	for _, v := range p.Vehicles {
		if !v.Parked() {
			kept = append(kept, v)
			continue
		}
		v.RemainingTime--
		if v.RemainingTime > 0 {
			kept = append(kept, v)
			continue
		}
		retired++
		if err := reg.Decrement(v.Block); err != nil {
			logrus.Warnf("retiring vehicle %d: %v; occupancy clamped at 0", v.ID, err)
		}
	}
	p.Vehicles = kept
	return retired, nil
}

// checkRetire verifies that every block holds at least as many occupied
// spaces as vehicles about to leave it.
func (p *VehiclePool) checkRetire(reg *BlockRegistry) error {
	leaving := make(map[int]int)
	for _, v := range p.Vehicles {
		if !v.Parked() || v.RemainingTime > 1 {
			continue
		}
		leaving[v.Block]++
		if b := reg.Block(v.Block); leaving[v.Block] > b.Occupancy() {
			return fmt.Errorf("retiring vehicle %d: %w: %s", v.ID, ErrBlockEmpty, b.ID)
		}
	}
	return nil
}

// Spawn appends demand[b] new searching vehicles for each block b and returns the
// index of the first new vehicle, so p.Vehicles[first:] is exactly this step's arrivals.
func (p *VehiclePool) Spawn(demand []int, step int) int {
	first := len(p.Vehicles)
	for block, count := range demand {
		for k := 0; k < count; k++ {
			p.Vehicles = append(p.Vehicles, &Vehicle{
				ID:        p.nextID,
				Origin:    block,
				Block:     -1,
				State:     VehicleSearching,
				SpawnStep: step,
			})
			p.nextID++
		}
	}
	return first
}

// DropUnparked removes vehicles whose search ended without a space.
func (p *VehiclePool) DropUnparked() int {
	kept := p.Vehicles[:0]
	dropped := 0
	for _, v := range p.Vehicles {
		if v.State == VehicleUnparked {
			dropped++
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(p.Vehicles); i++ {
		p.Vehicles[i] = nil
	}
	p.Vehicles = kept
	return dropped
}

// Snapshot returns value copies of the active vehicles.
func (p *VehiclePool) Snapshot() []Vehicle {
	out := make([]Vehicle, len(p.Vehicles))
	for i, v := range p.Vehicles {
		out[i] = *v
	}
	return out
}
