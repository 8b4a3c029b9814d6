package sim

import "fmt"

// runChoice runs the bounded search for this step's arrivals. Each round, every
// still-searching arrival makes one attempt, in pool order. Vehicles still
// searching after the last round become Unparked.
func (e *Engine) runChoice(arrivals []*Vehicle, price []float64) error {
	src := e.choiceSource()
	for round := 0; round < e.cfg.Choice.SearchRounds(); round++ {
		searching := 0
		for _, v := range arrivals {
			if v.State != VehicleSearching {
				continue
			}
			searching++
			if err := e.attempt(v, price, src); err != nil {
				return err
			}
		}
		if searching == 0 {
			break
		}
	}
	for _, v := range arrivals {
		if v.State == VehicleSearching {
			v.State = VehicleUnparked
		}
	}
	return nil
}

// attempt is one transition of the per-vehicle search state machine:
// Searching(rank) -> Parked | Searching(rank+1) | Unparked.
//
// A uniform draw is consumed only when the attempted block has a free space.
// On moving on, CruisingDist becomes the distance from the block just tried
// to the next block in the origin's ranking.
func (e *Engine) attempt(v *Vehicle, price []float64, src UniformSource) error {
	target, ok := e.registry.CandidateAt(v.Origin, v.Rank)
	if !ok {
		v.State = VehicleUnparked
		return nil
	}

	if !e.registry.IsFull(target) && src.Float64() > e.cfg.Choice.RejectProb {
		if err := e.registry.Increment(target); err != nil {
			return fmt.Errorf("parking vehicle %d: %w", v.ID, err)
		}
		v.State = VehicleParked
		v.Block = target
		v.RemainingTime = e.cfg.Choice.ParkDuration
		v.Fee = float64(v.RemainingTime) * price[target]
		return nil
	}

	v.Rank++
	next, ok := e.registry.CandidateAt(v.Origin, v.Rank)
	if !ok {
		v.State = VehicleUnparked
		return nil
	}
	v.CruisingDist = e.registry.Distance(target, next)
	return nil
}
