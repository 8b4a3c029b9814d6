// Tracks episode-wide parking metrics such as arrivals, parking success,
// fees collected and occupancy over time.

package sim

import "fmt"

// Metrics aggregates statistics about one episode for final reporting.
// It implements StepObserver; Reset starts a new episode.
type Metrics struct {
	Steps         int
	TotalReward   float64
	Spawned       int
	Parked        int
	Unparked      int
	Retired       int
	Fees          float64
	CruisingCost  float64
	LossCost      float64
	OccupancySum  float64 // sum over steps of total occupancy
	PeakOccupancy int     // max simultaneously occupied spaces
	Capacity      int     // total spaces, set by the caller for utilization

	MinPrice float64
	MaxPrice float64
}

// NewMetrics returns zeroed metrics for a registry with the given total capacity.
func NewMetrics(capacity int) *Metrics {
	return &Metrics{Capacity: capacity}
}

func (m *Metrics) ObserveReset(_ Observation) {
	capacity := m.Capacity
	*m = Metrics{Capacity: capacity}
}

func (m *Metrics) ObserveStep(ev StepEvent) {
	info := ev.Result.Info
	m.Steps++
	m.TotalReward += ev.Result.Reward
	m.Spawned += info.Spawned
	m.Parked += info.Parked
	m.Unparked += info.Unparked
	m.Retired += info.Retired
	m.Fees += info.Fees
	m.CruisingCost += info.CruisingCost
	m.LossCost += info.LossCost

	occ := 0
	for _, o := range ev.Result.Observation.Occupancy() {
		occ += int(o)
	}
	m.OccupancySum += float64(occ)
	m.PeakOccupancy = max(m.PeakOccupancy, occ)

	for i, p := range ev.Action {
		if m.Steps == 1 && i == 0 {
			m.MinPrice, m.MaxPrice = p, p
			continue
		}
		m.MinPrice = min(m.MinPrice, p)
		m.MaxPrice = max(m.MaxPrice, p)
	}
}

// ParkingRate returns the fraction of arrivals that found a space.
func (m *Metrics) ParkingRate() float64 {
	if m.Spawned == 0 {
		return 0
	}
	return float64(m.Parked) / float64(m.Spawned)
}

// MeanOccupancy returns the average number of occupied spaces per step.
func (m *Metrics) MeanOccupancy() float64 {
	if m.Steps == 0 {
		return 0
	}
	return m.OccupancySum / float64(m.Steps)
}

// Utilization returns mean occupancy as a fraction of total capacity.
func (m *Metrics) Utilization() float64 {
	if m.Capacity == 0 {
		return 0
	}
	return m.MeanOccupancy() / float64(m.Capacity)
}

// Print displays aggregated metrics at the end of an episode.
func (m *Metrics) Print() {
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Steps                : %d\n", m.Steps)
	fmt.Printf("Total Reward         : %.4f\n", m.TotalReward)
	fmt.Printf("Arrivals             : %d\n", m.Spawned)
	if m.Spawned > 0 {
		fmt.Printf("Parked               : %d (%.2f%%)\n", m.Parked, 100*m.ParkingRate())
		fmt.Printf("Unparked             : %d\n", m.Unparked)
		fmt.Printf("Fees Collected       : %.2f\n", m.Fees)
		fmt.Printf("Cruising Cost        : %.4f\n", m.CruisingCost)
		fmt.Printf("Loss Cost            : %.2f\n", m.LossCost)
		fmt.Printf("Mean Occupancy       : %.2f spaces (%.2f%% of %d)\n", m.MeanOccupancy(), 100*m.Utilization(), m.Capacity)
		fmt.Printf("Peak Occupancy       : %d spaces\n", m.PeakOccupancy)
		fmt.Printf("Price Range          : [%.2f, %.2f]\n", m.MinPrice, m.MaxPrice)
	}
}
