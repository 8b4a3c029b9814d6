// Package trace records episode trajectories and per-vehicle parking
// decisions by observing an engine. Records are plain data and can be
// streamed as JSON lines for offline analysis.
package trace

import "time"

// StepRecord captures one engine transition: the observation after the step,
// the prices that drove it and the reward it produced.
type StepRecord struct {
	Episode     string    `json:"episode"`
	Step        int       `json:"step"`
	Date        time.Time `json:"date"`
	Observation []float64 `json:"observation"`
	Action      []float64 `json:"action"`
	Reward      float64   `json:"reward"`
	Done        bool      `json:"done"`
}

// ParkingRecord captures the search outcome of one arriving vehicle.
type ParkingRecord struct {
	Episode      string  `json:"episode"`
	Step         int     `json:"step"`
	VehicleID    int64   `json:"vehicle_id"`
	Origin       int     `json:"origin"`
	Block        int     `json:"block"` // -1 when unparked
	Rank         int     `json:"rank"`
	Outcome      string  `json:"outcome"`
	CruisingDist float64 `json:"cruising_dist_km"`
	Fee          float64 `json:"fee"`
}
