package trace

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	Episodes       int
	TotalSteps     int
	EpisodeReturns []float64 // summed reward per episode, in recording order
	MeanReturn     float64
	StdReturn      float64
	MeanStepReward float64

	Arrivals          int
	ParkedCount       int
	UnparkedCount     int
	ParkingRate       float64
	MeanCruisingDist  float64     // over parked arrivals
	MaxCruisingDist   float64
	MeanRank          float64     // ranking position at which parked arrivals found a space
	BlockDistribution map[int]int // block index → vehicles parked there
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{BlockDistribution: make(map[int]int)}
	if st == nil {
		return summary
	}

	summary.TotalSteps = len(st.Steps)
	if len(st.Steps) > 0 {
		rewards := make([]float64, len(st.Steps))
		index := make(map[string]int)
		for i, s := range st.Steps {
			rewards[i] = s.Reward
			ep, ok := index[s.Episode]
			if !ok {
				ep = len(summary.EpisodeReturns)
				index[s.Episode] = ep
				summary.EpisodeReturns = append(summary.EpisodeReturns, 0)
			}
			summary.EpisodeReturns[ep] += s.Reward
		}
		summary.Episodes = len(summary.EpisodeReturns)
		summary.MeanStepReward = stat.Mean(rewards, nil)
		if len(summary.EpisodeReturns) > 1 {
			summary.MeanReturn, summary.StdReturn = stat.MeanStdDev(summary.EpisodeReturns, nil)
		} else {
			summary.MeanReturn = summary.EpisodeReturns[0]
		}
	}

	var cruising, ranks []float64
	for _, p := range st.Parkings {
		summary.Arrivals++
		if p.Block < 0 {
			summary.UnparkedCount++
			continue
		}
		summary.ParkedCount++
		summary.BlockDistribution[p.Block]++
		cruising = append(cruising, p.CruisingDist)
		ranks = append(ranks, float64(p.Rank))
		summary.MaxCruisingDist = math.Max(summary.MaxCruisingDist, p.CruisingDist)
	}
	if summary.Arrivals > 0 {
		summary.ParkingRate = float64(summary.ParkedCount) / float64(summary.Arrivals)
	}
	if len(cruising) > 0 {
		summary.MeanCruisingDist = stat.Mean(cruising, nil)
		summary.MeanRank = stat.Mean(ranks, nil)
	}
	return summary
}
