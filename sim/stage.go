package sim

import "time"

// Stage labels the policy regime in effect on a date. Values are ordered.
type Stage int

const (
	StagePreEvent Stage = iota
	StageShutdown
	StageReopen
	StageReclosure
	StageTierOrange
	StageTierYellow
	StageRollback
)

// NumStages is the number of distinct stage labels.
const NumStages = 7

var stageNames = [NumStages]string{
	"pre-event", "shutdown", "reopen", "reclosure", "tier-orange", "tier-yellow", "rollback",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= NumStages {
		return "unknown"
	}
	return stageNames[s]
}

// stageBreakpoints[k] is the first instant of Stage(k+1).
var stageBreakpoints = [NumStages - 1]time.Time{
	time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC),
	time.Date(2020, 5, 17, 0, 0, 0, 0, time.UTC),
	time.Date(2020, 7, 17, 0, 0, 0, 0, time.UTC),
	time.Date(2020, 9, 30, 0, 0, 0, 0, time.UTC),
	time.Date(2020, 10, 20, 0, 0, 0, 0, time.UTC),
	time.Date(2020, 11, 13, 0, 0, 0, 0, time.UTC),
}

// StageClassifier maps a date to its regime label. Must be pure.
type StageClassifier func(t time.Time) Stage

// ClassifyStage is the default StageClassifier. Each stage covers the half-open
// interval [breakpoint_k, breakpoint_k+1); dates before the first breakpoint are
// StagePreEvent and dates on or after the last are StageRollback.
func ClassifyStage(t time.Time) Stage {
	stage := StagePreEvent
	for k, bp := range stageBreakpoints {
		if t.Before(bp) {
			break
		}
		stage = Stage(k + 1)
	}
	return stage
}

// StageBreakpoint returns the first instant of stage s, or the zero time for StagePreEvent.
func StageBreakpoint(s Stage) time.Time {
	if s <= StagePreEvent || int(s) >= NumStages {
		return time.Time{}
	}
	return stageBreakpoints[s-1]
}
