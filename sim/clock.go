package sim

import "time"

// SlotsPerDay is the number of half-hour time slots in a day.
const SlotsPerDay = 48

// Clock is the discrete simulation calendar, advanced one period per step.
type Clock struct {
	Epoch  time.Time
	Period time.Duration
	Now    time.Time
	Steps  int
}

// NewClock returns a clock positioned at epoch.
func NewClock(epoch time.Time, period time.Duration) *Clock {
	return &Clock{Epoch: epoch, Period: period, Now: epoch}
}

// Advance moves the clock forward one period.
func (c *Clock) Advance() {
	c.Now = c.Now.Add(c.Period)
	c.Steps++
}

// Reset returns the clock to its epoch.
func (c *Clock) Reset() {
	c.Now = c.Epoch
	c.Steps = 0
}

// TimeSlot returns the half-hour-of-day index (0-47) of the current time.
func (c *Clock) TimeSlot() int {
	return TimeSlotOf(c.Now)
}

// TimeSlotOf returns the half-hour-of-day index (0-47) of t.
func TimeSlotOf(t time.Time) int {
	return t.Hour()*2 + t.Minute()/30
}
