package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeSlotOf_HalfHours(t *testing.T) {
	day := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		offset time.Duration
		want   int
	}{
		{0, 0},
		{29 * time.Minute, 0},
		{30 * time.Minute, 1},
		{8*time.Hour + 45*time.Minute, 17},
		{23*time.Hour + 59*time.Minute, 47},
		{24 * time.Hour, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TimeSlotOf(day.Add(tt.offset)), tt.offset.String())
	}
}

func TestClock_AdvanceAndReset(t *testing.T) {
	epoch := time.Date(2019, 12, 1, 0, 0, 0, 0, time.UTC)
	c := NewClock(epoch, 30*time.Minute)

	for i := 0; i < 49; i++ {
		c.Advance()
	}
	assert.Equal(t, 49, c.Steps)
	assert.Equal(t, epoch.Add(24*time.Hour+30*time.Minute), c.Now)
	assert.Equal(t, 1, c.TimeSlot(), "the slot wraps at midnight")

	c.Reset()
	assert.Equal(t, 0, c.Steps)
	assert.Equal(t, epoch, c.Now)
	assert.Equal(t, 0, c.TimeSlot())
}
