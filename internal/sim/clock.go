package sim

import "time"

// Clock is the simulated wall clock. Minutes advance by accumulating ticks
// scaled by the time scale; the calendar date is a fixed reference.
type Clock struct {
	now            time.Time
	day            int
	minutes        int
	acc            float64
	ticksPerMinute float64
}

// clockEpoch anchors simulated times. Only the time of day and DayCount carry
// meaning.
var clockEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// NewClock starts a clock on day 1 at hour:minute.
func NewClock(hour, minute int, ticksPerMinute float64) *Clock {
	return &Clock{
		now:            clockEpoch.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute),
		day:            1,
		ticksPerMinute: ticksPerMinute,
	}
}

// Advance accounts for ticks physical ticks at timeScale and reports whether
// midnight was crossed.
func (c *Clock) Advance(ticks int, timeScale float64) (dayRolled bool) {
	c.acc += float64(ticks) * timeScale
	for c.acc >= c.ticksPerMinute {
		c.acc -= c.ticksPerMinute
		lastHour := c.now.Hour()
		c.now = c.now.Add(time.Minute)
		c.minutes++
		if lastHour == 23 && c.now.Hour() == 0 {
			c.day++
			dayRolled = true
		}
	}
	return dayRolled
}

// Now returns the simulated time.
func (c *Clock) Now() time.Time { return c.now }

// Day returns the 1-based day counter.
func (c *Clock) Day() int { return c.day }

// Minutes returns the simulated minutes elapsed since the start.
func (c *Clock) Minutes() int { return c.minutes }

// HourOfDay returns the fractional hour, 7.5 for 07:30.
func (c *Clock) HourOfDay() float64 {
	return float64(c.now.Hour()) + float64(c.now.Minute())/60
}
