package booking

import "time"

const day = 24 * time.Hour

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func truncateDay(t time.Time) time.Time {
	return t.UTC().Truncate(day)
}

func nightsBetween(checkIn, checkOut time.Time) int {
	return int(truncateDay(checkOut).Sub(truncateDay(checkIn)) / day)
}

// overlaps applies the half-open rule: [a,b) and [c,d) intersect iff a < d and c < b.
// A check-out and a check-in on the same day do not collide.
func overlaps(a, b, c, d time.Time) bool {
	return a.Before(d) && c.Before(b)
}
