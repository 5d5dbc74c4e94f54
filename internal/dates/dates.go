// Package dates provides day-granularity arithmetic for expiration offsets.
//
// Offsets are computed on calendar dates, never on instants: both values are
// reduced to their (year, month, day) in one location before subtracting, so
// the time of day and daylight-saving shifts never leak into the result.
package dates

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// Midnight returns the start of t's calendar day in loc.
// A nil loc means time.Local.
func Midnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DaysUntil returns the whole number of calendar days from reference to
// target, both read as dates in loc. Zero means the same day; negative values
// mean target is in the past.
//
// The dates are rebuilt at UTC midnight before subtracting so every day is
// exactly 24h long; the ceiling only matters if that ever stops being true.
func DaysUntil(target, reference time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	diff := civil(target, loc).Sub(civil(reference, loc))
	return int(math.Ceil(float64(diff) / float64(day)))
}

// AddDays returns the midnight that is n calendar days after t's date in loc.
func AddDays(t time.Time, n int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, loc)
}

// Window returns the half-open instant range [start, end) covering the
// calendar days today through today+days inclusive, in loc.
func Window(today time.Time, days int, loc *time.Location) (start, end time.Time) {
	return AddDays(today, 0, loc), AddDays(today, days+1, loc)
}

// civil maps t's calendar date in loc onto UTC midnight.
func civil(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
