package domain

import "time"

// DateRange is an inclusive calendar date range. Only the date parts of
// Start and End are meaningful.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether End is on or after Start.
func (r DateRange) Valid() bool {
	return !r.End.Before(truncateDay(r.Start))
}

// Days returns the inclusive day count, so a single-day range counts as 1.
func (r DateRange) Days() int {
	start := truncateDay(r.Start)
	end := truncateDay(r.End)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Overlaps implements the standard interval test for inclusive ranges:
// start1 <= end2 AND end1 >= start2.
func (r DateRange) Overlaps(o DateRange) bool {
	return !truncateDay(r.Start).After(truncateDay(o.End)) &&
		!truncateDay(r.End).Before(truncateDay(o.Start))
}

// ClampToYear trims the range to the given calendar year. The second return
// is false when the range does not touch the year at all.
func (r DateRange) ClampToYear(year int) (DateRange, bool) {
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	start := truncateDay(r.Start)
	end := truncateDay(r.End)
	if start.Before(yearStart) {
		start = yearStart
	}
	if end.After(yearEnd) {
		end = yearEnd
	}
	if end.Before(start) {
		return DateRange{}, false
	}
	return DateRange{Start: start, End: end}, true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
