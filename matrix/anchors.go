// Package matrix enumerates the departure/return/airport combinations for
// each target week and ranks them by total commute cost.
package matrix

import "time"

// anchorStride approximates one month. Consecutive strides can land in
// the same calendar month or skip one.
const anchorStride = 30

// AnchorWeeks returns the anchor Monday for each of the next months
// months: today plus 30·i days, moved to day 1 of that month, then forward
// to the first Monday (day 1 itself when it is a Monday).
func AnchorWeeks(today time.Time, months int) []time.Time {
	if months <= 0 {
		return []time.Time{}
	}

	loc := today.Location()
	base := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)

	anchors := make([]time.Time, 0, months)
	for i := 1; i <= months; i++ {
		future := base.AddDate(0, 0, anchorStride*i)
		first := time.Date(future.Year(), future.Month(), 1, 0, 0, 0, 0, loc)
		daysAhead := (int(time.Monday) - int(first.Weekday()) + 7) % 7
		anchors = append(anchors, first.AddDate(0, 0, daysAhead))
	}
	return anchors
}
