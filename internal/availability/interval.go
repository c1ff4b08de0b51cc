package availability

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether [existingStart, existingEnd) and [candidateStart, candidateEnd) share
// at least one instant. Adjacent intervals do not overlap.
func Overlaps(existingStart, existingEnd, candidateStart, candidateEnd time.Time) bool {
	return existingStart.Before(candidateEnd) && candidateStart.Before(existingEnd)
}

// OverlapsAny reports whether [start, end) overlaps any of the busy intervals.
func OverlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(b.Start, b.End, start, end) {
			return true
		}
	}
	return false
}

// Subtract removes every cut from window and returns the remaining pieces in ascending order.
func Subtract(window Interval, cuts []Interval) []Interval {
	if !window.Valid() {
		return nil
	}

	sorted := make([]Interval, 0, len(cuts))
	for _, c := range cuts {
		if c.Valid() {
			sorted = append(sorted, c)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var out []Interval
	cur := window.Start
	for _, c := range sorted {
		if !c.End.After(cur) {
			continue
		}
		if !c.Start.Before(window.End) {
			break
		}
		if c.Start.After(cur) {
			out = append(out, Interval{Start: cur, End: c.Start})
		}
		cur = c.End
		if !cur.Before(window.End) {
			return out
		}
	}
	if cur.Before(window.End) {
		out = append(out, Interval{Start: cur, End: window.End})
	}
	return out
}
