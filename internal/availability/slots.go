package availability

import (
	"sort"
	"time"
)

// Slots returns candidate start times, stepping by step inside each window, where a booking of
// length duration fits within the window, does not overlap any busy interval and starts strictly
// after notBefore. The result is ascending and free of duplicates.
//
// Pass a zero notBefore to keep past candidates.
func Slots(windows []Interval, duration, step time.Duration, busy []Interval, notBefore time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}

	sorted := make([]Interval, 0, len(windows))
	for _, w := range windows {
		if w.Valid() {
			sorted = append(sorted, w)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var slots []time.Time
	var last time.Time
	for _, w := range sorted {
		for t := w.Start; !t.Add(duration).After(w.End); t = t.Add(step) {
			if !notBefore.IsZero() && !t.After(notBefore) {
				continue
			}
			if OverlapsAny(t, t.Add(duration), busy) {
				continue
			}
			if len(slots) > 0 && !t.After(last) {
				continue
			}
			slots = append(slots, t)
			last = t
		}
	}
	return slots
}
