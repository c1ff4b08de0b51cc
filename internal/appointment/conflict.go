package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

// Conflicts returns the blocking appointments of existing that overlap [start, end), skipping
// excludeID.
func Conflicts(existing []Appointment, start, end time.Time, excludeID uuid.UUID) []Appointment {
	var out []Appointment
	for _, a := range existing {
		if !a.Blocks() {
			continue
		}
		if excludeID != uuid.Nil && a.ID == excludeID {
			continue
		}
		if availability.Overlaps(a.StartTime, a.EndTime, start, end) {
			out = append(out, a)
		}
	}
	return out
}

func busyIntervals(appts []Appointment) []availability.Interval {
	out := make([]availability.Interval, 0, len(appts))
	for _, a := range appts {
		if a.Blocks() {
			out = append(out, availability.Interval{Start: a.StartTime, End: a.EndTime})
		}
	}
	return out
}
