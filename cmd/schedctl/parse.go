package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"}

// parseTime accepts RFC3339, or a wall-clock time that is read in loc.
func parseTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339 {
			t, err = time.Parse(layout, raw)
		} else {
			t, err = time.ParseInLocation(layout, raw, loc)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q, use RFC3339 or 2006-01-02 15:04", raw)
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use 2006-01-02", raw)
	}
	return t, nil
}

func parseID(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a valid UUID", name)
	}
	return id, nil
}

// parseOptionalID returns nil for an empty value.
func parseOptionalID(name, raw string) (*uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseID(name, raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// resolveEnd takes an explicit end, or start plus a duration in minutes.
func resolveEnd(start time.Time, rawEnd string, minutes int, loc *time.Location) (time.Time, error) {
	if rawEnd != "" {
		return parseTime(rawEnd, loc)
	}
	if minutes <= 0 {
		return time.Time{}, fmt.Errorf("either --end or a positive --duration is required")
	}
	return start.Add(time.Duration(minutes) * time.Minute), nil
}

func checkNotes(notes string) error {
	if len(notes) > appointment.MaxNotesLength {
		return fmt.Errorf("notes exceed %d characters", appointment.MaxNotesLength)
	}
	return nil
}
