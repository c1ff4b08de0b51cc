package hours

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

const dateLayout = "2006-01-02"

// Provider resolves the operating windows of a branch on a calendar day, and the time zone its
// clock readings are given in.
type Provider interface {
	Windows(ctx context.Context, branchID uuid.UUID, day time.Time) ([]availability.Interval, error)
	Location(ctx context.Context, branchID uuid.UUID) (*time.Location, error)
}

type Window struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Day is the opening time, closing time and breaks of one weekday, all "15:04" clock strings.
type Day struct {
	Open   string   `yaml:"open"`
	Close  string   `yaml:"close"`
	Breaks []Window `yaml:"breaks"`
}

// Schedule is a branch's weekly operating hours. Weekly is keyed by lower-case weekday name;
// missing weekdays are closed. Holidays are "2006-01-02" dates.
type Schedule struct {
	Timezone string         `yaml:"timezone"`
	Weekly   map[string]Day `yaml:"weekly"`
	Holidays []string       `yaml:"holidays"`
}

// DefaultSchedule is Monday to Friday, 09:00 to 17:00 UTC.
func DefaultSchedule() Schedule {
	day := Day{Open: "09:00", Close: "17:00"}
	return Schedule{
		Timezone: "UTC",
		Weekly: map[string]Day{
			"monday":    day,
			"tuesday":   day,
			"wednesday": day,
			"thursday":  day,
			"friday":    day,
		},
	}
}

func (s Schedule) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

func (s Schedule) Validate() error {
	if _, err := s.Location(); err != nil {
		return err
	}
	probe := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	for name, d := range s.Weekly {
		if _, ok := weekdays[strings.ToLower(name)]; !ok {
			return fmt.Errorf("unknown weekday %q", name)
		}
		open, err := clockOn(probe, d.Open, time.UTC)
		if err != nil {
			return fmt.Errorf("%s open: %w", name, err)
		}
		closeAt, err := clockOn(probe, d.Close, time.UTC)
		if err != nil {
			return fmt.Errorf("%s close: %w", name, err)
		}
		if !closeAt.After(open) {
			return fmt.Errorf("%s: close %s must be after open %s", name, d.Close, d.Open)
		}
		for _, b := range d.Breaks {
			if _, err := clockOn(probe, b.Start, time.UTC); err != nil {
				return fmt.Errorf("%s break start: %w", name, err)
			}
			if _, err := clockOn(probe, b.End, time.UTC); err != nil {
				return fmt.Errorf("%s break end: %w", name, err)
			}
		}
	}
	for _, h := range s.Holidays {
		if _, err := time.Parse(dateLayout, h); err != nil {
			return fmt.Errorf("holiday %q: %w", h, err)
		}
	}
	return nil
}

// IsHoliday reports whether the calendar date of day is listed as a holiday.
func (s Schedule) IsHoliday(day time.Time) bool {
	key := day.Format(dateLayout)
	for _, h := range s.Holidays {
		if h == key {
			return true
		}
	}
	return false
}

// Windows returns the open intervals for the calendar date of day (as given, not converted),
// in the schedule's time zone, with breaks removed. Closed days and holidays yield nothing.
func (s Schedule) Windows(day time.Time) ([]availability.Interval, error) {
	loc, err := s.Location()
	if err != nil {
		return nil, err
	}
	if s.IsHoliday(day) {
		return nil, nil
	}

	d, ok := s.Weekly[strings.ToLower(day.Weekday().String())]
	if !ok {
		return nil, nil
	}

	open, err := clockOn(day, d.Open, loc)
	if err != nil {
		return nil, err
	}
	closeAt, err := clockOn(day, d.Close, loc)
	if err != nil {
		return nil, err
	}

	breaks := make([]availability.Interval, 0, len(d.Breaks))
	for _, b := range d.Breaks {
		start, err := clockOn(day, b.Start, loc)
		if err != nil {
			return nil, err
		}
		end, err := clockOn(day, b.End, loc)
		if err != nil {
			return nil, err
		}
		breaks = append(breaks, availability.Interval{Start: start, End: end})
	}

	return availability.Subtract(availability.Interval{Start: open, End: closeAt}, breaks), nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// clockOn places a "15:04" clock reading on the calendar date of day in loc.
// "24:00" means the following midnight.
func clockOn(day time.Time, hm string, loc *time.Location) (time.Time, error) {
	y, m, d := day.Date()
	if hm == "24:00" {
		return time.Date(y, m, d+1, 0, 0, 0, 0, loc), nil
	}
	t, err := time.Parse("15:04", hm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock time %q", hm)
	}
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc), nil
}
