package hours

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

// Static serves schedules held in memory, usually loaded from a YAML file.
type Static struct {
	def      Schedule
	branches map[uuid.UUID]Schedule
}

func NewStatic(def Schedule, branches map[uuid.UUID]Schedule) *Static {
	if branches == nil {
		branches = make(map[uuid.UUID]Schedule)
	}
	return &Static{def: def, branches: branches}
}

func (s *Static) Windows(_ context.Context, branchID uuid.UUID, day time.Time) ([]availability.Interval, error) {
	return s.ScheduleFor(branchID).Windows(day)
}

func (s *Static) Location(_ context.Context, branchID uuid.UUID) (*time.Location, error) {
	return s.ScheduleFor(branchID).Location()
}

func (s *Static) ScheduleFor(branchID uuid.UUID) Schedule {
	if sched, ok := s.branches[branchID]; ok {
		return sched
	}
	return s.def
}

// File is the on-disk layout of a branch hours file:
//
//	default:
//	  timezone: Europe/London
//	  weekly:
//	    monday: {open: "09:00", close: "17:00", breaks: [{start: "12:30", end: "13:15"}]}
//	branches:
//	  7c0e...:
//	    weekly: ...
//	    holidays: ["2026-12-25"]
type File struct {
	Default  *Schedule           `yaml:"default"`
	Branches map[string]Schedule `yaml:"branches"`
}

func Parse(data []byte) (*Static, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode hours file: %w", err)
	}

	def := DefaultSchedule()
	if f.Default != nil {
		def = normalize(*f.Default)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("default schedule: %w", err)
	}

	branches := make(map[uuid.UUID]Schedule, len(f.Branches))
	for rawID, sched := range f.Branches {
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("branch id %q: %w", rawID, err)
		}
		sched = normalize(sched)
		if sched.Timezone == "" {
			sched.Timezone = def.Timezone
		}
		if err := sched.Validate(); err != nil {
			return nil, fmt.Errorf("branch %s: %w", id, err)
		}
		branches[id] = sched
	}

	return NewStatic(def, branches), nil
}

func normalize(s Schedule) Schedule {
	weekly := make(map[string]Day, len(s.Weekly))
	for name, d := range s.Weekly {
		weekly[strings.ToLower(name)] = d
	}
	s.Weekly = weekly
	return s
}

func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hours file: %w", err)
	}
	return Parse(data)
}
