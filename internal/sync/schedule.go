// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/sahayak/internal/config"
)

// WeeklySchedule fires once a week at a wall-clock time in Location.
type WeeklySchedule struct {
	Weekday  time.Weekday
	Hour     int
	Minute   int
	Location *time.Location
}

// NewWeeklySchedule parses cfg. The weekday accepts full or three-letter
// English names in any case.
func NewWeeklySchedule(cfg *config.ScheduleConfig) (WeeklySchedule, error) {
	day, err := ParseWeekday(cfg.Weekday)
	if err != nil {
		return WeeklySchedule{}, err
	}
	if cfg.Hour < 0 || cfg.Hour > 23 {
		return WeeklySchedule{}, fmt.Errorf("schedule hour %d out of range 0-23", cfg.Hour)
	}
	if cfg.Minute < 0 || cfg.Minute > 59 {
		return WeeklySchedule{}, fmt.Errorf("schedule minute %d out of range 0-59", cfg.Minute)
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return WeeklySchedule{}, fmt.Errorf("schedule timezone: %w", err)
		}
	}
	return WeeklySchedule{Weekday: day, Hour: cfg.Hour, Minute: cfg.Minute, Location: loc}, nil
}

// ParseWeekday parses an English weekday name.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", s)
}

// Next returns the first scheduled instant strictly after now.
func (s WeeklySchedule) Next(now time.Time) time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)
	days := (int(s.Weekday) - int(t.Weekday()) + 7) % 7
	next := time.Date(t.Year(), t.Month(), t.Day()+days, s.Hour, s.Minute, 0, 0, loc)
	if !next.After(t) {
		next = time.Date(t.Year(), t.Month(), t.Day()+days+7, s.Hour, s.Minute, 0, 0, loc)
	}
	return next
}

// String describes the schedule, e.g. "Sunday 00:00 Asia/Kolkata".
func (s WeeklySchedule) String() string {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s %02d:%02d %s", s.Weekday, s.Hour, s.Minute, loc)
}
