package cadence

import (
	"fmt"
	"time"
)

type Kind int

const (
	Daily Kind = iota
	Weekly
	Monthly
)

func (k Kind) String() string {
	switch k {
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	default:
		return "daily"
	}
}

// Spec describes a recurrence anchored to a UTC time of day.
// Weekday follows ISO-8601 numbering (1 = Monday .. 7 = Sunday) and is only
// meaningful for Weekly specs; Day is only meaningful for Monthly specs.
type Spec struct {
	Kind    Kind
	Weekday int
	Day     int
	Hour    int
	Minute  int
}

func DailySpec(hour, minute int) Spec {
	return Spec{Kind: Daily, Hour: hour, Minute: minute}
}

func WeeklySpec(weekday, hour, minute int) Spec {
	return Spec{Kind: Weekly, Weekday: weekday, Hour: hour, Minute: minute}
}

func MonthlySpec(day, hour, minute int) Spec {
	return Spec{Kind: Monthly, Day: day, Hour: hour, Minute: minute}
}

func (s Spec) Validate() error {
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("hour %d is out of range [0, 23]", s.Hour)
	}

	if s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("minute %d is out of range [0, 59]", s.Minute)
	}

	switch s.Kind {
	case Weekly:
		if s.Weekday < 1 || s.Weekday > 7 {
			return fmt.Errorf("weekday %d is out of range [1, 7]", s.Weekday)
		}
	case Monthly:
		if s.Day < 1 || s.Day > 31 {
			return fmt.Errorf("day of month %d is out of range [1, 31]", s.Day)
		}
	}

	return nil
}

// Next returns the first instant strictly after now that satisfies the spec.
// The result is always in UTC regardless of now's location.
func (s Spec) Next(now time.Time) time.Time {
	now = now.UTC()

	switch s.Kind {
	case Weekly:
		return s.nextWeekly(now)
	case Monthly:
		return s.nextMonthly(now)
	default:
		return s.nextDaily(now)
	}
}

func (s Spec) nextDaily(now time.Time) time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, s.Minute, 0, 0, time.UTC)
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}

	return t
}

func (s Spec) nextWeekly(now time.Time) time.Time {
	// time.Weekday counts Sunday as 0, ISO numbering has Sunday as 7
	target := time.Weekday(s.Weekday % 7)
	days := (int(target) - int(now.Weekday()) + 7) % 7

	t := time.Date(now.Year(), now.Month(), now.Day()+days, s.Hour, s.Minute, 0, 0, time.UTC)
	if !t.After(now) {
		t = t.AddDate(0, 0, 7)
	}

	return t
}

func (s Spec) nextMonthly(now time.Time) time.Time {
	t := s.monthlyOccurrence(now.Year(), now.Month())
	if !t.After(now) {
		t = s.monthlyOccurrence(now.Year(), now.Month()+1)
	}

	return t
}

// monthlyOccurrence clamps the configured day to the target month's length,
// so a day-31 spec fires on the last day of shorter months. Months beyond
// December are normalized into the following year.
func (s Spec) monthlyOccurrence(year int, month time.Month) time.Time {
	day := s.Day

	// day 0 of the next month is the last day of this month
	if last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day(); day > last {
		day = last
	}

	return time.Date(year, month, day, s.Hour, s.Minute, 0, 0, time.UTC)
}
