// Package recurrence is the date arithmetic behind recurring definitions.
// Everything here is pure: no I/O and no wall clock, callers pass "now".
// Dates are calendar days in UTC.
package recurrence

import (
	"fmt"
	"time"

	"github.com/jinzhu/now"

	"github.com/carson-networks/allowance-server/internal/xerrors"
)

// Schedule is the scheduling state of a recurring definition.
type Schedule struct {
	Pattern           Pattern
	StartDate         time.Time
	EndDate           *time.Time
	MaxOccurrences    *int
	OccurrenceCount   int
	LastExecutedAt    *time.Time
	NextExecutionDate time.Time
	IsActive          bool
	IsPaused          bool
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ComputeNextExecution returns the first occurrence strictly after the day of
// fromDate. Monthly schedules are anchored on fromDate's day of month.
func ComputeNextExecution(pattern Pattern, fromDate time.Time) (time.Time, error) {
	return NextExecutionAnchored(pattern, fromDate, Day(fromDate).Day())
}

// NextExecutionAnchored is ComputeNextExecution with an explicit anchor day for
// monthly schedules, so a schedule started on the 31st lands on the 30th in
// April and back on the 31st in May.
func NextExecutionAnchored(pattern Pattern, fromDate time.Time, anchorDay int) (time.Time, error) {
	day := Day(fromDate)
	switch pattern {
	case PatternDaily:
		return day.AddDate(0, 0, 1), nil
	case PatternWeekly:
		return day.AddDate(0, 0, 7), nil
	case PatternBiweekly:
		return day.AddDate(0, 0, 14), nil
	case PatternMonthly:
		nextMonth := now.With(day).BeginningOfMonth().AddDate(0, 1, 0)
		return clampToMonth(nextMonth, anchorDay), nil
	case PatternFirstOfMonth:
		return now.With(day).BeginningOfMonth().AddDate(0, 1, 0), nil
	case PatternLastOfMonth:
		nextMonth := now.With(day).BeginningOfMonth().AddDate(0, 1, 0)
		return lastDayOfMonth(nextMonth), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %s", xerrors.ErrInvalidPattern, pattern)
	}
}

// FirstExecution returns the first occurrence on or after startDate.
func FirstExecution(pattern Pattern, startDate time.Time) (time.Time, error) {
	day := Day(startDate)
	switch pattern {
	case PatternDaily, PatternWeekly, PatternBiweekly, PatternMonthly:
		return day, nil
	case PatternFirstOfMonth:
		if day.Day() == 1 {
			return day, nil
		}
		return now.With(day).BeginningOfMonth().AddDate(0, 1, 0), nil
	case PatternLastOfMonth:
		return lastDayOfMonth(day), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %s", xerrors.ErrInvalidPattern, pattern)
	}
}

// IsDue reports whether the schedule should execute at the given time.
func IsDue(s Schedule, at time.Time) bool {
	if !s.IsActive || s.IsPaused {
		return false
	}
	if s.NextExecutionDate.After(at) {
		return false
	}
	if Ended(s.EndDate, at) {
		return false
	}
	if s.MaxOccurrences != nil && s.OccurrenceCount >= *s.MaxOccurrences {
		return false
	}
	return true
}

// Ended reports whether the day of at is past endDate. The end date is
// inclusive: a definition may still run at any time on that day.
func Ended(endDate *time.Time, at time.Time) bool {
	return endDate != nil && Day(at).After(Day(*endDate))
}

// IsTerminal reports whether no further occurrence can ever run.
func IsTerminal(s Schedule, at time.Time) bool {
	if s.MaxOccurrences != nil && s.OccurrenceCount >= *s.MaxOccurrences {
		return true
	}
	if s.EndDate != nil {
		if Ended(s.EndDate, at) || Day(s.NextExecutionDate).After(Day(*s.EndDate)) {
			return true
		}
	}
	return false
}

// Advance records one execution at executedAt and returns the new schedule.
// The schedule turns inactive when the execution exhausted it.
func Advance(s Schedule, executedAt time.Time) (Schedule, error) {
	next, err := NextExecutionAnchored(s.Pattern, executedAt, anchorDay(s))
	if err != nil {
		return s, err
	}

	executed := executedAt
	s.OccurrenceCount++
	s.LastExecutedAt = &executed
	s.NextExecutionDate = next
	if IsTerminal(s, executedAt) {
		s.IsActive = false
	}
	return s, nil
}

// Rebase moves a stale next execution date forward to the first occurrence on
// or after the day of at. Used when a paused schedule is resumed.
func Rebase(s Schedule, at time.Time) (time.Time, error) {
	today := Day(at)
	next := s.NextExecutionDate
	for next.Before(today) {
		candidate, err := NextExecutionAnchored(s.Pattern, next, anchorDay(s))
		if err != nil {
			return time.Time{}, err
		}
		next = candidate
	}
	return next, nil
}

func anchorDay(s Schedule) int {
	if s.StartDate.IsZero() {
		return Day(s.NextExecutionDate).Day()
	}
	return Day(s.StartDate).Day()
}

func lastDayOfMonth(t time.Time) time.Time {
	return Day(now.With(t).EndOfMonth())
}

func clampToMonth(firstOfMonth time.Time, day int) time.Time {
	last := lastDayOfMonth(firstOfMonth).Day()
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(firstOfMonth.Year(), firstOfMonth.Month(), day, 0, 0, 0, 0, time.UTC)
}
