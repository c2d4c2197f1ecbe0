package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/allowance-server/internal/xerrors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(i int) *int {
	return &i
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// -- ComputeNextExecution tests --

func TestComputeNextExecution(t *testing.T) {
	tests := []struct {
		name     string
		pattern  Pattern
		from     time.Time
		expected time.Time
	}{
		{"daily", PatternDaily, date(2026, 3, 31), date(2026, 4, 1)},
		{"daily drops time of day", PatternDaily, time.Date(2026, 3, 31, 17, 45, 0, 0, time.UTC), date(2026, 4, 1)},
		{"weekly", PatternWeekly, date(2026, 12, 28), date(2027, 1, 4)},
		{"biweekly", PatternBiweekly, date(2026, 2, 20), date(2026, 3, 6)},
		{"monthly mid month", PatternMonthly, date(2026, 5, 15), date(2026, 6, 15)},
		{"monthly 31st into 30 day month", PatternMonthly, date(2026, 8, 31), date(2026, 9, 30)},
		{"monthly 31st into february", PatternMonthly, date(2027, 1, 31), date(2027, 2, 28)},
		{"monthly 31st into leap february", PatternMonthly, date(2028, 1, 31), date(2028, 2, 29)},
		{"monthly across year end", PatternMonthly, date(2026, 12, 10), date(2027, 1, 10)},
		{"first of month", PatternFirstOfMonth, date(2026, 1, 1), date(2026, 2, 1)},
		{"first of month mid month", PatternFirstOfMonth, date(2026, 12, 17), date(2027, 1, 1)},
		{"last of month", PatternLastOfMonth, date(2026, 1, 31), date(2026, 2, 28)},
		{"last of month leap february", PatternLastOfMonth, date(2028, 1, 31), date(2028, 2, 29)},
		{"last of month into 31 day month", PatternLastOfMonth, date(2026, 4, 30), date(2026, 5, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := ComputeNextExecution(tt.pattern, tt.from)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, next)
		})
	}
}

func TestComputeNextExecution_InvalidPattern(t *testing.T) {
	_, err := ComputeNextExecution(Pattern(42), date(2026, 1, 1))
	assert.True(t, errors.Is(err, xerrors.ErrInvalidPattern))
}

func TestNextExecutionAnchored_ReturnsToAnchorAfterShortMonth(t *testing.T) {
	next, err := NextExecutionAnchored(PatternMonthly, date(2026, 4, 30), 31)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 5, 31), next)

	next, err = NextExecutionAnchored(PatternMonthly, date(2027, 2, 28), 30)
	require.NoError(t, err)
	assert.Equal(t, date(2027, 3, 30), next)
}

// -- FirstExecution tests --

func TestFirstExecution(t *testing.T) {
	tests := []struct {
		name     string
		pattern  Pattern
		start    time.Time
		expected time.Time
	}{
		{"weekly starts on start date", PatternWeekly, date(2026, 10, 17), date(2026, 10, 17)},
		{"monthly starts on start date", PatternMonthly, date(2026, 1, 31), date(2026, 1, 31)},
		{"first of month on the first", PatternFirstOfMonth, date(2026, 11, 1), date(2026, 11, 1)},
		{"first of month mid month", PatternFirstOfMonth, date(2026, 11, 2), date(2026, 12, 1)},
		{"last of month", PatternLastOfMonth, date(2028, 2, 3), date(2028, 2, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := FirstExecution(tt.pattern, tt.start)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, first)
		})
	}
}

// -- IsDue tests --

func dueSchedule() Schedule {
	return Schedule{
		Pattern:           PatternWeekly,
		StartDate:         date(2026, 10, 1),
		NextExecutionDate: date(2026, 10, 15),
		IsActive:          true,
	}
}

func TestIsDue(t *testing.T) {
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		modify func(s *Schedule)
		due    bool
	}{
		{"due", func(s *Schedule) {}, true},
		{"inactive", func(s *Schedule) { s.IsActive = false }, false},
		{"paused", func(s *Schedule) { s.IsPaused = true }, false},
		{"not yet", func(s *Schedule) { s.NextExecutionDate = date(2026, 10, 16) }, false},
		{"end date passed", func(s *Schedule) { s.EndDate = timePtr(date(2026, 10, 14)) }, false},
		{"end date in future", func(s *Schedule) { s.EndDate = timePtr(date(2026, 12, 31)) }, true},
		{"end date is today", func(s *Schedule) { s.EndDate = timePtr(date(2026, 10, 15)) }, true},
		{"occurrences exhausted", func(s *Schedule) {
			s.MaxOccurrences = intPtr(3)
			s.OccurrenceCount = 3
		}, false},
		{"occurrences remaining", func(s *Schedule) {
			s.MaxOccurrences = intPtr(3)
			s.OccurrenceCount = 2
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := dueSchedule()
			tt.modify(&s)
			assert.Equal(t, tt.due, IsDue(s, at))
		})
	}
}

// -- Advance tests --

func TestAdvance_RecordsExecution(t *testing.T) {
	s := dueSchedule()
	executedAt := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

	advanced, err := Advance(s, executedAt)
	require.NoError(t, err)

	assert.Equal(t, 1, advanced.OccurrenceCount)
	assert.Equal(t, executedAt, *advanced.LastExecutedAt)
	assert.Equal(t, date(2026, 10, 22), advanced.NextExecutionDate)
	assert.True(t, advanced.IsActive)
	assert.False(t, IsDue(advanced, executedAt), "advanced schedule must not be due again at the same instant")
}

func TestAdvance_LateRunCountsFromExecutionDay(t *testing.T) {
	s := dueSchedule()
	executedAt := time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)

	advanced, err := Advance(s, executedAt)
	require.NoError(t, err)

	next, err := ComputeNextExecution(s.Pattern, *advanced.LastExecutedAt)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 10, 24), advanced.NextExecutionDate)
	assert.Equal(t, next, advanced.NextExecutionDate)
}

func TestAdvance_TerminatesOnMaxOccurrences(t *testing.T) {
	s := Schedule{
		Pattern:           PatternMonthly,
		StartDate:         date(2026, 8, 1),
		MaxOccurrences:    intPtr(3),
		OccurrenceCount:   2,
		NextExecutionDate: date(2026, 10, 1),
		IsActive:          true,
	}

	advanced, err := Advance(s, date(2026, 10, 1))
	require.NoError(t, err)

	assert.Equal(t, 3, advanced.OccurrenceCount)
	assert.False(t, advanced.IsActive)
	assert.False(t, IsDue(advanced, date(2026, 11, 2)))
}

func TestAdvance_TerminatesWhenNextPassesEndDate(t *testing.T) {
	s := dueSchedule()
	s.EndDate = timePtr(date(2026, 10, 20))

	advanced, err := Advance(s, date(2026, 10, 15))
	require.NoError(t, err)

	assert.False(t, advanced.IsActive)
}

func TestIsTerminal_EndDateIsInclusive(t *testing.T) {
	s := dueSchedule()
	s.EndDate = timePtr(date(2026, 10, 15))

	assert.False(t, IsTerminal(s, time.Date(2026, 10, 15, 0, 30, 0, 0, time.UTC)))
	assert.False(t, IsTerminal(s, time.Date(2026, 10, 15, 23, 59, 0, 0, time.UTC)))
	assert.True(t, IsTerminal(s, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)))
	assert.True(t, Ended(s.EndDate, date(2026, 10, 16)))
	assert.False(t, Ended(nil, date(2026, 10, 16)))
}

func TestAdvance_MonthlyKeepsStartDateAnchor(t *testing.T) {
	s := Schedule{
		Pattern:           PatternMonthly,
		StartDate:         date(2026, 1, 31),
		NextExecutionDate: date(2026, 4, 30),
		IsActive:          true,
	}

	advanced, err := Advance(s, date(2026, 4, 30))
	require.NoError(t, err)
	assert.Equal(t, date(2026, 5, 31), advanced.NextExecutionDate)
}

// -- Rebase tests --

func TestRebase_SkipsMissedPeriods(t *testing.T) {
	s := dueSchedule()

	next, err := Rebase(s, date(2026, 11, 3))
	require.NoError(t, err)
	assert.Equal(t, date(2026, 11, 5), next)
}

func TestRebase_KeepsFutureDate(t *testing.T) {
	s := dueSchedule()

	next, err := Rebase(s, date(2026, 10, 2))
	require.NoError(t, err)
	assert.Equal(t, date(2026, 10, 15), next)
}

// -- ParsePattern tests --

func TestParsePattern(t *testing.T) {
	p, err := ParsePattern("lastofmonth")
	require.NoError(t, err)
	assert.Equal(t, PatternLastOfMonth, p)
	assert.Equal(t, "lastOfMonth", p.String())

	_, err = ParsePattern("fortnightly")
	assert.True(t, errors.Is(err, xerrors.ErrInvalidPattern))
}
