package recurrence

import (
	"fmt"
	"strings"

	"github.com/carson-networks/allowance-server/internal/xerrors"
)

// Pattern is how often a recurring definition repeats.
type Pattern int8

const (
	PatternDaily Pattern = iota
	PatternWeekly
	PatternBiweekly
	PatternMonthly
	PatternFirstOfMonth
	PatternLastOfMonth
)

var patternNames = map[Pattern]string{
	PatternDaily:        "daily",
	PatternWeekly:       "weekly",
	PatternBiweekly:     "biweekly",
	PatternMonthly:      "monthly",
	PatternFirstOfMonth: "firstOfMonth",
	PatternLastOfMonth:  "lastOfMonth",
}

func (p Pattern) String() string {
	if name, ok := patternNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Pattern(%d)", int8(p))
}

func (p Pattern) Valid() bool {
	_, ok := patternNames[p]
	return ok
}

// ParsePattern accepts the pattern names case-insensitively.
func ParsePattern(s string) (Pattern, error) {
	for p, name := range patternNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", xerrors.ErrInvalidPattern, s)
}
