// Package datecalc holds the calendar arithmetic used by the donation cooldown.
package datecalc

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// OverflowRule decides what happens when the target month is shorter than the source day.
type OverflowRule string

const (
	// OverflowRollover keeps the day number and lets the surplus spill into the next
	// month: Jan 31 + 1 month = Mar 3 (Mar 2 in leap years).
	OverflowRollover OverflowRule = "rollover"
	// OverflowClamp pins the result to the last day of the target month: Jan 31 + 1 month = Feb 28/29.
	OverflowClamp OverflowRule = "clamp"
)

func ParseOverflowRule(s string) (OverflowRule, error) {
	switch OverflowRule(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverflowRollover:
		return OverflowRollover, nil
	case OverflowClamp:
		return OverflowClamp, nil
	default:
		return "", fmt.Errorf("unknown month overflow rule %q", s)
	}
}

// AddMonths adds n calendar months to t keeping the wall clock time and location.
func AddMonths(t time.Time, n int, rule OverflowRule) time.Time {
	if rule != OverflowClamp {
		return t.AddDate(0, n, 0)
	}
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := DaysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// StartOfDay truncates t to local midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func SameDay(a, b time.Time, loc *time.Location) bool {
	return FormatDate(a, loc) == FormatDate(b, loc)
}

func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}
