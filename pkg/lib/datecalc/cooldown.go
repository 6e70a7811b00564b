package datecalc

import "time"

// Cooldown is the minimum interval between two donations, counted in calendar months.
type Cooldown struct {
	Months   int
	Rule     OverflowRule
	Location *time.Location
}

func NewCooldown(months int, rule OverflowRule, loc *time.Location) Cooldown {
	if loc == nil {
		loc = time.Local
	}
	return Cooldown{Months: months, Rule: rule, Location: loc}
}

// NextAvailable is the first instant a donor whose last donation was at last may give again.
func (c Cooldown) NextAvailable(last time.Time) time.Time {
	return AddMonths(last.In(c.loc()), c.Months, c.Rule)
}

// Elapsed reports whether now is at or past NextAvailable(last).
func (c Cooldown) Elapsed(last, now time.Time) bool {
	return !now.Before(c.NextAvailable(last))
}

func (c Cooldown) Format(t time.Time) string {
	return FormatDate(t, c.loc())
}

func (c Cooldown) loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}
