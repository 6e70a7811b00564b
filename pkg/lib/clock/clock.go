package clock

import "time"

// Clock is the source of "now" for everything that compares against the calendar.
type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Frozen always returns the same instant. Tests move it with Set.
type Frozen struct {
	t time.Time
}

func NewFrozen(t time.Time) *Frozen {
	return &Frozen{t: t}
}

func (f *Frozen) Now() time.Time {
	return f.t
}

func (f *Frozen) Set(t time.Time) {
	f.t = t
}
