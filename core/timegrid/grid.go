package timegrid

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMisaligned reports a span that is not a positive whole number of units.
	ErrMisaligned = errors.New("span not aligned to grid granularity")
	// ErrOutsideWindow reports a span reaching outside the operating window.
	ErrOutsideWindow = errors.New("span outside operating window")
)

// Unit is one atomic time unit of the grid. Two units are equal when they
// have the same clock bounds.
type Unit struct {
	Index int
	Start Clock
	End   Clock
}

func (u Unit) String() string { return u.Start.String() + "-" + u.End.String() }

// Grid partitions the operating window [open, close) into units of a fixed
// granularity.
type Grid struct {
	open  Clock
	close Clock
	step  int
}

// NewGrid validates the window and the granularity. The granularity must
// divide an hour evenly and the window must hold a whole number of units.
func NewGrid(open, close Clock, granularity time.Duration) (Grid, error) {
	step := int(granularity / time.Minute)
	if step <= 0 || time.Duration(step)*time.Minute != granularity {
		return Grid{}, fmt.Errorf("granularity %s must be a positive number of minutes", granularity)
	}
	if 60%step != 0 {
		return Grid{}, fmt.Errorf("granularity %s must divide one hour", granularity)
	}
	if close <= open {
		return Grid{}, fmt.Errorf("operating window %s-%s is empty", open, close)
	}
	if int(close-open)%step != 0 {
		return Grid{}, fmt.Errorf("operating window %s-%s: %w", open, close, ErrMisaligned)
	}
	return Grid{open: open, close: close, step: step}, nil
}

// MustGrid is NewGrid for fixed literals.
func MustGrid(open, close string, granularity time.Duration) Grid {
	g, err := NewGrid(MustClock(open), MustClock(close), granularity)
	if err != nil {
		panic(err)
	}
	return g
}

func (g Grid) Open() Clock  { return g.open }
func (g Grid) Close() Clock { return g.close }

// Step is the unit length in minutes.
func (g Grid) Step() int { return g.step }

func (g Grid) Granularity() time.Duration { return time.Duration(g.step) * time.Minute }

// Len is the number of units in the window.
func (g Grid) Len() int {
	if g.step == 0 {
		return 0
	}
	return int(g.close-g.open) / g.step
}

// UnitsPerHour converts weekly hours into unit counts.
func (g Grid) UnitsPerHour() int {
	if g.step == 0 {
		return 0
	}
	return 60 / g.step
}

// Units returns the whole grid in order.
func (g Grid) Units() []Unit {
	out := make([]Unit, g.Len())
	for i := range out {
		out[i] = g.unit(i)
	}
	return out
}

func (g Grid) unit(i int) Unit {
	start := g.open.Add(i * g.step)
	return Unit{Index: i, Start: start, End: start.Add(g.step)}
}

// UnitAt returns the unit starting at c. Clock times that are not a unit
// boundary inside the window have no unit.
func (g Grid) UnitAt(c Clock) (Unit, bool) {
	if g.step == 0 || c < g.open || c >= g.close {
		return Unit{}, false
	}
	off := int(c - g.open)
	if off%g.step != 0 {
		return Unit{}, false
	}
	return g.unit(off / g.step), true
}

// Cover lists the units spanned by [start, end), stepping by the granularity
// from start and stopping before end.
//
// Precondition: CheckSpan(start, end) == nil. A misaligned span under- or
// over-covers; steps that do not land on a unit of the grid come back with
// Index -1 and never match any availability.
func (g Grid) Cover(start, end Clock) []Unit {
	if g.step == 0 {
		return nil
	}
	var out []Unit
	for t := start; t < end; t = t.Add(g.step) {
		if u, ok := g.UnitAt(t); ok {
			out = append(out, u)
			continue
		}
		out = append(out, Unit{Index: -1, Start: t, End: t.Add(g.step)})
	}
	return out
}

// CheckSpan enforces the Cover precondition: end-start is a positive multiple
// of the granularity, start sits on a unit boundary and the span lies inside
// the operating window.
func (g Grid) CheckSpan(start, end Clock) error {
	if g.step == 0 {
		return fmt.Errorf("%s-%s on an empty grid: %w", start, end, ErrMisaligned)
	}
	if end <= start || int(end-start)%g.step != 0 || int(start-g.open)%g.step != 0 {
		return fmt.Errorf("%s-%s with %d minute units: %w", start, end, g.step, ErrMisaligned)
	}
	if start < g.open || end > g.close {
		return fmt.Errorf("%s-%s not within %s-%s: %w", start, end, g.open, g.close, ErrOutsideWindow)
	}
	return nil
}
