package solver

import (
	"context"
	"strings"
)

// Status of a solve call.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusFeasible
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of String; unknown text maps to StatusUnknown.
func ParseStatus(s string) Status {
	switch strings.ToLower(s) {
	case "optimal":
		return StatusOptimal
	case "feasible":
		return StatusFeasible
	case "infeasible":
		return StatusInfeasible
	default:
		return StatusUnknown
	}
}

// HasSolution is true for OPTIMAL and FEASIBLE, which callers treat alike.
func (s Status) HasSolution() bool { return s == StatusOptimal || s == StatusFeasible }

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	*s = ParseStatus(string(b))
	return nil
}

// Result is the engine's answer. Values is indexed by Var and only
// meaningful when Status.HasSolution().
type Result struct {
	Status    Status
	Values    []bool
	Objective int
}

// Engine solves 0/1 models. Implementations must return when ctx is done;
// an expired deadline is reported as StatusUnknown, or StatusFeasible when an
// incumbent exists, never as an error.
type Engine interface {
	Name() string
	Solve(ctx context.Context, m *Model) (Result, error)
}
