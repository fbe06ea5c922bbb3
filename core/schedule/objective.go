package schedule

import (
	"fmt"
	"sort"

	"github.com/kilianp07/caresched/core/solver"
)

// Weights of the secondary objective terms. Zero disables a term.
type Weights struct {
	// Continuity rewards a client being booked in both of two adjacent
	// timeslots, with any providers.
	Continuity int `json:"continuity" yaml:"continuity" validate:"gte=0"`
	// SameProvider rewards a client seeing the same provider in two adjacent
	// timeslots.
	SameProvider int `json:"same_provider" yaml:"same_provider" validate:"gte=0"`
}

// DefaultWeights returns the weights used when none are configured.
func DefaultWeights() Weights { return Weights{Continuity: 1, SameProvider: 2} }

// ObjectiveStats describes what ComposeObjective added.
type ObjectiveStats struct {
	PrimaryWeight int `json:"primary_weight"`
	Continuity    int `json:"continuity_terms"`
	SameProvider  int `json:"same_provider_terms"`
}

// adjacentPairs lists index pairs of timeslots that follow each other on the
// same weekday, ordered by start time.
func adjacentPairs(enc *Encoding) [][2]int {
	slots := enc.Dataset.Timeslots
	order := make([]int, len(slots))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := slots[order[a]], slots[order[b]]
		if sa.Day != sb.Day {
			return sa.Day < sb.Day
		}
		return sa.Start < sb.Start
	})
	var out [][2]int
	for i := 1; i < len(order); i++ {
		a, b := order[i-1], order[i]
		if slots[a].Day == slots[b].Day {
			out = append(out, [2]int{a, b})
		}
	}
	return out
}

// ComposeObjective installs the weighted objective on enc.Model. Every open
// assignment gets the primary weight, which exceeds the sum of all bonus
// weights, so no bonus trade can cost a scheduled consultation.
func ComposeObjective(enc *Encoding, w Weights) ObjectiveStats {
	m := enc.Model
	pairs := adjacentPairs(enc)
	nSlots := len(enc.Dataset.Timeslots)

	open := make(map[[3]int]solver.Var)
	byClientSlot := make(map[int][]solver.Var)
	for _, a := range enc.Assignments {
		if !a.Open {
			continue
		}
		open[[3]int{a.Client, a.Provider, a.Timeslot}] = a.Var
		byClientSlot[a.Client*nSlots+a.Timeslot] = append(byClientSlot[a.Client*nSlots+a.Timeslot], a.Var)
	}

	var bonus []solver.Term
	var stats ObjectiveStats
	if w.Continuity > 0 {
		occupied := make(map[int]solver.Var)
		occ := func(ci, ti int) (solver.Var, bool) {
			k := ci*nSlots + ti
			if v, ok := occupied[k]; ok {
				return v, true
			}
			vars := byClientSlot[k]
			if len(vars) == 0 {
				return 0, false
			}
			c, t := enc.Dataset.Clients[ci], enc.Dataset.Timeslots[ti]
			v := m.Or(fmt.Sprintf("busy[%s,%s]", c.ID, t.ID), vars)
			occupied[k] = v
			return v, true
		}
		for ci, c := range enc.Dataset.Clients {
			for _, p := range pairs {
				if !enc.clients[ci].HasDay(enc.Dataset.Timeslots[p[0]].Day) {
					continue
				}
				a, ok := occ(ci, p[0])
				if !ok {
					continue
				}
				b, ok := occ(ci, p[1])
				if !ok {
					continue
				}
				y := m.And(fmt.Sprintf("cont[%s,%s,%s]", c.ID, enc.Dataset.Timeslots[p[0]].ID, enc.Dataset.Timeslots[p[1]].ID), a, b)
				bonus = append(bonus, solver.Term{Var: y, Coef: w.Continuity})
				stats.Continuity++
			}
		}
	}
	if w.SameProvider > 0 {
		for ci, c := range enc.Dataset.Clients {
			for pi, pr := range enc.Dataset.Providers {
				for _, p := range pairs {
					a, ok := open[[3]int{ci, pi, p[0]}]
					if !ok {
						continue
					}
					b, ok := open[[3]int{ci, pi, p[1]}]
					if !ok {
						continue
					}
					y := m.And(fmt.Sprintf("same[%s,%s,%s,%s]", c.ID, pr.ID, enc.Dataset.Timeslots[p[0]].ID, enc.Dataset.Timeslots[p[1]].ID), a, b)
					bonus = append(bonus, solver.Term{Var: y, Coef: w.SameProvider})
					stats.SameProvider++
				}
			}
		}
	}

	stats.PrimaryWeight = 1
	for _, t := range bonus {
		stats.PrimaryWeight += t.Coef
	}
	for _, a := range enc.Assignments {
		if a.Open {
			m.Maximize(a.Var, stats.PrimaryWeight)
		}
	}
	for _, t := range bonus {
		m.Maximize(t.Var, t.Coef)
	}
	return stats
}
