package schedule

import (
	"fmt"
	"sort"

	"github.com/kilianp07/caresched/core/model"
	"github.com/kilianp07/caresched/core/solver"
	"github.com/kilianp07/caresched/core/timegrid"
)

// DiagnosticKind classifies builder findings. None of them abort a run.
type DiagnosticKind string

const (
	// DiagAvailability: an availability entry was dropped while indexing.
	DiagAvailability DiagnosticKind = "availability"
	// DiagQuota: a need could not be converted to whole units and was dropped.
	DiagQuota DiagnosticKind = "quota"
	// DiagNoProvider: a positive need has no provider of its category, the
	// model is infeasible by construction.
	DiagNoProvider DiagnosticKind = "no_provider"
	// DiagCapacity: fewer open variables than units required.
	DiagCapacity DiagnosticKind = "capacity"
)

// Diagnostic is a builder finding about one client or provider.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Subject string         `json:"subject"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string { return fmt.Sprintf("%s %s: %s", d.Kind, d.Subject, d.Message) }

// Assignment ties a decision variable to its client, provider and timeslot,
// given as indexes into the dataset.
type Assignment struct {
	Var      solver.Var
	Client   int
	Provider int
	Timeslot int
	// Open is false when availability pinned the variable to zero.
	Open bool
}

// Demand is the exact unit count one client needs in one category, and the
// variables that can serve it.
type Demand struct {
	Client   int
	Category string
	Units    int
	Vars     []solver.Var
}

// BuildOptions parameterise Build.
type BuildOptions struct {
	Grid   timegrid.Grid
	Policy model.QuotaPolicy
}

// Encoding is the model of one run plus the bookkeeping needed to compose the
// objective and decode a solution.
type Encoding struct {
	Model       *solver.Model
	Dataset     model.Dataset
	Grid        timegrid.Grid
	Assignments []Assignment
	Demands     []Demand
	Diagnostics []Diagnostic

	clients   []*timegrid.Index
	providers []*timegrid.Index
	covers    [][]timegrid.Unit
}

// CheckTimeslots enforces the coverage precondition on every timeslot.
func CheckTimeslots(g timegrid.Grid, slots []model.Timeslot) error {
	for _, t := range slots {
		if err := g.CheckSpan(t.Start, t.End); err != nil {
			return fmt.Errorf("timeslot %s: %w", t.ID, err)
		}
	}
	return nil
}

// Build encodes the hard constraints: one variable per timeslot for every
// client/provider pair whose category the client needs, availability
// fixings, per-slot exclusivity for providers and clients, and exact demand.
// The timeslots must satisfy CheckTimeslots.
func Build(ds model.Dataset, opts BuildOptions) *Encoding {
	enc := &Encoding{Model: solver.NewModel(), Dataset: ds, Grid: opts.Grid}
	enc.indexAvailability()
	enc.covers = make([][]timegrid.Unit, len(ds.Timeslots))
	for i, t := range ds.Timeslots {
		enc.covers[i] = opts.Grid.Cover(t.Start, t.End)
	}

	units := enc.demandUnits(opts)
	m := enc.Model
	for ci, c := range ds.Clients {
		for pi, p := range ds.Providers {
			if units[ci][p.Category] <= 0 {
				continue
			}
			for ti, t := range ds.Timeslots {
				v := m.NewVar(fmt.Sprintf("x[%s,%s,%s]", c.ID, p.ID, t.ID))
				open := enc.clients[ci].ContainsAll(t.Day, enc.covers[ti]) &&
					enc.providers[pi].ContainsAll(t.Day, enc.covers[ti])
				if !open {
					m.Fix(v, 0)
				}
				enc.Assignments = append(enc.Assignments, Assignment{Var: v, Client: ci, Provider: pi, Timeslot: ti, Open: open})
			}
		}
	}

	enc.addExclusivity()
	enc.addDemand(units)
	return enc
}

func (enc *Encoding) indexAvailability() {
	ds := enc.Dataset
	enc.clients = make([]*timegrid.Index, len(ds.Clients))
	for i, c := range ds.Clients {
		x, issues := timegrid.NewIndex(enc.Grid, c.Availability)
		enc.clients[i] = x
		for _, is := range issues {
			enc.diag(DiagAvailability, "client "+c.ID, is.String())
		}
	}
	enc.providers = make([]*timegrid.Index, len(ds.Providers))
	for i, p := range ds.Providers {
		x, issues := timegrid.NewIndex(enc.Grid, p.Availability)
		enc.providers[i] = x
		for _, is := range issues {
			enc.diag(DiagAvailability, "provider "+p.ID, is.String())
		}
	}
}

// demandUnits converts each positive need to units under the quota policy.
func (enc *Encoding) demandUnits(opts BuildOptions) []map[string]int {
	perHour := opts.Grid.UnitsPerHour()
	out := make([]map[string]int, len(enc.Dataset.Clients))
	for ci, c := range enc.Dataset.Clients {
		out[ci] = make(map[string]int)
		for _, cat := range sortedCategories(c.Needs) {
			hours := c.Needs[cat]
			if hours == 0 {
				continue
			}
			n, err := opts.Policy.Units(hours, perHour)
			if err != nil {
				enc.diag(DiagQuota, "client "+c.ID, fmt.Sprintf("%s dropped: %v", cat, err))
				continue
			}
			if n == 0 {
				enc.diag(DiagQuota, "client "+c.ID, fmt.Sprintf("%s rounds to zero units", cat))
				continue
			}
			out[ci][cat] = n
		}
	}
	return out
}

func (enc *Encoding) addExclusivity() {
	nSlots := len(enc.Dataset.Timeslots)
	byProvider := make([][]solver.Var, len(enc.Dataset.Providers)*nSlots)
	byClient := make([][]solver.Var, len(enc.Dataset.Clients)*nSlots)
	for _, a := range enc.Assignments {
		if !a.Open {
			continue
		}
		byProvider[a.Provider*nSlots+a.Timeslot] = append(byProvider[a.Provider*nSlots+a.Timeslot], a.Var)
		byClient[a.Client*nSlots+a.Timeslot] = append(byClient[a.Client*nSlots+a.Timeslot], a.Var)
	}
	for i, vars := range byProvider {
		p, t := enc.Dataset.Providers[i/nSlots], enc.Dataset.Timeslots[i%nSlots]
		enc.Model.AtMostOne(fmt.Sprintf("provider[%s,%s]", p.ID, t.ID), vars)
	}
	for i, vars := range byClient {
		c, t := enc.Dataset.Clients[i/nSlots], enc.Dataset.Timeslots[i%nSlots]
		enc.Model.AtMostOne(fmt.Sprintf("client[%s,%s]", c.ID, t.ID), vars)
	}
}

func (enc *Encoding) addDemand(units []map[string]int) {
	type key struct {
		client   int
		category string
	}
	vars := make(map[key][]solver.Var)
	open := make(map[key]int)
	for _, a := range enc.Assignments {
		k := key{a.Client, enc.Dataset.Providers[a.Provider].Category}
		vars[k] = append(vars[k], a.Var)
		if a.Open {
			open[k]++
		}
	}
	for ci, c := range enc.Dataset.Clients {
		for _, cat := range sortedCategories(units[ci]) {
			n := units[ci][cat]
			k := key{ci, cat}
			if len(vars[k]) == 0 && len(enc.Dataset.Timeslots) > 0 {
				enc.diag(DiagNoProvider, "client "+c.ID, fmt.Sprintf("no provider offers %s", cat))
			} else if open[k] < n {
				enc.diag(DiagCapacity, "client "+c.ID,
					fmt.Sprintf("%s needs %d units but only %d slots are mutually available", cat, n, open[k]))
			}
			enc.Model.Exactly(fmt.Sprintf("demand[%s,%s]", c.ID, cat), vars[k], n)
			enc.Demands = append(enc.Demands, Demand{Client: ci, Category: cat, Units: n, Vars: vars[k]})
		}
	}
}

func (enc *Encoding) diag(kind DiagnosticKind, subject, msg string) {
	enc.Diagnostics = append(enc.Diagnostics, Diagnostic{Kind: kind, Subject: subject, Message: msg})
}

// OpenVariables counts variables not pinned by availability.
func (enc *Encoding) OpenVariables() int {
	n := 0
	for _, a := range enc.Assignments {
		if a.Open {
			n++
		}
	}
	return n
}

func sortedCategories[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
