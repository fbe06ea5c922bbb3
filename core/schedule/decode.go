package schedule

import (
	"fmt"

	"github.com/kilianp07/caresched/core/model"
)

// Violation is a broken schedule invariant found by Verify.
type Violation struct {
	Rule    string `json:"rule"`
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
}

func (v Violation) String() string { return fmt.Sprintf("%s %s: %s", v.Rule, v.Subject, v.Detail) }

// Decode turns a solver assignment into consultations, in variable order.
// The result is never nil.
func Decode(enc *Encoding, values []bool) []model.Consultation {
	out := make([]model.Consultation, 0)
	for _, a := range enc.Assignments {
		if int(a.Var) >= len(values) || !values[a.Var] {
			continue
		}
		p := enc.Dataset.Providers[a.Provider]
		out = append(out, model.Consultation{
			ClientID:   enc.Dataset.Clients[a.Client].ID,
			ProviderID: p.ID,
			TimeslotID: enc.Dataset.Timeslots[a.Timeslot].ID,
			Category:   p.Category,
		})
	}
	return out
}

// Verify recounts consultations per client and category against the demand
// and rechecks exclusivity and availability.
func Verify(enc *Encoding, cons []model.Consultation) []Violation {
	var out []Violation
	type key struct{ client, category string }
	count := make(map[key]int)
	providerBusy := make(map[[2]string]bool)
	clientBusy := make(map[[2]string]bool)

	clientIdx := make(map[string]int, len(enc.Dataset.Clients))
	for i, c := range enc.Dataset.Clients {
		clientIdx[c.ID] = i
	}
	providerIdx := make(map[string]int, len(enc.Dataset.Providers))
	for i, p := range enc.Dataset.Providers {
		providerIdx[p.ID] = i
	}
	slotIdx := make(map[string]int, len(enc.Dataset.Timeslots))
	for i, t := range enc.Dataset.Timeslots {
		slotIdx[t.ID] = i
	}

	for _, c := range cons {
		count[key{c.ClientID, c.Category}]++
		pk, ck := [2]string{c.ProviderID, c.TimeslotID}, [2]string{c.ClientID, c.TimeslotID}
		if providerBusy[pk] {
			out = append(out, Violation{"provider_exclusivity", "provider " + c.ProviderID, "double booked in timeslot " + c.TimeslotID})
		}
		if clientBusy[ck] {
			out = append(out, Violation{"client_exclusivity", "client " + c.ClientID, "double booked in timeslot " + c.TimeslotID})
		}
		providerBusy[pk], clientBusy[ck] = true, true

		ci, okC := clientIdx[c.ClientID]
		pi, okP := providerIdx[c.ProviderID]
		ti, okT := slotIdx[c.TimeslotID]
		if !okC || !okP || !okT {
			out = append(out, Violation{"reference", "client " + c.ClientID, "unknown provider or timeslot"})
			continue
		}
		day := enc.Dataset.Timeslots[ti].Day
		if !enc.clients[ci].ContainsAll(day, enc.covers[ti]) || !enc.providers[pi].ContainsAll(day, enc.covers[ti]) {
			out = append(out, Violation{"availability", "client " + c.ClientID, fmt.Sprintf("timeslot %s with %s outside availability", c.TimeslotID, c.ProviderID)})
		}
	}

	for _, d := range enc.Demands {
		c := enc.Dataset.Clients[d.Client]
		k := key{c.ID, d.Category}
		if got := count[k]; got != d.Units {
			out = append(out, Violation{"demand", "client " + c.ID, fmt.Sprintf("%s scheduled %d units, needs %d", d.Category, got, d.Units)})
		}
		delete(count, k)
	}
	for k, n := range count {
		out = append(out, Violation{"demand", "client " + k.client, fmt.Sprintf("%s scheduled %d units without a need", k.category, n)})
	}
	return out
}
