package model

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/samber/lo"

	"github.com/kilianp07/caresched/core/timegrid"
)

// DefaultCategories are used by Generate when none are given.
var DefaultCategories = []string{"Speech Therapist", "Psychologist", "Occupational Therapist"}

// GenerateOptions drive the synthetic dataset generator.
type GenerateOptions struct {
	Seed      int64
	Clients   int
	Providers int
	// Categories are assigned to providers round robin.
	Categories []string
	// MaxNeedHours bounds the random weekly hours per category.
	MaxNeedHours int
	// DayChance is the probability a person is available on a given day.
	DayChance float64
	// MinBlockHours is the shortest availability block on an available day.
	MinBlockHours int
	Policy        QuotaPolicy
}

func (o *GenerateOptions) setDefaults() {
	if o.Clients <= 0 {
		o.Clients = 10
	}
	if o.Providers <= 0 {
		o.Providers = 4
	}
	if len(o.Categories) == 0 {
		o.Categories = DefaultCategories
	}
	if o.MaxNeedHours <= 0 {
		o.MaxNeedHours = 3
	}
	if o.DayChance <= 0 {
		o.DayChance = 0.8
	}
	if o.MinBlockHours <= 0 {
		o.MinBlockHours = 4
	}
	if o.Policy == "" {
		o.Policy = QuotaTruncate
	}
}

// Generate builds a random but reproducible dataset: one contiguous
// availability block per available day, random needs per category scaled
// down to the client's available hours, and atomic timeslots over the whole
// week.
func Generate(g timegrid.Grid, opts GenerateOptions) (Dataset, error) {
	opts.setDefaults()
	rng := rand.New(rand.NewSource(opts.Seed))
	slots, err := GenerateTimeslots(g, timegrid.Weekdays, g.Granularity())
	if err != nil {
		return Dataset{}, err
	}
	ds := Dataset{Timeslots: slots}

	for i := 1; i <= opts.Providers; i++ {
		ds.Providers = append(ds.Providers, Provider{
			ID:           fmt.Sprintf("P%d", i),
			Name:         fmt.Sprintf("Provider %d", i),
			Category:     opts.Categories[(i-1)%len(opts.Categories)],
			Availability: randomAvailability(rng, g, opts),
		})
	}
	perHour := g.UnitsPerHour()
	for i := 1; i <= opts.Clients; i++ {
		avail := randomAvailability(rng, g, opts)
		availableHours := float64(unitCount(g, avail)) / float64(perHour)

		needs := make(map[string]float64, len(opts.Categories))
		for _, c := range opts.Categories {
			needs[c] = float64(rng.Intn(opts.MaxNeedHours + 1))
		}
		for lo.Sum(lo.Values(needs)) == 0 {
			needs[opts.Categories[rng.Intn(len(opts.Categories))]] = float64(1 + rng.Intn(opts.MaxNeedHours))
		}
		total := lo.Sum(lo.Values(needs))
		if total > availableHours {
			factor := availableHours / total
			for _, c := range sortedKeys(needs) {
				units, err := opts.Policy.Units(needs[c]*factor, perHour)
				if err != nil {
					units = 0
				}
				needs[c] = float64(units) / float64(perHour)
			}
			if lo.Sum(lo.Values(needs)) == 0 && availableHours > 0 {
				needs[opts.Categories[rng.Intn(len(opts.Categories))]] = 1
			}
		}
		ds.Clients = append(ds.Clients, Client{
			ID:           fmt.Sprintf("C%d", i),
			Name:         fmt.Sprintf("Client %d", i),
			Needs:        needs,
			Availability: avail,
		})
	}
	return ds, nil
}

func randomAvailability(rng *rand.Rand, g timegrid.Grid, opts GenerateOptions) map[string][]string {
	units := g.Units()
	n := len(units)
	minLen := min(opts.MinBlockHours*g.UnitsPerHour(), n)
	out := make(map[string][]string)
	for _, d := range timegrid.Weekdays {
		if rng.Float64() >= opts.DayChance {
			continue
		}
		start := rng.Intn(n - minLen + 1)
		end := start + minLen + rng.Intn(n-start-minLen+1)
		out[d.String()] = []string{units[start].Start.String() + "-" + units[end-1].End.String()}
	}
	return out
}

func unitCount(g timegrid.Grid, raw map[string][]string) int {
	x, _ := timegrid.NewIndex(g, raw)
	return x.Count()
}

func sortedKeys(m map[string]float64) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
