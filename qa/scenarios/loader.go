// Package scenarios runs YAML described scheduling cases end to end against
// every solver engine.
package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/caresched/core/model"
	"github.com/kilianp07/caresched/core/schedule"
	"github.com/kilianp07/caresched/core/timegrid"
)

type GridDef struct {
	Open               string `yaml:"open"`
	Close              string `yaml:"close"`
	GranularityMinutes int    `yaml:"granularity_minutes"`
}

func (g GridDef) Build() (timegrid.Grid, error) {
	open, err := timegrid.ParseClock(g.Open)
	if err != nil {
		return timegrid.Grid{}, err
	}
	closing, err := timegrid.ParseClock(g.Close)
	if err != nil {
		return timegrid.Grid{}, err
	}
	return timegrid.NewGrid(open, closing, time.Duration(g.GranularityMinutes)*time.Minute)
}

type Expected struct {
	Status        string   `yaml:"status"`
	Consultations int      `yaml:"consultations"`
	Diagnostics   []string `yaml:"diagnostics,omitempty"`
	// Timeslots, when set, are the exact timeslot ids that must be booked.
	Timeslots []string `yaml:"timeslots,omitempty"`
}

type Scenario struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Grid        GridDef           `yaml:"grid"`
	QuotaPolicy model.QuotaPolicy `yaml:"quota_policy,omitempty"`
	Weights     *schedule.Weights `yaml:"weights,omitempty"`
	// Engines restricts the engines the scenario runs on; all when empty.
	Engines  []string      `yaml:"engines,omitempty"`
	Dataset  model.Dataset `yaml:"dataset"`
	Expected Expected      `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	if sc.Grid == (GridDef{}) {
		sc.Grid = GridDef{Open: "07:00", Close: "19:00", GranularityMinutes: 30}
	}
	return &sc, nil
}
