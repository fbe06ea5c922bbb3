package config

import (
	"time"

	"github.com/kilianp07/caresched/core/timegrid"
)

// GridConfig is the operating window and atomic unit length.
type GridConfig struct {
	Open               string `json:"open"`
	Close              string `json:"close"`
	GranularityMinutes int    `json:"granularity_minutes"`
}

// SetDefaults applies the 07:00-19:00 window in half-hour units.
func (c *GridConfig) SetDefaults() {
	if c.Open == "" {
		c.Open = "07:00"
	}
	if c.Close == "" {
		c.Close = "19:00"
	}
	if c.GranularityMinutes == 0 {
		c.GranularityMinutes = 30
	}
}

// Validate checks that the window parses and splits into whole units.
func (c GridConfig) Validate() error {
	_, err := c.Build()
	return err
}

// Build returns the grid described by c.
func (c GridConfig) Build() (timegrid.Grid, error) {
	open, err := timegrid.ParseClock(c.Open)
	if err != nil {
		return timegrid.Grid{}, err
	}
	closing, err := timegrid.ParseClock(c.Close)
	if err != nil {
		return timegrid.Grid{}, err
	}
	return timegrid.NewGrid(open, closing, time.Duration(c.GranularityMinutes)*time.Minute)
}
