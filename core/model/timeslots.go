package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kilianp07/caresched/core/timegrid"
)

// GenerateTimeslots lays out back-to-back slots of the given length across the
// operating window of each day. Identifiers are "1", "2", ... in day then time
// order.
func GenerateTimeslots(g timegrid.Grid, days []timegrid.Weekday, length time.Duration) ([]Timeslot, error) {
	minutes := int(length / time.Minute)
	if minutes <= 0 || minutes%g.Step() != 0 {
		return nil, fmt.Errorf("slot length %s: %w", length, timegrid.ErrMisaligned)
	}
	var out []Timeslot
	id := 1
	for _, d := range days {
		for start := g.Open(); start.Add(minutes) <= g.Close(); start = start.Add(minutes) {
			out = append(out, Timeslot{
				ID:    strconv.Itoa(id),
				Day:   d,
				Start: start,
				End:   start.Add(minutes),
			})
			id++
		}
	}
	return out, nil
}
