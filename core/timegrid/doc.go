// Package timegrid models the weekly operating grid: clock times, the
// Monday-Friday weekdays, the ordered sequence of atomic time units produced
// from an operating window and a granularity, and per-person availability
// indexed over those units.
//
// Units are addressed by position in the grid. A clock time maps to its unit
// with a single division, so lookups never depend on symbolic names.
package timegrid
