// Package runlog persists a summary of every scheduling run so that past
// runs can be listed and filtered.
package runlog

import (
	"context"
	"time"

	"github.com/samber/lo"
)

// Record captures one scheduling run.
type Record struct {
	Timestamp     time.Time `json:"timestamp"`
	RunID         string    `json:"run_id"`
	Engine        string    `json:"engine"`
	Status        string    `json:"status"`
	Clients       int       `json:"clients"`
	Providers     int       `json:"providers"`
	Timeslots     int       `json:"timeslots"`
	Variables     int       `json:"variables"`
	Constraints   int       `json:"constraints"`
	Consultations int       `json:"consultations"`
	Violations    int       `json:"violations"`
	DurationMS    int64     `json:"duration_ms"`
	// ClientIDs lists clients with at least one consultation.
	ClientIDs   []string `json:"client_ids,omitempty"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// Query defines filters for retrieving records. Zero fields match anything.
type Query struct {
	Start    time.Time
	End      time.Time
	Status   string
	ClientID string
	// Limit keeps the most recent records; 0 keeps all.
	Limit int
}

// Match reports whether r passes the filters of q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	if q.ClientID != "" && !lo.Contains(r.ClientIDs, q.ClientID) {
		return false
	}
	return true
}

func (q Query) limit(res []Record) []Record {
	if q.Limit > 0 && len(res) > q.Limit {
		return res[len(res)-q.Limit:]
	}
	return res
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
