package model

import (
	"fmt"

	"github.com/kilianp07/caresched/core/timegrid"
)

// Client needs a weekly number of hours per service category.
type Client struct {
	ID   string `json:"id" yaml:"id" validate:"required"`
	Name string `json:"name" yaml:"name" validate:"required"`
	// Needs maps a category to weekly hours. Negative or non-finite hours are
	// dropped with a diagnostic when the model is built.
	Needs map[string]float64 `json:"needs" yaml:"needs" validate:"dive,keys,required,endkeys"`
	// Availability maps a weekday label to unit starts or ranges, see
	// timegrid.NewIndex.
	Availability map[string][]string `json:"availability" yaml:"availability"`
}

// Provider offers exactly one service category.
type Provider struct {
	ID           string              `json:"id" yaml:"id" validate:"required"`
	Name         string              `json:"name" yaml:"name" validate:"required"`
	Category     string              `json:"category" yaml:"category" validate:"required"`
	Availability map[string][]string `json:"availability" yaml:"availability"`
}

// Timeslot is a schedulable interval on one weekday.
type Timeslot struct {
	ID    string           `json:"id" yaml:"id" validate:"required"`
	Day   timegrid.Weekday `json:"day" yaml:"day" validate:"required"`
	Start timegrid.Clock   `json:"start" yaml:"start"`
	End   timegrid.Clock   `json:"end" yaml:"end"`
}

func (t Timeslot) String() string {
	return fmt.Sprintf("%s %s-%s", t.Day, t.Start, t.End)
}

// Consultation is one committed client/provider/timeslot assignment.
type Consultation struct {
	ClientID   string `json:"client_id" yaml:"client_id"`
	ProviderID string `json:"provider_id" yaml:"provider_id"`
	TimeslotID string `json:"timeslot_id" yaml:"timeslot_id"`
	Category   string `json:"category" yaml:"category"`
}

// Schedule is the output of one successful run.
type Schedule struct {
	RunID         string         `json:"run_id" yaml:"run_id"`
	Consultations []Consultation `json:"consultations" yaml:"consultations"`
}

// ForClient returns the consultations of one client.
func (s *Schedule) ForClient(id string) []Consultation {
	if s == nil {
		return nil
	}
	var out []Consultation
	for _, c := range s.Consultations {
		if c.ClientID == id {
			out = append(out, c)
		}
	}
	return out
}

// ForProvider returns the consultations of one provider.
func (s *Schedule) ForProvider(id string) []Consultation {
	if s == nil {
		return nil
	}
	var out []Consultation
	for _, c := range s.Consultations {
		if c.ProviderID == id {
			out = append(out, c)
		}
	}
	return out
}
