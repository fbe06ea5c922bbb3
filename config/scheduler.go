package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kilianp07/caresched/core/model"
	"github.com/kilianp07/caresched/core/schedule"
)

var validate = validator.New()

// SchedulerConfig tunes scheduling runs. Nil weights take the defaults, an
// explicit 0 disables the term.
type SchedulerConfig struct {
	TimeLimitSeconds   int    `json:"time_limit_seconds" validate:"gte=0"`
	ContinuityWeight   *int   `json:"continuity_weight" validate:"omitempty,gte=0"`
	SameProviderWeight *int   `json:"same_provider_weight" validate:"omitempty,gte=0"`
	QuotaPolicy        string `json:"quota_policy" validate:"omitempty,oneof=reject truncate round"`
	// SlotMinutes is the length of the weekly timeslots offered by the API.
	// Demand is counted in consultations, so it must be 0 (one grid unit) or
	// equal to the grid granularity.
	SlotMinutes int `json:"slot_minutes" validate:"gte=0"`
}

// SetDefaults fills the weights and the quota policy.
func (c *SchedulerConfig) SetDefaults() {
	w := schedule.DefaultWeights()
	if c.ContinuityWeight == nil {
		c.ContinuityWeight = &w.Continuity
	}
	if c.SameProviderWeight == nil {
		c.SameProviderWeight = &w.SameProvider
	}
	if c.QuotaPolicy == "" {
		c.QuotaPolicy = string(model.QuotaReject)
	}
}

func (c SchedulerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid scheduler config: %w", err)
	}
	return nil
}

// Schedule converts c into the scheduler's own configuration.
func (c SchedulerConfig) Schedule() (schedule.Config, error) {
	policy, err := model.ParseQuotaPolicy(c.QuotaPolicy)
	if err != nil {
		return schedule.Config{}, err
	}
	w := schedule.DefaultWeights()
	if c.ContinuityWeight != nil {
		w.Continuity = *c.ContinuityWeight
	}
	if c.SameProviderWeight != nil {
		w.SameProvider = *c.SameProviderWeight
	}
	return schedule.Config{
		Policy:    policy,
		Weights:   w,
		TimeLimit: time.Duration(c.TimeLimitSeconds) * time.Second,
	}, nil
}
