package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/caresched/config"
	"github.com/kilianp07/caresched/core/factory"
	"github.com/kilianp07/caresched/core/model"
	"github.com/kilianp07/caresched/core/runlog"
	"github.com/kilianp07/caresched/core/timegrid"
)

func testConfig(t *testing.T, engine string) *config.Config {
	cfg := &config.Config{
		Solver: factory.ModuleConfig{Type: engine},
		RunLog: runlog.Config{Backend: "jsonl", Path: filepath.Join(t.TempDir(), "runs.jsonl")},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestServiceSolve(t *testing.T) {
	for _, engine := range []string{"pseudobool", "simplex"} {
		t.Run(engine, func(t *testing.T) {
			svc, err := New(testConfig(t, engine))
			require.NoError(t, err)
			defer func() { assert.NoError(t, svc.Close()) }()

			ds := model.Dataset{
				Clients: []model.Client{{
					ID: "C1", Name: "Ann", Needs: map[string]float64{"Psychologist": 1},
					Availability: map[string][]string{"Monday": {"09:00-11:00"}},
				}},
				Providers: []model.Provider{{
					ID: "P1", Name: "Dr. Kay", Category: "Psychologist",
					Availability: map[string][]string{"Monday": {"07:00-19:00"}},
				}},
				Timeslots: []model.Timeslot{
					{ID: "1", Day: timegrid.Monday, Start: timegrid.MustClock("09:00"), End: timegrid.MustClock("10:00")},
					{ID: "2", Day: timegrid.Monday, Start: timegrid.MustClock("10:00"), End: timegrid.MustClock("11:00")},
				},
			}
			out, err := svc.Solve(context.Background(), ds)
			require.NoError(t, err)
			require.True(t, out.Feasible())
			assert.Equal(t, engine, out.Engine)
			// 30 minute grid: one hour is two consultations
			assert.Len(t, out.Schedule.Consultations, 2)

			recs, err := svc.Store.Query(context.Background(), runlog.Query{})
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, out.RunID, recs[0].RunID)
		})
	}
}

func TestServiceRegistryTimeslots(t *testing.T) {
	svc, err := New(testConfig(t, ""))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()
	// 07:00-19:00 in half-hour slots over five days
	assert.Len(t, svc.Registry.Dataset().Timeslots, 120)
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.HTTP.Addr = "127.0.0.1:0"
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestNewRejectsUnknownEngine(t *testing.T) {
	cfg := testConfig(t, "cplex")
	_, err := New(cfg)
	assert.Error(t, err)
}
