package schedule_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/caresched/core/metrics"
	"github.com/kilianp07/caresched/core/model"
	"github.com/kilianp07/caresched/core/runlog"
	"github.com/kilianp07/caresched/core/schedule"
	"github.com/kilianp07/caresched/core/solver"
	"github.com/kilianp07/caresched/core/timegrid"
	"github.com/kilianp07/caresched/infra/solver/pseudobool"
	"github.com/kilianp07/caresched/infra/solver/simplex"
	"github.com/kilianp07/caresched/internal/eventbus"
)

var halfHour = timegrid.MustGrid("07:00", "19:00", 30*time.Minute)

func slot(id string, day timegrid.Weekday, start, end string) model.Timeslot {
	return model.Timeslot{ID: id, Day: day, Start: timegrid.MustClock(start), End: timegrid.MustClock(end)}
}

func client(id string, needs map[string]float64, avail map[string][]string) model.Client {
	return model.Client{ID: id, Name: "Client " + id, Needs: needs, Availability: avail}
}

func provider(id, category string, avail map[string][]string) model.Provider {
	return model.Provider{ID: id, Name: "Provider " + id, Category: category, Availability: avail}
}

func engines() []solver.Engine {
	return []solver.Engine{pseudobool.New(nil), simplex.New(simplex.Config{})}
}

func run(t *testing.T, e solver.Engine, ds model.Dataset, opts ...schedule.Option) schedule.Outcome {
	t.Helper()
	s := schedule.New(halfHour, e, schedule.Config{Weights: schedule.DefaultWeights(), TimeLimit: 10 * time.Second}, opts...)
	out, err := s.Run(context.Background(), ds)
	require.NoError(t, err)
	return out
}

func timeslotIDs(cons []model.Consultation) []string {
	ids := make([]string, len(cons))
	for i, c := range cons {
		ids[i] = c.TimeslotID
	}
	sort.Strings(ids)
	return ids
}

func TestRun_SinglePair(t *testing.T) {
	avail := map[string][]string{"Monday": {"09:00-10:00"}}
	ds := model.Dataset{
		Clients:   []model.Client{client("c1", map[string]float64{"physio": 1}, avail)},
		Providers: []model.Provider{provider("p1", "physio", avail)},
		Timeslots: []model.Timeslot{
			slot("t1", timegrid.Monday, "09:00", "09:30"),
			slot("t2", timegrid.Monday, "09:30", "10:00"),
		},
	}
	for _, e := range engines() {
		t.Run(e.Name(), func(t *testing.T) {
			out := run(t, e, ds)
			require.True(t, out.Feasible())
			assert.Equal(t, solver.StatusOptimal, out.Status)
			assert.Empty(t, out.Violations)
			require.Len(t, out.Schedule.Consultations, 2)
			for _, c := range out.Schedule.Consultations {
				assert.Equal(t, "c1", c.ClientID)
				assert.Equal(t, "p1", c.ProviderID)
				assert.Equal(t, "physio", c.Category)
			}
			assert.Equal(t, []string{"t1", "t2"}, timeslotIDs(out.Schedule.Consultations))
			assert.Equal(t, out.RunID, out.Schedule.RunID)
		})
	}
}

func TestRun_Infeasible(t *testing.T) {
	monday := map[string][]string{"Monday": {"09:00-10:00"}}
	slots := []model.Timeslot{
		slot("t1", timegrid.Monday, "09:00", "09:30"),
		slot("t2", timegrid.Monday, "09:30", "10:00"),
	}
	cases := []struct {
		name string
		ds   model.Dataset
		diag schedule.DiagnosticKind
	}{
		{
			name: "disjoint days",
			ds: model.Dataset{
				Clients:   []model.Client{client("c1", map[string]float64{"physio": 1}, monday)},
				Providers: []model.Provider{provider("p1", "physio", map[string][]string{"Tuesday": {"09:00-10:00"}})},
				Timeslots: slots,
			},
			diag: schedule.DiagCapacity,
		},
		{
			name: "provider capacity",
			ds: model.Dataset{
				Clients: []model.Client{
					client("c1", map[string]float64{"physio": 1}, monday),
					client("c2", map[string]float64{"physio": 1}, monday),
				},
				Providers: []model.Provider{provider("p1", "physio", monday)},
				Timeslots: slots,
			},
		},
		{
			name: "no provider of category",
			ds: model.Dataset{
				Clients:   []model.Client{client("c1", map[string]float64{"speech": 1}, monday)},
				Providers: []model.Provider{provider("p1", "physio", monday)},
				Timeslots: slots,
			},
			diag: schedule.DiagNoProvider,
		},
		{
			name: "no timeslots",
			ds: model.Dataset{
				Clients:   []model.Client{client("c1", map[string]float64{"physio": 1}, monday)},
				Providers: []model.Provider{provider("p1", "physio", monday)},
			},
		},
	}
	for _, c := range cases {
		for _, e := range engines() {
			t.Run(c.name+"/"+e.Name(), func(t *testing.T) {
				out := run(t, e, c.ds)
				assert.False(t, out.Feasible())
				assert.Nil(t, out.Schedule)
				assert.Equal(t, solver.StatusInfeasible, out.Status)
				if c.diag != "" {
					require.NotEmpty(t, out.Diagnostics)
					assert.Equal(t, c.diag, out.Diagnostics[0].Kind)
				}
			})
		}
	}
}

func TestRun_MultiDay(t *testing.T) {
	avail := map[string][]string{"Monday": {"09:00-10:00"}, "Tuesday": {"09:00-10:00"}}
	ds := model.Dataset{
		Clients:   []model.Client{client("c1", map[string]float64{"physio": 2}, avail)},
		Providers: []model.Provider{provider("p1", "physio", avail)},
		Timeslots: []model.Timeslot{
			slot("m1", timegrid.Monday, "09:00", "09:30"),
			slot("m2", timegrid.Monday, "09:30", "10:00"),
			slot("u1", timegrid.Tuesday, "09:00", "09:30"),
			slot("u2", timegrid.Tuesday, "09:30", "10:00"),
		},
	}
	out := run(t, pseudobool.New(nil), ds)
	require.True(t, out.Feasible())
	assert.Equal(t, []string{"m1", "m2", "u1", "u2"}, timeslotIDs(out.Schedule.Consultations))
}

func TestRun_ZeroNeed(t *testing.T) {
	avail := map[string][]string{"Monday": {"09:00-10:00"}}
	ds := model.Dataset{
		Clients:   []model.Client{client("c1", map[string]float64{"physio": 0}, avail)},
		Providers: []model.Provider{provider("p1", "physio", avail)},
		Timeslots: []model.Timeslot{slot("t1", timegrid.Monday, "09:00", "09:30")},
	}
	out := run(t, pseudobool.New(nil), ds)
	require.True(t, out.Feasible())
	assert.NotNil(t, out.Schedule.Consultations)
	assert.Empty(t, out.Schedule.Consultations)
	assert.Zero(t, out.Stats.Variables)
}

func TestRun_PrefersContinuity(t *testing.T) {
	avail := map[string][]string{"Monday": {"09:00-11:00"}}
	ds := model.Dataset{
		Clients: []model.Client{client("c1", map[string]float64{"physio": 1}, avail)},
		Providers: []model.Provider{
			provider("p1", "physio", avail),
			provider("p2", "physio", avail),
		},
		Timeslots: []model.Timeslot{
			slot("t4", timegrid.Monday, "10:30", "11:00"),
			slot("t1", timegrid.Monday, "09:00", "09:30"),
			slot("t3", timegrid.Monday, "10:00", "10:30"),
			slot("t2", timegrid.Monday, "09:30", "10:00"),
		},
	}
	for _, e := range engines() {
		t.Run(e.Name(), func(t *testing.T) {
			out := run(t, e, ds)
			require.True(t, out.Feasible())
			cons := out.Schedule.Consultations
			require.Len(t, cons, 2)
			assert.Equal(t, cons[0].ProviderID, cons[1].ProviderID, "same provider preferred")

			// three adjacent pairs: 3 continuity terms, 2 providers x 3 same-provider terms
			assert.Equal(t, 3, out.Stats.Terms.Continuity)
			assert.Equal(t, 6, out.Stats.Terms.SameProvider)
			assert.Equal(t, 1+3*1+6*2, out.Stats.Terms.PrimaryWeight)
			assert.Equal(t, 2*out.Stats.Terms.PrimaryWeight+1+2, out.Stats.Objective)

			ids := timeslotIDs(cons)
			adjacent := map[string]bool{"t1,t2": true, "t2,t3": true, "t3,t4": true}
			assert.True(t, adjacent[ids[0]+","+ids[1]], "slots %v are not adjacent", ids)
		})
	}
}

func TestRun_QuotaPolicy(t *testing.T) {
	avail := map[string][]string{"Monday": {"09:00-10:00"}}
	ds := model.Dataset{
		Clients:   []model.Client{client("c1", map[string]float64{"physio": 0.75}, avail)},
		Providers: []model.Provider{provider("p1", "physio", avail)},
		Timeslots: []model.Timeslot{
			slot("t1", timegrid.Monday, "09:00", "09:30"),
			slot("t2", timegrid.Monday, "09:30", "10:00"),
		},
	}
	out := run(t, pseudobool.New(nil), ds)
	require.True(t, out.Feasible())
	assert.Empty(t, out.Schedule.Consultations)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, schedule.DiagQuota, out.Diagnostics[0].Kind)

	s := schedule.New(halfHour, pseudobool.New(nil), schedule.Config{Policy: model.QuotaTruncate})
	out, err := s.Run(context.Background(), ds)
	require.NoError(t, err)
	require.True(t, out.Feasible())
	assert.Len(t, out.Schedule.Consultations, 1)
}

func TestRun_NegativeNeedDropped(t *testing.T) {
	avail := map[string][]string{"Monday": {"09:00-10:00"}}
	ds := model.Dataset{
		Clients:   []model.Client{client("c1", map[string]float64{"physio": -1, "speech": 0.5}, avail)},
		Providers: []model.Provider{provider("p1", "physio", avail), provider("p2", "speech", avail)},
		Timeslots: []model.Timeslot{slot("t1", timegrid.Monday, "09:00", "09:30")},
	}
	out := run(t, pseudobool.New(nil), ds)
	require.True(t, out.Feasible())
	require.Len(t, out.Schedule.Consultations, 1)
	assert.Equal(t, "p2", out.Schedule.Consultations[0].ProviderID)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, schedule.DiagQuota, out.Diagnostics[0].Kind)
	assert.Equal(t, "client c1", out.Diagnostics[0].Subject)
}

func TestRun_RejectsMisalignedTimeslot(t *testing.T) {
	ds := model.Dataset{
		Timeslots: []model.Timeslot{slot("t1", timegrid.Monday, "09:00", "09:45")},
	}
	s := schedule.New(halfHour, pseudobool.New(nil), schedule.Config{})
	_, err := s.Run(context.Background(), ds)
	require.Error(t, err)
	assert.True(t, errors.Is(err, schedule.ErrInvalidInput))
	assert.True(t, errors.Is(err, timegrid.ErrMisaligned))
}

// fixedEngine reports Optimal with every variable false.
type fixedEngine struct{}

func (fixedEngine) Name() string { return "fixed" }
func (fixedEngine) Solve(_ context.Context, m *solver.Model) (solver.Result, error) {
	return solver.Result{Status: solver.StatusOptimal, Values: make([]bool, m.NumVars())}, nil
}

// blockingEngine waits for the context to end.
type blockingEngine struct{}

func (blockingEngine) Name() string { return "blocking" }
func (blockingEngine) Solve(ctx context.Context, _ *solver.Model) (solver.Result, error) {
	<-ctx.Done()
	return solver.Result{Status: solver.StatusUnknown}, nil
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Debugf(string, ...any)         {}
func (l *recordingLogger) Debugw(string, map[string]any) {}
func (l *recordingLogger) Infof(string, ...any)          {}
func (l *recordingLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}
func (l *recordingLogger) Errorf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func TestRun_VerificationMismatchKeepsSchedule(t *testing.T) {
	avail := map[string][]string{"Monday": {"09:00-10:00"}}
	ds := model.Dataset{
		Clients:   []model.Client{client("c1", map[string]float64{"physio": 1}, avail)},
		Providers: []model.Provider{provider("p1", "physio", avail)},
		Timeslots: []model.Timeslot{slot("t1", timegrid.Monday, "09:00", "09:30")},
	}
	log := &recordingLogger{}
	s := schedule.New(halfHour, fixedEngine{}, schedule.Config{}, schedule.WithLogger(log))
	out, err := s.Run(context.Background(), ds)
	require.NoError(t, err)
	require.True(t, out.Feasible(), "suspect schedule is still returned")
	require.Len(t, out.Violations, 1)
	assert.Equal(t, "demand", out.Violations[0].Rule)
	require.Len(t, log.errors, 1)
	assert.Contains(t, log.errors[0], "scheduled 0 units, needs 2")
}

func TestRun_TimeLimit(t *testing.T) {
	avail := map[string][]string{"Monday": {"09:00-10:00"}}
	ds := model.Dataset{
		Clients:   []model.Client{client("c1", map[string]float64{"physio": 1}, avail)},
		Providers: []model.Provider{provider("p1", "physio", avail)},
		Timeslots: []model.Timeslot{slot("t1", timegrid.Monday, "09:00", "09:30")},
	}
	s := schedule.New(halfHour, blockingEngine{}, schedule.Config{TimeLimit: 20 * time.Millisecond})
	out, err := s.Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, solver.StatusUnknown, out.Status)
	assert.False(t, out.Feasible())
}

type captureSink struct {
	runs  []metrics.RunEvent
	diags []metrics.DiagnosticEvent
}

func (c *captureSink) RecordRun(ev metrics.RunEvent) error {
	c.runs = append(c.runs, ev)
	return nil
}

func (c *captureSink) RecordDiagnostics(evs []metrics.DiagnosticEvent) error {
	c.diags = append(c.diags, evs...)
	return nil
}

func TestRun_RecordsRun(t *testing.T) {
	avail := map[string][]string{"Monday": {"09:00-10:00"}}
	ds := model.Dataset{
		Clients: []model.Client{
			client("c1", map[string]float64{"physio": 1}, avail),
			client("c2", map[string]float64{"speech": 1}, avail),
		},
		Providers: []model.Provider{provider("p1", "physio", avail)},
		Timeslots: []model.Timeslot{
			slot("t1", timegrid.Monday, "09:00", "09:30"),
			slot("t2", timegrid.Monday, "09:30", "10:00"),
		},
	}
	sink := &captureSink{}
	store, err := runlog.NewJSONLStore(t.TempDir() + "/runs.jsonl")
	require.NoError(t, err)
	bus := eventbus.New[schedule.Event](1)
	events := bus.Subscribe()

	out := run(t, pseudobool.New(nil), ds, schedule.WithMetrics(sink), schedule.WithRunLog(store), schedule.WithEvents(bus))
	assert.Equal(t, solver.StatusInfeasible, out.Status)

	require.Len(t, sink.runs, 1)
	assert.Equal(t, out.RunID, sink.runs[0].RunID)
	assert.Equal(t, "infeasible", sink.runs[0].Status)
	assert.Equal(t, 2, sink.runs[0].Clients)
	require.Len(t, sink.diags, 1)
	assert.Equal(t, string(schedule.DiagNoProvider), sink.diags[0].Kind)

	recs, err := store.Query(context.Background(), runlog.Query{Status: "infeasible"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, out.RunID, recs[0].RunID)
	assert.Len(t, recs[0].Diagnostics, 1)

	select {
	case ev := <-events:
		assert.Equal(t, out.RunID, ev.Outcome.RunID)
	default:
		t.Fatal("no event published")
	}
}
