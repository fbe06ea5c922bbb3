package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/kilianp07/caresched/core/logger"
	"github.com/kilianp07/caresched/core/metrics"
	"github.com/kilianp07/caresched/core/model"
	"github.com/kilianp07/caresched/core/runlog"
	"github.com/kilianp07/caresched/core/solver"
	"github.com/kilianp07/caresched/core/timegrid"
	infralogger "github.com/kilianp07/caresched/infra/logger"
	"github.com/kilianp07/caresched/internal/eventbus"
)

// ErrInvalidInput wraps dataset and timeslot errors that stop a run before
// any model is built.
var ErrInvalidInput = errors.New("schedule: invalid input")

// Config tunes a Scheduler.
type Config struct {
	Policy  model.QuotaPolicy `json:"quota_policy" yaml:"quota_policy"`
	Weights Weights           `json:"weights" yaml:"weights"`
	// TimeLimit bounds one solve; 0 means no limit.
	TimeLimit time.Duration `json:"time_limit" yaml:"time_limit"`
}

// Stats are model sizes and timings of a run.
type Stats struct {
	Variables     int            `json:"variables"`
	OpenVariables int            `json:"open_variables"`
	Constraints   int            `json:"constraints"`
	Objective     int            `json:"objective"`
	Terms         ObjectiveStats `json:"objective_terms"`
	Duration      time.Duration  `json:"duration"`
}

// Outcome is the result of one run. Schedule is nil when no assignment was
// found, whether the model is infeasible or the time limit hit first.
type Outcome struct {
	RunID       string          `json:"run_id"`
	Engine      string          `json:"engine"`
	Status      solver.Status   `json:"status"`
	Schedule    *model.Schedule `json:"schedule"`
	Diagnostics []Diagnostic    `json:"diagnostics"`
	Violations  []Violation     `json:"violations"`
	Stats       Stats           `json:"stats"`
	Finished    time.Time       `json:"finished"`
}

// Feasible reports whether the run produced a schedule.
func (o Outcome) Feasible() bool { return o.Schedule != nil }

// Event is published on the bus after every completed run.
type Event struct {
	Outcome Outcome
	Dataset model.Dataset
}

// Scheduler runs the build, solve, decode and verify pipeline.
type Scheduler struct {
	grid   timegrid.Grid
	engine solver.Engine
	cfg    Config
	log    logger.Logger
	sink   metrics.MetricsSink
	store  runlog.Store
	bus    *eventbus.Bus[Event]
	now    func() time.Time
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(s *Scheduler) { s.log = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.MetricsSink) Option { return func(s *Scheduler) { s.sink = m } }

// WithRunLog sets the run log store.
func WithRunLog(st runlog.Store) Option { return func(s *Scheduler) { s.store = st } }

// WithEvents publishes an Event per run on bus.
func WithEvents(bus *eventbus.Bus[Event]) Option { return func(s *Scheduler) { s.bus = bus } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// New returns a Scheduler. Zero weights are kept as configured; use
// DefaultWeights for the standard preference.
func New(grid timegrid.Grid, engine solver.Engine, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		grid:   grid,
		engine: engine,
		cfg:    cfg,
		log:    infralogger.NopLogger{},
		sink:   metrics.NopSink{},
		store:  runlog.NopStore{},
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Grid returns the unit grid the scheduler works on.
func (s *Scheduler) Grid() timegrid.Grid { return s.grid }

// Run schedules ds. Infeasibility and time-outs are reported through the
// Outcome status; an error means the input was rejected or the engine
// failed.
func (s *Scheduler) Run(ctx context.Context, ds model.Dataset) (Outcome, error) {
	start := s.now()
	out := Outcome{RunID: uuid.NewString(), Engine: s.engine.Name()}
	if err := ds.Validate(); err != nil {
		return out, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := CheckTimeslots(s.grid, ds.Timeslots); err != nil {
		return out, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	enc := Build(ds, BuildOptions{Grid: s.grid, Policy: s.cfg.Policy})
	out.Diagnostics = enc.Diagnostics
	for _, d := range enc.Diagnostics {
		if d.Kind == DiagNoProvider || d.Kind == DiagCapacity {
			s.log.Warnf("No consultations possible: %s", d)
			continue
		}
		s.log.Warnf("%s", d)
	}
	out.Stats.Terms = ComposeObjective(enc, s.cfg.Weights)
	out.Stats.Variables = enc.Model.NumVars()
	out.Stats.OpenVariables = enc.OpenVariables()
	out.Stats.Constraints = enc.Model.NumConstraints()
	s.log.Debugw("model built", map[string]any{
		"run_id":      out.RunID,
		"variables":   out.Stats.Variables,
		"open":        out.Stats.OpenVariables,
		"constraints": out.Stats.Constraints,
	})

	solveCtx := ctx
	if s.cfg.TimeLimit > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, s.cfg.TimeLimit)
		defer cancel()
	}
	res, err := s.engine.Solve(solveCtx, enc.Model)
	if err != nil {
		return out, fmt.Errorf("solve with %s: %w", s.engine.Name(), err)
	}
	out.Status = res.Status
	out.Stats.Objective = res.Objective

	switch {
	case res.Status.HasSolution():
		cons := Decode(enc, res.Values)
		out.Violations = Verify(enc, cons)
		for _, v := range out.Violations {
			s.log.Errorf("schedule verification failed: %s", v)
		}
		out.Schedule = &model.Schedule{RunID: out.RunID, Consultations: cons}
	case res.Status == solver.StatusInfeasible:
		s.log.Infof("run %s: no schedule satisfies every need", out.RunID)
	default:
		s.log.Warnf("run %s: time limit reached without a schedule", out.RunID)
	}

	out.Finished = s.now()
	out.Stats.Duration = out.Finished.Sub(start)
	s.record(ctx, ds, out)
	return out, nil
}

func (s *Scheduler) record(ctx context.Context, ds model.Dataset, out Outcome) {
	var consultations int
	var clientIDs []string
	if out.Schedule != nil {
		consultations = len(out.Schedule.Consultations)
		clientIDs = lo.Uniq(lo.Map(out.Schedule.Consultations, func(c model.Consultation, _ int) string { return c.ClientID }))
	}
	ev := metrics.RunEvent{
		RunID:         out.RunID,
		Engine:        out.Engine,
		Status:        out.Status.String(),
		Clients:       len(ds.Clients),
		Providers:     len(ds.Providers),
		Timeslots:     len(ds.Timeslots),
		Variables:     out.Stats.Variables,
		OpenVariables: out.Stats.OpenVariables,
		Constraints:   out.Stats.Constraints,
		Consultations: consultations,
		Violations:    len(out.Violations),
		Diagnostics:   len(out.Diagnostics),
		Duration:      out.Stats.Duration,
		Time:          out.Finished,
	}
	if err := s.sink.RecordRun(ev); err != nil {
		s.log.Warnf("record run metrics: %v", err)
	}
	if rec, ok := s.sink.(metrics.DiagnosticRecorder); ok && len(out.Diagnostics) > 0 {
		counts := lo.CountValuesBy(out.Diagnostics, func(d Diagnostic) string { return string(d.Kind) })
		evs := make([]metrics.DiagnosticEvent, 0, len(counts))
		for _, kind := range sortedCategories(counts) {
			evs = append(evs, metrics.DiagnosticEvent{RunID: out.RunID, Kind: kind, Count: counts[kind], Time: out.Finished})
		}
		if err := rec.RecordDiagnostics(evs); err != nil {
			s.log.Warnf("record diagnostics: %v", err)
		}
	}

	err := s.store.Append(ctx, runlog.Record{
		Timestamp:     out.Finished,
		RunID:         out.RunID,
		Engine:        out.Engine,
		Status:        out.Status.String(),
		Clients:       len(ds.Clients),
		Providers:     len(ds.Providers),
		Timeslots:     len(ds.Timeslots),
		Variables:     out.Stats.Variables,
		Constraints:   out.Stats.Constraints,
		Consultations: consultations,
		Violations:    len(out.Violations),
		DurationMS:    out.Stats.Duration.Milliseconds(),
		ClientIDs:     clientIDs,
		Diagnostics:   lo.Map(out.Diagnostics, func(d Diagnostic, _ int) string { return d.String() }),
	})
	if err != nil {
		s.log.Warnf("append run log: %v", err)
	}
	if s.bus != nil {
		s.bus.Publish(Event{Outcome: out, Dataset: ds})
	}
}
