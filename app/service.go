package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/caresched/api/scheduling"
	"github.com/kilianp07/caresched/config"
	coremetrics "github.com/kilianp07/caresched/core/metrics"
	"github.com/kilianp07/caresched/core/model"
	"github.com/kilianp07/caresched/core/runlog"
	"github.com/kilianp07/caresched/core/schedule"
	"github.com/kilianp07/caresched/core/solver"
	"github.com/kilianp07/caresched/core/timegrid"
	"github.com/kilianp07/caresched/infra/logger"
	"github.com/kilianp07/caresched/infra/metrics"
	"github.com/kilianp07/caresched/infra/mqtt"
	"github.com/kilianp07/caresched/internal/eventbus"

	// engines register themselves with the solver factory
	_ "github.com/kilianp07/caresched/infra/solver/pseudobool"
	_ "github.com/kilianp07/caresched/infra/solver/simplex"
)

// Service wires the scheduler to its run log, metrics, event bus, MQTT
// publisher and HTTP API.
type Service struct {
	cfg       *config.Config
	Scheduler *schedule.Scheduler
	Registry  *scheduling.Registry
	Store     runlog.Store
	sink      coremetrics.MetricsSink
	bus       *eventbus.Bus[schedule.Event]
	client    *mqtt.PahoClient
	publisher *mqtt.SchedulePublisher
	log       logger.Logger
}

// New creates a Service from the configuration. The MQTT client is only
// created when a broker is configured.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	grid, err := cfg.Grid.Build()
	if err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}
	schedCfg, err := cfg.Scheduler.Schedule()
	if err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	engine, err := solver.NewEngine(cfg.Solver)
	if err != nil {
		return nil, err
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := runlog.Open(cfg.RunLog)
	if err != nil {
		return nil, fmt.Errorf("run log: %w", err)
	}

	svc := &Service{cfg: cfg, Store: store, sink: sink, log: logg, bus: eventbus.New[schedule.Event](eventbus.DefaultBuffer)}
	if cfg.MQTT.Enabled() {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.client = client
		svc.publisher = mqtt.NewSchedulePublisher(client, cfg.MQTT, sink)
	}

	svc.Scheduler = schedule.New(grid, engine, schedCfg,
		schedule.WithLogger(logger.New("scheduler")),
		schedule.WithMetrics(sink),
		schedule.WithRunLog(store),
		schedule.WithEvents(svc.bus),
	)
	slotLen := grid.Granularity()
	if cfg.Scheduler.SlotMinutes > 0 {
		slotLen = time.Duration(cfg.Scheduler.SlotMinutes) * time.Minute
	}
	slots, err := model.GenerateTimeslots(grid, timegrid.Weekdays, slotLen)
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("timeslots: %w", err)
	}
	svc.Registry = scheduling.NewRegistry(slots)
	logg.Infof("scheduler ready: engine %s, %d units per day", engine.Name(), grid.Len())
	return svc, nil
}

// Solve runs the scheduler once and publishes the outcome when MQTT is
// configured.
func (s *Service) Solve(ctx context.Context, ds model.Dataset) (schedule.Outcome, error) {
	out, err := s.Scheduler.Run(ctx, ds)
	if err != nil {
		return out, err
	}
	if s.publisher != nil {
		if err := s.publisher.PublishOutcome(ctx, schedule.Event{Outcome: out, Dataset: ds}); err != nil {
			s.log.Errorf("publish run %s: %v", out.RunID, err)
		}
	}
	return out, nil
}

// Run serves the HTTP API, the metrics endpoint and the MQTT publisher until
// ctx is cancelled or one of them fails.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if s.publisher != nil {
		events := s.bus.Subscribe()
		g.Go(func() error {
			defer s.bus.Unsubscribe(events)
			s.publisher.Run(ctx, events)
			return nil
		})
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		g.Go(func() error {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				return fmt.Errorf("prom server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error { return s.serveHTTP(ctx) })
	return g.Wait()
}

func (s *Service) serveHTTP(ctx context.Context) error {
	gin.SetMode(s.cfg.HTTP.Mode)
	h := scheduling.NewHandler(s.Registry, s.Scheduler, s.Store, logger.New("api"))
	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: scheduling.NewRouter(h), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("serving API on %s", s.cfg.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.client != nil {
		s.client.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	return s.Store.Close()
}
