package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	corelogger "github.com/kilianp07/caresched/core/logger"
	"github.com/kilianp07/caresched/core/metrics"
	"github.com/kilianp07/caresched/core/model"
	"github.com/kilianp07/caresched/core/schedule"
	"github.com/kilianp07/caresched/infra/logger"
)

// Client is the transport used by SchedulePublisher.
type Client interface {
	Publish(ctx context.Context, topic, messageID string, payload []byte) (attempts int, err error)
	WaitForAck(messageID string, timeout time.Duration) (bool, error)
}

// Appointment is one consultation as seen by a provider or a client.
type Appointment struct {
	TimeslotID string `json:"timeslot_id"`
	Day        string `json:"day"`
	Start      string `json:"start"`
	End        string `json:"end"`
	ClientID   string `json:"client_id,omitempty"`
	ProviderID string `json:"provider_id,omitempty"`
	Category   string `json:"category"`
}

// ScheduleMessage is published on the topic of one provider or client.
type ScheduleMessage struct {
	MessageID    string        `json:"message_id"`
	RunID        string        `json:"run_id"`
	Subject      string        `json:"subject"`
	Appointments []Appointment `json:"appointments"`
	Timestamp    int64         `json:"timestamp"`
}

// RunMessage summarises a run on the runs topic.
type RunMessage struct {
	MessageID     string `json:"message_id"`
	RunID         string `json:"run_id"`
	Status        string `json:"status"`
	Feasible      bool   `json:"feasible"`
	Consultations int    `json:"consultations"`
	Timestamp     int64  `json:"timestamp"`
}

// SchedulePublisher sends run outcomes to the broker.
//
// Topics, under the configured prefix:
//
//	<prefix>/runs                         RunMessage for every run
//	<prefix>/providers/<id>/schedule      ScheduleMessage per provider
//	<prefix>/clients/<id>/schedule        ScheduleMessage per client
type SchedulePublisher struct {
	client     Client
	prefix     string
	ackTimeout time.Duration
	sink       metrics.MetricsSink
	log        corelogger.Logger
	now        func() time.Time
}

// NewSchedulePublisher wraps client. A nil sink disables publish metrics.
func NewSchedulePublisher(client Client, cfg Config, sink metrics.MetricsSink) *SchedulePublisher {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &SchedulePublisher{
		client:     client,
		prefix:     cfg.TopicPrefix,
		ackTimeout: cfg.AckTimeout,
		sink:       sink,
		log:        logger.New("schedule_publisher"),
		now:        time.Now,
	}
}

// ProviderTopic returns the schedule topic of a provider.
func (p *SchedulePublisher) ProviderTopic(id string) string {
	return fmt.Sprintf("%s/providers/%s/schedule", p.prefix, id)
}

// ClientTopic returns the schedule topic of a client.
func (p *SchedulePublisher) ClientTopic(id string) string {
	return fmt.Sprintf("%s/clients/%s/schedule", p.prefix, id)
}

// RunsTopic returns the run summary topic.
func (p *SchedulePublisher) RunsTopic() string { return p.prefix + "/runs" }

// PublishOutcome sends the run summary and, when a schedule exists, one
// message per provider and per client with consultations. Every message is
// attempted; the returned error joins the failures.
func (p *SchedulePublisher) PublishOutcome(ctx context.Context, ev schedule.Event) error {
	out := ev.Outcome
	sum := RunMessage{
		MessageID: uuid.NewString(),
		RunID:     out.RunID,
		Status:    out.Status.String(),
		Feasible:  out.Feasible(),
		Timestamp: p.now().UnixMilli(),
	}
	if out.Schedule != nil {
		sum.Consultations = len(out.Schedule.Consultations)
	}
	errs := []error{p.send(ctx, p.RunsTopic(), sum.MessageID, sum, false)}
	if out.Schedule == nil {
		return errors.Join(errs...)
	}

	slots := ev.Dataset.TimeslotByID()
	byProvider := make(map[string][]Appointment)
	byClient := make(map[string][]Appointment)
	for _, c := range out.Schedule.Consultations {
		t := slots[c.TimeslotID]
		base := Appointment{
			TimeslotID: c.TimeslotID,
			Day:        t.Day.String(),
			Start:      t.Start.String(),
			End:        t.End.String(),
			Category:   c.Category,
		}
		pa, ca := base, base
		pa.ClientID = c.ClientID
		ca.ProviderID = c.ProviderID
		byProvider[c.ProviderID] = append(byProvider[c.ProviderID], pa)
		byClient[c.ClientID] = append(byClient[c.ClientID], ca)
	}
	for _, pr := range ev.Dataset.Providers {
		if apps, ok := byProvider[pr.ID]; ok {
			errs = append(errs, p.sendSchedule(ctx, p.ProviderTopic(pr.ID), out.RunID, pr.ID, apps, slots))
		}
	}
	for _, cl := range ev.Dataset.Clients {
		if apps, ok := byClient[cl.ID]; ok {
			errs = append(errs, p.sendSchedule(ctx, p.ClientTopic(cl.ID), out.RunID, cl.ID, apps, slots))
		}
	}
	return errors.Join(errs...)
}

func (p *SchedulePublisher) sendSchedule(ctx context.Context, topic, runID, subject string, apps []Appointment, slots map[string]model.Timeslot) error {
	sort.SliceStable(apps, func(i, j int) bool {
		a, b := slots[apps[i].TimeslotID], slots[apps[j].TimeslotID]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.Start < b.Start
	})
	msg := ScheduleMessage{
		MessageID:    uuid.NewString(),
		RunID:        runID,
		Subject:      subject,
		Appointments: apps,
		Timestamp:    p.now().UnixMilli(),
	}
	return p.send(ctx, topic, msg.MessageID, msg, p.ackTimeout > 0)
}

func (p *SchedulePublisher) send(ctx context.Context, topic, messageID string, msg any, awaitAck bool) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	start := p.now()
	ackID := ""
	if awaitAck {
		ackID = messageID
	}
	attempts, err := p.client.Publish(ctx, topic, ackID, payload)
	p.record(metrics.PublishEvent{Topic: topic, Attempts: attempts, Success: err == nil, Latency: p.now().Sub(start), Time: start})
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	if awaitAck {
		if ok, err := p.client.WaitForAck(ackID, p.ackTimeout); !ok {
			p.log.Warnf("no ack for %s on %s: %v", messageID, topic, err)
		}
	}
	return nil
}

func (p *SchedulePublisher) record(ev metrics.PublishEvent) {
	rec, ok := p.sink.(metrics.PublishRecorder)
	if !ok {
		return
	}
	if err := rec.RecordPublish(ev); err != nil {
		p.log.Warnf("record publish: %v", err)
	}
}

// Run publishes every event received until events closes or ctx ends.
func (p *SchedulePublisher) Run(ctx context.Context, events <-chan schedule.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := p.PublishOutcome(ctx, ev); err != nil {
				p.log.Errorf("publish run %s: %v", ev.Outcome.RunID, err)
			}
		}
	}
}
