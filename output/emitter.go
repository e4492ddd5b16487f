package output

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/penguineer/SensorsReport/config"
	"github.com/penguineer/SensorsReport/errors"
	"github.com/penguineer/SensorsReport/event"
	"github.com/penguineer/SensorsReport/metric"
)

// Topic suffixes under each sensor's subtree.
const (
	labelSuffix      = "/Label"
	valueSuffix      = "/Value"
	cloudEventSuffix = "/CloudEvent"
)

// Publisher is the broker seam the emitter publishes through.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, retain bool) error
	IsConnected() bool
}

// Metrics tracks emission activity.
type Metrics struct {
	ValuesTotal      prometheus.Counter
	CloudEventsTotal prometheus.Counter
	LabelsTotal      prometheus.Counter
	FailuresTotal    prometheus.Counter
	SkippedTotal     prometheus.Counter
}

func newMetrics(registry *metric.Registry, logger *slog.Logger) *Metrics {
	m := &Metrics{
		ValuesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "output_values_total",
			Help: "Total number of value messages published",
		}),
		CloudEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "output_cloudevents_total",
			Help: "Total number of envelope messages published",
		}),
		LabelsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "output_labels_total",
			Help: "Total number of label messages published",
		}),
		FailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "output_failures_total",
			Help: "Total number of failed publishes",
		}),
		SkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "output_skipped_total",
			Help: "Total number of events skipped while disconnected",
		}),
	}

	if registry != nil {
		register := func(name string, err error) {
			if err != nil {
				logger.Warn("failed to register metric", "metric", name, "error", err)
			}
		}
		register("values_total", registry.RegisterCounter("output", "values_total", m.ValuesTotal))
		register("cloudevents_total", registry.RegisterCounter("output", "cloudevents_total", m.CloudEventsTotal))
		register("labels_total", registry.RegisterCounter("output", "labels_total", m.LabelsTotal))
		register("failures_total", registry.RegisterCounter("output", "failures_total", m.FailuresTotal))
		register("skipped_total", registry.RegisterCounter("output", "skipped_total", m.SkippedTotal))
	}
	return m
}

// Deps carries the emitter dependencies.
type Deps struct {
	Publisher Publisher

	// Prefix is prepended verbatim to every sensor topic.
	Prefix string

	// CloudEvents controls envelope emission.
	CloudEvents config.CloudEventsConfig

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Emitter publishes sensor data events to their broker topics.
type Emitter struct {
	publisher Publisher
	prefix    string
	envelope  *event.Generator
	logger    *slog.Logger
	metrics   *Metrics
}

// NewEmitter returns an emitter. The envelope generator is only built when
// envelope emission is enabled.
func NewEmitter(deps Deps) *Emitter {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var generator *event.Generator
	if deps.CloudEvents.Enabled {
		generator = event.NewGenerator(deps.CloudEvents.Source, deps.CloudEvents.Type)
	}

	return &Emitter{
		publisher: deps.Publisher,
		prefix:    deps.Prefix,
		envelope:  generator,
		logger:    logger,
		metrics:   newMetrics(deps.Metrics, logger),
	}
}

// PublishLabels publishes every sensor's label retained. Called once after
// the broker connection is up; retained delivery keeps the labels visible
// to subscribers that attach later.
func (e *Emitter) PublishLabels(ctx context.Context, sensors []config.SensorConfig) error {
	for i := range sensors {
		sensor := &sensors[i]
		topic := e.prefix + sensor.Topic + labelSuffix
		if err := e.publisher.Publish(ctx, topic, []byte(sensor.Label), true); err != nil {
			return errors.WrapTransient(err, "output", "PublishLabels", "publish label")
		}
		e.metrics.LabelsTotal.Inc()
		e.logger.Debug("published label", "topic", topic, "label", sensor.Label)
	}
	return nil
}

// Emit publishes one cycle's events. Each event goes out on its value topic
// and, when envelope emission is enabled, on its envelope topic as well.
// Publish failures are logged and counted; they never abort the cycle.
func (e *Emitter) Emit(ctx context.Context, events []event.SensorDataEvent) {
	if !e.publisher.IsConnected() {
		e.metrics.SkippedTotal.Add(float64(len(events)))
		e.logger.Warn("broker disconnected, skipping emission", "events", len(events))
		return
	}

	for _, ev := range events {
		e.emitValue(ctx, ev)
		if e.envelope != nil {
			e.emitEnvelope(ctx, ev)
		}
	}
}

func (e *Emitter) emitValue(ctx context.Context, ev event.SensorDataEvent) {
	topic := e.prefix + ev.SensorConfig.Topic + valueSuffix
	if err := e.publisher.Publish(ctx, topic, []byte(ev.ValueString()), false); err != nil {
		e.metrics.FailuresTotal.Inc()
		e.logger.Warn("failed to publish value", "topic", topic, "error", err)
		return
	}
	e.metrics.ValuesTotal.Inc()
}

func (e *Emitter) emitEnvelope(ctx context.Context, ev event.SensorDataEvent) {
	envelope := e.envelope.Generate(
		event.WithSubject(ev.SensorConfig.Topic),
		event.WithData(event.EnvelopeData{
			SensorConfig: ev.SensorConfig,
			Value:        ev.Value,
		}),
	)

	payload, err := json.Marshal(envelope)
	if err != nil {
		e.metrics.FailuresTotal.Inc()
		e.logger.Warn("failed to encode envelope", "topic", ev.SensorConfig.Topic, "error", err)
		return
	}

	topic := ev.SensorConfig.CloudEventTopic
	if topic == "" {
		topic = e.prefix + ev.SensorConfig.Topic + cloudEventSuffix
	}
	if err := e.publisher.Publish(ctx, topic, payload, false); err != nil {
		e.metrics.FailuresTotal.Inc()
		e.logger.Warn("failed to publish envelope", "topic", topic, "error", err)
		return
	}
	e.metrics.CloudEventsTotal.Inc()
}
