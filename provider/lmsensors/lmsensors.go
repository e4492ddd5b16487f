package lmsensors

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/penguineer/SensorsReport/config"
	"github.com/penguineer/SensorsReport/errors"
	"github.com/penguineer/SensorsReport/event"
	"github.com/penguineer/SensorsReport/metric"
)

// Metrics tracks hardware retrieval activity.
type Metrics struct {
	ReadingsTotal    prometheus.Counter
	MissingTotal     prometheus.Counter
	SnapshotErrors   prometheus.Counter
	SnapshotDuration prometheus.Histogram
}

func newMetrics(registry *metric.Registry, logger *slog.Logger) *Metrics {
	m := &Metrics{
		ReadingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lmsensors_readings_total",
			Help: "Total number of hardware readings retrieved",
		}),
		MissingTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lmsensors_missing_total",
			Help: "Total number of configured chip/feature pairs absent from a snapshot",
		}),
		SnapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lmsensors_snapshot_errors_total",
			Help: "Total number of failed snapshot captures",
		}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lmsensors_snapshot_duration_seconds",
			Help:    "Duration of snapshot captures",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if registry != nil {
		register := func(name string, err error) {
			if err != nil {
				logger.Warn("failed to register metric", "metric", name, "error", err)
			}
		}
		register("readings_total", registry.RegisterCounter("lmsensors", "readings_total", m.ReadingsTotal))
		register("missing_total", registry.RegisterCounter("lmsensors", "missing_total", m.MissingTotal))
		register("snapshot_errors_total", registry.RegisterCounter("lmsensors", "snapshot_errors_total", m.SnapshotErrors))
		register("snapshot_duration_seconds", registry.RegisterHistogram("lmsensors", "snapshot_duration_seconds", m.SnapshotDuration))
	}
	return m
}

// Deps carries the dependencies for the hardware provider.
type Deps struct {
	// Sensors are the lm-sensors entries this provider owns.
	Sensors []config.SensorConfig

	// Subsystem is the hardware session. Nil selects the CLI subsystem.
	Subsystem Subsystem

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Provider retrieves readings for all lm-sensors entries from one shared
// subsystem snapshot per cycle.
type Provider struct {
	sensors   []config.SensorConfig
	subsystem Subsystem
	logger    *slog.Logger
	metrics   *Metrics

	closeOnce sync.Once
}

// NewProvider initializes the subsystem and returns the provider. An
// initialization failure is returned as a fatal error; the caller aborts
// startup in that case.
func NewProvider(deps Deps) (*Provider, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	subsystem := deps.Subsystem
	if subsystem == nil {
		subsystem = NewCLISubsystem(logger)
	}

	if err := subsystem.Init(); err != nil {
		return nil, errors.WrapFatal(err, "lmsensors", "NewProvider", "initialize subsystem")
	}

	return &Provider{
		sensors:   deps.Sensors,
		subsystem: subsystem,
		logger:    logger,
		metrics:   newMetrics(deps.Metrics, logger),
	}, nil
}

// Name identifies the provider kind.
func (p *Provider) Name() string {
	return "lm-sensors"
}

// Retrieve captures one snapshot and maps every configured chip/feature pair
// onto it. Pairs absent from the snapshot are logged and skipped. A failed
// capture yields no events; the next cycle retries with a fresh snapshot.
func (p *Provider) Retrieve(ctx context.Context) []event.SensorDataEvent {
	timer := prometheus.NewTimer(p.metrics.SnapshotDuration)
	snap, err := p.subsystem.Snapshot(ctx)
	timer.ObserveDuration()
	if err != nil {
		p.metrics.SnapshotErrors.Inc()
		p.logger.Warn("hardware snapshot failed, skipping cycle for lm-sensors entries", "error", err)
		return nil
	}

	events := make([]event.SensorDataEvent, 0, len(p.sensors))
	for i := range p.sensors {
		sensor := &p.sensors[i]
		value, ok := snap.Lookup(sensor.LmSensors.Chip, sensor.LmSensors.Feature)
		if !ok {
			p.metrics.MissingTotal.Inc()
			p.logger.Warn("configured sensor not present in snapshot",
				"chip", sensor.LmSensors.Chip,
				"feature", sensor.LmSensors.Feature,
				"topic", sensor.Topic)
			continue
		}
		p.metrics.ReadingsTotal.Inc()
		events = append(events, event.New(sensor, value))
	}
	return events
}

// Close releases the subsystem. Safe to call more than once.
func (p *Provider) Close() {
	p.closeOnce.Do(func() {
		p.subsystem.Cleanup()
	})
}
