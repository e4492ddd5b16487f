// Package file retrieves sensor values from flat files, one provider per
// configured path. The file content is read fresh on every cycle and
// trailing whitespace is stripped; the value stays a string so that
// non-numeric content passes through unchanged.
package file

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/penguineer/SensorsReport/config"
	"github.com/penguineer/SensorsReport/event"
	"github.com/penguineer/SensorsReport/metric"
)

// Metrics tracks file retrieval activity. One set is shared by all file
// providers in a process.
type Metrics struct {
	ReadsTotal      prometheus.Counter
	ReadErrorsTotal prometheus.Counter
}

// NewMetrics builds and registers the shared file provider metrics.
func NewMetrics(registry *metric.Registry, logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Metrics{
		ReadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "file_reads_total",
			Help: "Total number of successful file reads",
		}),
		ReadErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "file_read_errors_total",
			Help: "Total number of failed file reads",
		}),
	}

	if registry != nil {
		if err := registry.RegisterCounter("file", "reads_total", m.ReadsTotal); err != nil {
			logger.Warn("failed to register metric", "metric", "reads_total", "error", err)
		}
		if err := registry.RegisterCounter("file", "read_errors_total", m.ReadErrorsTotal); err != nil {
			logger.Warn("failed to register metric", "metric", "read_errors_total", "error", err)
		}
	}
	return m
}

// Deps carries the dependencies for one file provider.
type Deps struct {
	Sensor config.SensorConfig
	Logger *slog.Logger

	// Metrics is the shared file provider metrics set. Nil disables
	// metrics for this provider.
	Metrics *Metrics
}

// Provider reads one file per cycle.
type Provider struct {
	sensor  config.SensorConfig
	logger  *slog.Logger
	metrics *Metrics
}

// NewProvider returns a provider for one file-backed sensor. Construction
// never fails: a path that does not exist yet is only a warning, since the
// file may appear before the next cycle.
func NewProvider(deps Deps) *Provider {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil, logger)
	}

	path := ""
	if deps.Sensor.File != nil {
		path = deps.Sensor.File.Path
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warn("sensor file not accessible at startup", "path", path, "error", err)
	}

	return &Provider{
		sensor:  deps.Sensor,
		logger:  logger,
		metrics: metrics,
	}
}

// Name identifies the provider kind.
func (p *Provider) Name() string {
	return "file"
}

// Retrieve reads the file and returns its content with trailing whitespace
// stripped. A read failure is logged and yields no events.
func (p *Provider) Retrieve(_ context.Context) []event.SensorDataEvent {
	raw, err := os.ReadFile(p.sensor.File.Path)
	if err != nil {
		p.metrics.ReadErrorsTotal.Inc()
		p.logger.Warn("failed to read sensor file", "path", p.sensor.File.Path, "error", err)
		return nil
	}

	p.metrics.ReadsTotal.Inc()
	value := strings.TrimRight(string(raw), " \t\r\n")
	return []event.SensorDataEvent{event.New(&p.sensor, value)}
}

// Close releases provider resources. File providers hold none.
func (p *Provider) Close() {}
