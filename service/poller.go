package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/penguineer/SensorsReport/config"
	"github.com/penguineer/SensorsReport/errors"
	"github.com/penguineer/SensorsReport/event"
	"github.com/penguineer/SensorsReport/metric"
	"github.com/penguineer/SensorsReport/output"
	"github.com/penguineer/SensorsReport/provider"
)

// sleepStep bounds how long one blocking wait lasts inside the poll delay,
// keeping shutdown latency under half a second regardless of the interval.
const sleepStep = 500 * time.Millisecond

// PollerMetrics tracks poll loop activity.
type PollerMetrics struct {
	CyclesTotal         prometheus.Counter
	EventsTotal         prometheus.Counter
	ProviderPanicsTotal prometheus.Counter
	CycleDuration       prometheus.Histogram
}

func newPollerMetrics(registry *metric.Registry, logger *slog.Logger) *PollerMetrics {
	m := &PollerMetrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poller_cycles_total",
			Help: "Total number of completed poll cycles",
		}),
		EventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poller_events_emitted_total",
			Help: "Total number of events retrieved from providers",
		}),
		ProviderPanicsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poller_provider_failures_total",
			Help: "Total number of recovered provider panics",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poller_cycle_duration_seconds",
			Help:    "Duration of poll cycles",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if registry != nil {
		register := func(name string, err error) {
			if err != nil {
				logger.Warn("failed to register metric", "metric", name, "error", err)
			}
		}
		register("cycles_total", registry.RegisterCounter("poller", "cycles_total", m.CyclesTotal))
		register("events_total", registry.RegisterCounter("poller", "events_total", m.EventsTotal))
		register("provider_panics_total", registry.RegisterCounter("poller", "provider_panics_total", m.ProviderPanicsTotal))
		register("cycle_duration_seconds", registry.RegisterHistogram("poller", "cycle_duration_seconds", m.CycleDuration))
	}
	return m
}

// PollerDeps carries the poller dependencies.
type PollerDeps struct {
	// Providers are polled sequentially in order, once per cycle.
	Providers []provider.Provider

	// Emitter publishes the retrieved events.
	Emitter *output.Emitter

	// Sensors is the full sensor list, used for the one-time label pass.
	Sensors []config.SensorConfig

	// Interval is the delay between cycle starts.
	Interval time.Duration

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Poller drives the retrieve-and-emit cycle. Lifecycle is Initialize,
// Start, Stop; Start is idempotent and Stop waits for the loop goroutine
// with a timeout.
type Poller struct {
	providers []provider.Provider
	emitter   *output.Emitter
	sensors   []config.SensorConfig
	interval  time.Duration
	logger    *slog.Logger
	metrics   *PollerMetrics

	mu       sync.Mutex
	wg       sync.WaitGroup
	running  atomic.Bool
	shutdown chan struct{}
	done     chan struct{}
}

// NewPoller creates a poller from its dependencies.
func NewPoller(deps PollerDeps) *Poller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		providers: deps.Providers,
		emitter:   deps.Emitter,
		sensors:   deps.Sensors,
		interval:  deps.Interval,
		logger:    logger,
		metrics:   newPollerMetrics(deps.Metrics, logger),
	}
}

// Initialize validates the poller configuration without starting the loop.
func (p *Poller) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.emitter == nil {
		return errors.WrapInvalid(fmt.Errorf("nil emitter"),
			"poller", "Initialize", "emitter validation")
	}
	if p.interval <= 0 {
		return errors.WrapInvalid(fmt.Errorf("non-positive interval %v", p.interval),
			"poller", "Initialize", "interval validation")
	}
	if len(p.providers) == 0 {
		p.logger.Warn("no providers configured, poll cycles will be empty")
	}
	return nil
}

// Start publishes the retained labels once and launches the poll loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return nil
	}

	// Labels go out once per process. A failure here is not fatal:
	// values still flow, only the retained labels are missing.
	if err := p.emitter.PublishLabels(ctx, p.sensors); err != nil {
		p.logger.Warn("failed to publish sensor labels", "error", err)
	}

	p.shutdown = make(chan struct{})
	p.done = make(chan struct{})
	p.running.Store(true)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(p.done)
		p.loop(ctx)
	}()

	p.logger.Info("poller started",
		"interval", p.interval,
		"providers", len(p.providers),
		"sensors", len(p.sensors))
	return nil
}

// Stop signals the loop and waits for it to finish. Providers are closed
// after the loop has exited so no cycle runs against closed providers.
func (p *Poller) Stop(timeout time.Duration) error {
	if !p.running.Load() {
		return nil
	}
	p.running.Store(false)

	p.mu.Lock()
	if p.shutdown != nil {
		select {
		case <-p.shutdown:
		default:
			close(p.shutdown)
		}
	}
	done := p.done
	p.mu.Unlock()

	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"poller", "Stop", "graceful shutdown")
	}

	provider.CloseAll(p.providers)
	p.logger.Info("poller stopped")
	return nil
}

func (p *Poller) loop(ctx context.Context) {
	for {
		start := time.Now()
		p.runCycle(ctx)
		p.metrics.CycleDuration.Observe(time.Since(start).Seconds())
		p.metrics.CyclesTotal.Inc()

		if !p.sleep(ctx, p.interval) {
			return
		}
	}
}

// runCycle polls every provider once and emits what came back. A panicking
// provider loses its events for this cycle only; the others still run.
func (p *Poller) runCycle(ctx context.Context) {
	for _, prov := range p.providers {
		events := p.retrieve(ctx, prov)
		if len(events) == 0 {
			continue
		}
		p.metrics.EventsTotal.Add(float64(len(events)))
		p.emitter.Emit(ctx, events)
	}
}

func (p *Poller) retrieve(ctx context.Context, prov provider.Provider) (events []event.SensorDataEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.ProviderPanicsTotal.Inc()
			p.logger.Error("provider panicked", "provider", prov.Name(), "panic", r)
			events = nil
		}
	}()
	return prov.Retrieve(ctx)
}

// sleep waits out the poll delay in sub-second steps so that shutdown or
// context cancellation interrupts promptly. It reports whether the loop
// should continue.
func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	timer := time.NewTimer(0)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		if remaining > sleepStep {
			remaining = sleepStep
		}
		timer.Reset(remaining)
		select {
		case <-ctx.Done():
			return false
		case <-p.shutdown:
			return false
		case <-timer.C:
		}
	}
}
