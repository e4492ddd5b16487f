package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penguineer/SensorsReport/config"
	"github.com/penguineer/SensorsReport/event"
	"github.com/penguineer/SensorsReport/output"
	"github.com/penguineer/SensorsReport/provider"
)

type recordedMessage struct {
	topic   string
	payload string
	retain  bool
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []recordedMessage
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, payload []byte, retain bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, recordedMessage{topic: topic, payload: string(payload), retain: retain})
	return nil
}

func (r *recordingPublisher) IsConnected() bool { return true }

func (r *recordingPublisher) snapshot() []recordedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedMessage(nil), r.messages...)
}

func (r *recordingPublisher) count(topic string) int {
	n := 0
	for _, m := range r.snapshot() {
		if m.topic == topic {
			n++
		}
	}
	return n
}

type scriptedProvider struct {
	name   string
	events []event.SensorDataEvent
	panics bool

	mu     sync.Mutex
	calls  int
	closed int
}

func (s *scriptedProvider) Name() string { return s.name }

func (s *scriptedProvider) Retrieve(_ context.Context) []event.SensorDataEvent {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panics {
		panic("scripted failure")
	}
	return s.events
}

func (s *scriptedProvider) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *scriptedProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var _ provider.Provider = (*scriptedProvider)(nil)

func pollerSensors() []config.SensorConfig {
	return []config.SensorConfig{
		{
			Label:     "CPU Temperature",
			Topic:     "/cpu",
			LmSensors: &config.LmSensorsConfig{Chip: "chip-0", Feature: "temp1"},
		},
		{
			Label: "Ambient",
			Topic: "/ambient",
			File:  &config.FileConfig{Path: "/tmp/ambient"},
		},
	}
}

func newTestPoller(pub *recordingPublisher, providers []provider.Provider, sensors []config.SensorConfig, interval time.Duration) *Poller {
	emitter := output.NewEmitter(output.Deps{
		Publisher: pub,
		Prefix:    "sensors",
		CloudEvents: config.CloudEventsConfig{
			Enabled: true,
			Source:  "sensors-report",
			Type:    "com.netz39.sensors.reading",
		},
	})
	return NewPoller(PollerDeps{
		Providers: providers,
		Emitter:   emitter,
		Sensors:   sensors,
		Interval:  interval,
	})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPollerEndToEnd(t *testing.T) {
	sensors := pollerSensors()
	prov := &scriptedProvider{
		name: "scripted",
		events: []event.SensorDataEvent{
			event.New(&sensors[0], 42.5),
			event.New(&sensors[1], "23.9"),
		},
	}
	pub := &recordingPublisher{}
	p := newTestPoller(pub, []provider.Provider{prov}, sensors, 10*time.Millisecond)

	require.NoError(t, p.Initialize())
	require.NoError(t, p.Start(context.Background()))
	defer func() { _ = p.Stop(2 * time.Second) }()

	// At least two full cycles with value and envelope per sensor.
	waitFor(t, 2*time.Second, func() bool {
		return pub.count("sensors/cpu/Value") >= 2 &&
			pub.count("sensors/cpu/CloudEvent") >= 2 &&
			pub.count("sensors/ambient/Value") >= 2 &&
			pub.count("sensors/ambient/CloudEvent") >= 2
	})

	// Labels went out exactly once, retained.
	assert.Equal(t, 1, pub.count("sensors/cpu/Label"))
	assert.Equal(t, 1, pub.count("sensors/ambient/Label"))
	for _, m := range pub.snapshot() {
		if m.topic == "sensors/cpu/Label" {
			assert.True(t, m.retain)
			assert.Equal(t, "CPU Temperature", m.payload)
		}
		if m.topic == "sensors/cpu/Value" {
			assert.False(t, m.retain)
			assert.Equal(t, "42.5", m.payload)
		}
	}
}

func TestPollerStopLatency(t *testing.T) {
	sensors := pollerSensors()
	prov := &scriptedProvider{name: "scripted"}
	pub := &recordingPublisher{}
	p := newTestPoller(pub, []provider.Provider{prov}, sensors, time.Hour)

	require.NoError(t, p.Initialize())
	require.NoError(t, p.Start(context.Background()))

	waitFor(t, 2*time.Second, func() bool { return prov.callCount() >= 1 })

	start := time.Now()
	require.NoError(t, p.Stop(5*time.Second))
	assert.Less(t, time.Since(start), 2*time.Second)

	// Providers are closed once the loop is down.
	prov.mu.Lock()
	defer prov.mu.Unlock()
	assert.Equal(t, 1, prov.closed)
}

func TestPollerPanicIsolation(t *testing.T) {
	sensors := pollerSensors()
	bad := &scriptedProvider{name: "bad", panics: true}
	good := &scriptedProvider{
		name:   "good",
		events: []event.SensorDataEvent{event.New(&sensors[1], "23.9")},
	}
	pub := &recordingPublisher{}
	p := newTestPoller(pub, []provider.Provider{bad, good}, sensors, 10*time.Millisecond)

	require.NoError(t, p.Initialize())
	require.NoError(t, p.Start(context.Background()))
	defer func() { _ = p.Stop(2 * time.Second) }()

	waitFor(t, 2*time.Second, func() bool {
		return pub.count("sensors/ambient/Value") >= 2
	})
	assert.GreaterOrEqual(t, bad.callCount(), 1)
}

func TestPollerContextCancelStopsLoop(t *testing.T) {
	sensors := pollerSensors()
	prov := &scriptedProvider{name: "scripted"}
	pub := &recordingPublisher{}
	p := newTestPoller(pub, []provider.Provider{prov}, sensors, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Initialize())
	require.NoError(t, p.Start(ctx))

	waitFor(t, 2*time.Second, func() bool { return prov.callCount() >= 1 })
	cancel()

	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit on context cancellation")
	}
}

func TestPollerInitializeValidation(t *testing.T) {
	p := NewPoller(PollerDeps{Interval: time.Second})
	require.Error(t, p.Initialize())

	pub := &recordingPublisher{}
	p = newTestPoller(pub, nil, nil, 0)
	require.Error(t, p.Initialize())
}

func TestPollerStartIdempotent(t *testing.T) {
	sensors := pollerSensors()
	pub := &recordingPublisher{}
	p := newTestPoller(pub, nil, sensors, time.Hour)

	require.NoError(t, p.Initialize())
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Start(context.Background()))
	defer func() { _ = p.Stop(2 * time.Second) }()

	// The label pass ran once despite the second Start.
	assert.Equal(t, 1, pub.count("sensors/cpu/Label"))
}

func TestPollerStopBeforeStart(t *testing.T) {
	pub := &recordingPublisher{}
	p := newTestPoller(pub, nil, nil, time.Second)
	assert.NoError(t, p.Stop(time.Second))
}
