package output

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penguineer/SensorsReport/config"
	"github.com/penguineer/SensorsReport/event"
)

type publishedMessage struct {
	topic   string
	payload string
	retain  bool
}

type fakePublisher struct {
	messages  []publishedMessage
	connected bool
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload []byte, retain bool) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, publishedMessage{topic: topic, payload: string(payload), retain: retain})
	return nil
}

func (f *fakePublisher) IsConnected() bool {
	return f.connected
}

func testSensors() []config.SensorConfig {
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

func TestPublishLabelsRetained(t *testing.T) {
	pub := &fakePublisher{connected: true}
	e := NewEmitter(Deps{Publisher: pub, Prefix: "sensors"})

	require.NoError(t, e.PublishLabels(context.Background(), testSensors()))

	require.Len(t, pub.messages, 2)
	assert.Equal(t, "sensors/cpu/Label", pub.messages[0].topic)
	assert.Equal(t, "CPU Temperature", pub.messages[0].payload)
	assert.True(t, pub.messages[0].retain)
	assert.Equal(t, "sensors/ambient/Label", pub.messages[1].topic)
	assert.Equal(t, "Ambient", pub.messages[1].payload)
	assert.True(t, pub.messages[1].retain)
}

func TestPublishLabelsError(t *testing.T) {
	pub := &fakePublisher{connected: true, err: errors.New("broker gone")}
	e := NewEmitter(Deps{Publisher: pub, Prefix: "sensors"})

	require.Error(t, e.PublishLabels(context.Background(), testSensors()))
}

func TestEmitValuesOnly(t *testing.T) {
	pub := &fakePublisher{connected: true}
	e := NewEmitter(Deps{Publisher: pub, Prefix: "sensors"})

	sensors := testSensors()
	e.Emit(context.Background(), []event.SensorDataEvent{
		event.New(&sensors[0], 42.5),
		event.New(&sensors[1], "23.9"),
	})

	require.Len(t, pub.messages, 2)
	assert.Equal(t, "sensors/cpu/Value", pub.messages[0].topic)
	assert.Equal(t, "42.5", pub.messages[0].payload)
	assert.False(t, pub.messages[0].retain)
	assert.Equal(t, "sensors/ambient/Value", pub.messages[1].topic)
	assert.Equal(t, "23.9", pub.messages[1].payload)
}

func TestEmitWithEnvelopes(t *testing.T) {
	pub := &fakePublisher{connected: true}
	e := NewEmitter(Deps{
		Publisher: pub,
		Prefix:    "sensors",
		CloudEvents: config.CloudEventsConfig{
			Enabled: true,
			Source:  "sensors-report",
			Type:    "com.netz39.sensors.reading",
		},
	})

	sensors := testSensors()
	e.Emit(context.Background(), []event.SensorDataEvent{
		event.New(&sensors[0], 42.5),
		event.New(&sensors[1], "23.9"),
	})

	// Value and envelope per event.
	require.Len(t, pub.messages, 4)
	assert.Equal(t, "sensors/cpu/Value", pub.messages[0].topic)
	assert.Equal(t, "sensors/cpu/CloudEvent", pub.messages[1].topic)
	assert.Equal(t, "sensors/ambient/Value", pub.messages[2].topic)
	assert.Equal(t, "sensors/ambient/CloudEvent", pub.messages[3].topic)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal([]byte(pub.messages[1].payload), &envelope))
	assert.Equal(t, "1.0", envelope["specversion"])
	assert.Equal(t, "sensors-report", envelope["source"])
	assert.Equal(t, "com.netz39.sensors.reading", envelope["event_type"])
	assert.Equal(t, "/cpu", envelope["subject"])
	assert.NotEmpty(t, envelope["event_id"])

	data, ok := envelope["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 42.5, data["value"])
}

func TestEmitEnvelopeTopicOverride(t *testing.T) {
	pub := &fakePublisher{connected: true}
	e := NewEmitter(Deps{
		Publisher:   pub,
		Prefix:      "sensors",
		CloudEvents: config.CloudEventsConfig{Enabled: true, Source: "s", Type: "t"},
	})

	sensor := config.SensorConfig{
		Label:           "CPU",
		Topic:           "/cpu",
		LmSensors:       &config.LmSensorsConfig{Chip: "chip-0", Feature: "temp1"},
		CloudEventTopic: "events/cpu",
	}
	e.Emit(context.Background(), []event.SensorDataEvent{event.New(&sensor, 42.5)})

	require.Len(t, pub.messages, 2)
	assert.Equal(t, "sensors/cpu/Value", pub.messages[0].topic)
	assert.Equal(t, "events/cpu", pub.messages[1].topic)
}

func TestEmitSkipsWhileDisconnected(t *testing.T) {
	pub := &fakePublisher{connected: false}
	e := NewEmitter(Deps{Publisher: pub, Prefix: "sensors"})

	sensors := testSensors()
	e.Emit(context.Background(), []event.SensorDataEvent{event.New(&sensors[0], 42.5)})

	assert.Empty(t, pub.messages)
}

func TestEmitPublishFailureDoesNotAbortCycle(t *testing.T) {
	pub := &fakePublisher{connected: true, err: errors.New("broker gone")}
	e := NewEmitter(Deps{Publisher: pub, Prefix: "sensors"})

	sensors := testSensors()
	e.Emit(context.Background(), []event.SensorDataEvent{
		event.New(&sensors[0], 42.5),
		event.New(&sensors[1], "23.9"),
	})

	assert.Empty(t, pub.messages)
}

func TestEmitEmptyCycle(t *testing.T) {
	pub := &fakePublisher{connected: true}
	e := NewEmitter(Deps{Publisher: pub, Prefix: "sensors"})

	e.Emit(context.Background(), nil)
	assert.Empty(t, pub.messages)
}
