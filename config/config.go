package config

import (
	"fmt"
	"time"

	"github.com/penguineer/SensorsReport/errors"
)

// Defaults applied by the loader when the document omits a value.
const (
	DefaultPort     = 1883
	DefaultInterval = 60 * time.Second
	DefaultClientID = "sensors-report"
	DefaultSource   = "sensors-report"
	DefaultType     = "com.netz39.sensors.reading"
)

// Config is the process-wide configuration, loaded once at startup and
// shared read-only for the process lifetime.
type Config struct {
	MQTT        MQTTConfig        `json:"mqtt"`
	Interval    int               `json:"interval"` // poll interval in seconds
	CloudEvents CloudEventsConfig `json:"cloudevents"`
	Sensors     []SensorConfig    `json:"sensors"`
}

// MQTTConfig identifies the broker and the topic prefix for all publishes.
type MQTTConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	ClientID string `json:"client-id"`
	User     string `json:"user"`
	Password string `json:"password"`
	Prefix   string `json:"prefix"`
}

// BrokerURL renders the broker address for the MQTT client.
func (m MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", m.Host, m.Port)
}

// CloudEventsConfig controls envelope generation. Source and Type are fixed
// per process and stamped into every envelope.
type CloudEventsConfig struct {
	Enabled bool   `json:"enabled"`
	Source  string `json:"source"`
	Type    string `json:"type"`
}

// SensorConfig declares one monitored quantity. Exactly one of the provider
// sub-configurations must be set; the validator enforces this before any
// provider is constructed.
type SensorConfig struct {
	Label string `json:"label"`
	Topic string `json:"topic"`

	LmSensors *LmSensorsConfig `json:"lm-sensors,omitempty"`
	File      *FileConfig      `json:"file,omitempty"`

	// CloudEventTopic overrides the default "<prefix><topic>/CloudEvent"
	// envelope topic for this sensor.
	CloudEventTopic string `json:"cloudevent-topic,omitempty"`
}

// LmSensorsConfig identifies a hardware chip and one of its features.
type LmSensorsConfig struct {
	Chip    string `json:"chip"`
	Feature string `json:"feature"`
}

// FileConfig identifies a filesystem path whose trimmed content is the value.
type FileConfig struct {
	Path string `json:"path"`
}

// Provider keys as they appear in sensor entries.
const (
	ProviderLmSensors = "lm-sensors"
	ProviderFile      = "file"
)

// ProviderKind returns the provider key this sensor is configured with, or
// the empty string when none is set. Valid configs have exactly one.
func (s *SensorConfig) ProviderKind() string {
	switch {
	case s.LmSensors != nil:
		return ProviderLmSensors
	case s.File != nil:
		return ProviderFile
	default:
		return ""
	}
}

// PollInterval returns the configured poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	if c.Interval <= 0 {
		return DefaultInterval
	}
	return time.Duration(c.Interval) * time.Second
}

// Validate checks the top-level configuration invariants that are fatal to
// startup. Sensor entries are checked separately by the document validator.
func (c *Config) Validate() error {
	if c.MQTT.Host == "" {
		return errors.WrapFatal(
			fmt.Errorf("missing MQTT host: %w", errors.ErrMissingConfig),
			"Config", "Validate", "mqtt host check")
	}
	if c.MQTT.Port < 0 || c.MQTT.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("invalid MQTT port %d", c.MQTT.Port),
			"Config", "Validate", "mqtt port check")
	}
	if c.Interval < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("negative poll interval %d", c.Interval),
			"Config", "Validate", "interval check")
	}
	return nil
}

// applyDefaults fills in values the document may omit.
func (c *Config) applyDefaults() {
	if c.MQTT.Port == 0 {
		c.MQTT.Port = DefaultPort
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = DefaultClientID
	}
	if c.Interval == 0 {
		c.Interval = int(DefaultInterval / time.Second)
	}
	if c.CloudEvents.Source == "" {
		c.CloudEvents.Source = DefaultSource
	}
	if c.CloudEvents.Type == "" {
		c.CloudEvents.Type = DefaultType
	}
}
