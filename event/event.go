package event

import (
	"fmt"
	"strconv"

	"github.com/penguineer/SensorsReport/config"
)

// SensorDataEvent represents one measurement from one configured sensor.
// The config reference is a shared read-only view owned by the process-wide
// configuration; the event does not own or mutate it.
type SensorDataEvent struct {
	SensorConfig *config.SensorConfig
	Value        any // float64 for hardware readings, string for file content
}

// New constructs a SensorDataEvent for the given sensor and observed value.
func New(cfg *config.SensorConfig, value any) SensorDataEvent {
	return SensorDataEvent{SensorConfig: cfg, Value: value}
}

// ValueString renders the raw value for publishing. Numeric values use the
// shortest representation that round-trips; strings pass through unchanged.
func (e SensorDataEvent) ValueString() string {
	switch v := e.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (e SensorDataEvent) String() string {
	topic := "?"
	if e.SensorConfig != nil {
		topic = e.SensorConfig.Topic
	}
	return fmt.Sprintf("SensorDataEvent(topic=%s, value=%s)", topic, e.ValueString())
}
