// Package sensorsreport is a polling bridge that samples hardware sensor
// readings and republishes them as labeled MQTT messages.
//
// # Architecture
//
// The bridge is a one-directional, stateless-per-cycle forwarder built from
// small, separately testable pieces:
//
//   - config: declarative sensor configuration, schema-gated and rule-checked
//     before any provider is constructed
//   - provider: pluggable data sources behind a uniform Retrieve contract
//     (lm-sensors hardware subsystem, flat files)
//   - event: the SensorDataEvent value object and the CloudEvent envelope
//     generator (identity, timestamps, content type)
//   - output: emission logic deriving Label/Value/CloudEvent topics from a
//     sensor's configuration
//   - mqttclient: MQTT session wrapper with automatic reconnection
//   - service: the poll-sleep-repeat loop with bounded shutdown latency
//
// Control flow per cycle: every provider's Retrieve is invoked sequentially,
// failures are isolated per provider, and the concatenated events are pushed
// through the emitter. Labels are published once, retained, before the first
// cycle. The loop repeats until the process is signaled to stop.
//
// Missing data is a soft condition: a configured sensor whose chip, feature,
// or file is currently unavailable is logged and skipped for that cycle, and
// retried on the next one. No placeholder values are emitted.
package sensorsreport
