// Package config provides the declarative sensor configuration for the
// bridge: the document model, a JSON/YAML loader, and two-stage validation.
//
// # Validation
//
// Validation gates startup; the process must not proceed with an unvalidated
// document. It runs in two stages:
//
//  1. A JSON Schema gate (gojsonschema) checks the coarse document shape:
//     a top-level object with a "sensors" array of objects. Structural
//     failures short-circuit; no further rules run.
//  2. Rule checks walk each sensor entry and produce structured
//     ValidationError diagnostics: non-empty "label" and "topic" strings,
//     exactly one provider key ("lm-sensors" or "file"), and the chosen
//     provider's required sub-fields.
//
// An empty sensors list is permitted but reported as a warning, as are
// duplicate topics. Diagnostics carry the sensor index, field, message, and
// a machine-readable code so callers can log or display them precisely.
//
// # Provider configuration
//
// Each sensor entry carries exactly one provider-specific sub-configuration,
// modeled as mutually exclusive pointer fields on SensorConfig:
//
//	{"label": "CPU", "topic": "/cpu",
//	 "lm-sensors": {"chip": "coretemp-isa-0000", "feature": "temp1"}}
//
//	{"label": "Case", "topic": "/case", "file": {"path": "/run/case-temp"}}
//
// The loaded Config is immutable process-wide state: loaded once at startup
// and shared read-only by providers and emission logic.
package config
