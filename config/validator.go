package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Machine-readable diagnostic codes, stable across releases.
const (
	// CodeSchema marks a structural violation reported by the JSON Schema gate.
	CodeSchema = "schema"
	// CodeRequired marks a missing or empty required field.
	CodeRequired = "required"
	// CodeType marks a field with the wrong JSON type.
	CodeType = "type"
	// CodeProviderMissing marks a sensor entry with no provider key.
	CodeProviderMissing = "provider-missing"
	// CodeProviderConflict marks a sensor entry with more than one provider key.
	CodeProviderConflict = "provider-conflict"
	// CodeEmptySensors marks an empty sensors list (warning only).
	CodeEmptySensors = "empty-sensors"
	// CodeDuplicateTopic marks a topic declared by more than one sensor (warning only).
	CodeDuplicateTopic = "duplicate-topic"
)

// ValidationError describes one violation found in the configuration
// document. Sensor is the index into the sensors list, or -1 for
// document-level diagnostics.
type ValidationError struct {
	Sensor  int    `json:"sensor"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (v ValidationError) String() string {
	if v.Sensor < 0 {
		return fmt.Sprintf("%s: %s (%s)", v.Field, v.Message, v.Code)
	}
	return fmt.Sprintf("sensors[%d].%s: %s (%s)", v.Sensor, v.Field, v.Message, v.Code)
}

// Result collects the outcome of validating a configuration document.
type Result struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// Valid reports whether the document passed validation. Warnings do not
// affect validity.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// providerSpec declares one recognized provider key and its required
// string fields. Future providers extend this table.
type providerSpec struct {
	key      string
	required []string
}

var providerSpecs = []providerSpec{
	{key: "lm-sensors", required: []string{"chip", "feature"}},
	{key: "file", required: []string{"path"}},
}

// ValidateDocument validates a raw configuration document. It never returns
// an error value; all violations are collected as structured diagnostics.
// Callers must treat an invalid Result as fatal to startup.
func ValidateDocument(raw []byte) Result {
	var res Result

	schemaDiags, err := checkSchema(raw)
	if err != nil {
		res.Errors = append(res.Errors, ValidationError{
			Sensor:  -1,
			Field:   "(document)",
			Message: err.Error(),
			Code:    CodeSchema,
		})
		return res
	}
	if len(schemaDiags) > 0 {
		// Structural failure short-circuits the rule checks
		res.Errors = schemaDiags
		return res
	}

	// The schema gate guarantees this parses into the expected shape.
	var doc struct {
		Sensors []map[string]json.RawMessage `json:"sensors"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		res.Errors = append(res.Errors, ValidationError{
			Sensor:  -1,
			Field:   "(document)",
			Message: err.Error(),
			Code:    CodeSchema,
		})
		return res
	}

	if len(doc.Sensors) == 0 {
		res.Warnings = append(res.Warnings, ValidationError{
			Sensor:  -1,
			Field:   "sensors",
			Message: "sensors list is empty, nothing will be reported",
			Code:    CodeEmptySensors,
		})
		return res
	}

	seenTopics := make(map[string]int)
	for i, entry := range doc.Sensors {
		res.Errors = append(res.Errors, checkSensorEntry(i, entry)...)

		if topic, ok := stringField(entry, "topic"); ok && topic != "" {
			if first, dup := seenTopics[topic]; dup {
				res.Warnings = append(res.Warnings, ValidationError{
					Sensor:  i,
					Field:   "topic",
					Message: fmt.Sprintf("topic %q already declared by sensors[%d]", topic, first),
					Code:    CodeDuplicateTopic,
				})
			} else {
				seenTopics[topic] = i
			}
		}
	}

	return res
}

// checkSensorEntry applies the per-sensor rules: required label/topic
// strings, exactly one provider key, and the provider's required fields.
func checkSensorEntry(index int, entry map[string]json.RawMessage) []ValidationError {
	var diags []ValidationError

	for _, field := range []string{"label", "topic"} {
		value, ok := stringField(entry, field)
		switch {
		case !hasField(entry, field):
			diags = append(diags, ValidationError{
				Sensor:  index,
				Field:   field,
				Message: fmt.Sprintf("field %q is required", field),
				Code:    CodeRequired,
			})
		case !ok:
			diags = append(diags, ValidationError{
				Sensor:  index,
				Field:   field,
				Message: fmt.Sprintf("field %q must be a string", field),
				Code:    CodeType,
			})
		case value == "":
			diags = append(diags, ValidationError{
				Sensor:  index,
				Field:   field,
				Message: fmt.Sprintf("field %q must not be empty", field),
				Code:    CodeRequired,
			})
		}
	}

	var present []string
	for _, spec := range providerSpecs {
		if hasField(entry, spec.key) {
			present = append(present, spec.key)
		}
	}

	switch len(present) {
	case 0:
		diags = append(diags, ValidationError{
			Sensor:  index,
			Field:   "(provider)",
			Message: fmt.Sprintf("no provider configured, expected one of: %s", strings.Join(providerKeys(), ", ")),
			Code:    CodeProviderMissing,
		})
		return diags
	case 1:
		// Exactly one, check its required fields below
	default:
		diags = append(diags, ValidationError{
			Sensor:  index,
			Field:   "(provider)",
			Message: fmt.Sprintf("multiple providers configured (%s), expected exactly one", strings.Join(present, ", ")),
			Code:    CodeProviderConflict,
		})
		return diags
	}

	spec := specForKey(present[0])
	var sub map[string]json.RawMessage
	if err := json.Unmarshal(entry[spec.key], &sub); err != nil {
		diags = append(diags, ValidationError{
			Sensor:  index,
			Field:   spec.key,
			Message: fmt.Sprintf("field %q must be an object", spec.key),
			Code:    CodeType,
		})
		return diags
	}

	for _, field := range spec.required {
		value, ok := stringField(sub, field)
		if !hasField(sub, field) || !ok || value == "" {
			diags = append(diags, ValidationError{
				Sensor:  index,
				Field:   spec.key + "." + field,
				Message: fmt.Sprintf("provider %q requires a non-empty string field %q", spec.key, field),
				Code:    CodeRequired,
			})
		}
	}

	return diags
}

func providerKeys() []string {
	keys := make([]string, len(providerSpecs))
	for i, spec := range providerSpecs {
		keys[i] = spec.key
	}
	return keys
}

func specForKey(key string) providerSpec {
	for _, spec := range providerSpecs {
		if spec.key == key {
			return spec
		}
	}
	return providerSpec{key: key}
}

func hasField(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}

// stringField returns the field decoded as a string and whether decoding
// succeeded. A missing field reports ("", false).
func stringField(m map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := m[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
