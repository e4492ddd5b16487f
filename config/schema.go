package config

import (
	"github.com/xeipuuv/gojsonschema"
)

// documentSchema is the coarse structural gate for the configuration
// document. It only pins down the shape the rule validator relies on; the
// per-sensor rules (provider exclusivity, required sub-fields) produce their
// own, more precise diagnostics.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["sensors"],
  "properties": {
    "sensors": {
      "type": "array",
      "items": {"type": "object"}
    },
    "mqtt": {"type": "object"},
    "interval": {"type": "integer", "minimum": 0},
    "cloudevents": {"type": "object"}
  }
}`

// checkSchema validates raw JSON against the structural document schema.
// Violations are returned as document-level diagnostics (sensor index -1).
func checkSchema(raw []byte) ([]ValidationError, error) {
	schemaLoader := gojsonschema.NewStringLoader(documentSchema)
	documentLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		// Not valid JSON at all, or schema compilation failure
		return nil, err
	}

	if result.Valid() {
		return nil, nil
	}

	diags := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		diags = append(diags, ValidationError{
			Sensor:  -1,
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    CodeSchema,
		})
	}
	return diags, nil
}
