package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/penguineer/SensorsReport/errors"
)

// Loader reads and validates configuration documents.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a configuration loader. A nil logger falls back to
// slog.Default.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger.With("component", "config-loader")}
}

// LoadFile reads a JSON or YAML configuration document from path, validates
// it, and returns the decoded Config with defaults applied. Validation
// failure is fatal; every diagnostic is logged before the error is returned.
func (l *Loader) LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "Loader", "LoadFile", "read config file")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err = yamlToJSON(raw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "LoadFile", "convert YAML document")
		}
	}

	return l.LoadBytes(raw)
}

// LoadBytes validates and decodes a raw JSON configuration document.
func (l *Loader) LoadBytes(raw []byte) (*Config, error) {
	result := ValidateDocument(raw)

	for _, warning := range result.Warnings {
		l.logger.Warn("Configuration warning", "diagnostic", warning.String())
	}
	if !result.Valid() {
		for _, diag := range result.Errors {
			l.logger.Error("Configuration invalid", "diagnostic", diag.String())
		}
		return nil, errors.WrapFatal(
			fmt.Errorf("%d validation error(s): %w", len(result.Errors), errors.ErrInvalidConfig),
			"Loader", "LoadBytes", "validate document")
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "LoadBytes", "decode document")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l.logger.Info("Configuration loaded",
		"sensors", len(cfg.Sensors),
		"interval", cfg.PollInterval(),
		"cloudevents", cfg.CloudEvents.Enabled)
	return &cfg, nil
}

// yamlToJSON converts a YAML document into its JSON rendering so that a
// single validation path covers both formats.
func yamlToJSON(raw []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	out, err := json.Marshal(normalizeYAML(doc))
	if err != nil {
		return nil, fmt.Errorf("render JSON: %w", err)
	}
	return out, nil
}

// normalizeYAML rewrites map[any]any nodes (possible with yaml.v3 for
// non-string keys) into map[string]any so the result is JSON-serializable.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeYAML(item)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = normalizeYAML(item)
		}
		return val
	default:
		return v
	}
}
