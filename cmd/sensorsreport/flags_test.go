package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFlags(t *testing.T) {
	valid := &CLIConfig{
		ConfigPath:      "../../configs/example.json",
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 10 * time.Second,
	}
	require.NoError(t, validateFlags(valid))

	missing := *valid
	missing.ConfigPath = "does-not-exist.json"
	assert.Error(t, validateFlags(&missing))

	badLevel := *valid
	badLevel.LogLevel = "verbose"
	assert.Error(t, validateFlags(&badLevel))

	badFormat := *valid
	badFormat.LogFormat = "xml"
	assert.Error(t, validateFlags(&badFormat))

	badInterval := *valid
	badInterval.Interval = -1
	assert.Error(t, validateFlags(&badInterval))

	badPort := *valid
	badPort.MetricsPort = 70000
	assert.Error(t, validateFlags(&badPort))
}

func TestValidateFlagsSkipsSpecialModes(t *testing.T) {
	assert.NoError(t, validateFlags(&CLIConfig{ShowVersion: true}))
	assert.NoError(t, validateFlags(&CLIConfig{ShowHelp: true}))
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("SENSORSREPORT_TEST_STR", "value")
	assert.Equal(t, "value", getEnv("SENSORSREPORT_TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("SENSORSREPORT_TEST_UNSET", "default"))

	t.Setenv("SENSORSREPORT_TEST_INT", "42")
	assert.Equal(t, 42, getEnvInt("SENSORSREPORT_TEST_INT", 1))
	t.Setenv("SENSORSREPORT_TEST_INT", "nope")
	assert.Equal(t, 1, getEnvInt("SENSORSREPORT_TEST_INT", 1))

	t.Setenv("SENSORSREPORT_TEST_DUR", "30s")
	assert.Equal(t, 30*time.Second, getEnvDuration("SENSORSREPORT_TEST_DUR", time.Minute))
}
