package lmsensors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONOutput(t *testing.T) {
	out := []byte(`{
		"coretemp-isa-0000": {
			"Adapter": "ISA adapter",
			"Package id 0": {
				"temp1_input": 42.000,
				"temp1_max": 80.000,
				"temp1_crit": 100.000
			},
			"Core 0": {
				"temp2_input": 41.000,
				"temp2_max": 80.000
			}
		},
		"acpitz-acpi-0": {
			"Adapter": "ACPI interface",
			"temp1": {
				"temp1_input": 27.800
			}
		}
	}`)

	snap, err := parseJSONOutput(out)
	require.NoError(t, err)

	v, ok := snap.Lookup("coretemp-isa-0000", "temp1")
	require.True(t, ok)
	assert.Equal(t, 42.0, v)

	v, ok = snap.Lookup("coretemp-isa-0000", "temp2")
	require.True(t, ok)
	assert.Equal(t, 41.0, v)

	// Single-input sections are also addressable by their label.
	v, ok = snap.Lookup("coretemp-isa-0000", "Package id 0")
	require.True(t, ok)
	assert.Equal(t, 42.0, v)

	v, ok = snap.Lookup("coretemp-isa-0000", "Core 0")
	require.True(t, ok)
	assert.Equal(t, 41.0, v)

	v, ok = snap.Lookup("acpitz-acpi-0", "temp1")
	require.True(t, ok)
	assert.Equal(t, 27.8, v)

	// Non-input subfeatures do not surface as readings.
	_, ok = snap.Lookup("coretemp-isa-0000", "temp1_max")
	assert.False(t, ok)
}

func TestParseJSONOutputInvalid(t *testing.T) {
	_, err := parseJSONOutput([]byte("not json"))
	assert.Error(t, err)
}

func TestParseJSONOutputSkipsMalformedChip(t *testing.T) {
	out := []byte(`{
		"good-chip": {"temp1": {"temp1_input": 1.5}},
		"bad-chip": "not an object"
	}`)

	snap, err := parseJSONOutput(out)
	require.NoError(t, err)

	_, ok := snap.Lookup("bad-chip", "temp1")
	assert.False(t, ok)
	v, ok := snap.Lookup("good-chip", "temp1")
	require.True(t, ok)
	assert.Equal(t, 1.5, v)
}

func TestParseRawOutput(t *testing.T) {
	out := []byte(`coretemp-isa-0000
Adapter: ISA adapter
Package id 0:
  temp1_input: 42.000
  temp1_max: 80.000
Core 0:
  temp2_input: 41.000
  temp2_max: 80.000

acpitz-acpi-0
Adapter: ACPI interface
temp1:
  temp1_input: 27.800
`)

	snap, err := parseRawOutput(out)
	require.NoError(t, err)

	v, ok := snap.Lookup("coretemp-isa-0000", "temp1")
	require.True(t, ok)
	assert.Equal(t, 42.0, v)

	v, ok = snap.Lookup("coretemp-isa-0000", "Core 0")
	require.True(t, ok)
	assert.Equal(t, 41.0, v)

	v, ok = snap.Lookup("acpitz-acpi-0", "temp1")
	require.True(t, ok)
	assert.Equal(t, 27.8, v)

	_, ok = snap.Lookup("coretemp-isa-0000", "temp1_max")
	assert.False(t, ok)
}

func TestParseRawOutputDuplicateStemWithinChip(t *testing.T) {
	// The same subfeature stem appearing twice on one chip is ambiguous
	// and dropped, but the section labels stay addressable.
	out := []byte(`weird-chip-0
Adapter: Virtual device
Section A:
  temp1_input: 1.000
Section B:
  temp1_input: 2.000
`)

	snap, err := parseRawOutput(out)
	require.NoError(t, err)

	_, ok := snap.Lookup("weird-chip-0", "temp1")
	assert.False(t, ok)

	v, ok := snap.Lookup("weird-chip-0", "Section A")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	v, ok = snap.Lookup("weird-chip-0", "Section B")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestParseRawOutputDuplicateStemAcrossChips(t *testing.T) {
	// The same stem on different chips is not a conflict.
	out := []byte(`chip-a
temp1:
  temp1_input: 1.000

chip-b
temp1:
  temp1_input: 2.000
`)

	snap, err := parseRawOutput(out)
	require.NoError(t, err)

	v, ok := snap.Lookup("chip-a", "temp1")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	v, ok = snap.Lookup("chip-b", "temp1")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestParseRawOutputEmpty(t *testing.T) {
	snap, err := parseRawOutput(nil)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestSnapshotLookupMissingChip(t *testing.T) {
	snap := Snapshot{"chip-0": {"temp1": 42.5}}

	_, ok := snap.Lookup("other-chip", "temp1")
	assert.False(t, ok)
	_, ok = snap.Lookup("chip-0", "temp9")
	assert.False(t, ok)
}

func TestCLISubsystemSnapshotBeforeInit(t *testing.T) {
	c := NewCLISubsystem(nil)
	_, err := c.Snapshot(context.Background())
	assert.Error(t, err)
}
