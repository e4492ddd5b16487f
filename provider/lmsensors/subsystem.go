package lmsensors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/penguineer/SensorsReport/errors"
)

// Snapshot is one capture of all hardware readings, keyed by chip name and
// feature name within the chip.
type Snapshot map[string]map[string]float64

// Lookup returns the reading for a chip/feature pair and whether the pair
// was present in the capture.
func (s Snapshot) Lookup(chip, feature string) (float64, bool) {
	features, ok := s[chip]
	if !ok {
		return 0, false
	}
	v, ok := features[feature]
	return v, ok
}

// Subsystem owns the hardware monitoring session. Implementations are not
// required to be safe for concurrent use; the provider serializes access.
type Subsystem interface {
	// Init establishes the session. Failure here is fatal to startup.
	Init() error

	// Snapshot captures the current readings of every detected chip.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Cleanup releases the session. Called once during shutdown.
	Cleanup()
}

// CLISubsystem shells out to the sensors(1) binary from lm-sensors.
type CLISubsystem struct {
	logger *slog.Logger

	binary string
}

var _ Subsystem = (*CLISubsystem)(nil)

// NewCLISubsystem returns a subsystem backed by the sensors binary found
// on PATH.
func NewCLISubsystem(logger *slog.Logger) *CLISubsystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLISubsystem{logger: logger}
}

// Init locates the sensors binary. The configuration scan that sensors
// performs happens lazily on the first Snapshot call.
func (c *CLISubsystem) Init() error {
	path, err := exec.LookPath("sensors")
	if err != nil {
		return errors.WrapFatal(
			fmt.Errorf("%w: sensors binary not found: %w", errors.ErrSubsystemInit, err),
			"lmsensors", "Init", "locate sensors binary")
	}
	c.binary = path
	c.logger.Debug("lm-sensors subsystem initialized", "binary", path)
	return nil
}

// Snapshot runs the sensors binary and parses its output. JSON output is
// preferred; installations without -j support fall back to the raw format.
func (c *CLISubsystem) Snapshot(ctx context.Context) (Snapshot, error) {
	if c.binary == "" {
		return nil, errors.Wrap(errors.ErrSubsystemInit, "lmsensors", "Snapshot", "use uninitialized subsystem")
	}

	out, err := exec.CommandContext(ctx, c.binary, "-j").Output()
	if err == nil {
		snap, perr := parseJSONOutput(out)
		if perr == nil {
			return snap, nil
		}
		c.logger.Warn("failed to parse sensors JSON output, falling back to raw format", "error", perr)
	} else {
		c.logger.Debug("sensors -j failed, falling back to raw format", "error", err)
	}

	out, err = exec.CommandContext(ctx, c.binary, "-u").Output()
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrSensorUnavailable, err),
			"lmsensors", "Snapshot", "run sensors")
	}
	return parseRawOutput(out)
}

// Cleanup releases the session. The CLI subsystem holds no persistent
// resources beyond the resolved binary path.
func (c *CLISubsystem) Cleanup() {
	c.binary = ""
	c.logger.Debug("lm-sensors subsystem cleaned up")
}

const inputSuffix = "_input"

// parseJSONOutput converts "sensors -j" output into a snapshot. The JSON
// shape is chip -> section -> subfeature -> number, where sections are
// human readable labels like "Core 0" and subfeatures end in suffixes like
// _input or _max. Only _input subfeatures carry current readings.
//
// Features are addressable two ways: by the raw subfeature stem ("temp1")
// and, when unambiguous, by the section label ("Core 0").
func parseJSONOutput(out []byte) (Snapshot, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, errors.Wrap(
			fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
			"lmsensors", "parseJSONOutput", "decode document")
	}

	snap := make(Snapshot, len(doc))
	for chip, rawChip := range doc {
		var sections map[string]json.RawMessage
		if err := json.Unmarshal(rawChip, &sections); err != nil {
			continue
		}

		features := make(map[string]float64)
		conflicts := make(map[string]bool)
		for label, rawSection := range sections {
			if label == "Adapter" {
				continue
			}
			var subs map[string]float64
			if err := json.Unmarshal(rawSection, &subs); err != nil {
				continue
			}

			inputs := 0
			var last float64
			for sub, v := range subs {
				if !strings.HasSuffix(sub, inputSuffix) {
					continue
				}
				stem := strings.TrimSuffix(sub, inputSuffix)
				if _, dup := features[stem]; dup {
					conflicts[stem] = true
				}
				features[stem] = v
				inputs++
				last = v
			}

			// A section with exactly one reading is addressable by
			// its label as well.
			if inputs == 1 {
				if _, dup := features[label]; dup {
					conflicts[label] = true
				}
				features[label] = last
			}
		}

		for name := range conflicts {
			delete(features, name)
		}
		if len(features) > 0 {
			snap[chip] = features
		}
	}
	return snap, nil
}

// parseRawOutput converts "sensors -u" output into a snapshot. The format
// is line oriented: an unindented line without a colon names a chip, a line
// ending in a colon opens a section, and indented "name: value" pairs are
// subfeatures.
func parseRawOutput(out []byte) (Snapshot, error) {
	snap := make(Snapshot)

	var chip string
	var features map[string]float64
	var conflicts map[string]bool
	section := ""
	sectionInputs := 0
	var sectionLast float64

	closeSection := func() {
		if features != nil && section != "" && sectionInputs == 1 {
			if _, dup := features[section]; dup {
				conflicts[section] = true
			} else {
				features[section] = sectionLast
			}
		}
		section = ""
		sectionInputs = 0
	}

	closeChip := func() {
		closeSection()
		if features == nil {
			return
		}
		for name := range conflicts {
			delete(features, name)
		}
		if len(features) > 0 {
			snap[chip] = features
		}
		features = nil
	}

	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == "" {
			closeChip()
			continue
		}

		indented := line[0] == ' ' || line[0] == '\t'
		if !indented {
			if strings.HasPrefix(line, "Adapter:") {
				continue
			}
			if strings.HasSuffix(line, ":") {
				closeSection()
				section = strings.TrimSuffix(line, ":")
				continue
			}
			closeChip()
			chip = strings.TrimSpace(line)
			features = make(map[string]float64)
			conflicts = make(map[string]bool)
			continue
		}

		if features == nil {
			continue
		}
		name, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || !strings.HasSuffix(name, inputSuffix) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			continue
		}
		stem := strings.TrimSuffix(name, inputSuffix)
		if _, dup := features[stem]; dup {
			conflicts[stem] = true
		}
		features[stem] = v
		sectionInputs++
		sectionLast = v
	}
	closeChip()

	return snap, nil
}
