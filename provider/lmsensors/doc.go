// Package lmsensors reads hardware monitoring values through the lm-sensors
// command line tools.
//
// The package splits into two layers. Subsystem is the narrow collaborator
// that owns the hardware session: Init probes for the tooling, Snapshot
// captures all chips and features in one pass, Cleanup releases the session.
// Provider sits on top and maps configured chip/feature pairs onto a
// snapshot, emitting one event per pair that is present. Pairs absent from
// the snapshot are logged and skipped; they get no placeholder value.
//
// The default CLI subsystem prefers the JSON output of "sensors -j" and
// falls back to parsing "sensors -u" on older installations.
package lmsensors
