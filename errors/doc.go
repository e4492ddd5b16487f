// Package errors provides standardized error handling for SensorsReport.
//
// # Overview
//
// The package implements a three-class error classification: Transient
// (temporary, retry recommended), Invalid (bad input or configuration, do
// not retry), and Fatal (unrecoverable, stop the process). Classification
// drives the bridge's error policy: validation and hardware-init failures
// abort startup, per-cycle retrieval failures degrade gracefully, and
// broker connectivity issues are left to the transport's reconnect loop.
//
// # Error Wrapping Pattern
//
// All wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Client", "Connect", "dial broker")
//	errors.WrapInvalid(err, "Loader", "LoadFile", "parse document")
//	errors.WrapFatal(err, "Provider", "Init", "sensors subsystem")
//
// The generic Wrap() preserves the original error's classification.
//
// All error types support errors.Is, errors.As, and wrapping chains;
// context.Canceled and context.DeadlineExceeded classify as transient.
package errors
