// Package event defines the value objects flowing between providers and
// emission: the SensorDataEvent pairing a configured sensor with one
// observed value, and the CloudEvent envelope generator that wraps a
// measurement in a standardized, transport-independent event envelope.
//
// SensorDataEvents are ephemeral: constructed by a provider during a
// retrieve pass, consumed immediately by emission within the same cycle,
// then discarded. They are never persisted or mutated after construction.
//
// The envelope follows the CloudEvents idea (identity, timing, source and
// type metadata around an opaque payload) but keeps the bridge's historical
// wire shape: attribute keys are event_id and event_type, and the subject
// key is always present.
package event
