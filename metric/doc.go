// Package metric manages Prometheus metrics for the bridge.
//
// A single Registry wraps a private prometheus.Registry seeded with the Go
// runtime and process collectors. Components register their own counters,
// gauges, and histograms under a component name so duplicate registrations
// surface as errors instead of silent prometheus panics. Handler exposes
// the registry for an HTTP /metrics endpoint.
//
// Components treat a nil Registry as "metrics disabled" and skip
// registration entirely.
package metric
