// Package provider defines the uniform retrieval contract for sensor data
// sources and constructs the configured providers at startup.
//
// A Provider yields zero or more SensorDataEvents per poll cycle and never
// returns an error from Retrieve: internal failures are caught and logged
// inside the provider, and missing data simply shrinks the returned slice.
// Hardware or files that are transiently unavailable are retried on the
// next cycle without reconstructing the provider.
//
// Build assembles the provider list from validated configuration: a single
// hardware provider covering all lm-sensors entries (when any exist),
// followed by one file provider per file entry, in declaration order. That
// order is also the retrieval order within a cycle.
package provider
