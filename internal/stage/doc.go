// Package stage defines the handler contract every pipeline stage
// implements. The pipeline manager drives handlers through Prepare and
// Execute and surfaces HealthCheck results in daemon status output.
package stage
