// Package daemon coordinates the long-running Veriscope process.
//
// It wires configuration, the job store, and the pipeline manager into a
// single lifecycle with flock-based locking to prevent multiple instances.
// The daemon owns startup and shutdown ordering; individual analysis stages
// live in their own packages and are registered with the pipeline manager
// before the daemon starts.
package daemon
