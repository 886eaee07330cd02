// Package main hosts the Veriscope CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into job
// submissions, store queries, report retrieval, and configuration
// scaffolding. The CLI reads the SQLite store directly; there is no wire
// protocol between it and the daemon.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
