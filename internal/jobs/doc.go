// Package jobs persists analysis jobs and registered media in SQLite and
// exposes helpers for driving the job lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, worker leases, stale-lease recovery, and the stage transitions
// that mirror the public pipeline enum. Jobs capture progress, per-stage
// results, the fused verdict, and flagged segments so stages can coordinate
// without additional state.
//
// Transitions follow a strict chain: each stage may advance only to the one
// after it, any non-terminal job may fail, and terminal jobs never move
// again. Advance and MarkFailed enforce this with compare-and-set writes so
// concurrent workers cannot push a job sideways.
//
// The database is treated as transient storage for in-flight jobs rather
// than a long-term archive. Schema changes bump the version in schema.go;
// users clear the database to adopt the new schema.
//
// Treat this package as the single source of truth for job semantics; when
// you add new statuses or result slots, update schema.sql and bump
// schemaVersion.
package jobs
