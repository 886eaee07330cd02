// Package pipeline orchestrates analysis jobs through their stage chain.
//
// A Manager runs a pool of workers over the job store. Each worker claims the
// oldest runnable job with a lease compare-and-set, drives it stage by stage
// to a terminal status, and releases the lease. Stage transitions are status
// compare-and-sets so a concurrent transition or an asynchronous failure is
// observed instead of overwritten. A reclaim monitor clears leases whose
// heartbeat has gone stale so jobs orphaned by a crashed worker resume on
// another one.
//
// Stage handlers are the units of work; the manager owns retry, heartbeat,
// timeout, progress bands, and failure bookkeeping so handlers stay small.
package pipeline
