// Package simulation provides the deterministic stand-in for real model
// inference: seeded score streams used by the simulated score source, and an
// instant analysis runner that fabricates a complete, plausible verdict for
// demos without running the staged pipeline.
package simulation
