// Package preflight provides readiness checks for the filesystem paths and
// external binaries the analysis pipeline depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and refuses to start on a failure,
//     so a misconfigured install fails fast instead of failing per job.
//   - The CLI "veriscope status" command uses the individual check functions
//     to display environment health.
package preflight
