// Package fusion combines per-modality manipulation scores into a single
// verdict using confidence-weighted aggregation, and provides offline weight
// calibration against labeled validation sets.
package fusion
