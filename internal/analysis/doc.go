// Package analysis defines the modality service contract shared by the
// video, audio, and lipsync detectors: preprocess raw stage inputs into
// scoreable units, predict one bounded score per unit through a score
// source, and postprocess the unit scores into a single modality result.
package analysis
