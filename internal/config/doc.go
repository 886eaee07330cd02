// Package config loads, normalizes, and validates veriscope configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and layers VERISCOPE_* environment overrides
// on top. The Config type centralizes every knob the daemon and CLI need,
// allowing data/staging/report directories, analysis commands, and fusion
// weights to be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
