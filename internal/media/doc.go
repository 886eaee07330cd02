// Package media establishes the identity of submitted files: content
// hashing, extension classification, library intake, and container probing.
// The SHA-256 digest computed here is the deduplication key for the media
// registry and the integrity reference the validation stage re-checks.
package media
