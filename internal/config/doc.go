// Package config loads, normalizes, and validates Curator configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CURATOR_API_KEY. The Config type centralizes every knob the daemon and CLI
// need, allowing watch/library directories and classifier credentials to be
// discovered in one pass. The Manager type layers hot reload on top: it owns
// the current immutable snapshot and notifies subscribers when a reload
// replaces it.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
