// Package config loads, normalizes, and validates mvx configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and resolves named conversion profiles. The
// Config type centralizes tool binaries, state locations, batch limits, and
// the container compatibility overrides consulted during planning.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
