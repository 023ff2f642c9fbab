// Package config loads, normalizes, and validates framecast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FRAMECAST_API_TOKEN and FRAMECAST_CONFIG. The Config type centralizes every knob the daemon and
// CLI need: storage tiering thresholds, retry policy, the synchronous time
// budget, schema tolerances, and the default quality-gate policy.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
