// Package config loads, normalizes, and validates teed configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY, ANTHROPIC_API_KEY, and REDIS_ADDR. Every pipeline
// threshold (early exit, corroboration bonus, completeness smoothing, the
// correction quality gate) is a named key here so deployments can tune them
// without code changes.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
