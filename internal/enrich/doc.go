// Package enrich adds descriptions, specs, price ranges, fun facts, and
// purchase links to merged candidates with one text inference call per
// candidate.
//
// Calls fan out concurrently up to the configured limit. A failed call only
// affects its own candidate, which is returned with empty enrichment and a
// warning. When a model year is known the prompt is scoped to that year and
// links that cannot be confirmed as year-specific carry a year warning.
package enrich
