// Package aggregate runs product identification over the independent
// channels of one piece of content (description text, transcript text, and
// a bounded set of video frames) and merges the per-channel candidates.
//
// Every enabled channel runs exactly once and concurrently; a confident
// description never short-circuits the frames. Candidates naming the same
// product are merged by fuzzy brand and name equality, and agreement across
// channels raises the merged confidence by a configurable corroboration
// bonus. The per-channel lists are kept in ExtractionResult.RawData so a
// noisy channel can be audited rather than silently out-voting a clean one.
package aggregate
