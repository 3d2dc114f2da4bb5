// Package completeness cross-checks identified products against the census
// and attaches a final confidence and recommendation to each product.
//
// It only annotates results. A missing or failed census yields a neutral
// confidence and CensusKnown=false, never a count of zero.
package completeness
