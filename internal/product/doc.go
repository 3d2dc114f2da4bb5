// Package product holds the data model shared by every pipeline stage:
// census objects, identification candidates, merged and enriched products,
// validation verdicts, user corrections, and item-level warnings.
package product
