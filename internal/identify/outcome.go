package identify

import (
	"github.com/brettericmartin/teed-sub011/internal/library"
	"github.com/brettericmartin/teed-sub011/internal/product"
)

// OutcomeKind tags how a resolution ended.
type OutcomeKind string

const (
	// OutcomeHit was served from the library without inference.
	OutcomeHit OutcomeKind = "hit"
	// OutcomeResolved was produced by inference, structured data, or URL intelligence.
	OutcomeResolved OutcomeKind = "resolved"
	// OutcomeFailed could not be resolved; Err carries the taxonomy marker.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the tagged result of resolving one evidence item. Callers switch
// on Kind and handle all three cases.
type Outcome struct {
	kind OutcomeKind

	// Key is the library key, empty for evidence that is not cached.
	Key        string
	Candidates []product.Candidate
	Warnings   []product.Warning
	Err        error
	// Entry is the library row that served a hit.
	Entry library.Entry
	// EarlyExit reports that resolution stopped once confidence cleared the threshold.
	EarlyExit bool
	// ScrapeSuccessful is false when a URL page could not be fetched.
	ScrapeSuccessful bool
	// Degraded marks results that fell back because a dependency failed.
	Degraded bool
}

// Kind returns the outcome tag.
func (o Outcome) Kind() OutcomeKind {
	return o.kind
}

// Hit is a library-served outcome.
func Hit(key string, entry library.Entry, candidates []product.Candidate) Outcome {
	return Outcome{
		kind:             OutcomeHit,
		Key:              key,
		Entry:            entry,
		Candidates:       candidates,
		EarlyExit:        true,
		ScrapeSuccessful: entry.ScrapeSuccessful,
	}
}

// Resolved is an outcome produced without the library. An empty candidate
// list means the evidence was examined and nothing was found.
func Resolved(key string, candidates []product.Candidate) Outcome {
	return Outcome{
		kind:             OutcomeResolved,
		Key:              key,
		Candidates:       candidates,
		ScrapeSuccessful: true,
	}
}

// Failed is an outcome for evidence that could not be examined.
func Failed(key string, err error, warning product.Warning) Outcome {
	return Outcome{
		kind:     OutcomeFailed,
		Key:      key,
		Err:      err,
		Warnings: []product.Warning{warning},
	}
}

// Best returns the highest-confidence candidate.
func (o Outcome) Best() (product.Candidate, bool) {
	if len(o.Candidates) == 0 {
		return product.Candidate{}, false
	}
	best := o.Candidates[0]
	for _, c := range o.Candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	return best, true
}
