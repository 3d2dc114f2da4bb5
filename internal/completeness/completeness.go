package completeness

import (
	"fmt"
	"log/slog"

	"github.com/brettericmartin/teed-sub011/internal/census"
	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/product"
)

const (
	defaultAccept       = 0.75
	defaultReview       = 0.4
	defaultVisualWeight = 0.3
	defaultNeutral      = 0.5
)

// Report compares the identified product count with one or more censuses.
type Report struct {
	CensusKnown            bool           `json:"censusKnown"`
	CensusCount            int            `json:"censusCount"`
	IdentifiedCount        int            `json:"identifiedCount"`
	MissedItemsEstimate    int            `json:"missedItemsEstimate"`
	CompletenessConfidence float64        `json:"completenessConfidence"`
	MatchesCensus          bool           `json:"matchesCensus"`
	Spatial                map[string]int `json:"spatialDistribution,omitempty"`
	Images                 int            `json:"images"`
}

// Validator computes completeness reports and per-product validation.
type Validator struct {
	completeness config.Completeness
	validation   config.Validation
	logger       *slog.Logger
}

// New constructs a Validator.
func New(completeness config.Completeness, validation config.Validation, logger *slog.Logger) *Validator {
	if completeness.UnknownCensusConfidence <= 0 || completeness.UnknownCensusConfidence > 1 {
		completeness.UnknownCensusConfidence = defaultNeutral
	}
	if validation.AcceptThreshold <= 0 {
		validation.AcceptThreshold = defaultAccept
	}
	if validation.ReviewThreshold <= 0 {
		validation.ReviewThreshold = defaultReview
	}
	if validation.VisualWeight < 0 || validation.VisualWeight > 1 {
		validation.VisualWeight = defaultVisualWeight
	}
	return &Validator{
		completeness: completeness,
		validation:   validation,
		logger:       logging.NewComponentLogger(logger, "completeness"),
	}
}

// Assess compares one census with the number of products identified in the
// same image.
func (v *Validator) Assess(result census.Result, identified int) Report {
	report := Report{IdentifiedCount: identified, Images: 1}
	if !result.Known {
		report.CompletenessConfidence = v.completeness.UnknownCensusConfidence
		return report
	}
	report.CensusKnown = true
	report.CensusCount = result.Count()
	report.Spatial = result.Spatial()
	v.score(&report)
	report.MatchesCensus = report.MissedItemsEstimate == 0
	if !report.MatchesCensus {
		v.logger.Debug("census mismatch", logging.Args(append(logging.DecisionAttrs("completeness", "missed_items",
			fmt.Sprintf("census %d, identified %d", report.CensusCount, identified)),
			logging.Float64("completeness_confidence", report.CompletenessConfidence))...)...)
	}
	return report
}

// Combine sums reports from several images. The combined report matches the
// census only if every image matched, and is unknown if any census was.
func (v *Validator) Combine(reports ...Report) Report {
	combined := Report{CensusKnown: true, MatchesCensus: true}
	known := 0
	for _, r := range reports {
		combined.Images += r.Images
		combined.IdentifiedCount += r.IdentifiedCount
		if !r.CensusKnown {
			combined.CensusKnown = false
			combined.MatchesCensus = false
			continue
		}
		known++
		combined.CensusCount += r.CensusCount
		combined.MissedItemsEstimate += r.MissedItemsEstimate
		if !r.MatchesCensus {
			combined.MatchesCensus = false
		}
		for bucket, count := range r.Spatial {
			if combined.Spatial == nil {
				combined.Spatial = make(map[string]int)
			}
			combined.Spatial[bucket] += count
		}
	}
	if len(reports) == 0 || known == 0 {
		combined.CensusKnown = false
		combined.MatchesCensus = false
		combined.CompletenessConfidence = v.completeness.UnknownCensusConfidence
		return combined
	}
	identifiedInKnown := combined.CensusCount - combined.MissedItemsEstimate
	combined.CompletenessConfidence = v.confidence(identifiedInKnown, combined.CensusCount)
	return combined
}

func (v *Validator) score(report *Report) {
	report.MissedItemsEstimate = max(0, report.CensusCount-report.IdentifiedCount)
	report.CompletenessConfidence = v.confidence(report.IdentifiedCount, report.CensusCount)
}

// confidence is 1 when everything was identified and otherwise the smoothed
// ratio (identified + s) / (census + s), which stays below 1.
func (v *Validator) confidence(identified, censusCount int) float64 {
	if identified >= censusCount {
		return 1
	}
	s := v.completeness.Smoothing
	if s < 0 {
		s = 0
	}
	denominator := float64(censusCount) + s
	if denominator <= 0 {
		return 0
	}
	return product.ClampConfidence((float64(max(identified, 0)) + s) / denominator)
}
