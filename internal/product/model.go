package product

import (
	"strings"
	"time"
)

// Certainty is the census scanner's confidence that an object is present.
type Certainty string

const (
	CertaintyDefinite  Certainty = "definite"
	CertaintyLikely    Certainty = "likely"
	CertaintyUncertain Certainty = "uncertain"
)

// ParseCertainty coerces free text into the three-level enum. Unknown values
// become CertaintyUncertain.
func ParseCertainty(value string) Certainty {
	switch Certainty(strings.ToLower(strings.TrimSpace(value))) {
	case CertaintyDefinite:
		return CertaintyDefinite
	case CertaintyLikely:
		return CertaintyLikely
	default:
		return CertaintyUncertain
	}
}

// Weight maps certainty to a multiplier used by product validation.
func (c Certainty) Weight() float64 {
	switch c {
	case CertaintyDefinite:
		return 1.0
	case CertaintyLikely:
		return 0.85
	default:
		return 0.6
	}
}

// SourceKind names the evidence channel a candidate came from.
type SourceKind string

const (
	SourceDescription SourceKind = "description"
	SourceTranscript  SourceKind = "transcript"
	SourceFrames      SourceKind = "frames"
	SourceImage       SourceKind = "image"
	SourceURL         SourceKind = "url"
	SourceText        SourceKind = "text"
)

// Origin records whether a candidate was freshly inferred or served from the library.
type Origin string

const (
	OriginInference  Origin = "inference"
	OriginLibrary    Origin = "library"
	OriginStructured Origin = "structured_data"
	OriginURL        Origin = "url_intelligence"
)

// LinkSource records where a purchase link came from.
type LinkSource string

const (
	LinkInference LinkSource = "inference"
	LinkWeb       LinkSource = "web"
	LinkLibrary   LinkSource = "library"
)

// YearMatch compares a link's model year to the candidate's.
type YearMatch string

const (
	YearMatchExact    YearMatch = "match"
	YearMatchMismatch YearMatch = "mismatch"
	YearMatchUnknown  YearMatch = "unknown"
)

// Recommendation is the validation verdict attached to each final product.
type Recommendation string

const (
	RecommendAccept   Recommendation = "accept"
	RecommendReview   Recommendation = "review"
	RecommendMismatch Recommendation = "mismatch"
)

// ContentType classifies multi-source content.
type ContentType string

const (
	ContentSingleHero ContentType = "single_hero"
	ContentRoundup    ContentType = "roundup"
	ContentComparison ContentType = "comparison"
	ContentTutorial   ContentType = "tutorial"
)

// ImageAnalysis summarizes capture quality reported by the census scanner.
type ImageAnalysis struct {
	Quality     string   `json:"quality"`
	Lighting    string   `json:"lighting"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// DetectedObject is one physically distinct object from a census. It never
// carries brand or model.
type DetectedObject struct {
	ID                  string    `json:"id"`
	ObjectType          string    `json:"objectType"`
	ProductCategory     string    `json:"productCategory,omitempty"`
	Color               string    `json:"color,omitempty"`
	Material            string    `json:"material,omitempty"`
	BoundingDescription string    `json:"boundingDescription,omitempty"`
	VisualCues          []string  `json:"visualCues,omitempty"`
	Certainty           Certainty `json:"certainty"`
}

// Candidate is a single identification hypothesis.
type Candidate struct {
	Name        string     `json:"name"`
	Brand       string     `json:"brand,omitempty"`
	Category    string     `json:"category,omitempty"`
	Specs       []string   `json:"specifications,omitempty"`
	ModelYear   int        `json:"modelYear,omitempty"`
	Generation  string     `json:"generation,omitempty"`
	Price       string     `json:"price,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	SourceURL   string     `json:"sourceUrl,omitempty"`
	Confidence  float64    `json:"confidence"`
	Source      SourceKind `json:"source"`
	Origin      Origin     `json:"origin,omitempty"`
	EvidenceRef string     `json:"sourceEvidenceId,omitempty"`
	ObjectID    string     `json:"objectId,omitempty"`
	Reasoning   string     `json:"reasoning,omitempty"`
}

// Valid reports whether the candidate carries the minimum identification.
func (c Candidate) Valid() bool {
	return strings.TrimSpace(c.Name) != ""
}

// DisplayName joins brand and name without repeating a brand already in the name.
func (c Candidate) DisplayName() string {
	name := strings.TrimSpace(c.Name)
	brand := strings.TrimSpace(c.Brand)
	if brand == "" || strings.HasPrefix(strings.ToLower(name), strings.ToLower(brand)) {
		return name
	}
	return brand + " " + name
}

// MergedCandidate is a candidate corroborated across one or more sources.
type MergedCandidate struct {
	Candidate
	CorroboratingSources []SourceKind `json:"corroboratingSources"`
	Contributors         []Candidate  `json:"-"`
}

// Link is a purchase or reference link.
type Link struct {
	URL         string     `json:"url"`
	Title       string     `json:"title,omitempty"`
	Merchant    string     `json:"merchant,omitempty"`
	Price       string     `json:"price,omitempty"`
	Source      LinkSource `json:"source"`
	IsAffiliate bool       `json:"isAffiliate"`
	YearMatch   YearMatch  `json:"yearMatch"`
	YearWarning string     `json:"yearWarning,omitempty"`
}

// EnrichedProduct is a merged candidate with descriptive content and links.
type EnrichedProduct struct {
	MergedCandidate
	Description    string   `json:"description,omitempty"`
	EstimatedPrice string   `json:"estimatedPrice,omitempty"`
	FunFacts       []string `json:"funFacts,omitempty"`
	Links          []Link   `json:"links"`
	Enriched       bool     `json:"enriched"`
}

// Validation annotates a product with its visual match and verdict.
type Validation struct {
	VisualMatchScore float64        `json:"visualMatchScore"`
	Recommendation   Recommendation `json:"recommendation"`
	Reason           string         `json:"reason,omitempty"`
}

// ValidatedProduct is the final per-product output of the pipeline.
type ValidatedProduct struct {
	EnrichedProduct
	FinalConfidence float64    `json:"finalConfidence"`
	Validation      Validation `json:"validation"`
}

// CorrectionType enumerates the fields a user can correct.
type CorrectionType string

const (
	CorrectionProductName CorrectionType = "product_name"
	CorrectionBrand       CorrectionType = "brand"
	CorrectionCategory    CorrectionType = "category"
	CorrectionMissedItem  CorrectionType = "missed_item"
	CorrectionFalseItem   CorrectionType = "false_item"
	CorrectionOther       CorrectionType = "other"
)

// ParseCorrectionType accepts snake_case or kebab-case names. Unknown values
// become CorrectionOther.
func ParseCorrectionType(value string) CorrectionType {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	switch CorrectionType(normalized) {
	case CorrectionProductName, CorrectionBrand, CorrectionCategory, CorrectionMissedItem, CorrectionFalseItem:
		return CorrectionType(normalized)
	case "name", "product":
		return CorrectionProductName
	default:
		return CorrectionOther
	}
}

// Correction is a user-supplied fix to a pipeline result.
type Correction struct {
	ID             string         `json:"id,omitempty"`
	Type           CorrectionType `json:"correctionType"`
	Stage          string         `json:"stage"`
	OriginalValue  string         `json:"originalValue"`
	CorrectedValue string         `json:"correctedValue"`
	ProductID      string         `json:"productId,omitempty"`
	ObjectID       string         `json:"objectId,omitempty"`
	CreatedAt      time.Time      `json:"createdAt,omitempty"`
}

// Warning describes an item-level failure that did not fail the request.
type Warning struct {
	Scope   string `json:"scope"`
	ItemRef string `json:"itemRef,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExtractionSources records which channels a multi-source run used.
type ExtractionSources struct {
	Description bool `json:"description"`
	Transcript  bool `json:"transcript"`
	Frames      bool `json:"frames"`
}

// ExtractionResult is the output of multi-source aggregation.
type ExtractionResult struct {
	Products           []MergedCandidate          `json:"products"`
	ContentType        ContentType                `json:"contentType"`
	ContentTypeSignals []string                   `json:"contentTypeSignals,omitempty"`
	Sources            ExtractionSources          `json:"extractionSources"`
	RawData            map[SourceKind][]Candidate `json:"rawData"`
	Warnings           []Warning                  `json:"warnings,omitempty"`
}

// ClampConfidence bounds v to [0,1].
func ClampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
