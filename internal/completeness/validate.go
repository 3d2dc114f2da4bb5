package completeness

import (
	"fmt"

	"github.com/brettericmartin/teed-sub011/internal/product"
)

// ValidateProduct scores p against the census objects it was matched to.
// The visual match score discounts confidence by the matched object's
// certainty; products without an object keep their own confidence.
func (v *Validator) ValidateProduct(p product.EnrichedProduct, objects []product.DetectedObject) product.ValidatedProduct {
	confidence := product.ClampConfidence(p.Confidence)
	visual := confidence
	reason := "no census object to compare against"
	if object, ok := findObject(objects, p.ObjectID); ok {
		visual = product.ClampConfidence(confidence * object.Certainty.Weight())
		reason = fmt.Sprintf("matched %s census object %s", object.Certainty, object.ID)
	}
	weight := v.validation.VisualWeight
	final := product.ClampConfidence((1-weight)*confidence + weight*visual)

	recommendation := product.RecommendMismatch
	switch {
	case final >= v.validation.AcceptThreshold:
		recommendation = product.RecommendAccept
	case final >= v.validation.ReviewThreshold:
		recommendation = product.RecommendReview
	}
	return product.ValidatedProduct{
		EnrichedProduct: p,
		FinalConfidence: final,
		Validation: product.Validation{
			VisualMatchScore: visual,
			Recommendation:   recommendation,
			Reason:           reason,
		},
	}
}

// ValidateAll validates every product against objects.
func (v *Validator) ValidateAll(products []product.EnrichedProduct, objects []product.DetectedObject) []product.ValidatedProduct {
	out := make([]product.ValidatedProduct, 0, len(products))
	for _, p := range products {
		out = append(out, v.ValidateProduct(p, objects))
	}
	return out
}

func findObject(objects []product.DetectedObject, id string) (product.DetectedObject, bool) {
	if id == "" {
		return product.DetectedObject{}, false
	}
	for _, object := range objects {
		if object.ID == id {
			return object, true
		}
	}
	return product.DetectedObject{}, false
}
