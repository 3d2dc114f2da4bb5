package learning

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/textutil"
)

// Gate checks a correction against the quality thresholds in cfg. It returns
// an empty reason when the correction may be persisted.
func Gate(cfg config.Learning, c product.Correction, related *product.ValidatedProduct) (bool, string) {
	corrected := strings.TrimSpace(c.CorrectedValue)
	if corrected == "" {
		return false, "corrected value is empty"
	}
	if n := utf8.RuneCountInString(corrected); n < cfg.MinCorrectedLength {
		return false, fmt.Sprintf("corrected value has %d characters, need %d", n, cfg.MinCorrectedLength)
	}
	if related != nil {
		if related.FinalConfidence < cfg.MinFinalConfidence {
			return false, fmt.Sprintf("related product confidence %.2f is below %.2f",
				related.FinalConfidence, cfg.MinFinalConfidence)
		}
		if related.Validation.Recommendation == product.RecommendMismatch {
			return false, "related product was already flagged as a mismatch"
		}
	}
	if c.Type == product.CorrectionProductName {
		if n := textutil.AlnumCount(corrected); n < cfg.MinProductNameAlnum {
			return false, fmt.Sprintf("product name has %d alphanumeric characters, need %d", n, cfg.MinProductNameAlnum)
		}
	}
	return true, ""
}
