package learning

import (
	"context"
	"log/slog"
	"strings"

	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/product"
)

// Corrections answers frequency lookups over accepted corrections.
type Corrections interface {
	TopCorrection(ctx context.Context, typ product.CorrectionType, original string) (string, int, error)
}

// Biaser rewrites candidate names and brands that users repeatedly corrected.
type Biaser struct {
	source         Corrections
	minOccurrences int
	logger         *slog.Logger
}

// NewBiaser constructs a Biaser. minOccurrences below 1 is treated as 1.
func NewBiaser(source Corrections, minOccurrences int, logger *slog.Logger) *Biaser {
	return &Biaser{
		source:         source,
		minOccurrences: max(minOccurrences, 1),
		logger:         logging.NewComponentLogger(logger, "bias"),
	}
}

// Apply returns candidate with its name and brand replaced by the most
// frequent correction when that correction occurred often enough. Lookup
// failures leave the candidate unchanged.
func (b *Biaser) Apply(ctx context.Context, candidate product.Candidate) product.Candidate {
	if b == nil || b.source == nil {
		return candidate
	}
	if name, ok := b.lookup(ctx, product.CorrectionProductName, candidate.Name); ok {
		candidate.Name = name
	}
	if brand, ok := b.lookup(ctx, product.CorrectionBrand, candidate.Brand); ok {
		candidate.Brand = brand
	}
	return candidate
}

func (b *Biaser) lookup(ctx context.Context, typ product.CorrectionType, original string) (string, bool) {
	if strings.TrimSpace(original) == "" {
		return "", false
	}
	logger := logging.WithContext(ctx, b.logger)
	value, count, err := b.source.TopCorrection(ctx, typ, original)
	if err != nil {
		logger.Debug("correction lookup failed",
			logging.String("correction_type", string(typ)),
			logging.Error(err),
		)
		return "", false
	}
	if count < b.minOccurrences || value == "" || value == original {
		return "", false
	}
	logger.Info("applied learned correction", logging.Args(append(
		logging.DecisionAttrs("bias_correction", "applied", "repeated user corrections"),
		logging.String("correction_type", string(typ)),
		logging.String("original", original),
		logging.String("corrected", value),
		logging.Int("occurrences", count),
	)...)...)
	return value, true
}
