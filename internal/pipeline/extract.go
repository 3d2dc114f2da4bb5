package pipeline

import (
	"context"
	"time"

	"github.com/brettericmartin/teed-sub011/internal/aggregate"
	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

// ExtractRequest is one multi-source extraction request.
type ExtractRequest struct {
	Input        aggregate.Input
	QueryContext string
	Tuning       *Tuning
}

// ExtractResponse carries the merged extraction and its validated products.
type ExtractResponse struct {
	Extraction product.ExtractionResult   `json:"extraction"`
	Products   []product.ValidatedProduct `json:"products"`
	Warnings   []product.Warning          `json:"warnings"`
	RequestID  string                     `json:"request_id,omitempty"`
}

// Extract aggregates the content channels, then enriches and validates the
// merged products.
func (p *Pipeline) Extract(ctx context.Context, req ExtractRequest) (ExtractResponse, error) {
	ctx = services.WithStage(ctx, "pipeline")
	logger := logging.WithContext(ctx, p.logger)
	start := time.Now()

	ctx, release := p.begin(ctx, req.QueryContext)
	defer release()

	extraction, err := p.aggregator.Extract(ctx, req.Input, p.paramsFor(req.Tuning, ""))
	if err != nil {
		return ExtractResponse{}, err
	}
	if err := interrupted(ctx); err != nil {
		return ExtractResponse{}, err
	}

	enriched, enrichWarnings := p.enricher.Enrich(ctx, extraction.Products)
	resp := ExtractResponse{
		Extraction: extraction,
		Products:   p.validator.ValidateAll(enriched, nil),
		Warnings:   make([]product.Warning, 0, len(extraction.Warnings)+len(enrichWarnings)),
	}
	resp.RequestID, _ = services.RequestIDFromContext(ctx)
	resp.Warnings = append(resp.Warnings, extraction.Warnings...)
	resp.Warnings = append(resp.Warnings, enrichWarnings...)

	logger.Info("extraction complete",
		logging.String("content_type", string(extraction.ContentType)),
		logging.Int("products", len(resp.Products)),
		logging.Int("warnings", len(resp.Warnings)),
		logging.Duration("duration", time.Since(start)),
	)
	return resp, nil
}
