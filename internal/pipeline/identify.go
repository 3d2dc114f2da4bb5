package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brettericmartin/teed-sub011/internal/census"
	"github.com/brettericmartin/teed-sub011/internal/completeness"
	"github.com/brettericmartin/teed-sub011/internal/evidence"
	"github.com/brettericmartin/teed-sub011/internal/identify"
	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

// Tuning overrides identification defaults for one request.
type Tuning struct {
	FetchTimeout        time.Duration
	EarlyExitConfidence float64
}

// Request is one identification request.
type Request struct {
	Evidence []evidence.Item
	// QueryContext identifies the client query. A newer request with the same
	// value cancels this one.
	QueryContext string
	// Hint is optional user context passed to vision calls.
	Hint   string
	Tuning *Tuning
}

// ImageReport is the census and completeness for one visual evidence item.
type ImageReport struct {
	Ref          string                   `json:"ref"`
	Objects      []product.DetectedObject `json:"objects"`
	Analysis     *product.ImageAnalysis   `json:"imageAnalysis,omitempty"`
	Completeness completeness.Report      `json:"completeness"`
}

// Response is the result of Identify.
type Response struct {
	Products []product.ValidatedProduct `json:"products"`
	// Completeness combines every image report; nil without visual evidence.
	Completeness *completeness.Report `json:"completeness,omitempty"`
	Images       []ImageReport        `json:"images,omitempty"`
	Warnings     []product.Warning    `json:"warnings"`
	RequestID    string               `json:"request_id,omitempty"`
}

type itemResult struct {
	ev         evidence.Evidence
	census     census.Result
	outcome    identify.OutcomeKind
	candidates []product.Candidate
	warnings   []product.Warning
}

// Identify resolves a batch of evidence into validated products. It returns
// an error only for an invalid batch or when the request was cancelled or
// superseded; item failures become warnings.
func (p *Pipeline) Identify(ctx context.Context, req Request) (Response, error) {
	ctx = services.WithStage(ctx, "pipeline")
	logger := logging.WithContext(ctx, p.logger)
	start := time.Now()

	evs, err := evidence.NormalizeBatch(req.Evidence, p.limits)
	if err != nil {
		logger.Info("evidence rejected", logging.Args(append(
			logging.DecisionAttrs("evidence", "rejected", services.Code(err)),
			logging.Int("items", len(req.Evidence)),
			logging.Error(err),
		)...)...)
		return Response{}, err
	}

	ctx, release := p.begin(ctx, req.QueryContext)
	defer release()
	params := p.paramsFor(req.Tuning, req.Hint)

	results := make([]itemResult, len(evs))
	var g errgroup.Group
	for i, ev := range evs {
		g.Go(func() error {
			results[i] = p.identifyItem(ctx, ev, params)
			return nil
		})
	}
	_ = g.Wait()
	if err := interrupted(ctx); err != nil {
		logger.Info("identification abandoned", logging.Args(
			logging.DecisionAttrs("identify", "abandoned", err.Error())...,
		)...)
		return Response{}, err
	}

	var (
		merged []product.MergedCandidate
		owners []int
	)
	for i, r := range results {
		for _, c := range r.candidates {
			merged = append(merged, product.MergedCandidate{
				Candidate:            c,
				CorroboratingSources: []product.SourceKind{c.Source},
				Contributors:         []product.Candidate{c},
			})
			owners = append(owners, i)
		}
	}
	enriched, enrichWarnings := p.enricher.Enrich(ctx, merged)

	resp := Response{
		Products: make([]product.ValidatedProduct, 0, len(enriched)),
		Warnings: []product.Warning{},
	}
	resp.RequestID, _ = services.RequestIDFromContext(ctx)
	for j, e := range enriched {
		resp.Products = append(resp.Products, p.validator.ValidateProduct(e, results[owners[j]].census.Objects))
	}

	var (
		reports []completeness.Report
		hits    int
	)
	for _, r := range results {
		resp.Warnings = append(resp.Warnings, r.warnings...)
		if r.outcome == identify.OutcomeHit {
			hits++
		}
		if !r.ev.IsVisual() {
			continue
		}
		report := p.validator.Assess(r.census, len(r.candidates))
		reports = append(reports, report)
		image := ImageReport{Ref: r.ev.Ref, Objects: r.census.Objects, Completeness: report}
		if r.census.Known {
			analysis := r.census.Analysis
			image.Analysis = &analysis
		}
		if image.Objects == nil {
			image.Objects = []product.DetectedObject{}
		}
		resp.Images = append(resp.Images, image)
	}
	resp.Warnings = append(resp.Warnings, enrichWarnings...)
	if len(reports) > 0 {
		combined := p.validator.Combine(reports...)
		resp.Completeness = &combined
	}

	logger.Info("identification complete",
		logging.Int("evidence", len(evs)),
		logging.Int("products", len(resp.Products)),
		logging.Int("library_hits", hits),
		logging.Int("warnings", len(resp.Warnings)),
		logging.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

// identifyItem runs the census for visual evidence and then resolves the
// item with the census objects as context.
func (p *Pipeline) identifyItem(ctx context.Context, ev evidence.Evidence, params identify.Params) itemResult {
	result := itemResult{ev: ev}
	var objects []product.DetectedObject
	if ev.IsVisual() && ev.Image != nil {
		scan, err := p.scanner.Scan(services.WithEvidenceRef(ctx, ev.Ref), *ev.Image, params.Hint)
		result.census = scan
		if err != nil && ctx.Err() == nil {
			result.warnings = append(result.warnings, product.Warning{
				Scope:   "census",
				ItemRef: ev.Ref,
				Code:    services.Code(err),
				Message: err.Error(),
			})
		}
		objects = scan.Objects
	}

	outcome := p.identifier.Resolve(ctx, ev, objects, params)
	result.outcome = outcome.Kind()
	result.warnings = append(result.warnings, outcome.Warnings...)
	for _, c := range outcome.Candidates {
		if c.Valid() {
			result.candidates = append(result.candidates, c)
		}
	}
	return result
}
