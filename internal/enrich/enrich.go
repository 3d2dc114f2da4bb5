package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/inference"
	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

const (
	stage = "enrich"
	// Operation is the inference operation name used for enrichment calls.
	Operation = "enrich.product"

	maxTokens          = 800
	defaultConcurrency = 4
	maxFunFacts        = 3
)

type rawLink struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Merchant string `json:"merchant"`
	Price    string `json:"price"`
}

type rawEnrichment struct {
	Description    string             `json:"description"`
	Specs          inference.FlexList `json:"specs"`
	EstimatedPrice string             `json:"estimatedPrice"`
	FunFacts       inference.FlexList `json:"funFacts"`
	SearchLinks    []rawLink          `json:"searchLinks"`
}

// Engine enriches merged candidates.
type Engine struct {
	client inference.Client
	cfg    config.Enrich
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for year warnings.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs an Engine.
func New(client inference.Client, cfg config.Enrich, logger *slog.Logger, opts ...Option) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	e := &Engine{
		client: client,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "enrich"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich enriches every candidate concurrently. The result has one product
// per input, in input order. Candidates whose call failed are returned with
// empty enrichment and a matching warning.
func (e *Engine) Enrich(ctx context.Context, candidates []product.MergedCandidate) ([]product.EnrichedProduct, []product.Warning) {
	ctx = services.WithStage(ctx, stage)
	logger := logging.WithContext(ctx, e.logger)
	out := make([]product.EnrichedProduct, len(candidates))
	if !e.cfg.Enabled {
		for i, c := range candidates {
			out[i] = e.bare(c)
		}
		logger.Debug("enrichment skipped", logging.Args(logging.DecisionAttrs("enrichment", "skip", "disabled by configuration")...)...)
		return out, nil
	}

	start := time.Now()
	errs := make([]error, len(candidates))
	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			enriched, err := e.EnrichOne(ctx, c)
			if err != nil {
				errs[i] = err
				enriched = e.bare(c)
			}
			out[i] = enriched
			return nil
		})
	}
	_ = g.Wait()

	var warnings []product.Warning
	for i, err := range errs {
		if err == nil {
			continue
		}
		name := candidates[i].DisplayName()
		warnings = append(warnings, product.Warning{
			Scope:   stage,
			ItemRef: name,
			Code:    services.Code(err),
			Message: "enrichment unavailable: " + err.Error(),
		})
		logging.WarnWithContext(logger, "enrichment failed", "enrichment_failed",
			logging.String("product", name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the product is returned without description or links"),
			logging.String(logging.FieldImpact, "one product lacks enrichment"),
		)
	}
	logger.Info("enrichment complete",
		logging.Int("products", len(candidates)),
		logging.Int("failed", len(warnings)),
		logging.Duration("duration", time.Since(start)),
	)
	return out, warnings
}

// EnrichOne enriches a single candidate.
func (e *Engine) EnrichOne(ctx context.Context, c product.MergedCandidate) (product.EnrichedProduct, error) {
	var raw rawEnrichment
	err := inference.Call(ctx, e.client, stage, inference.Request{
		Operation: Operation,
		System:    systemPrompt(c.Candidate, e.cfg.YearAware),
		Prompt:    userPrompt(c.Candidate),
		MaxTokens: maxTokens,
	}, &raw)
	if err != nil {
		return product.EnrichedProduct{}, err
	}

	enriched := product.EnrichedProduct{
		MergedCandidate: c,
		Description:     strings.TrimSpace(raw.Description),
		EstimatedPrice:  strings.TrimSpace(raw.EstimatedPrice),
		Enriched:        true,
	}
	enriched.Specs = mergeSpecs(c.Specs, raw.Specs)
	enriched.FunFacts = []string(raw.FunFacts)
	if len(enriched.FunFacts) > maxFunFacts {
		enriched.FunFacts = enriched.FunFacts[:maxFunFacts]
	}
	enriched.Links = e.links(c.Candidate, raw.SearchLinks)
	return enriched, nil
}

func (e *Engine) bare(c product.MergedCandidate) product.EnrichedProduct {
	return product.EnrichedProduct{
		MergedCandidate: c,
		Links:           []product.Link{},
	}
}

func (e *Engine) links(c product.Candidate, suggested []rawLink) []product.Link {
	links := make([]product.Link, 0, len(suggested)+1)
	seen := make(map[string]struct{}, len(suggested)+1)
	if link, ok := sourceLink(c); ok {
		links = append(links, link)
		seen[link.URL] = struct{}{}
	}
	for _, raw := range suggested {
		link, ok := webLink(c, raw)
		if !ok {
			continue
		}
		if _, dup := seen[link.URL]; dup {
			continue
		}
		seen[link.URL] = struct{}{}
		links = append(links, link)
	}
	if len(links) == 0 {
		links = append(links, searchLink(c))
	}
	applyYearWarnings(links, c.ModelYear, e.now().Year())
	return links
}

func mergeSpecs(known []string, suggested inference.FlexList) []string {
	seen := make(map[string]struct{}, len(known)+len(suggested))
	var out []string
	for _, spec := range append(append([]string(nil), known...), suggested...) {
		spec = strings.TrimSpace(spec)
		key := strings.ToLower(spec)
		if spec == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, spec)
	}
	return out
}

func systemPrompt(c product.Candidate, yearAware bool) string {
	var b strings.Builder
	b.WriteString("You are a product information expert. Provide accurate, specific details about products.\n")
	if yearAware && c.ModelYear > 0 {
		fmt.Fprintf(&b, "IMPORTANT: This is the %d model", c.ModelYear)
		if c.Generation != "" {
			fmt.Fprintf(&b, " (%s)", c.Generation)
		}
		b.WriteString(". Describe this specific year and generation, not the current model. Price older models at used market value.\n")
	} else if yearAware && c.Generation != "" {
		fmt.Fprintf(&b, "IMPORTANT: This is the %s generation. Describe that generation, not the current model.\n", c.Generation)
	}
	b.WriteString(`Return JSON only:
{
  "description": "1-2 sentences; mention if the model is discontinued",
  "specs": "key specs separated by |",
  "estimatedPrice": "price range such as $449-$549",
  "funFacts": ["2-3 genuinely interesting facts"],
  "searchLinks": [{"url": "https://...", "title": "listing title", "merchant": "merchant name", "price": "$XXX"}]
}`)
	return b.String()
}

func userPrompt(c product.Candidate) string {
	var b strings.Builder
	b.WriteString("Provide enrichment data for:\n")
	fmt.Fprintf(&b, "Product: %s\n", c.DisplayName())
	if c.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", c.Category)
	}
	if c.ModelYear > 0 {
		fmt.Fprintf(&b, "Model year: %d\n", c.ModelYear)
	}
	if c.Generation != "" {
		fmt.Fprintf(&b, "Generation: %s\n", c.Generation)
	}
	if len(c.Specs) > 0 {
		fmt.Fprintf(&b, "Known specs: %s\n", strings.Join(c.Specs, ", "))
	}
	return b.String()
}
