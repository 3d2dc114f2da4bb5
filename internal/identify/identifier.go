package identify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brettericmartin/teed-sub011/internal/background"
	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/evidence"
	"github.com/brettericmartin/teed-sub011/internal/inference"
	"github.com/brettericmartin/teed-sub011/internal/library"
	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

const (
	stage = "identify"

	structuredConfidence = 0.95
	identifyMaxTokens    = 2048
	refineMaxTokens      = 1024
)

// Biaser rewrites a candidate using accepted user corrections.
type Biaser interface {
	Apply(ctx context.Context, candidate product.Candidate) product.Candidate
}

// Params are the per-request tuning knobs.
type Params struct {
	FetchTimeout        time.Duration
	EarlyExitConfidence float64
	// SkipInference resolves URLs from structured data and URL intelligence only.
	SkipInference bool
	// Hint is optional user context passed to vision calls.
	Hint string
}

// ParamsFromConfig returns the configured defaults.
func ParamsFromConfig(cfg config.Identify) Params {
	return Params{
		FetchTimeout:        time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
		EarlyExitConfidence: cfg.EarlyExitConfidence,
	}
}

func (p Params) withDefaults() Params {
	if p.FetchTimeout <= 0 {
		p.FetchTimeout = 8 * time.Second
	}
	if p.EarlyExitConfidence <= 0 || p.EarlyExitConfidence > 1 {
		p.EarlyExitConfidence = 0.85
	}
	return p
}

// Deps are the collaborators an Identifier needs. Text and Vision may be the
// same client. Library, Fetcher, Biaser, and Tasks are optional.
type Deps struct {
	Text    inference.Client
	Vision  inference.Client
	Library library.Store
	Fetcher Fetcher
	Catalog *Catalog
	Biaser  Biaser
	Tasks   *background.Runner
	Logger  *slog.Logger
	Now     func() time.Time
}

// Options tune write-through and refinement.
type Options struct {
	MaxRefinements    int
	MinSaveConfidence float64
}

// Identifier resolves single evidence items into candidates, library first.
type Identifier struct {
	text    inference.Client
	vision  inference.Client
	library library.Store
	fetcher Fetcher
	catalog *Catalog
	biaser  Biaser
	tasks   *background.Runner
	logger  *slog.Logger
	now     func() time.Time
	opts    Options
}

// New constructs an Identifier.
func New(deps Deps, opts Options) *Identifier {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	vision := deps.Vision
	if vision == nil {
		vision = deps.Text
	}
	if opts.MaxRefinements < 0 {
		opts.MaxRefinements = 0
	}
	return &Identifier{
		text:    deps.Text,
		vision:  vision,
		library: deps.Library,
		fetcher: deps.Fetcher,
		catalog: deps.Catalog,
		biaser:  deps.Biaser,
		tasks:   deps.Tasks,
		logger:  logging.NewComponentLogger(deps.Logger, "identify"),
		now:     now,
		opts:    opts,
	}
}

// Resolve identifies ev. The library is consulted first for URL and text
// evidence; misses fall back to inference and are written through in the
// background. Visual evidence uses objects from the census as context.
func (i *Identifier) Resolve(ctx context.Context, ev evidence.Evidence, objects []product.DetectedObject, params Params) Outcome {
	params = params.withDefaults()
	ctx = services.WithEvidenceRef(services.WithStage(ctx, stage), ev.Ref)
	logger := logging.WithContext(ctx, i.logger)
	start := time.Now()

	key, cacheable := library.KeyFor(ev)
	if cacheable && i.library != nil {
		if outcome, ok := i.lookup(ctx, logger, key, params); ok {
			return outcome
		}
	}

	var outcome Outcome
	switch ev.Kind {
	case evidence.KindURL:
		outcome = i.resolveURL(ctx, logger, ev, params)
	case evidence.KindText:
		outcome = i.resolveText(ctx, ev, params)
	case evidence.KindImage, evidence.KindImageURL:
		outcome = i.resolveImage(ctx, logger, ev, objects, params)
	default:
		err := services.Wrap(services.ErrInvalidEvidence, stage, "resolve", "unsupported evidence kind "+string(ev.Kind), nil)
		outcome = Failed("", err, warningFor(ev.Ref, err))
	}
	outcome.Key = key

	if outcome.Kind() == OutcomeFailed {
		logging.WarnWithContext(logger, "identification failed", "identify_failed",
			logging.Error(outcome.Err),
			logging.String("evidence_kind", string(ev.Kind)),
			logging.String(logging.FieldErrorHint, "retry later or check the inference provider"),
			logging.String(logging.FieldImpact, "no candidates for this evidence item"),
		)
		return outcome
	}

	if cacheable {
		i.writeThrough(ctx, logger, key, ev, outcome)
	}
	outcome.Candidates = i.applyBias(ctx, outcome.Candidates)
	logger.Info("identification resolved",
		logging.String("evidence_kind", string(ev.Kind)),
		logging.Int("candidates", len(outcome.Candidates)),
		logging.Bool("early_exit", outcome.EarlyExit),
		logging.Bool("degraded", outcome.Degraded),
		logging.Duration("duration", time.Since(start)),
	)
	return outcome
}

func (i *Identifier) lookup(ctx context.Context, logger *slog.Logger, key string, params Params) (Outcome, bool) {
	entry, ok, err := i.library.Lookup(ctx, key, params.EarlyExitConfidence)
	if err != nil {
		logging.WarnWithContext(logger, "library lookup failed", "library_lookup_failed",
			logging.Error(err),
			logging.String("key", key),
			logging.String(logging.FieldErrorHint, "check the library backend"),
			logging.String(logging.FieldImpact, "falling back to inference"),
		)
		return Outcome{}, false
	}
	if !ok {
		logger.Debug("library lookup", logging.Args(append(logging.DecisionAttrs("library_cache", "miss", "no eligible entry"), logging.String("key", key))...)...)
		return Outcome{}, false
	}
	logger.Info("library hit", logging.Args(append(logging.DecisionAttrs("library_cache", "hit", "eligible entry above early exit threshold"),
		logging.String("key", key),
		logging.Float64("confidence", entry.Confidence),
		logging.Int64("hit_count", entry.HitCount),
	)...)...)

	hitAt := i.now()
	i.spawn(ctx, "library.record_hit", func(taskCtx context.Context) error {
		_, err := i.library.RecordHit(taskCtx, key, hitAt)
		return err
	})

	candidates := i.applyBias(ctx, entry.Served())
	return Hit(key, entry, candidates), true
}

func (i *Identifier) resolveURL(ctx context.Context, logger *slog.Logger, ev evidence.Evidence, params Params) Outcome {
	target := ev.RawURL
	if target == "" {
		target = ev.URL
	}
	intel := i.catalog.ParseURL(target)

	var page *Page
	if i.fetcher != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, params.FetchTimeout)
		fetched, err := i.fetcher.Fetch(fetchCtx, target)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return Failed("", context.Cause(ctx), warningFor(ev.Ref, context.Cause(ctx)))
			}
			if errors.Is(err, context.DeadlineExceeded) {
				err = services.Wrap(services.ErrFetchTimeout, stage, "fetch", target, err)
			}
			logging.WarnWithContext(logger, "page fetch failed", "fetch_failed",
				logging.Error(err),
				logging.String("url", target),
				logging.String(logging.FieldErrorHint, "the site may block automated requests"),
				logging.String(logging.FieldImpact, "using a URL-derived guess"),
			)
			return i.urlGuess(ev, intel, err)
		}
		page = &fetched
	}

	if page != nil && page.Product != nil {
		structured := structuredCandidate(ev, intel, *page)
		if structured.Confidence >= params.EarlyExitConfidence {
			logger.Info("structured product data found", logging.Args(logging.DecisionAttrs("early_exit", "structured_data", "json-ld product above threshold")...)...)
			outcome := Resolved("", []product.Candidate{structured})
			outcome.EarlyExit = true
			return outcome
		}
		if params.SkipInference {
			return Resolved("", []product.Candidate{structured})
		}
		inferred, err := i.inferURL(ctx, ev, intel, page)
		if err != nil || len(inferred) == 0 || inferred[0].Confidence < structured.Confidence {
			return Resolved("", []product.Candidate{structured})
		}
		return Resolved("", inferred[:1])
	}

	if params.SkipInference {
		guess, ok := intel.Guess(ev.Ref)
		if !ok {
			return Resolved("", nil)
		}
		if page != nil {
			decoratePage(&guess, page)
		}
		return Resolved("", []product.Candidate{guess})
	}

	candidates, err := i.inferURL(ctx, ev, intel, page)
	if err != nil {
		if ctx.Err() != nil {
			return Failed("", context.Cause(ctx), warningFor(ev.Ref, context.Cause(ctx)))
		}
		guess, ok := intel.Guess(ev.Ref)
		if !ok {
			return Failed("", err, warningFor(ev.Ref, err))
		}
		if page != nil {
			decoratePage(&guess, page)
		}
		outcome := Resolved("", []product.Candidate{guess})
		outcome.Degraded = true
		outcome.Warnings = append(outcome.Warnings, warningFor(ev.Ref, err))
		return outcome
	}
	outcome := Resolved("", candidates)
	if best, ok := outcome.Best(); ok && best.Confidence >= params.EarlyExitConfidence {
		outcome.EarlyExit = true
	}
	return outcome
}

func (i *Identifier) inferURL(ctx context.Context, ev evidence.Evidence, intel URLIntel, page *Page) ([]product.Candidate, error) {
	var raw rawCandidates
	err := inference.Call(ctx, i.text, stage, inference.Request{
		Operation: OperationURL,
		System:    systemPrompt,
		Prompt:    urlPrompt(intel, page),
		MaxTokens: identifyMaxTokens,
	}, &raw)
	if err != nil {
		return nil, err
	}
	candidates, _, err := decodeCandidates(raw, OperationURL, product.SourceURL, ev.Ref)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 1 {
		candidates = candidates[:1]
	}
	for idx := range candidates {
		c := &candidates[idx]
		c.SourceURL = intel.URL
		if c.Brand == "" {
			c.Brand = intel.Brand
		}
		if c.Category == "" {
			c.Category = intel.Category
		}
		if page != nil {
			decoratePage(c, page)
		}
	}
	return candidates, nil
}

// urlGuess degrades a failed fetch to URL intelligence. The result is marked
// as an unsuccessful scrape so the library never serves it as a hit.
func (i *Identifier) urlGuess(ev evidence.Evidence, intel URLIntel, cause error) Outcome {
	warning := warningFor(ev.Ref, cause)
	guess, ok := intel.Guess(ev.Ref)
	if !ok {
		return Failed("", cause, warning)
	}
	outcome := Resolved("", []product.Candidate{guess})
	outcome.ScrapeSuccessful = false
	outcome.Degraded = true
	outcome.Warnings = []product.Warning{warning}
	return outcome
}

func structuredCandidate(ev evidence.Evidence, intel URLIntel, page Page) product.Candidate {
	sp := page.Product
	brand := sp.Brand
	if brand == "" {
		brand = intel.Brand
	}
	name := stripBrandPrefix(collapseSpace(sp.Name), brand)
	if name == "" {
		name = intel.Name
	}
	category := intel.Category
	if category == "" {
		category = strings.ToLower(sp.Category)
	}
	var specs []string
	for _, spec := range []struct{ label, value string }{{"SKU", sp.SKU}, {"MPN", sp.MPN}, {"GTIN", sp.GTIN}} {
		if spec.value != "" {
			specs = append(specs, spec.label+": "+spec.value)
		}
	}
	return product.Candidate{
		Name:        name,
		Brand:       brand,
		Category:    category,
		Specs:       specs,
		Price:       page.Price(),
		ImageURL:    page.Image(),
		SourceURL:   intel.URL,
		Confidence:  structuredConfidence,
		Source:      product.SourceURL,
		Origin:      product.OriginStructured,
		EvidenceRef: ev.Ref,
		Reasoning:   "schema.org product data on the page",
	}
}

func decoratePage(c *product.Candidate, page *Page) {
	if c.ImageURL == "" {
		c.ImageURL = page.Image()
	}
	if c.Price == "" {
		c.Price = page.Price()
	}
}

func (i *Identifier) resolveText(ctx context.Context, ev evidence.Evidence, params Params) Outcome {
	var raw rawCandidates
	err := inference.Call(ctx, i.text, stage, inference.Request{
		Operation: OperationText,
		System:    systemPrompt,
		Prompt:    textPrompt(ev.Text),
		MaxTokens: identifyMaxTokens,
	}, &raw)
	if err == nil {
		var candidates []product.Candidate
		candidates, _, err = decodeCandidates(raw, OperationText, product.SourceText, ev.Ref)
		if err == nil {
			outcome := Resolved("", candidates)
			if best, ok := outcome.Best(); ok && best.Confidence >= params.EarlyExitConfidence {
				outcome.EarlyExit = true
			}
			return outcome
		}
	}
	if ctx.Err() != nil {
		err = context.Cause(ctx)
	}
	return Failed("", err, warningFor(ev.Ref, err))
}

func (i *Identifier) resolveImage(ctx context.Context, logger *slog.Logger, ev evidence.Evidence, objects []product.DetectedObject, params Params) Outcome {
	if ev.Image == nil {
		err := services.Wrap(services.ErrInvalidEvidence, stage, OperationImage, "evidence has no image", nil)
		return Failed("", err, warningFor(ev.Ref, err))
	}
	image := *ev.Image
	image.Detail = inference.DetailAuto

	var raw rawCandidates
	err := inference.Call(ctx, i.vision, stage, inference.Request{
		Operation: OperationImage,
		System:    systemPrompt,
		Prompt:    imagePrompt(objects, params.Hint),
		Images:    []inference.Image{image},
		MaxTokens: identifyMaxTokens,
	}, &raw)
	var candidates []product.Candidate
	if err == nil {
		candidates, _, err = decodeCandidates(raw, OperationImage, product.SourceImage, ev.Ref)
	}
	if err != nil {
		if ctx.Err() != nil {
			err = context.Cause(ctx)
		}
		return Failed("", err, warningFor(ev.Ref, err))
	}
	candidates = attachObjects(candidates, objects)

	outcome := Resolved("", candidates)
	outcome.ScrapeSuccessful = true
	pending := make([]int, 0, len(candidates))
	for idx, c := range candidates {
		if c.Confidence < params.EarlyExitConfidence {
			pending = append(pending, idx)
		}
	}
	if len(pending) == 0 {
		outcome.EarlyExit = true
		if len(candidates) > 0 {
			logger.Info("refinement skipped", logging.Args(logging.DecisionAttrs("early_exit", "skip_refine", "all candidates above threshold")...)...)
		}
		return outcome
	}
	if len(pending) > i.opts.MaxRefinements {
		pending = pending[:i.opts.MaxRefinements]
	}
	outcome.Warnings = append(outcome.Warnings, i.refine(ctx, ev, image, objects, candidates, pending)...)
	sortCandidates(outcome.Candidates)
	return outcome
}

// refine re-examines low-confidence candidates concurrently at high detail.
// A refinement only replaces its candidate when it is more confident.
func (i *Identifier) refine(ctx context.Context, ev evidence.Evidence, image inference.Image, objects []product.DetectedObject, candidates []product.Candidate, pending []int) []product.Warning {
	image.Detail = inference.DetailHigh
	byID := make(map[string]*product.DetectedObject, len(objects))
	for idx := range objects {
		byID[objects[idx].ID] = &objects[idx]
	}

	var (
		mu       sync.Mutex
		warnings []product.Warning
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, idx := range pending {
		g.Go(func() error {
			original := candidates[idx]
			var raw rawCandidates
			err := inference.Call(gctx, i.vision, stage, inference.Request{
				Operation: OperationRefine,
				System:    systemPrompt,
				Prompt:    refinePrompt(original, byID[original.ObjectID]),
				Images:    []inference.Image{image},
				MaxTokens: refineMaxTokens,
			}, &raw)
			var refined []product.Candidate
			if err == nil {
				refined, _, err = decodeCandidates(raw, OperationRefine, product.SourceImage, ev.Ref)
			}
			if err != nil {
				mu.Lock()
				warnings = append(warnings, warningFor(ev.Ref, err))
				mu.Unlock()
				return nil
			}
			if len(refined) == 0 || refined[0].Confidence <= original.Confidence {
				return nil
			}
			best := refined[0]
			best.ObjectID = original.ObjectID
			candidates[idx] = best
			return nil
		})
	}
	_ = g.Wait()
	return warnings
}

// attachObjects drops object ids the census never produced.
func attachObjects(candidates []product.Candidate, objects []product.DetectedObject) []product.Candidate {
	known := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		known[obj.ID] = struct{}{}
	}
	for idx := range candidates {
		if _, ok := known[candidates[idx].ObjectID]; !ok {
			candidates[idx].ObjectID = ""
		}
	}
	return candidates
}

func (i *Identifier) writeThrough(ctx context.Context, logger *slog.Logger, key string, ev evidence.Evidence, outcome Outcome) {
	if i.library == nil || ctx.Err() != nil {
		return
	}
	best, ok := outcome.Best()
	switch {
	case !ok:
		return
	case outcome.Degraded && outcome.ScrapeSuccessful:
		// Inference outage fallbacks are not worth remembering.
		return
	case best.Confidence < i.opts.MinSaveConfidence:
		logger.Debug("library write skipped", logging.Args(logging.DecisionAttrs("library_write", "skip", "confidence below save threshold")...)...)
		return
	}
	entry := library.NewEntry(key, ev, outcome.Candidates, outcome.ScrapeSuccessful, i.now())
	i.spawn(ctx, "library.upsert", func(taskCtx context.Context) error {
		return i.library.Upsert(taskCtx, entry)
	})
}

func (i *Identifier) applyBias(ctx context.Context, candidates []product.Candidate) []product.Candidate {
	if i.biaser == nil {
		return candidates
	}
	for idx := range candidates {
		candidates[idx] = i.biaser.Apply(ctx, candidates[idx])
	}
	return candidates
}

func (i *Identifier) spawn(ctx context.Context, name string, task background.Task) {
	if i.tasks == nil {
		if err := task(context.WithoutCancel(ctx)); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, i.logger), "side write failed", "background_task_failed",
				logging.String("task", name),
				logging.Error(err),
			)
		}
		return
	}
	if err := i.tasks.Go(ctx, name, task); err != nil {
		i.logger.Debug("background task not scheduled", logging.String("task", name), logging.Error(err))
	}
}

func warningFor(ref string, err error) product.Warning {
	message := "identification failed"
	if err != nil {
		message = err.Error()
	}
	code := services.Code(err)
	switch {
	case errors.Is(err, ErrSuperseded):
		code = "superseded"
	case errors.Is(err, context.Canceled):
		code = "cancelled"
	}
	return product.Warning{
		Scope:   stage,
		ItemRef: ref,
		Code:    code,
		Message: message,
	}
}
