package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/brettericmartin/teed-sub011/internal/aggregate"
	"github.com/brettericmartin/teed-sub011/internal/background"
	"github.com/brettericmartin/teed-sub011/internal/census"
	"github.com/brettericmartin/teed-sub011/internal/completeness"
	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/enrich"
	"github.com/brettericmartin/teed-sub011/internal/evidence"
	"github.com/brettericmartin/teed-sub011/internal/identify"
	"github.com/brettericmartin/teed-sub011/internal/inference"
	"github.com/brettericmartin/teed-sub011/internal/learning"
	"github.com/brettericmartin/teed-sub011/internal/library"
	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

const maxFetchTimeout = 60 * time.Second

// Deps are the collaborators a Pipeline is built from. Text and Vision may be
// the same client. Library, Fetcher, Corrections, and Tasks are optional.
type Deps struct {
	Config      *config.Config
	Text        inference.Client
	Vision      inference.Client
	Library     library.Store
	Fetcher     identify.Fetcher
	Catalog     *identify.Catalog
	Corrections *learning.Store
	Tasks       *background.Runner
	Logger      *slog.Logger
	Now         func() time.Time
}

// Pipeline runs identification, extraction, and correction requests.
type Pipeline struct {
	cfg    *config.Config
	limits evidence.Limits
	params identify.Params
	gate   *identify.Gate

	scanner    *census.Scanner
	identifier *identify.Identifier
	aggregator *aggregate.Aggregator
	enricher   *enrich.Engine
	validator  *completeness.Validator
	learner    *learning.Learner

	library     library.Store
	corrections *learning.Store
	tasks       *background.Runner
	ownsTasks   bool
	closers     []io.Closer
	logger      *slog.Logger
}

// New constructs a Pipeline from deps.
func New(deps Deps) (*Pipeline, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "config is required", nil)
	}
	catalog := deps.Catalog
	if catalog == nil {
		var err error
		catalog, err = identify.LoadCatalog(cfg.Identify.BrandCatalogPath)
		if err != nil {
			return nil, err
		}
	}
	tasks := deps.Tasks
	ownsTasks := false
	if tasks == nil {
		tasks = background.New(deps.Logger, background.Options{})
		ownsTasks = true
	}
	vision := deps.Vision
	if vision == nil {
		vision = deps.Text
	}

	var (
		biaser   identify.Biaser
		recorder learning.Recorder
	)
	if deps.Corrections != nil {
		biaser = learning.NewBiaser(deps.Corrections, cfg.Learning.BiasMinOccurrences, deps.Logger)
		recorder = deps.Corrections
	}

	identifier := identify.New(identify.Deps{
		Text:    deps.Text,
		Vision:  vision,
		Library: deps.Library,
		Fetcher: deps.Fetcher,
		Catalog: catalog,
		Biaser:  biaser,
		Tasks:   tasks,
		Logger:  deps.Logger,
		Now:     deps.Now,
	}, identify.Options{
		MaxRefinements:    cfg.Identify.MaxRefinements,
		MinSaveConfidence: cfg.Library.MinSaveConfidence,
	})
	limits := evidence.Limits{
		MaxItems:        cfg.Evidence.MaxItems,
		MaxPayloadBytes: cfg.Evidence.MaxPayloadBytes,
		MaxTextChars:    cfg.Evidence.MaxTextChars,
	}
	var enrichOpts []enrich.Option
	if deps.Now != nil {
		enrichOpts = append(enrichOpts, enrich.WithClock(deps.Now))
	}

	return &Pipeline{
		cfg:         cfg,
		limits:      limits,
		params:      identify.ParamsFromConfig(cfg.Identify),
		gate:        identify.NewGate(),
		scanner:     census.NewScanner(vision, deps.Logger),
		identifier:  identifier,
		aggregator:  aggregate.New(identifier, cfg.Aggregate, limits, deps.Logger),
		enricher:    enrich.New(deps.Text, cfg.Enrich, deps.Logger, enrichOpts...),
		validator:   completeness.New(cfg.Completeness, cfg.Validation, deps.Logger),
		learner:     learning.NewLearner(recorder, tasks, cfg.Learning, deps.Logger),
		library:     deps.Library,
		corrections: deps.Corrections,
		tasks:       tasks,
		ownsTasks:   ownsTasks,
		logger:      logging.NewComponentLogger(deps.Logger, "pipeline"),
	}, nil
}

// Open builds a Pipeline and every resource it needs from cfg. Close releases
// the stores it opened.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "open", "config is required", nil)
	}
	store, err := library.Open(ctx, cfg.Library, logger)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	closers := []io.Closer{store}

	var corrections *learning.Store
	if cfg.Learning.Enabled {
		corrections, err = learning.OpenStore(ctx, cfg.Learning.Path, logger)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("open corrections: %w", err)
		}
		closers = append(closers, corrections)
	}

	client := NewInferenceClient(cfg, logger)
	if client == nil {
		logging.WarnWithContext(logger, "inference provider not configured", "inference_unconfigured",
			logging.String("provider", cfg.LLM.Provider),
			logging.String(logging.FieldErrorHint, "set an API key for the selected provider"),
			logging.String(logging.FieldImpact, "only library hits and URL intelligence can resolve products"),
		)
	}
	p, err := New(Deps{
		Config:  cfg,
		Text:    client,
		Library: store,
		Fetcher: identify.NewHTTPFetcher(identify.FetchOptions{
			UserAgent:    cfg.Identify.UserAgent,
			Retries:      cfg.Identify.FetchRetries,
			MaxTextBytes: cfg.Identify.MaxPageBytes,
		}, logger),
		Corrections: corrections,
		Logger:      logger,
	})
	if err != nil {
		for _, c := range closers {
			_ = c.Close()
		}
		return nil, err
	}
	p.closers = closers
	return p, nil
}

// Close drains background writes and closes stores opened by Open.
func (p *Pipeline) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.ownsTasks {
		errs = append(errs, p.tasks.Close())
	} else {
		p.tasks.Wait()
	}
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Library returns the library store, or nil when none is configured.
func (p *Pipeline) Library() library.Store {
	return p.library
}

// Corrections returns the correction store, or nil when learning is disabled.
func (p *Pipeline) Corrections() *learning.Store {
	return p.corrections
}

// LibraryStats summarizes the library.
func (p *Pipeline) LibraryStats(ctx context.Context) (library.Stats, error) {
	if p.library == nil {
		return library.Stats{}, services.Wrap(services.ErrConfiguration, "pipeline", "library stats", "library is not configured", nil)
	}
	return p.library.Stats(ctx, time.Now())
}

// Correct submits a user correction to the learner.
func (p *Pipeline) Correct(ctx context.Context, c product.Correction, related *product.ValidatedProduct) learning.Result {
	return p.learner.Submit(services.WithStage(ctx, "learning"), c, related)
}

// begin gates the request by its query context.
func (p *Pipeline) begin(ctx context.Context, queryContext string) (context.Context, func()) {
	if queryContext != "" {
		ctx = services.WithQueryContext(ctx, queryContext)
	}
	return p.gate.Begin(ctx, queryContext)
}

// paramsFor applies per-request overrides to the configured defaults.
func (p *Pipeline) paramsFor(tuning *Tuning, hint string) identify.Params {
	params := p.params
	params.Hint = hint
	if tuning == nil {
		return params
	}
	if tuning.FetchTimeout > 0 {
		params.FetchTimeout = min(tuning.FetchTimeout, maxFetchTimeout)
	}
	if tuning.EarlyExitConfidence > 0 && tuning.EarlyExitConfidence <= 1 {
		params.EarlyExitConfidence = tuning.EarlyExitConfidence
	}
	return params
}

// interrupted reports why ctx stopped, if it did.
func interrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	if identify.Superseded(ctx) {
		return identify.ErrSuperseded
	}
	return context.Cause(ctx)
}
