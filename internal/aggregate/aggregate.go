package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/evidence"
	"github.com/brettericmartin/teed-sub011/internal/identify"
	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

const stage = "aggregate"

// Resolver identifies one evidence item.
type Resolver interface {
	Resolve(ctx context.Context, ev evidence.Evidence, objects []product.DetectedObject, params identify.Params) identify.Outcome
}

// Input is one piece of content with up to three evidence channels.
type Input struct {
	Title       string
	Description string
	Transcript  string
	// Frames are image or image_url evidence items, typically video stills.
	Frames []evidence.Item

	IncludeDescription bool
	IncludeTranscript  bool
	IncludeFrames      bool
	// MaxFrames overrides the configured frame cap when positive.
	MaxFrames int
}

// Aggregator runs channels through a Resolver and merges the results.
type Aggregator struct {
	resolver Resolver
	cfg      config.Aggregate
	limits   evidence.Limits
	logger   *slog.Logger
}

// New constructs an Aggregator.
func New(resolver Resolver, cfg config.Aggregate, limits evidence.Limits, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		resolver: resolver,
		cfg:      cfg,
		limits:   limits,
		logger:   logging.NewComponentLogger(logger, "aggregate"),
	}
}

type channelResult struct {
	source     product.SourceKind
	ran        bool
	candidates []product.Candidate
	warnings   []product.Warning
}

// Extract resolves every enabled channel and returns the merged result. It
// fails only when no enabled channel carries any content; channel failures
// become warnings.
func (a *Aggregator) Extract(ctx context.Context, in Input, params identify.Params) (product.ExtractionResult, error) {
	ctx = services.WithStage(ctx, stage)
	logger := logging.WithContext(ctx, a.logger)
	start := time.Now()

	description := strings.TrimSpace(in.Description)
	transcript := strings.TrimSpace(in.Transcript)
	frames := in.Frames
	maxFrames := in.MaxFrames
	if maxFrames <= 0 {
		maxFrames = a.cfg.MaxFrames
	}
	if maxFrames > 0 && len(frames) > maxFrames {
		frames = frames[:maxFrames]
	}

	runDescription := in.IncludeDescription && description != ""
	runTranscript := in.IncludeTranscript && transcript != ""
	runFrames := in.IncludeFrames && len(frames) > 0
	if !runDescription && !runTranscript && !runFrames {
		return product.ExtractionResult{}, services.Wrap(services.ErrInvalidEvidence, stage, "extract",
			"no enabled channel has content", nil)
	}

	results := [3]channelResult{
		{source: product.SourceDescription},
		{source: product.SourceTranscript},
		{source: product.SourceFrames},
	}
	var g errgroup.Group
	if runDescription {
		g.Go(func() error {
			results[0] = a.runText(ctx, product.SourceDescription, withTitle(in.Title, description), params)
			return nil
		})
	}
	if runTranscript {
		g.Go(func() error {
			results[1] = a.runText(ctx, product.SourceTranscript, transcript, params)
			return nil
		})
	}
	if runFrames {
		g.Go(func() error {
			results[2] = a.runFrames(ctx, frames, params)
			return nil
		})
	}
	_ = g.Wait()

	result := product.ExtractionResult{
		Sources: product.ExtractionSources{
			Description: runDescription,
			Transcript:  runTranscript,
			Frames:      runFrames,
		},
		RawData: make(map[product.SourceKind][]product.Candidate),
	}
	for _, channel := range results {
		if !channel.ran {
			continue
		}
		result.RawData[channel.source] = channel.candidates
		result.Warnings = append(result.Warnings, channel.warnings...)
	}

	result.Products = Merge(a.cfg, results[0].candidates, results[1].candidates, results[2].candidates)
	contentType, signals := DetectContentType(in.Title, transcript, len(result.Products))
	result.ContentType = contentType
	result.ContentTypeSignals = signals

	logger.Info("extraction complete",
		logging.String("content_type", string(contentType)),
		logging.Int("products", len(result.Products)),
		logging.Int("description_candidates", len(results[0].candidates)),
		logging.Int("transcript_candidates", len(results[1].candidates)),
		logging.Int("frame_candidates", len(results[2].candidates)),
		logging.Int("warnings", len(result.Warnings)),
		logging.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func withTitle(title, description string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return description
	}
	return "Title: " + title + "\n\n" + description
}

func (a *Aggregator) runText(ctx context.Context, source product.SourceKind, text string, params identify.Params) channelResult {
	result := channelResult{source: source, ran: true}
	ev, err := evidence.Normalize(evidence.Item{Kind: evidence.KindText, Ref: string(source), Text: clip(text, a.limits.MaxTextChars)}, a.limits)
	if err != nil {
		result.warnings = append(result.warnings, channelWarning(source, string(source), err))
		return result
	}
	outcome := a.resolver.Resolve(ctx, ev, nil, params)
	result.candidates, result.warnings = collect(source, outcome)
	return result
}

// clip bounds long descriptions and transcripts to the evidence text limit.
func clip(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 {
		return text
	}
	if runes := []rune(text); len(runes) > limit {
		return strings.TrimSpace(string(runes[:limit]))
	}
	return text
}

// runFrames resolves each frame concurrently. A frame that cannot be
// normalized or identified becomes a warning; the rest still count.
func (a *Aggregator) runFrames(ctx context.Context, frames []evidence.Item, params identify.Params) channelResult {
	result := channelResult{source: product.SourceFrames, ran: true}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	perFrame := make([][]product.Candidate, len(frames))
	for i, item := range frames {
		if item.Ref == "" {
			item.Ref = fmt.Sprintf("frame[%d]", i)
		}
		g.Go(func() error {
			ev, err := evidence.Normalize(item, a.limits)
			if err == nil && !ev.IsVisual() {
				err = services.Wrap(services.ErrInvalidEvidence, stage, item.Ref, "frames must be images", nil)
			}
			if err != nil {
				mu.Lock()
				result.warnings = append(result.warnings, channelWarning(product.SourceFrames, item.Ref, err))
				mu.Unlock()
				return nil
			}
			candidates, warnings := collect(product.SourceFrames, a.resolver.Resolve(ctx, ev, nil, params))
			perFrame[i] = candidates
			if len(warnings) > 0 {
				mu.Lock()
				result.warnings = append(result.warnings, warnings...)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	for _, candidates := range perFrame {
		result.candidates = append(result.candidates, candidates...)
	}
	return result
}

// collect handles every outcome kind and tags candidates with the channel.
func collect(source product.SourceKind, outcome identify.Outcome) ([]product.Candidate, []product.Warning) {
	var warnings []product.Warning
	for _, w := range outcome.Warnings {
		w.Scope = string(source)
		warnings = append(warnings, w)
	}
	switch outcome.Kind() {
	case identify.OutcomeFailed:
		return nil, warnings
	case identify.OutcomeHit, identify.OutcomeResolved:
		candidates := make([]product.Candidate, 0, len(outcome.Candidates))
		for _, c := range outcome.Candidates {
			c.Source = source
			candidates = append(candidates, c)
		}
		return candidates, warnings
	default:
		return nil, warnings
	}
}

func channelWarning(source product.SourceKind, ref string, err error) product.Warning {
	return product.Warning{
		Scope:   string(source),
		ItemRef: ref,
		Code:    services.Code(err),
		Message: err.Error(),
	}
}
