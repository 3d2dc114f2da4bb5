package census

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brettericmartin/teed-sub011/internal/inference"
	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

const (
	stage = "census"
	// Operation is the inference operation name used for census calls.
	Operation = "census.scan"

	maxTokens = 2048
)

// Result is the outcome of one census. Known is false when the scan failed.
type Result struct {
	Objects  []product.DetectedObject `json:"objects"`
	Analysis product.ImageAnalysis    `json:"imageAnalysis"`
	Known    bool                     `json:"known"`
	// Dropped counts returned objects rejected by validation.
	Dropped int `json:"dropped,omitempty"`
}

// Count returns the object count, or -1 when the census is unknown.
func (r Result) Count() int {
	if !r.Known {
		return -1
	}
	return len(r.Objects)
}

// Scanner runs census calls against a vision-capable client.
type Scanner struct {
	client inference.Client
	logger *slog.Logger
}

// NewScanner constructs a Scanner.
func NewScanner(client inference.Client, logger *slog.Logger) *Scanner {
	return &Scanner{
		client: client,
		logger: logging.NewComponentLogger(logger, "census"),
	}
}

type rawObject struct {
	ID                  string   `json:"id"`
	ObjectType          string   `json:"objectType"`
	ProductCategory     string   `json:"productCategory"`
	BoundingDescription string   `json:"boundingDescription"`
	VisualCues          []string `json:"visualCues"`
	Color               string   `json:"color"`
	Material            string   `json:"material"`
	Certainty           string   `json:"certainty"`
}

type rawAnalysis struct {
	Quality     string   `json:"quality"`
	Lighting    string   `json:"lighting"`
	Suggestions []string `json:"suggestions"`
}

type rawResponse struct {
	Objects       *[]rawObject `json:"objects"`
	ImageAnalysis rawAnalysis  `json:"imageAnalysis"`
}

// Scan enumerates the objects in image. On failure the returned Result has
// Known=false and the error carries a taxonomy marker.
func (s *Scanner) Scan(ctx context.Context, image inference.Image, hint string) (Result, error) {
	logger := logging.WithContext(ctx, s.logger)
	start := time.Now()

	image.Detail = inference.DetailLow
	var raw rawResponse
	err := inference.Call(ctx, s.client, stage, inference.Request{
		Operation: Operation,
		System:    systemPrompt,
		Prompt:    buildPrompt(hint),
		Images:    []inference.Image{image},
		MaxTokens: maxTokens,
	}, &raw)
	if err != nil {
		logging.WarnWithContext(logger, "census scan failed", "census_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "object count will be reported as unknown"),
			logging.String(logging.FieldImpact, "completeness cannot be checked for this image"),
		)
		return Result{Known: false}, err
	}
	if raw.Objects == nil {
		err := services.Wrap(services.ErrMalformedResponse, stage, Operation, "response has no objects array", nil)
		logging.WarnWithContext(logger, "census response missing objects", "census_malformed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "completeness cannot be checked for this image"),
		)
		return Result{Known: false}, err
	}

	result := validate(*raw.Objects, raw.ImageAnalysis)
	logger.Info("census complete",
		logging.Int("objects", len(result.Objects)),
		logging.Int("dropped", result.Dropped),
		logging.String("quality", result.Analysis.Quality),
		logging.String("lighting", result.Analysis.Lighting),
		logging.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func validate(objects []rawObject, analysis rawAnalysis) Result {
	result := Result{
		Objects:  make([]product.DetectedObject, 0, len(objects)),
		Analysis: normalizeAnalysis(analysis),
		Known:    true,
	}
	seen := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		objectType := strings.ToLower(strings.Join(strings.Fields(obj.ObjectType), " "))
		if objectType == "" {
			result.Dropped++
			continue
		}
		id := strings.TrimSpace(obj.ID)
		if _, dup := seen[id]; id == "" || dup {
			id = nextID(seen, len(result.Objects)+1)
		}
		seen[id] = struct{}{}
		result.Objects = append(result.Objects, product.DetectedObject{
			ID:                  id,
			ObjectType:          objectType,
			ProductCategory:     strings.ToLower(strings.TrimSpace(obj.ProductCategory)),
			BoundingDescription: strings.TrimSpace(obj.BoundingDescription),
			VisualCues:          cleanList(obj.VisualCues),
			Color:               strings.TrimSpace(obj.Color),
			Material:            strings.TrimSpace(obj.Material),
			Certainty:           product.ParseCertainty(obj.Certainty),
		})
	}
	return result
}

func nextID(seen map[string]struct{}, n int) string {
	for {
		id := fmt.Sprintf("obj_%d", n)
		if _, taken := seen[id]; !taken {
			return id
		}
		n++
	}
}

func normalizeAnalysis(raw rawAnalysis) product.ImageAnalysis {
	return product.ImageAnalysis{
		Quality:     coerce(raw.Quality, "fair", "good", "fair", "poor"),
		Lighting:    coerce(raw.Lighting, "good", "good", "dim", "bright"),
		Suggestions: cleanList(raw.Suggestions),
	}
}

func coerce(value, fallback string, allowed ...string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range allowed {
		if value == candidate {
			return value
		}
	}
	return fallback
}

func cleanList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
