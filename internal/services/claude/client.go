package claude

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/brettericmartin/teed-sub011/internal/inference"
	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

const (
	defaultMaxTokens  = 4096
	defaultTimeout    = 90 * time.Second
	defaultMaxRetries = 2
)

// Config captures the runtime settings required to talk to the Messages API.
type Config struct {
	APIKey         string
	Model          string
	MaxTokens      int
	TimeoutSeconds int
	MaxRetries     int
	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL string
}

// Client implements inference.Client on top of the Anthropic Messages API.
type Client struct {
	api       anthropic.Client
	model     string
	maxTokens int64
	hasKey    bool
	logger    *slog.Logger
}

// NewClient constructs a Messages client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	retries := defaultMaxRetries
	if cfg.MaxRetries > 0 {
		retries = cfg.MaxRetries
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(retries),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{
		api:       anthropic.NewClient(opts...),
		model:     strings.TrimSpace(cfg.Model),
		maxTokens: maxTokens,
		hasKey:    strings.TrimSpace(cfg.APIKey) != "",
		logger:    logging.NewComponentLogger(logger, "claude"),
	}
}

// CompleteJSON sends the request as a single user turn and returns the first
// text block of the reply.
func (c *Client) CompleteJSON(ctx context.Context, req inference.Request) (string, error) {
	if !c.hasKey {
		return "", services.Wrap(services.ErrConfiguration, "claude", req.Operation, "api key required", nil)
	}
	system := strings.TrimSpace(req.System)
	if system == "" {
		return "", services.Wrap(services.ErrConfiguration, "claude", req.Operation, "system prompt required", nil)
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.Images)+1)
	for _, img := range req.Images {
		blocks = append(blocks, imageBlock(img))
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = "Respond with JSON only."
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	started := time.Now()
	message, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system + "\nRespond with a single JSON object and nothing else.", CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return "", classify(req.Operation, err)
	}

	c.logger.Debug("claude response",
		logging.String("operation", req.Operation),
		logging.Int64("tokens_in", message.Usage.InputTokens),
		logging.Int64("tokens_out", message.Usage.OutputTokens),
		logging.Duration("elapsed", time.Since(started)),
	)

	for _, block := range message.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", services.Wrap(services.ErrMalformedResponse, "claude", req.Operation, "no text content in response", nil)
}

func imageBlock(img inference.Image) anthropic.ContentBlockParamUnion {
	if len(img.Data) > 0 {
		mediaType := strings.TrimSpace(img.MediaType)
		if mediaType == "" {
			mediaType = "image/jpeg"
		}
		return anthropic.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(img.Data))
	}
	return anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: img.URL})
}

func classify(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		detail := fmt.Sprintf("http %d", apiErr.StatusCode)
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return services.Wrap(services.ErrRateLimited, "claude", operation, detail, err)
		case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "claude", operation, detail, err)
		}
	}
	return services.Wrap(services.ErrInferenceUnavailable, "claude", operation, "messages request", err)
}
