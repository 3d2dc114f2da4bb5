// Package claude implements inference.Client with the Anthropic Messages API
// (anthropic-sdk-go). Images are sent as base64 or URL image blocks ahead of
// the prompt text; 429s map to services.ErrRateLimited, 401/403 to
// services.ErrConfiguration, and everything else to
// services.ErrInferenceUnavailable. The SDK handles transport retries.
package claude
