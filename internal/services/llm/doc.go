// Package llm provides an OpenAI-compatible chat client (OpenRouter by
// default) implementing inference.Client for text and vision requests.
//
// # Requests
//
// Text requests send the system prompt plus a string user message to Model.
// Requests carrying images send multi-part user content (text plus image_url
// parts with a detail hint) to VisionModel, which falls back to Model.
// Every request asks for a JSON object response.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty content, and network
// timeouts with exponential backoff (base 1s, max 10s, 3 attempts by
// default), honouring Retry-After. Context cancellation aborts retries
// immediately.
//
// # Error Classification
//
// Exhausted 429s unwrap to services.ErrRateLimited, 401/403 to
// services.ErrConfiguration, and every other failure to
// services.ErrInferenceUnavailable.
package llm
