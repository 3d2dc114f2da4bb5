// Package inference defines the provider-neutral contract between pipeline
// stages and the model providers that answer them.
//
// Stages build a Request (system prompt, user prompt, optional images) and
// call Call, which issues it through a Client and strictly decodes the JSON
// reply. Providers live under internal/services and classify their failures
// with the services error markers; Call adds ErrMalformedResponse for replies
// that cannot be decoded. NewRateLimited paces fan-outs with x/time/rate.
package inference
