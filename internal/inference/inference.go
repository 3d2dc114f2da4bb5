package inference

import (
	"context"
	"encoding/base64"
	"strings"
)

// Detail hints how much visual detail a provider should spend on an image.
type Detail string

const (
	DetailLow  Detail = "low"
	DetailHigh Detail = "high"
	DetailAuto Detail = "auto"
)

// Image is a single visual input attached to a request. Either Data (with
// MediaType) or URL is set.
type Image struct {
	Data      []byte
	MediaType string
	URL       string
	Detail    Detail
}

// DataURI renders inline image bytes as a data URI, or returns URL.
func (i Image) DataURI() string {
	if len(i.Data) == 0 {
		return i.URL
	}
	mediaType := strings.TrimSpace(i.MediaType)
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Request is a provider-neutral JSON completion request. Operation names the
// pipeline call site and is used for logging, pacing, and test scripting.
type Request struct {
	Operation string
	System    string
	Prompt    string
	Images    []Image
	MaxTokens int
}

// HasImages reports whether the request needs a vision-capable model.
func (r Request) HasImages() bool {
	return len(r.Images) > 0
}

// Client produces a JSON document for a request. Implementations classify
// failures with services.ErrRateLimited or services.ErrInferenceUnavailable.
type Client interface {
	CompleteJSON(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (string, error)

// CompleteJSON calls f.
func (f ClientFunc) CompleteJSON(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
