package testsupport

import (
	"context"
	"fmt"
	"sync"

	"github.com/brettericmartin/teed-sub011/internal/inference"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

// Handler produces a scripted response for one inference request.
type Handler func(req inference.Request) (string, error)

// ScriptedClient is an inference.Client that answers by operation name and
// records every request.
type ScriptedClient struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string]int
	requests []inference.Request
}

// NewScriptedClient returns an empty script. Unscripted operations fail with
// ErrInferenceUnavailable.
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{
		handlers: make(map[string]Handler),
		calls:    make(map[string]int),
	}
}

// On registers handler for operation.
func (c *ScriptedClient) On(operation string, handler Handler) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[operation] = handler
	return c
}

// Respond registers a fixed JSON body for operation.
func (c *ScriptedClient) Respond(operation, body string) *ScriptedClient {
	return c.On(operation, func(inference.Request) (string, error) { return body, nil })
}

// Fail registers a fixed error for operation.
func (c *ScriptedClient) Fail(operation string, err error) *ScriptedClient {
	return c.On(operation, func(inference.Request) (string, error) { return "", err })
}

// CompleteJSON implements inference.Client.
func (c *ScriptedClient) CompleteJSON(ctx context.Context, req inference.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.calls[req.Operation]++
	c.requests = append(c.requests, req)
	handler, ok := c.handlers[req.Operation]
	c.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: unscripted operation %q", services.ErrInferenceUnavailable, req.Operation)
	}
	return handler(req)
}

// Calls returns how many requests were made for operation.
func (c *ScriptedClient) Calls(operation string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[operation]
}

// Total returns the number of requests across all operations.
func (c *ScriptedClient) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Requests returns a copy of recorded requests.
func (c *ScriptedClient) Requests() []inference.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]inference.Request, len(c.requests))
	copy(out, c.requests)
	return out
}

var _ inference.Client = (*ScriptedClient)(nil)
