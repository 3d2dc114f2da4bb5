package identify

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is the cancellation cause of a resolution replaced by a newer
// request for the same query context.
var ErrSuperseded = errors.New("superseded by a newer request")

// Gate allows one in-flight resolution per client query context. Starting a
// new one cancels the previous one.
type Gate struct {
	mu       sync.Mutex
	seq      uint64
	inflight map[string]gateSlot
}

type gateSlot struct {
	id     uint64
	cancel context.CancelCauseFunc
}

// NewGate returns an empty gate.
func NewGate() *Gate {
	return &Gate{inflight: make(map[string]gateSlot)}
}

// Begin registers a resolution for queryContext and returns its context and a
// release function. An empty queryContext is not gated.
func (g *Gate) Begin(ctx context.Context, queryContext string) (context.Context, func()) {
	if queryContext == "" {
		return ctx, func() {}
	}
	child, cancel := context.WithCancelCause(ctx)

	g.mu.Lock()
	if previous, ok := g.inflight[queryContext]; ok {
		previous.cancel(ErrSuperseded)
	}
	g.seq++
	id := g.seq
	g.inflight[queryContext] = gateSlot{id: id, cancel: cancel}
	g.mu.Unlock()

	return child, func() {
		g.mu.Lock()
		if current, ok := g.inflight[queryContext]; ok && current.id == id {
			delete(g.inflight, queryContext)
		}
		g.mu.Unlock()
		cancel(nil)
	}
}

// InFlight returns the number of gated resolutions currently running.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}

// Superseded reports whether ctx was cancelled by a newer request.
func Superseded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrSuperseded)
}
