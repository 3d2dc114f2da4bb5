package inference

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/brettericmartin/teed-sub011/internal/services"
)

// RateLimited paces calls to an upstream client so bursts from fan-outs do not
// trip provider quotas.
type RateLimited struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a limiter allowing perMinute calls. A
// non-positive perMinute returns next unchanged.
func NewRateLimited(next Client, perMinute int) Client {
	if perMinute <= 0 || next == nil {
		return next
	}
	burst := perMinute / 6
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
	}
}

// CompleteJSON waits for a token, then delegates.
func (r *RateLimited) CompleteJSON(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrRateLimited, "inference", req.Operation, "local rate limit", err)
	}
	return r.next.CompleteJSON(ctx, req)
}
