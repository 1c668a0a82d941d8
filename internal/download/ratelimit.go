package download

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter gates the start of every transfer attempt so the aggregate request
// rate against the remote archive stays below a configured ceiling.
type Limiter interface {
	// Acquire blocks the calling worker until a token is available or the
	// context is cancelled. Waiters are served in FIFO order.
	Acquire(ctx context.Context) error
}

type tokenBucket struct {
	limiter *rate.Limiter
}

// NewLimiter returns a token-bucket limiter refilling at perSecond with the
// given burst. A non-positive perSecond disables limiting.
func NewLimiter(perSecond float64, burst int) Limiter {
	if perSecond <= 0 {
		return &tokenBucket{limiter: rate.NewLimiter(rate.Inf, 0)}
	}

	if burst < 1 {
		burst = 1
	}

	return &tokenBucket{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t *tokenBucket) Acquire(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
