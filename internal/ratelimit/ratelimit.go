// Package ratelimit implements fixed-window request limiting keyed by client.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether another request for key fits in the current window.
// When it does not, retryAfter is the time left until the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}
