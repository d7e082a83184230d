/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"time"
)

// Limiter interface defines the rate limiting contract.
// Allow reports whether one more admission for the key fits into the limit
// right now. When it does not, retryAfter estimates how long the caller
// should wait before the next attempt has a chance to be admitted.
type Limiter interface {
	Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error)
}

// idlePurger is implemented by limiters that can drop per-key state
// that has not been touched since the given moment.
type idlePurger interface {
	PurgeIdle(olderThan time.Time) int
}
