/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
)

// SlidingLogLimiterTestSuite contains tests for SlidingLogLimiter
type SlidingLogLimiterTestSuite struct {
	suite.Suite
}

func TestSlidingLogLimiter(t *testing.T) {
	suite.Run(t, new(SlidingLogLimiterTestSuite))
}

// newTestSlidingLogLimiter creates a limiter with a manually advanced clock.
func newTestSlidingLogLimiter(
	ts *SlidingLogLimiterTestSuite, maxRate Rate, maxKeys int,
) (*SlidingLogLimiter, *time.Time) {
	limiter, err := NewSlidingLogLimiter(maxRate, maxKeys)
	ts.Require().NoError(err)
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	limiter.timeNow = func() time.Time { return now }
	return limiter, &now
}

func (ts *SlidingLogLimiterTestSuite) TestValidation() {
	for _, rate := range []Rate{
		{},
		{Count: 0, Duration: time.Second},
		{Count: -1, Duration: time.Second},
		{Count: 5, Duration: 0},
	} {
		_, err := NewSlidingLogLimiter(rate, 100)
		ts.Error(err)
	}

	_, err := NewSlidingLogLimiter(Rate{Count: 5, Duration: time.Second}, -1)
	ts.Error(err)
}

func (ts *SlidingLogLimiterTestSuite) TestAllowSequential() {
	limiter, _ := newTestSlidingLogLimiter(ts, Rate{Count: 2, Duration: 10 * time.Second}, 100)

	ctx := context.Background()
	key := "test-key"

	// First request should be allowed
	allow, retryAfter, err := limiter.Allow(ctx, key)
	ts.NoError(err)
	ts.True(allow)
	ts.Equal(time.Duration(0), retryAfter)

	// Second request should be allowed
	allow, retryAfter, err = limiter.Allow(ctx, key)
	ts.NoError(err)
	ts.True(allow)
	ts.Equal(time.Duration(0), retryAfter)

	// Third request should be rate limited until the oldest admission expires
	allow, retryAfter, err = limiter.Allow(ctx, key)
	ts.NoError(err)
	ts.False(allow)
	ts.Equal(10*time.Second, retryAfter)
}

func (ts *SlidingLogLimiterTestSuite) TestWindowSlides() {
	limiter, now := newTestSlidingLogLimiter(ts, Rate{Count: 2, Duration: 10 * time.Second}, 100)

	ctx := context.Background()
	key := "test-key"

	allow, _, err := limiter.Allow(ctx, key)
	ts.NoError(err)
	ts.True(allow)

	*now = now.Add(4 * time.Second)
	allow, _, err = limiter.Allow(ctx, key)
	ts.NoError(err)
	ts.True(allow)

	// 9s after the first admission both are still inside the window.
	*now = now.Add(5 * time.Second)
	allow, retryAfter, err := limiter.Allow(ctx, key)
	ts.NoError(err)
	ts.False(allow)
	ts.Equal(time.Second, retryAfter)

	// 10s after the first admission it leaves the window and a slot opens.
	*now = now.Add(time.Second)
	allow, _, err = limiter.Allow(ctx, key)
	ts.NoError(err)
	ts.True(allow)
}

func (ts *SlidingLogLimiterTestSuite) TestRejectionsNotRecorded() {
	limiter, now := newTestSlidingLogLimiter(ts, Rate{Count: 1, Duration: 10 * time.Second}, 100)

	ctx := context.Background()
	key := "test-key"

	allow, _, err := limiter.Allow(ctx, key)
	ts.NoError(err)
	ts.True(allow)

	// Hammering while limited must not extend the window.
	for i := 1; i <= 9; i++ {
		*now = now.Add(time.Second)
		allow, retryAfter, allowErr := limiter.Allow(ctx, key)
		ts.NoError(allowErr)
		ts.False(allow)
		ts.Equal(time.Duration(10-i)*time.Second, retryAfter)
	}

	*now = now.Add(time.Second)
	allow, _, err = limiter.Allow(ctx, key)
	ts.NoError(err)
	ts.True(allow)
}

func (ts *SlidingLogLimiterTestSuite) TestKeysAreIndependent() {
	limiter, _ := newTestSlidingLogLimiter(ts, Rate{Count: 1, Duration: 10 * time.Second}, 100)

	ctx := context.Background()

	allow, _, err := limiter.Allow(ctx, "actor-1")
	ts.NoError(err)
	ts.True(allow)

	allow, _, err = limiter.Allow(ctx, "actor-1")
	ts.NoError(err)
	ts.False(allow)

	allow, _, err = limiter.Allow(ctx, "actor-2")
	ts.NoError(err)
	ts.True(allow)
}

func (ts *SlidingLogLimiterTestSuite) TestSharedLog() {
	limiter, _ := newTestSlidingLogLimiter(ts, Rate{Count: 2, Duration: 10 * time.Second}, 0)

	ctx := context.Background()

	// With maxKeys == 0 all keys share the same window.
	allow, _, err := limiter.Allow(ctx, "actor-1")
	ts.NoError(err)
	ts.True(allow)

	allow, _, err = limiter.Allow(ctx, "actor-2")
	ts.NoError(err)
	ts.True(allow)

	allow, _, err = limiter.Allow(ctx, "actor-3")
	ts.NoError(err)
	ts.False(allow)
}

func (ts *SlidingLogLimiterTestSuite) TestPurgeIdle() {
	limiter, now := newTestSlidingLogLimiter(ts, Rate{Count: 5, Duration: 10 * time.Second}, 100)

	ctx := context.Background()

	_, _, err := limiter.Allow(ctx, "actor-1")
	ts.NoError(err)

	*now = now.Add(5 * time.Second)
	_, _, err = limiter.Allow(ctx, "actor-2")
	ts.NoError(err)

	removed := limiter.PurgeIdle(now.Add(-2 * time.Second))
	ts.Equal(1, removed)
	ts.Equal(1, limiter.logs.Len())

	removed = limiter.PurgeIdle(*now)
	ts.Equal(1, removed)
	ts.Equal(0, limiter.logs.Len())
}

func (ts *SlidingLogLimiterTestSuite) TestAllowConcurrentExactness() {
	limiter, err := NewSlidingLogLimiter(Rate{Count: 50, Duration: time.Minute}, 100)
	ts.Require().NoError(err)

	ctx := context.Background()
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allow, _, allowErr := limiter.Allow(ctx, "test-key")
			ts.NoError(allowErr)
			if allow {
				admitted.Inc()
			}
		}()
	}
	wg.Wait()

	// The sliding log is exact: precisely Count admissions fit into the window.
	ts.Equal(int32(50), admitted.Load())
}
