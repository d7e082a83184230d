/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acronis/go-botkit/internal/lrumap"
)

// SlidingLogLimiter implements the exact sliding window algorithm: it keeps
// the timestamps of recent admissions for every key and admits a request only
// when fewer than Rate.Count admissions happened in the trailing Rate.Duration.
//
// Unlike approximating algorithms it never over- or under-admits, which
// matters for small windows like "5/10s". Memory per key is bounded by
// Rate.Count timestamps, rejected requests are not recorded.
type SlidingLogLimiter struct {
	maxRate Rate
	getLog  func(key string) *admissionLog
	logs    *lrumap.Map[string, *admissionLog]
	timeNow func() time.Time
}

type admissionLog struct {
	mu    sync.Mutex
	times []time.Time // admissions within the window, oldest first
}

// NewSlidingLogLimiter creates a new sliding log rate limiter.
// If maxKeys is 0, all keys share a single log.
func NewSlidingLogLimiter(maxRate Rate, maxKeys int) (*SlidingLogLimiter, error) {
	if maxRate.Count <= 0 || maxRate.Duration <= 0 {
		return nil, fmt.Errorf("rate should define a positive count and duration, got %q", maxRate)
	}
	l := &SlidingLogLimiter{maxRate: maxRate, timeNow: time.Now}
	if maxKeys == 0 {
		shared := &admissionLog{}
		l.getLog = func(_ string) *admissionLog { return shared }
		return l, nil
	}
	logs, err := lrumap.New[string, *admissionLog](maxKeys)
	if err != nil {
		return nil, fmt.Errorf("new LRU in-memory store for keys: %w", err)
	}
	l.logs = logs
	l.getLog = func(key string) *admissionLog {
		lg, _ := logs.GetOrAdd(key, func() *admissionLog { return &admissionLog{} })
		return lg
	}
	return l, nil
}

// Allow checks if the request should be allowed based on the rate limit.
// The admission is recorded only when the request is allowed.
func (l *SlidingLogLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	lg := l.getLog(key)
	now := l.timeNow()

	lg.mu.Lock()
	defer lg.mu.Unlock()

	lg.prune(now.Add(-l.maxRate.Duration))
	if len(lg.times) < l.maxRate.Count {
		lg.times = append(lg.times, now)
		return true, 0, nil
	}
	// The next slot opens when the oldest admission leaves the window.
	return false, lg.times[0].Add(l.maxRate.Duration).Sub(now), nil
}

// PurgeIdle removes logs whose most recent admission is not after olderThan
// and returns the number of removed keys.
func (l *SlidingLogLimiter) PurgeIdle(olderThan time.Time) int {
	if l.logs == nil {
		return 0
	}
	return l.logs.RemoveIf(func(_ string, lg *admissionLog) bool {
		lg.mu.Lock()
		defer lg.mu.Unlock()
		return len(lg.times) == 0 || !lg.times[len(lg.times)-1].After(olderThan)
	})
}

// prune drops admissions that left the window. Callers must hold mu.
func (lg *admissionLog) prune(cutoff time.Time) {
	i := 0
	for i < len(lg.times) && !lg.times[i].After(cutoff) {
		i++
	}
	if i > 0 {
		lg.times = append(lg.times[:0], lg.times[i:]...)
	}
}
