/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/acronis/go-botkit/internal/lrumap"
	"github.com/acronis/go-botkit/log"
)

// ErrUnknownClass is returned by Gate.Check for a class that is not configured.
// It signals a programming or configuration mistake, not a rejection.
var ErrUnknownClass = errors.New("unknown check class")

// RejectReason explains why a check was rejected.
type RejectReason string

// Reject reasons.
const (
	// ReasonRateExceeded means this check would exceed the class rate.
	ReasonRateExceeded RejectReason = "rate_exceeded"

	// ReasonCoolingDown means the actor exceeded the rate earlier and its cooldown has not passed yet.
	ReasonCoolingDown RejectReason = "cooling_down"
)

// Decision is the outcome of a single admission check.
type Decision struct {
	// Allowed reports whether the actor may proceed.
	Allowed bool

	// Reason explains the rejection. Empty when Allowed is true.
	Reason RejectReason

	// RetryAfter estimates how long the actor should wait before the next
	// attempt has a chance to be admitted. Never negative, zero when Allowed.
	RetryAfter time.Duration
}

// GateOpts represents options for creating a Gate.
type GateOpts struct {
	// Logger is used for logging exceeded limits. No logging by default.
	Logger log.FieldLogger

	// MetricsCollector collects admission metrics. Metrics are disabled by default.
	MetricsCollector MetricsCollector

	// TimeNowProvider allows overriding the gate clock. Mostly for testing.
	TimeNowProvider func() time.Time
}

// Gate admits or rejects actions of identified actors.
//
// Every check names an actor (user ID, chat ID, API client) and a class
// (kind of action). The gate keeps a sliding window of admissions per
// (actor, class) and rejects a check that would exceed the class rate.
// Crossing the limit starts a cooldown: until it passes, every check of that
// pair is rejected with ReasonCoolingDown. Rejected checks are never
// recorded, so a rejected actor cannot extend its own window or cooldown
// by retrying.
type Gate struct {
	classes  map[string]*gateClass
	blockFor time.Duration
	seen     *lrumap.Map[string, time.Time]
	timeNow  func() time.Time
	logger   log.FieldLogger
	metrics  MetricsCollector
}

// gateClass serializes the limiter check and the cooldown bookkeeping,
// so that a decision for one class is atomic.
type gateClass struct {
	mu       sync.Mutex
	limiter  Limiter
	cooldown *lrumap.Map[string, time.Time]
}

// NewGate creates a new admission gate for the provided configuration.
func NewGate(cfg *Config) (*Gate, error) {
	return NewGateWithOpts(cfg, GateOpts{})
}

// NewGateWithOpts creates a new admission gate with the provided options.
// Zero configuration fields fall back to defaults, except BlockFor, whose
// zero value disables the cooldown.
func NewGateWithOpts(cfg *Config, opts GateOpts) (*Gate, error) {
	cc := *cfg
	if cc.Alg == "" {
		cc.Alg = DefaultAlg
	}
	if cc.MaxActors == 0 {
		cc.MaxActors = DefaultMaxActors
	}
	if len(cc.Classes) == 0 {
		cc.Classes = DefaultClasses()
	}
	if err := cc.validate(); err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetricsCollector
	}
	if opts.TimeNowProvider == nil {
		opts.TimeNowProvider = time.Now
	}

	seen, err := lrumap.New[string, time.Time](cc.MaxActors)
	if err != nil {
		return nil, err
	}

	classes := make(map[string]*gateClass, len(cc.Classes))
	for name, limit := range cc.Classes {
		limiter, limErr := newLimiterForClass(cc.Alg, limit, cc.MaxActors, opts.TimeNowProvider)
		if limErr != nil {
			return nil, fmt.Errorf("class %q: %w", name, limErr)
		}
		cooldown, cdErr := lrumap.New[string, time.Time](cc.MaxActors)
		if cdErr != nil {
			return nil, cdErr
		}
		classes[name] = &gateClass{limiter: limiter, cooldown: cooldown}
	}

	return &Gate{
		classes:  classes,
		blockFor: time.Duration(cc.BlockFor),
		seen:     seen,
		timeNow:  opts.TimeNowProvider,
		logger:   opts.Logger,
		metrics:  opts.MetricsCollector,
	}, nil
}

func newLimiterForClass(alg string, limit ClassLimit, maxKeys int, timeNow func() time.Time) (Limiter, error) {
	switch alg {
	case AlgSlidingLog:
		l, err := NewSlidingLogLimiter(limit.Rate, maxKeys)
		if err != nil {
			return nil, err
		}
		l.timeNow = timeNow
		return l, nil
	case AlgSlidingWindow:
		return NewSlidingWindowLimiter(limit.Rate, maxKeys)
	case AlgLeakyBucket:
		return NewLeakyBucketLimiter(limit.Rate, limit.Burst, maxKeys)
	}
	return nil, fmt.Errorf("unknown rate limiting alg %q", alg)
}

// Check decides whether the actor may perform one more action of the given class.
// A rejection is not an error: errors are returned only for unknown classes
// and internal limiter failures.
func (g *Gate) Check(ctx context.Context, actorID, class string) (Decision, error) {
	gc, ok := g.classes[class]
	if !ok {
		return Decision{}, fmt.Errorf("%w %q", ErrUnknownClass, class)
	}

	now := g.timeNow()
	g.seen.Add(actorID, now)
	g.metrics.SetTrackedActors(g.seen.Len())

	gc.mu.Lock()
	defer gc.mu.Unlock()

	if until, onCooldown := gc.cooldown.Get(actorID); onCooldown {
		if now.Before(until) {
			g.metrics.IncRejected(class, ReasonCoolingDown)
			return Decision{Reason: ReasonCoolingDown, RetryAfter: until.Sub(now)}, nil
		}
		gc.cooldown.Remove(actorID)
	}

	allow, retryAfter, err := gc.limiter.Allow(ctx, actorID)
	if err != nil {
		return Decision{}, fmt.Errorf("check %q limit for actor %q: %w", class, actorID, err)
	}
	if allow {
		g.metrics.IncAdmitted(class)
		return Decision{Allowed: true}, nil
	}

	if g.blockFor > 0 {
		gc.cooldown.Add(actorID, now.Add(g.blockFor))
		retryAfter = g.blockFor
	}
	if retryAfter < 0 {
		retryAfter = 0
	}
	g.metrics.IncRejected(class, ReasonRateExceeded)
	g.logger.Info("actor rate limit exceeded",
		log.String("actor_id", actorID),
		log.String("class", class),
		log.Duration("retry_after", retryAfter),
	)
	return Decision{Reason: ReasonRateExceeded, RetryAfter: retryAfter}, nil
}

// PurgeIdle removes the state of actors that have not been checked for
// maxIdle and drops expired cooldowns. It returns the number of actors
// removed and is intended to be run periodically, e.g. by service.PeriodicWorker.
func (g *Gate) PurgeIdle(maxIdle time.Duration) int {
	now := g.timeNow()
	olderThan := now.Add(-maxIdle)

	removed := g.seen.RemoveIf(func(_ string, lastSeen time.Time) bool {
		return !lastSeen.After(olderThan)
	})
	for _, gc := range g.classes {
		gc.mu.Lock()
		gc.cooldown.RemoveIf(func(_ string, until time.Time) bool {
			return !until.After(now)
		})
		if purger, ok := gc.limiter.(idlePurger); ok {
			purger.PurgeIdle(olderThan)
		}
		gc.mu.Unlock()
	}

	g.metrics.SetTrackedActors(g.seen.Len())
	if removed > 0 {
		g.logger.Debug("purged idle actors", log.Int("removed", removed))
	}
	return removed
}

// GateStats contains statistics of the admission gate.
type GateStats struct {
	// Actors is the number of actors that were checked recently.
	// Bounded by MaxActors.
	Actors int
}

// Stats returns statistics for the status surface.
func (g *Gate) Stats() GateStats {
	return GateStats{Actors: g.seen.Len()}
}
