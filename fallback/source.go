/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vasayxtx/go-glob"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/acronis/go-botkit/log"
	"github.com/acronis/go-botkit/retry"
	"github.com/acronis/go-botkit/snapshot"
)

// Default values for Opts.
const (
	DefaultFreshFor      = 2 * time.Hour
	DefaultLoaderTimeout = 30 * time.Second
)

// Opts represents options for creating a Source.
type Opts struct {
	// FreshFor is the preferred-freshness window: a cached value younger than
	// FreshFor is served without touching the remote. 0 means always attempt
	// the remote. New uses DefaultFreshFor.
	FreshFor time.Duration

	// LoaderTimeout bounds one loader flight including retries.
	// Defaults to DefaultLoaderTimeout.
	LoaderTimeout time.Duration

	// RetryPolicy drives loader retries within a flight.
	// By default the loader runs a single attempt.
	RetryPolicy retry.Policy

	// IsRetriable classifies loader errors as transient.
	// Defaults to DefaultIsRetriable.
	IsRetriable func(error) bool

	// Quota paces remote calls across all keys. nil means unpaced.
	Quota *rate.Limiter

	// Logger is used for logging. No logging by default.
	Logger log.FieldLogger

	// MetricsCollector is a collector of metrics. Not collected by default.
	MetricsCollector MetricsCollector

	// TimeNowProvider allows overriding the time source in tests.
	TimeNowProvider func() time.Time
}

// Source is a read-through source for values of type V.
// V must be JSON-marshalable, snapshots store its JSON encoding.
//
// Source is safe for concurrent use. It never starts background goroutines on
// its own, remote activity happens only inside Fetch.
type Source[V any] struct {
	store         snapshot.Store
	freshFor      time.Duration
	loaderTimeout time.Duration
	retryPolicy   retry.Policy
	isRetriable   func(error) bool
	quota         *rate.Limiter
	logger        log.FieldLogger
	metrics       MetricsCollector
	timeNow       func() time.Time

	group singleflight.Group

	mu     sync.RWMutex
	memory map[string]memoryEntry[V]
}

// memoryEntry is the in-memory record of the last good value for a key.
type memoryEntry[V any] struct {
	value     V
	fetchedAt time.Time
	bytes     int
}

// flightOutcome is what one loader flight produces for all its waiters.
type flightOutcome[V any] struct {
	value     V
	fetchedAt time.Time
}

// New creates a new Source with default options on top of the store.
// A nil store yields a memory-only source without restart durability.
func New[V any](store snapshot.Store) (*Source[V], error) {
	return NewWithOpts[V](store, Opts{FreshFor: DefaultFreshFor})
}

// NewWithOpts creates a new Source with the provided options on top of the store.
// A nil store yields a memory-only source without restart durability.
func NewWithOpts[V any](store snapshot.Store, opts Opts) (*Source[V], error) {
	if opts.FreshFor < 0 {
		return nil, fmt.Errorf("freshness window should not be negative")
	}
	if opts.LoaderTimeout < 0 {
		return nil, fmt.Errorf("loader timeout should not be negative")
	}
	if opts.LoaderTimeout == 0 {
		opts.LoaderTimeout = DefaultLoaderTimeout
	}
	if opts.RetryPolicy == nil {
		opts.RetryPolicy = singleAttemptPolicy()
	}
	if opts.IsRetriable == nil {
		opts.IsRetriable = DefaultIsRetriable
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
	return &Source[V]{
		store:         store,
		freshFor:      opts.FreshFor,
		loaderTimeout: opts.LoaderTimeout,
		retryPolicy:   opts.RetryPolicy,
		isRetriable:   opts.IsRetriable,
		quota:         opts.Quota,
		logger:        opts.Logger,
		metrics:       opts.MetricsCollector,
		timeNow:       opts.TimeNowProvider,
		memory:        make(map[string]memoryEntry[V]),
	}, nil
}

func singleAttemptPolicy() retry.Policy {
	return retry.PolicyFunc(func() backoff.BackOff {
		return &backoff.StopBackOff{}
	})
}

// Fetch returns the value for the key, going remote only when the cached value
// is older than the freshness window (or absent).
//
// At most one loader flight runs per key, concurrent fetchers share its
// result. The flight is bounded by LoaderTimeout and detached from any single
// caller: when ctx expires mid-flight, Fetch falls back to the cached value
// (or ErrNoData) while the flight keeps running for the remaining waiters and
// repopulates the cache on completion. A cancelled ctx returns ctx.Err().
//
// Fetch never returns a loader error as-is: failures surface as a stale cached
// value or as ErrNoData wrapping a sanitized cause.
func (s *Source[V]) Fetch(ctx context.Context, key string, loader Loader[V]) (Result[V], error) {
	if err := ValidateKey(key); err != nil {
		return Result[V]{}, err
	}
	if loader == nil {
		return Result[V]{}, fmt.Errorf("loader is required")
	}

	if ent, ok := s.cachedEntry(key); ok && s.freshFor > 0 && s.timeNow().Sub(ent.fetchedAt) < s.freshFor {
		s.metrics.IncStaleHits(StaleOriginPreferredWindow)
		return Result[V]{Value: ent.value, FetchedAt: ent.fetchedAt, Stale: true}, nil
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.runFlight(key, loader)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return s.answerAfterFailure(key, res.Err)
		}
		outcome := res.Val.(flightOutcome[V])
		s.metrics.IncFreshHits()
		return Result[V]{Value: outcome.value, FetchedAt: outcome.fetchedAt, Stale: false}, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return Result[V]{}, ctx.Err()
		}
		// The caller's deadline expired while the flight is still running.
		// Answer from cache without waiting, the flight finishes on its own.
		return s.answerAfterFailure(key, ctx.Err())
	}
}

// runFlight performs one remote load on a context detached from the callers.
func (s *Source[V]) runFlight(key string, loader Loader[V]) (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.loaderTimeout)
	defer cancel()

	s.metrics.IncLoads()

	if s.quota != nil {
		if err := s.quota.Wait(ctx); err != nil {
			s.metrics.IncLoadErrors()
			s.logger.Warn("remote quota wait failed", log.String("key", key), log.Error(err))
			return nil, fmt.Errorf("wait for remote quota: %w", err)
		}
	}

	var value V
	err := retry.DoWithRetry(ctx, s.retryPolicy, retry.IsRetryable(s.isRetriable), nil,
		func(ctx context.Context) (loadErr error) {
			value, loadErr = loader.Load(ctx, key)
			return loadErr
		})
	if err != nil {
		s.metrics.IncLoadErrors()
		s.logger.Warn("remote load failed", log.String("key", key), log.Error(err))
		return nil, err
	}

	now := s.timeNow()
	data, marshalErr := json.Marshal(value)
	if marshalErr != nil {
		// The value is still served and kept in memory, only durability is lost.
		data = nil
		s.metrics.IncSnapshotWriteErrors()
		s.logger.Error("encode value for snapshot", log.String("key", key), log.Error(marshalErr))
	}
	s.remember(key, value, data, now)
	return flightOutcome[V]{value: value, fetchedAt: now}, nil
}

// remember stores the value in memory and mirrors it to the snapshot store.
func (s *Source[V]) remember(key string, value V, data []byte, fetchedAt time.Time) {
	s.mu.Lock()
	s.memory[key] = memoryEntry[V]{value: value, fetchedAt: fetchedAt, bytes: len(data)}
	entries := len(s.memory)
	s.mu.Unlock()
	s.metrics.SetEntries(entries)

	if s.store == nil || data == nil {
		return
	}
	if err := s.store.Save(key, data, fetchedAt); err != nil {
		s.metrics.IncSnapshotWriteErrors()
		s.logger.Error("save snapshot", log.String("key", key), log.Error(err))
	}
}

// answerAfterFailure serves the cached value for a failed or abandoned flight,
// or reports ErrNoData when nothing is cached.
func (s *Source[V]) answerAfterFailure(key string, cause error) (Result[V], error) {
	if ent, ok := s.cachedEntry(key); ok {
		s.metrics.IncStaleHits(StaleOriginAfterFailure)
		s.logger.Info("serving stale value after failed refresh",
			log.String("key", key), log.Duration("age", s.timeNow().Sub(ent.fetchedAt)))
		return Result[V]{Value: ent.value, FetchedAt: ent.fetchedAt, Stale: true}, nil
	}
	s.metrics.IncNoData()
	return Result[V]{}, fmt.Errorf("%w for key %q: %w", ErrNoData, key, sanitizeCause(cause))
}

// Peek returns the cached value for the key without any remote activity.
// It reports false when nothing is cached or the key is invalid.
func (s *Source[V]) Peek(key string) (Result[V], bool) {
	if ValidateKey(key) != nil {
		return Result[V]{}, false
	}
	ent, ok := s.cachedEntry(key)
	if !ok {
		return Result[V]{}, false
	}
	return Result[V]{Value: ent.value, FetchedAt: ent.fetchedAt, Stale: true}, true
}

// Invalidate removes the cached value and its snapshot, the next Fetch goes
// remote. Invalidating an absent key is a no-op. A flight already running for
// the key is unaffected and repopulates the cache on completion.
func (s *Source[V]) Invalidate(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return s.invalidateKey(key)
}

// InvalidateMatching removes all cached values whose keys match the glob
// pattern ("*" clears everything) and returns the number of removed entries.
// Snapshot-only keys not yet hydrated into memory are matched too.
func (s *Source[V]) InvalidateMatching(pattern string) (int, error) {
	match := glob.Compile(pattern)

	keySet := make(map[string]struct{})
	s.mu.RLock()
	for key := range s.memory {
		keySet[key] = struct{}{}
	}
	s.mu.RUnlock()
	if s.store != nil {
		storeKeys, err := s.store.Keys()
		if err != nil {
			return 0, fmt.Errorf("list snapshot keys: %w", err)
		}
		for _, key := range storeKeys {
			keySet[key] = struct{}{}
		}
	}

	removed := 0
	for key := range keySet {
		if !match(key) {
			continue
		}
		if err := s.invalidateKey(key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *Source[V]) invalidateKey(key string) error {
	s.mu.Lock()
	delete(s.memory, key)
	entries := len(s.memory)
	s.mu.Unlock()
	s.metrics.SetEntries(entries)

	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(key); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	// Buffered stores must not serve the deleted snapshot back on the next miss.
	if syncer, ok := s.store.(snapshot.Syncer); ok {
		if err := syncer.Sync(); err != nil {
			return fmt.Errorf("sync snapshot store: %w", err)
		}
	}
	return nil
}

// Entries returns the current in-memory entries sorted by key.
func (s *Source[V]) Entries() []EntryInfo {
	s.mu.RLock()
	infos := make([]EntryInfo, 0, len(s.memory))
	for key, ent := range s.memory {
		infos = append(infos, EntryInfo{Key: key, FetchedAt: ent.fetchedAt, Bytes: ent.bytes})
	}
	s.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}

// cachedEntry returns the in-memory entry for the key, hydrating it from the
// snapshot store on a miss. Memory stays authoritative: a concurrent load that
// lands during hydration wins.
func (s *Source[V]) cachedEntry(key string) (memoryEntry[V], bool) {
	s.mu.RLock()
	ent, ok := s.memory[key]
	s.mu.RUnlock()
	if ok {
		return ent, true
	}
	if s.store == nil {
		return memoryEntry[V]{}, false
	}

	data, fetchedAt, err := s.store.Load(key)
	if err != nil {
		if !errors.Is(err, snapshot.ErrNotFound) {
			s.logger.Warn("load snapshot", log.String("key", key), log.Error(err))
		}
		return memoryEntry[V]{}, false
	}
	var value V
	if err = json.Unmarshal(data, &value); err != nil {
		s.logger.Warn("decode snapshot", log.String("key", key), log.Error(err))
		return memoryEntry[V]{}, false
	}

	ent = memoryEntry[V]{value: value, fetchedAt: fetchedAt, bytes: len(data)}
	s.mu.Lock()
	if current, exists := s.memory[key]; exists {
		ent = current
	} else {
		s.memory[key] = ent
	}
	entries := len(s.memory)
	s.mu.Unlock()
	s.metrics.SetEntries(entries)
	return ent, true
}
