/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package fallback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Errors returned by Source operations. Fetch reports failures only through
// these, a loader's own error types never escape.
var (
	// ErrNoData means the remote load failed and no cached value exists for the key.
	ErrNoData = errors.New("no data available")

	// ErrRemoteUnavailable marks the remote as reachable but failing. Loaders
	// wrap their transient errors with it to make them retriable, and Fetch
	// preserves it in ErrNoData causes so callers can match it with errors.Is.
	ErrRemoteUnavailable = errors.New("remote source unavailable")

	// ErrInvalidKey is returned for keys that violate the key rules.
	ErrInvalidKey = errors.New("invalid key")
)

// MaxKeyLen is the maximum allowed key length in bytes.
const MaxKeyLen = 128

// ValidateKey checks the key against the source key rules: non-empty, at most
// MaxKeyLen bytes, characters from [A-Za-z0-9._-], no leading dot.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	if len(key) > MaxKeyLen {
		return fmt.Errorf("%w: key is longer than %d bytes", ErrInvalidKey, MaxKeyLen)
	}
	if key[0] == '.' {
		return fmt.Errorf("%w: key %q starts with a dot", ErrInvalidKey, key)
	}
	for i := 0; i < len(key); i++ {
		if !isAllowedKeyChar(key[i]) {
			return fmt.Errorf("%w: key %q contains disallowed character %q", ErrInvalidKey, key, key[i])
		}
	}
	return nil
}

func isAllowedKeyChar(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '.' || c == '_' || c == '-'
}

// Loader fetches the value for a key from the remote source.
// It is the only capability a Source has against the remote.
type Loader[V any] interface {
	Load(ctx context.Context, key string) (V, error)
}

// LoaderFunc is an adapter to allow the use of ordinary functions as Loaders.
type LoaderFunc[V any] func(ctx context.Context, key string) (V, error)

// Load implements the Loader interface.
func (f LoaderFunc[V]) Load(ctx context.Context, key string) (V, error) {
	return f(ctx, key)
}

// Result is a value answered by a Source.
//
// Stale is false exactly when the value was produced by a successful remote
// load within the same Fetch call. Every value answered from memory or
// snapshot is stale regardless of age: staleness is a preference signal, not
// a validity bound.
type Result[V any] struct {
	Value     V
	FetchedAt time.Time
	Stale     bool
}

// Age returns how old the value is at the given moment.
func (r Result[V]) Age(now time.Time) time.Duration {
	return now.Sub(r.FetchedAt)
}

// EntryInfo describes one in-memory entry for status surfaces.
type EntryInfo struct {
	Key       string    `json:"key"`
	FetchedAt time.Time `json:"fetched_at"`
	Bytes     int       `json:"bytes"`
}

// DefaultIsRetriable is the transient-error classifier used when Opts.IsRetriable
// is not set. It treats ErrRemoteUnavailable, deadline expiry and network
// timeouts as transient.
func DefaultIsRetriable(err error) bool {
	if errors.Is(err, ErrRemoteUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// sanitizedError keeps the message of a loader error but exposes only a
// well-known sentinel through errors.Is/As.
type sanitizedError struct {
	msg      string
	sentinel error
}

func (e *sanitizedError) Error() string { return e.msg }

func (e *sanitizedError) Unwrap() error { return e.sentinel }

// sanitizeCause strips loader-defined error types, keeping only the message
// and the matchability of well-known sentinels.
func sanitizeCause(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrRemoteUnavailable, context.DeadlineExceeded, context.Canceled} {
		if errors.Is(err, sentinel) {
			return &sanitizedError{msg: err.Error(), sentinel: sentinel}
		}
	}
	return errors.New(err.Error())
}
