/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package fallback provides a read-through source for remote data that keeps
// answering when the remote stops.
//
// Source sits between a caller and a Loader. Every successful load is kept in
// memory and mirrored to a snapshot.Store, and when a later load fails the
// last good value is served instead of the error, marked stale. With a durable
// store the last good value survives process restarts.
//
// The main features are:
//   - Read-through caching with a preferred-freshness window: values younger
//     than FreshFor are served without touching the remote.
//   - At most one loader flight per key (singleflight). Concurrent fetchers
//     share the result, and a caller that gives up does not cancel the flight
//     for the others.
//   - Loader retries with a configurable retry.Policy and optional pacing of
//     remote calls with a shared rate.Limiter quota.
//   - A closed error surface: Fetch reports failures only through ErrNoData,
//     ErrRemoteUnavailable and ErrInvalidKey, never as raw loader errors.
//   - Prometheus metrics for hits, loads, failures and snapshot writes.
package fallback
