/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides per-actor admission control for interactive bots
// and other systems where every acting identity (user, chat, API client)
// must be throttled independently.
//
// The central type is Gate: it keeps a sliding window of admissions for each
// (actor, class) pair and rejects checks that would exceed the configured rate.
// Crossing the threshold puts the actor into a cooldown for the configured
// duration, and while the cooldown lasts every check is rejected without
// touching the window, so a rejected actor cannot keep itself blocked by
// retrying.
//
// Key features:
//   - Exact sliding log, sliding window and leaky bucket (GCRA) algorithms
//   - Per-class limits configured with human-readable rates ("5/10s", "100/m")
//   - Cooldown after the limit is exceeded with a precise retry-after estimate
//   - LRU-based actor state management for memory efficiency
//   - Prometheus metrics via MetricsCollector interface
package ratelimit
