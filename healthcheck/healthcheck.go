/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package healthcheck provides the operational HTTP surface of a bot service:
// liveness, readiness and a detailed status report assembled from per-component checks.
package healthcheck

import (
	"context"

	"code.cloudfoundry.org/bytefmt"

	"github.com/acronis/go-botkit/ratelimit"
	"github.com/acronis/go-botkit/snapshot"
)

// Check probes a single component. It must be safe for concurrent use and
// should honor ctx on slow probes.
type Check func(ctx context.Context) ComponentStatus

// ComponentStatus is the result of a single component check.
type ComponentStatus struct {
	Healthy bool                   `json:"healthy"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SnapshotStoreCheck makes a Check reporting the state of a snapshot store:
// the number of entries and the occupied disk space.
func SnapshotStoreCheck(store snapshot.Store) Check {
	return func(_ context.Context) ComponentStatus {
		st, err := store.Status()
		if err != nil {
			return ComponentStatus{Details: map[string]interface{}{"error": err.Error()}}
		}
		return ComponentStatus{Healthy: true, Details: map[string]interface{}{
			"entries":    st.Entries,
			"size":       bytefmt.ByteSize(uint64(st.SizeBytes)),
			"size_bytes": st.SizeBytes,
		}}
	}
}

// SourceCheck makes a Check reporting how many values a source holds in memory.
func SourceCheck(entries func() int) Check {
	return func(_ context.Context) ComponentStatus {
		return ComponentStatus{Healthy: true, Details: map[string]interface{}{
			"entries": entries(),
		}}
	}
}

// GateCheck makes a Check reporting admission gate statistics.
func GateCheck(stats func() ratelimit.GateStats) Check {
	return func(_ context.Context) ComponentStatus {
		return ComponentStatus{Healthy: true, Details: map[string]interface{}{
			"actors": stats().Actors,
		}}
	}
}
