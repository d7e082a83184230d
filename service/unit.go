/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package service provides the lifecycle layer of a bot service:
// units that can be started and stopped, their composition, periodic
// workers and a signal-driven runner.
package service

// Unit is a single component of a service with its own lifecycle.
type Unit interface {
	// Start begins the unit's operation.
	//
	// An implementation may do its initialization and return immediately, or
	// block the calling goroutine for as long as the unit lives. If Start
	// succeeds, nothing may be written to the provided channel, and the
	// channel must not be used after Start has returned.
	Start(fatalError chan<- error)

	// Stop halts the unit. With gracefully set, the unit should finish the
	// work in progress first. Stop may be called whether or not Start has
	// been called or has succeeded.
	Stop(gracefully bool) error
}

// MetricsRegisterer is an interface for objects that can register its own metrics.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}
