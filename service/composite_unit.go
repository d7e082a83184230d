/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"errors"
	"strings"
	"sync/atomic"
)

// CompositeUnit combines several service units into one.
// Units are started in registration order and stopped in reverse,
// so a unit never outlives the units it was started after.
type CompositeUnit struct {
	Units []Unit
}

// NewCompositeUnit creates a new composite unit.
// Order matters: put providers (stores, servers) before their consumers (workers).
func NewCompositeUnit(units ...Unit) *CompositeUnit {
	return &CompositeUnit{units}
}

// Start launches the units in registration order, each in its own goroutine
// (a Unit's Start may block for the unit's whole lifetime). It blocks until
// all Start invocations return.
//
// If any unit reports a fatal error, the units that already started are stopped
// non-gracefully in reverse order and a single CompositeUnitError, potentially
// including errors from the stop operations, is sent to the provided channel.
func (cu *CompositeUnit) Start(fatalError chan<- error) {
	fatalErrs := make([]chan error, len(cu.Units))
	for i := 0; i < len(fatalErrs); i++ {
		fatalErrs[i] = make(chan error, 1)
	}

	ok := make(chan bool, len(cu.Units))
	runningOrFailedUnits := int32(len(cu.Units)) //nolint:gosec // unit count is reasonable
	for i := 0; i < len(cu.Units); i++ {
		go func(i int) {
			cu.Units[i].Start(fatalErrs[i])
			if len(fatalErrs[i]) != 0 {
				ok <- false
				return
			}
			if atomic.AddInt32(&runningOrFailedUnits, -1) == 0 {
				ok <- true
			}
		}(i)
	}

	if <-ok {
		return
	}

	stopErr := cu.Stop(false)

	var errs []error
	for _, fatalErr := range fatalErrs {
		select {
		case err := <-fatalErr:
			errs = append(errs, err)
		default:
		}
	}
	if stopErr != nil {
		var cuErr *CompositeUnitError
		if errors.As(stopErr, &cuErr) {
			errs = append(errs, cuErr.UnitErrors...)
		} else {
			errs = append(errs, stopErr)
		}
	}
	if len(errs) > 0 {
		fatalError <- &CompositeUnitError{errs}
	}
}

// Stop stops the units one by one in reverse registration order.
// Every unit's Stop is called even when earlier ones fail; the errors are
// collected into a single CompositeUnitError.
func (cu *CompositeUnit) Stop(gracefully bool) error {
	var errs []error
	for i := len(cu.Units) - 1; i >= 0; i-- {
		if err := cu.Units[i].Stop(gracefully); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &CompositeUnitError{errs}
	}
	return nil
}

// MustRegisterMetrics registers metrics in Prometheus client and panics if any error occurs.
func (cu *CompositeUnit) MustRegisterMetrics() {
	for _, s := range cu.Units {
		if mr, ok := s.(MetricsRegisterer); ok {
			mr.MustRegisterMetrics()
		}
	}
}

// UnregisterMetrics unregisters metrics in Prometheus client.
func (cu *CompositeUnit) UnregisterMetrics() {
	for _, s := range cu.Units {
		if mr, ok := s.(MetricsRegisterer); ok {
			mr.UnregisterMetrics()
		}
	}
}

// CompositeUnitError is an error which may occurs in CompositeUnit's methods.
type CompositeUnitError struct {
	UnitErrors []error
}

// Error returns a string representation of a units composition error.
func (cue *CompositeUnitError) Error() string {
	msgs := make([]string, 0, len(cue.UnitErrors))
	for _, err := range cue.UnitErrors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap returns the individual unit errors,
// errors.Is and errors.As see through the composition.
func (cue *CompositeUnitError) Unwrap() []error {
	return cue.UnitErrors
}
