// Package services implements the business logic of the coordination
// engine: the status state machine, the confirmation workflow, closure
// statistics, and the weather advisory cache. This file centralizes the
// service-level error values so callers can branch on them; translation into
// user-facing Portuguese happens in the bot router, never here.
package services

import "errors"

var (
	// ErrLockBusy means another mutation holds the status lock. Contention,
	// not failure: the caller should ask the user to retry shortly.
	ErrLockBusy = errors.New("status lock busy")

	// ErrThrottled means the user committed another mutation less than the
	// minimum gap ago.
	ErrThrottled = errors.New("user action throttled")

	// ErrConfirmationRequired means the mutation was parked behind a
	// pending confirmation instead of being applied.
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrNothingPending means the user answered !sim/!nao with no
	// confirmation outstanding.
	ErrNothingPending = errors.New("no pending confirmation")

	// ErrConfirmationExpired means the confirmation outlived its window and
	// was discarded.
	ErrConfirmationExpired = errors.New("confirmation expired")

	// ErrTransitionActive rejects starting or toggling while an endpoint is
	// already transitioning.
	ErrTransitionActive = errors.New("transition already active")

	// ErrNoTransition rejects completing or targeting a transition that
	// does not exist.
	ErrNoTransition = errors.New("no active transition")

	// ErrEndpointNotOpen rejects a transition on an endpoint that does not
	// currently have right of way.
	ErrEndpointNotOpen = errors.New("endpoint is not open")

	// ErrInvalidStatus means the stored pair violates the one-open/one-closed
	// invariant. Never committed over; surfaced as a generic failure.
	ErrInvalidStatus = errors.New("stored status violates invariant")

	// ErrNoData distinguishes "no closures recorded" from a zero average.
	ErrNoData = errors.New("no closure data")

	// ErrWeatherUnavailable means the upstream failed and no usable cached
	// snapshot exists. Callers omit the weather section rather than fail.
	ErrWeatherUnavailable = errors.New("weather unavailable")
)
