// Package errors provides centralized error definitions and error handling
// utilities for the Vigil codebase. It defines sentinel errors for tool
// invocation and detector lifecycle failures, typed domain errors with
// context wrapping, and classification helpers.
//
// # Error Containment
//
// The engine's propagation policy is that detector-internal failures (spawn
// failures, timeouts, parse mismatches, lifecycle errors) are contained at
// the detector boundary and converted into degraded capability or
// partial/empty results. Only ManagerError values surface to callers as
// rejected requests.
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Tool invocation sentinel errors
var (
	// ErrToolNotFound indicates the external tool binary could not be
	// launched because it does not exist or is not executable.
	ErrToolNotFound = New("tool binary not found")
	// ErrToolTimeout indicates the external tool exceeded its wall-clock
	// budget and was forcibly terminated.
	ErrToolTimeout = New("tool invocation timed out")
	// ErrToolCanceled indicates the invocation was canceled before the
	// tool completed.
	ErrToolCanceled = New("tool invocation canceled")
)

// Detector lifecycle sentinel errors
var (
	// ErrDetectorNotRunning indicates an operation required a running detector.
	ErrDetectorNotRunning = New("detector not running")
	// ErrDetectorFailed indicates the detector is in the failed state and
	// must be restarted explicitly.
	ErrDetectorFailed = New("detector in failed state")
	// ErrWatchTargetMissing indicates the file-watch root does not exist.
	ErrWatchTargetMissing = New("watch target does not exist")
	// ErrScanInFlight indicates a scan was requested while one is already
	// running and coalescing applies.
	ErrScanInFlight = New("scan already in flight")
)

// Manager sentinel errors
var (
	// ErrUnknownSource indicates a request named a detector source that is
	// not configured.
	ErrUnknownSource = New("unknown detector source")
	// ErrSourceDisabled indicates a request named a detector source that is
	// configured but disabled.
	ErrSourceDisabled = New("detector source disabled")
	// ErrManagerStopped indicates a request was issued before Start or
	// after Stop.
	ErrManagerStopped = New("manager not started")
)

// DetectorError represents an error from a detector's lifecycle or scan
// machinery. It carries the detector name so the manager can report which
// source degraded.
type DetectorError struct {
	// Detector is the name of the detector that produced the error.
	Detector string
	// Op is the operation that failed: "start", "stop", "scan", "watch".
	Op string
	// Err is the underlying cause.
	Err error
}

// NewDetectorError creates a DetectorError wrapping the given cause.
func NewDetectorError(detector, op string, err error) *DetectorError {
	return &DetectorError{Detector: detector, Op: op, Err: err}
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector %s: %s: %v", e.Detector, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *DetectorError) Unwrap() error { return e.Err }

// ManagerError represents a caller-facing error from the detection manager.
// Unlike DetectorError, these are surfaced directly as rejected requests.
type ManagerError struct {
	// Source is the detector source named by the request, if any.
	Source string
	// Err is the underlying cause.
	Err error
}

// NewManagerError creates a ManagerError wrapping the given cause.
func NewManagerError(source string, err error) *ManagerError {
	return &ManagerError{Source: source, Err: err}
}

func (e *ManagerError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("manager: %v", e.Err)
	}
	return fmt.Sprintf("manager: source %q: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *ManagerError) Unwrap() error { return e.Err }

// IsSpawn reports whether the error chain indicates the tool binary could
// not be launched at all.
func IsSpawn(err error) bool {
	return Is(err, ErrToolNotFound)
}

// IsTimeout reports whether the error chain indicates a tool exceeded its
// time budget.
func IsTimeout(err error) bool {
	return Is(err, ErrToolTimeout)
}

// IsRetryable reports whether the operation may succeed on retry.
// Timeouts and cancellations are transient; a missing binary is not.
func IsRetryable(err error) bool {
	return Is(err, ErrToolTimeout) || Is(err, ErrToolCanceled) || Is(err, ErrScanInFlight)
}

// IsCallerFacing reports whether the error should be surfaced to the caller
// rather than absorbed at the detector boundary.
func IsCallerFacing(err error) bool {
	var me *ManagerError
	return As(err, &me)
}
