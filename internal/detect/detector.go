package detect

import "context"

// State is the lifecycle state of a detector.
type State int

const (
	// StateIdle indicates the detector is not running.
	StateIdle State = iota
	// StateStarting indicates the detector is initializing.
	StateStarting
	// StateRunning indicates the detector is active.
	StateRunning
	// StateStopping indicates the detector is shutting down.
	StateStopping
	// StateFailed indicates an unrecoverable initialization failure.
	// The only valid transition out is an explicit Start retry.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Capabilities declares what a detector supports. The manager uses it to
// decide which detectors to enable and how to schedule them.
type Capabilities struct {
	// SupportsRealTime reports whether the detector can deliver findings
	// continuously rather than only on explicit request.
	SupportsRealTime bool
	// SupportsPolling reports whether the detector can re-scan on an
	// interval.
	SupportsPolling bool
	// SupportsFileWatch reports whether the detector reacts to filesystem
	// change notifications.
	SupportsFileWatch bool
	// Languages lists the source languages the detector understands.
	Languages []string
	// Tools lists the external tools the detector knows how to drive.
	Tools []string
	// UnavailableTools lists tools whose entire fallback chain failed.
	// The detector still functions in degraded mode without them.
	UnavailableTools []string
}

// Detector is the common contract every concrete detector implements.
//
// Lifecycle: idle → starting → running → stopping → idle, with failed
// reachable from starting or running. Start and Stop are both idempotent.
type Detector interface {
	// Source returns the static identity of this detector.
	Source() Source

	// Capabilities returns what this detector supports. Availability
	// flags are only meaningful after Start has run the fallback chain.
	Capabilities() Capabilities

	// State returns the current lifecycle state.
	State() State

	// Start transitions the detector to running. Calling Start on an
	// already-running detector is a no-op, not an error. Depending on
	// configuration it begins file-watching and/or interval polling and
	// performs one immediate detection pass.
	Start() error

	// Stop kills any in-flight child process, cancels the watcher and
	// timers, and transitions to idle. Safe to call from any state,
	// repeatedly.
	Stop() error

	// DetectErrors runs (or reuses) a scan and returns the buffered
	// result. If the detector is not running it is started first.
	// A non-empty target scopes the scan to that file or directory.
	DetectErrors(ctx context.Context, target string) ([]Record, error)
}
