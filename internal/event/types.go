// Package event defines typed lifecycle events for decoupling the detection
// engine from its observers. The CLI, the watch view, and any embedding host
// subscribe to these events without reaching into detector internals.
package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "detector.started", "scan.completed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers. Subscribers use these constants rather than
// raw strings so the contract stays statically checkable.
const (
	TypeDetectorStarted = "detector.started"
	TypeDetectorStopped = "detector.stopped"
	TypeDetectorFailed  = "detector.failed"
	TypeScanStarted     = "scan.started"
	TypeScanCompleted   = "scan.completed"
	TypeFindingsUpdated = "findings.updated"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// DetectorStartedEvent is emitted when a detector transitions to running.
type DetectorStartedEvent struct {
	baseEvent
	Detector string // Detector name
	Tool     string // Resolved external tool, empty in degraded mode
}

// NewDetectorStartedEvent creates a DetectorStartedEvent.
func NewDetectorStartedEvent(detector, tool string) DetectorStartedEvent {
	return DetectorStartedEvent{
		baseEvent: newBaseEvent(TypeDetectorStarted),
		Detector:  detector,
		Tool:      tool,
	}
}

// DetectorStoppedEvent is emitted when a detector transitions to idle.
type DetectorStoppedEvent struct {
	baseEvent
	Detector string
}

// NewDetectorStoppedEvent creates a DetectorStoppedEvent.
func NewDetectorStoppedEvent(detector string) DetectorStoppedEvent {
	return DetectorStoppedEvent{
		baseEvent: newBaseEvent(TypeDetectorStopped),
		Detector:  detector,
	}
}

// DetectorFailedEvent is emitted when a detector enters the failed state.
// Cause carries the structured reason for observability collaborators.
type DetectorFailedEvent struct {
	baseEvent
	Detector string
	Cause    error
}

// NewDetectorFailedEvent creates a DetectorFailedEvent.
func NewDetectorFailedEvent(detector string, cause error) DetectorFailedEvent {
	return DetectorFailedEvent{
		baseEvent: newBaseEvent(TypeDetectorFailed),
		Detector:  detector,
		Cause:     cause,
	}
}

// ScanStartedEvent is emitted when a detector begins a scan pass.
type ScanStartedEvent struct {
	baseEvent
	Detector string
	Target   string // Scoped target path, empty for a full-project scan
}

// NewScanStartedEvent creates a ScanStartedEvent.
func NewScanStartedEvent(detector, target string) ScanStartedEvent {
	return ScanStartedEvent{
		baseEvent: newBaseEvent(TypeScanStarted),
		Detector:  detector,
		Target:    target,
	}
}

// ScanCompletedEvent is emitted when a scan pass finishes, successfully
// or not. Records is the number of records the pass produced.
type ScanCompletedEvent struct {
	baseEvent
	Detector string
	Target   string
	Records  int
	Err      error // nil on success
}

// NewScanCompletedEvent creates a ScanCompletedEvent.
func NewScanCompletedEvent(detector, target string, records int, err error) ScanCompletedEvent {
	return ScanCompletedEvent{
		baseEvent: newBaseEvent(TypeScanCompleted),
		Detector:  detector,
		Target:    target,
		Records:   records,
		Err:       err,
	}
}

// FindingsUpdatedEvent is emitted by the manager when its aggregate view
// changes after merging a detector's results.
type FindingsUpdatedEvent struct {
	baseEvent
	Detector string // Detector whose results triggered the update
	Total    int    // Total tracked findings after the merge
}

// NewFindingsUpdatedEvent creates a FindingsUpdatedEvent.
func NewFindingsUpdatedEvent(detector string, total int) FindingsUpdatedEvent {
	return FindingsUpdatedEvent{
		baseEvent: newBaseEvent(TypeFindingsUpdated),
		Detector:  detector,
		Total:     total,
	}
}
