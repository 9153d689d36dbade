// Package detect implements the pluggable detector framework and the
// aggregation engine at the heart of Vigil.
//
// Detectors discover one category of problem (build errors, test failures,
// static-analysis findings) by invoking external tools and parsing their
// textual diagnostics into normalized records. The Manager owns a set of
// detectors, drives their lifecycle, and exposes a merged, deduplicated,
// queryable view of everything they find.
package detect

import (
	"fmt"
	"sync/atomic"
	"time"
)

// SourceKind categorizes what produced a record.
type SourceKind string

// Source kinds understood by the engine.
const (
	KindBuild          SourceKind = "build"
	KindTest           SourceKind = "test"
	KindStaticAnalysis SourceKind = "static-analysis"
	KindLint           SourceKind = "lint"
	KindRuntime        SourceKind = "runtime"
	KindConsole        SourceKind = "console"
)

// Severity is the canonical ordered severity scale.
type Severity int

const (
	// SeverityLow is for stylistic or informational findings.
	SeverityLow Severity = iota
	// SeverityMedium is for findings that deserve attention but do not
	// break the build.
	SeverityMedium
	// SeverityHigh is for findings that break compilation or tests.
	SeverityHigh
	// SeverityCritical is for security findings and data-loss hazards.
	SeverityCritical
)

// String returns the canonical name for the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// IDELevel maps the canonical scale onto the diagnostic scale used by
// IDE-facing consumers. The mapping is fixed so the two scales never drift:
// low→hint, medium→info, high→warning, critical→error.
func (s Severity) IDELevel() string {
	switch s {
	case SeverityLow:
		return "hint"
	case SeverityMedium:
		return "info"
	case SeverityHigh:
		return "warning"
	case SeverityCritical:
		return "error"
	default:
		return "info"
	}
}

// ParseSeverity converts a severity name (either scale) to the canonical
// Severity. Unrecognized names default to SeverityMedium.
func ParseSeverity(name string) Severity {
	switch name {
	case "low", "hint":
		return SeverityLow
	case "medium", "info":
		return SeverityMedium
	case "high", "warning", "warn":
		return SeverityHigh
	case "critical", "error":
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// Source identifies what produced a record. Immutable once attached.
type Source struct {
	// Kind is the detection category: build, test, static-analysis, ...
	Kind SourceKind
	// Tool is the external tool name ("go", "tsc", "golangci-lint"),
	// or "heuristic" for the degraded text scan.
	Tool string
	// Version is the tool version when known.
	Version string
	// Config is an optional snapshot of tool configuration relevant to
	// reproducing the finding.
	Config map[string]string
}

// Location is a position in source code. Line and Column are 1-based.
type Location struct {
	File      string // Absolute, normalized path
	Line      int    // 1-based
	Column    int    // 1-based, 0 when unknown
	EndLine   int    // 0 when unknown
	EndColumn int    // 0 when unknown
	Function  string // Enclosing function name, empty when unknown
}

// StackFrame is one entry in a record's frame sequence, outermost first.
type StackFrame struct {
	Location Location
	Symbol   string // Enclosing symbol, empty when unknown
	RawLine  string // The raw source or diagnostic line this frame came from
}

// Context carries creation metadata for a record.
type Context struct {
	CreatedAt   time.Time
	Environment string            // "build", "test", "static-analysis", ...
	Metadata    map[string]string // Free-form tool-specific metadata
}

// Record is the canonical representation of a single detected problem.
//
// A Record is immutable after construction. Repeat detections never mutate
// an existing record; the manager's aggregate view tracks occurrences
// separately (see Tracked).
type Record struct {
	// ID is process-unique, generated at creation, never reused.
	ID string
	// Message is the human-readable description.
	Message string
	// Kind is the category tag: "SyntaxError", "TypeError", "security",
	// "test-failure", "test-skipped", ...
	Kind string
	// Severity on the canonical scale.
	Severity Severity
	// Frames is ordered outermost-first. Length >= 1 for any record that
	// is anchored to a file.
	Frames []StackFrame
	// Context carries creation metadata.
	Context Context
	// Source identifies the producing detector/tool.
	Source Source
}

// recordCounter backs process-unique record IDs.
var recordCounter atomic.Uint64

// NewRecord creates a Record with a fresh process-unique ID and the current
// creation timestamp. The environment tag defaults to the source kind.
func NewRecord(message, kind string, severity Severity, frames []StackFrame, source Source) Record {
	return Record{
		ID:       fmt.Sprintf("rec-%d", recordCounter.Add(1)),
		Message:  message,
		Kind:     kind,
		Severity: severity,
		Frames:   frames,
		Context: Context{
			CreatedAt:   time.Now(),
			Environment: string(source.Kind),
			Metadata:    make(map[string]string),
		},
		Source: source,
	}
}

// File returns the file of the outermost frame, or "" for records that are
// not file-anchored.
func (r Record) File() string {
	if len(r.Frames) == 0 {
		return ""
	}
	return r.Frames[0].Location.File
}

// Line returns the 1-based line of the outermost frame, or 0.
func (r Record) Line() int {
	if len(r.Frames) == 0 {
		return 0
	}
	return r.Frames[0].Location.Line
}
