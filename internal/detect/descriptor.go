package detect

import (
	"os"
	"path/filepath"
	"time"
)

// Candidate describes one external tool in a detector's fallback chain.
//
// The chain for each candidate is: project-local binary (LocalPath), then
// globally installed binary (Command via PATH). A candidate whose Relevant
// probe rejects the workspace is skipped entirely; a relevant candidate
// whose binary cannot be found anywhere is reported as unavailable.
type Candidate struct {
	// Tool is the tool name used in Source and Capabilities.
	Tool string

	// Command is the binary name resolved via PATH.
	Command string

	// LocalPath is an optional project-local binary path relative to the
	// workspace root (e.g. "node_modules/.bin/tsc"), tried before PATH.
	LocalPath string

	// Relevant reports whether this toolchain applies to the workspace,
	// typically by probing for a config file or dependency manifest.
	// nil means always relevant.
	Relevant func(root string) bool

	// FullArgs builds the argument list for a full-project scan.
	FullArgs func(root string) []string

	// FileArgs builds the argument list for a single-file scan.
	// nil means the tool has no single-file mode and full scans are
	// used for scoped requests too.
	FileArgs func(root, file string) []string

	// Parse converts the tool's output into records.
	Parse ParseFunc
}

// Descriptor parameterizes the generic ToolDetector engine for one detector
// family. All lifecycle, timeout, throttle, and debounce logic lives in the
// engine; the descriptor only supplies what differs per tool family.
type Descriptor struct {
	// Name is the detector name ("build", "test", "static-analysis").
	Name string

	// Kind is the source kind stamped on records and capabilities.
	Kind SourceKind

	// Languages the family understands, for capability reporting.
	Languages []string

	// Candidates form the tool fallback chain, in preference order.
	Candidates []Candidate

	// Heuristic is the degraded-mode scan used when every candidate is
	// unavailable. nil means the detector reports empty results in
	// degraded mode instead.
	Heuristic *HeuristicScan

	// Timeout is the wall-clock budget per tool invocation.
	Timeout time.Duration

	// Throttle is the minimum interval between full scans.
	Throttle time.Duration

	// Debounce is the window for coalescing file-change events.
	Debounce time.Duration

	// PollInterval re-scans on an interval when > 0.
	PollInterval time.Duration

	// Watch enables filesystem watching of the workspace root.
	Watch bool

	// WatchExtensions limits which changed files trigger a re-scan.
	// Empty means any change triggers.
	WatchExtensions []string
}

// capabilities derives the static capability declaration for the family.
// Tool availability is filled in by the engine after the fallback chain runs.
func (d *Descriptor) capabilities() Capabilities {
	tools := make([]string, 0, len(d.Candidates))
	for _, c := range d.Candidates {
		tools = append(tools, c.Tool)
	}
	return Capabilities{
		SupportsRealTime:  d.Watch || d.PollInterval > 0,
		SupportsPolling:   d.PollInterval > 0,
		SupportsFileWatch: d.Watch,
		Languages:         append([]string(nil), d.Languages...),
		Tools:             tools,
	}
}

// fileExists probes for a workspace file relative to root.
func fileExists(root string, rel ...string) bool {
	_, err := os.Stat(filepath.Join(append([]string{root}, rel...)...))
	return err == nil
}
