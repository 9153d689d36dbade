package detect

import (
	"sort"
	"sync"
	"time"
)

// Key identifies a finding for deduplication. Two records with the same
// key are the same underlying problem observed more than once.
type Key struct {
	Message string
	Tool    string
	File    string
	Line    int
}

// keyOf derives the dedup key for a record.
func keyOf(r Record) Key {
	return Key{
		Message: r.Message,
		Tool:    r.Source.Tool,
		File:    r.File(),
		Line:    r.Line(),
	}
}

// Tracked is one deduplicated finding in the aggregate view. The Record is
// the first observation; repeat observations bump Occurrences and LastSeen
// without mutating it.
type Tracked struct {
	Record      Record
	Occurrences int
	FirstSeen   time.Time
	LastSeen    time.Time
}

// Aggregate is the manager's merged, deduplicated view across detectors.
// Tracked entries are keyed globally, so the same problem reported by two
// detectors (both degraded families running the heuristic scan, say) is one
// visible finding with its occurrences summed. Each detector additionally
// owns the set of keys it currently reports; merging replaces that set
// wholesale, and an entry leaves the view only when no detector reports it
// anymore.
type Aggregate struct {
	mu      sync.Mutex
	entries map[Key]*Tracked
	// byDetector maps detector name to the keys it currently reports.
	byDetector map[string]map[Key]struct{}
}

// NewAggregate creates an empty aggregate view.
func NewAggregate() *Aggregate {
	return &Aggregate{
		entries:    make(map[Key]*Tracked),
		byDetector: make(map[string]map[Key]struct{}),
	}
}

// Merge replaces detector's reported key set with records. Findings whose
// key already exists, whichever detector first reported them, keep their
// first-seen record and timestamp and gain an occurrence; new keys enter
// fresh; keys nobody reports anymore are dropped.
func (a *Aggregate) Merge(detector string, records []Record, now time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.byDetector[detector]
	next := make(map[Key]struct{}, len(records))

	for _, r := range records {
		k := keyOf(r)
		if _, ok := next[k]; ok {
			// Duplicate within one scan pass still counts as one finding
			// observed once.
			a.entries[k].LastSeen = now
			continue
		}
		next[k] = struct{}{}
		if t, ok := a.entries[k]; ok {
			t.Occurrences++
			t.LastSeen = now
			continue
		}
		a.entries[k] = &Tracked{
			Record:      r,
			Occurrences: 1,
			FirstSeen:   now,
			LastSeen:    now,
		}
	}

	for k := range prev {
		if _, ok := next[k]; ok {
			continue
		}
		if !a.heldElsewhereLocked(detector, k) {
			delete(a.entries, k)
		}
	}

	a.byDetector[detector] = next
	return len(a.entries)
}

// Drop removes a detector's slice of the view, for when a detector is
// disabled or stopped. Entries another detector still reports survive.
func (a *Aggregate) Drop(detector string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for k := range a.byDetector[detector] {
		if !a.heldElsewhereLocked(detector, k) {
			delete(a.entries, k)
		}
	}
	delete(a.byDetector, detector)
}

// Clear empties the whole view.
func (a *Aggregate) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = make(map[Key]*Tracked)
	a.byDetector = make(map[string]map[Key]struct{})
}

// heldElsewhereLocked reports whether any detector other than except still
// reports the key.
func (a *Aggregate) heldElsewhereLocked(except string, k Key) bool {
	for name, keys := range a.byDetector {
		if name == except {
			continue
		}
		if _, ok := keys[k]; ok {
			return true
		}
	}
	return false
}

// Snapshot returns a stable copy of the current view, ordered by severity
// descending, then file, then line. Mutating the result does not affect
// the aggregate.
func (a *Aggregate) Snapshot() []Tracked {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []Tracked
	for _, t := range a.entries {
		out = append(out, *t)
	}

	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Record, out[j].Record
		if ri.Severity != rj.Severity {
			return ri.Severity > rj.Severity
		}
		if ri.File() != rj.File() {
			return ri.File() < rj.File()
		}
		if ri.Line() != rj.Line() {
			return ri.Line() < rj.Line()
		}
		return ri.Message < rj.Message
	})
	return out
}

// Total returns the number of tracked findings.
func (a *Aggregate) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
