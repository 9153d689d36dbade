package detect

import (
	"context"
	"sort"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/vigil-dev/vigil/internal/errors"
	"github.com/vigil-dev/vigil/internal/event"
	"github.com/vigil-dev/vigil/internal/execx"
	"github.com/vigil-dev/vigil/internal/logging"
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Root is the workspace root all detectors operate on.
	Root string
	// Settings are the shared tool tunables pushed into every descriptor.
	Settings Settings
	// Enabled maps source name to enablement. Sources absent from the map
	// are disabled. nil enables everything.
	Enabled map[string]bool
	// Filter narrows reported findings. nil passes everything.
	Filter *Filter
	// Runner, Clock, Logger, Bus, and BufferCapacity are forwarded to the
	// detector engines. Zero values get the same defaults.
	Runner         execx.Runner
	Clock          Clock
	Logger         *logging.Logger
	Bus            *event.Bus
	BufferCapacity int
}

// managed pairs a detector with its enablement flag.
type managed struct {
	detector *ToolDetector
	enabled  bool
}

// DetectorInfo is the manager's external description of one detector.
type DetectorInfo struct {
	Name         string
	Enabled      bool
	State        State
	Capabilities Capabilities
}

// Options scopes a detection request.
type Options struct {
	// Source names a single detector ("build", "test", "static-analysis").
	// Empty fans out across all enabled detectors.
	Source string
	// Target scopes the scan to a file or directory. Empty scans the
	// whole workspace.
	Target string
	// IncludeBuffered returns current buffered results without forcing a
	// fresh scan pass.
	IncludeBuffered bool
}

// Manager owns the detector set. It drives lifecycle, fans detection
// requests out across detectors with failure isolation, and maintains the
// merged deduplicated findings view.
//
// The manager subscribes to scan-completed events so the aggregate stays
// current for background scans (watch triggers, polling) that no caller
// requested directly.
type Manager struct {
	root      string
	filter    *Filter
	clock     Clock
	logger    *logging.Logger
	bus       *event.Bus
	aggregate *Aggregate

	mu        sync.Mutex
	detectors map[string]*managed
	started   bool
	subID     string
}

// NewManager creates a manager with one detector per known family.
func NewManager(opts ManagerOptions) *Manager {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	m := &Manager{
		root:      opts.Root,
		filter:    opts.Filter,
		clock:     clock,
		logger:    logger.With("component", "manager"),
		bus:       opts.Bus,
		aggregate: NewAggregate(),
		detectors: make(map[string]*managed),
	}

	engineOpts := EngineOptions{
		Runner:         opts.Runner,
		Clock:          clock,
		Logger:         logger,
		Bus:            opts.Bus,
		BufferCapacity: opts.BufferCapacity,
	}
	for name, desc := range Descriptors(opts.Settings) {
		m.detectors[name] = &managed{
			detector: NewToolDetector(desc, opts.Root, engineOpts),
			enabled:  opts.Enabled == nil || opts.Enabled[name],
		}
	}
	return m
}

// Start brings up every enabled detector. A detector that fails to start is
// logged and left in its failed state; the others still come up.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	if m.bus != nil {
		m.subID = m.bus.Subscribe(event.TypeScanCompleted, m.onScanCompleted)
	}

	for name, entry := range m.snapshotDetectors() {
		if !entry.enabled {
			continue
		}
		if err := entry.detector.Start(); err != nil {
			m.logger.Error("detector failed to start",
				"detector", name,
				"error", err.Error())
		}
	}

	m.logger.Info("manager started", "detectors", len(m.detectors))
	return nil
}

// Stop shuts every detector down and detaches from the bus. Idempotent.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	subID := m.subID
	m.subID = ""
	m.mu.Unlock()

	if m.bus != nil && subID != "" {
		m.bus.Unsubscribe(subID)
	}

	var wg conc.WaitGroup
	for _, entry := range m.snapshotDetectors() {
		d := entry.detector
		wg.Go(func() { _ = d.Stop() })
	}
	wg.Wait()

	m.logger.Info("manager stopped")
	return nil
}

// Detect runs a detection pass per opts and returns the matching records.
//
// Single-source requests surface rejection errors (unknown or disabled
// source). Fan-out requests isolate failures: one detector erroring or
// panicking costs only its own slice of the results.
func (m *Manager) Detect(ctx context.Context, opts Options) ([]Record, error) {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return nil, errors.NewManagerError(opts.Source, errors.ErrManagerStopped)
	}

	if opts.Source != "" {
		return m.detectOne(ctx, opts)
	}
	return m.detectAll(ctx, opts)
}

// detectOne handles a request scoped to a single named source.
func (m *Manager) detectOne(ctx context.Context, opts Options) ([]Record, error) {
	m.mu.Lock()
	entry, ok := m.detectors[opts.Source]
	enabled := ok && entry.enabled
	m.mu.Unlock()
	if !ok {
		return nil, errors.NewManagerError(opts.Source, errors.ErrUnknownSource)
	}
	if !enabled {
		return nil, errors.NewManagerError(opts.Source, errors.ErrSourceDisabled)
	}

	records, err := m.collect(ctx, entry.detector, opts)
	if err != nil {
		return nil, err
	}
	return m.filtered(records), nil
}

// detectAll fans the request out across all enabled detectors. Results
// merge in detector-name order so output is deterministic.
func (m *Manager) detectAll(ctx context.Context, opts Options) ([]Record, error) {
	type result struct {
		name    string
		records []Record
	}

	detectors := m.snapshotDetectors()
	names := make([]string, 0, len(detectors))
	for name, entry := range detectors {
		if entry.enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var (
		resMu   sync.Mutex
		results = make(map[string]result, len(names))
		wg      conc.WaitGroup
	)
	for _, name := range names {
		d := detectors[name].detector
		wg.Go(func() {
			records, err := m.collect(ctx, d, opts)
			if err != nil {
				m.logger.Warn("detector pass failed, skipping its results",
					"detector", name,
					"error", err.Error())
				return
			}
			resMu.Lock()
			results[name] = result{name: name, records: records}
			resMu.Unlock()
		})
	}
	if p := wg.WaitAndRecover(); p != nil {
		// A panicking detector loses its slice; everything else stands.
		m.logger.Error("detector panicked during fan-out", "panic", p.String())
	}

	var merged []Record
	for _, name := range names {
		merged = append(merged, results[name].records...)
	}
	return m.filtered(merged), nil
}

// collect runs or reads one detector depending on IncludeBuffered.
func (m *Manager) collect(ctx context.Context, d *ToolDetector, opts Options) ([]Record, error) {
	if opts.IncludeBuffered {
		return d.Buffer().Snapshot(), nil
	}
	return d.DetectErrors(ctx, opts.Target)
}

// onScanCompleted merges the finishing detector's buffer into the aggregate
// and announces the new total.
func (m *Manager) onScanCompleted(e event.Event) {
	sc, ok := e.(event.ScanCompletedEvent)
	if !ok {
		return
	}

	m.mu.Lock()
	entry, ok := m.detectors[sc.Detector]
	m.mu.Unlock()
	if !ok {
		return
	}

	records := m.filtered(entry.detector.Buffer().Snapshot())
	total := m.aggregate.Merge(sc.Detector, records, m.clock.Now())

	if m.bus != nil {
		m.bus.Publish(event.NewFindingsUpdatedEvent(sc.Detector, total))
	}
}

// Findings returns the current deduplicated view, filtered and ordered by
// severity descending.
func (m *Manager) Findings() []Tracked {
	return m.aggregate.Snapshot()
}

// Stats summarizes the current findings view.
func (m *Manager) Stats() Stats {
	return ComputeStats(m.aggregate.Snapshot())
}

// ListDetectors describes all detectors in name order.
func (m *Manager) ListDetectors() []DetectorInfo {
	detectors := m.snapshotDetectors()
	names := make([]string, 0, len(detectors))
	for name := range detectors {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]DetectorInfo, 0, len(names))
	for _, name := range names {
		entry := detectors[name]
		infos = append(infos, DetectorInfo{
			Name:         name,
			Enabled:      entry.enabled,
			State:        entry.detector.State(),
			Capabilities: entry.detector.Capabilities(),
		})
	}
	return infos
}

// ApplyConfig reconciles enablement with a new desired set. Newly enabled
// detectors start, newly disabled ones stop and lose their slice of the
// findings view. The filter is swapped atomically for subsequent merges.
func (m *Manager) ApplyConfig(enabled map[string]bool, filter *Filter) error {
	m.mu.Lock()
	started := m.started
	if filter != nil {
		m.filter = filter
	}

	type change struct {
		name   string
		d      *ToolDetector
		enable bool
	}
	var changes []change
	for name, entry := range m.detectors {
		want := enabled == nil || enabled[name]
		if want == entry.enabled {
			continue
		}
		entry.enabled = want
		changes = append(changes, change{name: name, d: entry.detector, enable: want})
	}
	m.mu.Unlock()

	for _, c := range changes {
		if !started {
			continue
		}
		if c.enable {
			if err := c.d.Start(); err != nil {
				m.logger.Error("detector failed to start on config change",
					"detector", c.name,
					"error", err.Error())
			}
		} else {
			_ = c.d.Stop()
			m.aggregate.Drop(c.name)
			if m.bus != nil {
				m.bus.Publish(event.NewFindingsUpdatedEvent(c.name, m.aggregate.Total()))
			}
		}
		m.logger.Info("detector enablement changed",
			"detector", c.name,
			"enabled", c.enable)
	}
	return nil
}

// filtered applies the current filter to a record slice.
func (m *Manager) filtered(records []Record) []Record {
	m.mu.Lock()
	f := m.filter
	m.mu.Unlock()
	if f == nil {
		return records
	}
	out := records[:0:0]
	for _, r := range records {
		if f.Pass(r) {
			out = append(out, r)
		}
	}
	return out
}

// snapshotDetectors copies detector entries by value under the lock, so the
// enablement flags read from a snapshot cannot race ApplyConfig.
func (m *Manager) snapshotDetectors() map[string]managed {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]managed, len(m.detectors))
	for name, entry := range m.detectors {
		out[name] = *entry
	}
	return out
}
