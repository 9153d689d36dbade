package detect

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vigil-dev/vigil/internal/errors"
	"github.com/vigil-dev/vigil/internal/event"
	"github.com/vigil-dev/vigil/internal/execx"
	"github.com/vigil-dev/vigil/internal/logging"
)

// activeTool is a candidate whose binary was resolved by the fallback chain.
type activeTool struct {
	candidate Candidate
	path      string
}

// EngineOptions configures a ToolDetector.
type EngineOptions struct {
	// Runner executes tool invocations. nil means execx.OSRunner.
	Runner execx.Runner
	// Clock supplies time for throttling. nil means SystemClock.
	Clock Clock
	// Logger receives structured scan logs. nil means a nop logger.
	Logger *logging.Logger
	// Bus receives lifecycle and scan events. nil means events are dropped.
	Bus *event.Bus
	// BufferCapacity bounds the record buffer. <= 0 means the default.
	BufferCapacity int
}

// ToolDetector is the generic external-tool detector engine. One engine
// instance, parameterized by a Descriptor, implements the whole Detector
// contract: fallback-chain tool resolution, spawn/parse, throttling,
// debounced file watching, interval polling, and scan coalescing.
//
// The design decision that shapes everything here: absence of a tool is
// never fatal. Every failure short of a missing watch root degrades the
// detector (fewer findings, heuristic mode, empty results) instead of
// stopping it.
type ToolDetector struct {
	desc   Descriptor
	root   string
	runner execx.Runner
	clock  Clock
	logger *logging.Logger
	bus    *event.Bus
	buffer *Buffer

	mu          sync.Mutex
	state       State
	active      []activeTool
	unavailable []string
	lastFull    time.Time
	scanning    bool
	rerun       bool
	rerunTarget string
	scanDone    chan struct{}
	scanCancel  context.CancelFunc
	watcher     *Watcher
	stopCh      chan struct{}
	deferTimer  *time.Timer
	pendTarget  string
	wg          sync.WaitGroup
}

// NewToolDetector creates an engine for the given descriptor rooted at the
// workspace root.
func NewToolDetector(desc Descriptor, root string, opts EngineOptions) *ToolDetector {
	runner := opts.Runner
	if runner == nil {
		runner = execx.OSRunner{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &ToolDetector{
		desc:   desc,
		root:   root,
		runner: runner,
		clock:  clock,
		logger: logger.WithDetector(desc.Name),
		bus:    opts.Bus,
		buffer: NewBuffer(opts.BufferCapacity),
		state:  StateIdle,
	}
}

// Source implements Detector.
func (d *ToolDetector) Source() Source {
	return Source{Kind: d.desc.Kind, Tool: d.desc.Name}
}

// Capabilities implements Detector. Availability flags reflect the most
// recent fallback-chain run.
func (d *ToolDetector) Capabilities() Capabilities {
	caps := d.desc.capabilities()

	d.mu.Lock()
	caps.UnavailableTools = append([]string(nil), d.unavailable...)
	d.mu.Unlock()
	return caps
}

// State implements Detector.
func (d *ToolDetector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Buffer exposes the detector's record buffer for read-only snapshots by
// the manager.
func (d *ToolDetector) Buffer() *Buffer {
	return d.buffer
}

// Start implements Detector. Idempotent: starting a running detector is a
// no-op. From the failed state, Start is the explicit retry path.
func (d *ToolDetector) Start() error {
	d.mu.Lock()
	switch d.state {
	case StateRunning, StateStarting:
		d.mu.Unlock()
		return nil
	}
	d.state = StateStarting
	d.stopCh = make(chan struct{})
	d.mu.Unlock()

	active, unavailable := d.resolveTools()

	d.mu.Lock()
	d.active = active
	d.unavailable = unavailable
	d.mu.Unlock()

	if len(active) == 0 {
		d.logger.Warn("no tools available, running in degraded mode",
			"unavailable", strings.Join(unavailable, ","))
	}

	if d.desc.Watch {
		if err := d.startWatcher(); err != nil {
			d.fail(err)
			return errors.NewDetectorError(d.desc.Name, "start", err)
		}
	}

	if d.desc.PollInterval > 0 {
		d.startPolling()
	}

	d.mu.Lock()
	d.state = StateRunning
	d.mu.Unlock()

	d.publish(event.NewDetectorStartedEvent(d.desc.Name, d.primaryTool()))
	d.logger.Info("detector started",
		"tools", len(active),
		"degraded", len(active) == 0)

	// One immediate detection pass, asynchronous so Start returns promptly.
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.runScan(context.Background(), "", false)
	}()

	return nil
}

// Stop implements Detector. Idempotent and safe from any state: kills any
// in-flight child process, cancels the watcher and pending timers.
func (d *ToolDetector) Stop() error {
	d.mu.Lock()
	if d.state == StateIdle || d.state == StateStopping {
		d.mu.Unlock()
		return nil
	}
	wasFailed := d.state == StateFailed
	d.state = StateStopping

	if d.scanCancel != nil {
		d.scanCancel()
	}
	if d.deferTimer != nil {
		d.deferTimer.Stop()
		d.deferTimer = nil
	}
	watcher := d.watcher
	d.watcher = nil
	if d.stopCh != nil {
		close(d.stopCh)
		d.stopCh = nil
	}
	d.mu.Unlock()

	if watcher != nil {
		watcher.Stop()
	}
	d.wg.Wait()

	d.mu.Lock()
	if wasFailed {
		// Failed stays failed; only an explicit Start retry clears it.
		d.state = StateFailed
	} else {
		d.state = StateIdle
	}
	d.mu.Unlock()

	if !wasFailed {
		d.publish(event.NewDetectorStoppedEvent(d.desc.Name))
	}
	d.logger.Info("detector stopped")
	return nil
}

// DetectErrors implements Detector. Auto-starts when not running. A full
// scan inside the throttle window reuses the buffered result instead of
// re-invoking the tools.
func (d *ToolDetector) DetectErrors(ctx context.Context, target string) ([]Record, error) {
	d.mu.Lock()
	state := d.state
	throttled := target == "" && !d.lastFull.IsZero() &&
		d.clock.Now().Sub(d.lastFull) < d.desc.Throttle
	d.mu.Unlock()

	if state != StateRunning {
		if err := d.Start(); err != nil {
			return nil, err
		}
		// The initial pass from Start covers the full-project case.
		throttled = false
	}

	if !throttled {
		if err := d.runScan(ctx, target, true); err != nil {
			return nil, err
		}
	}

	records := d.buffer.Snapshot()
	if target != "" {
		records = filterByTarget(records, target)
	}
	return records, nil
}

// resolveTools runs the availability probe and fallback chain for every
// candidate: project-local binary, then PATH. Candidates whose Relevant
// probe rejects the workspace are skipped silently; relevant candidates
// with no resolvable binary are reported unavailable.
func (d *ToolDetector) resolveTools() (active []activeTool, unavailable []string) {
	for _, c := range d.desc.Candidates {
		if c.Relevant != nil && !c.Relevant(d.root) {
			continue
		}

		if c.LocalPath != "" {
			local := filepath.Join(d.root, c.LocalPath)
			if info, err := os.Stat(local); err == nil && !info.IsDir() {
				active = append(active, activeTool{candidate: c, path: local})
				continue
			}
		}

		if path, err := d.runner.LookPath(c.Command); err == nil {
			active = append(active, activeTool{candidate: c, path: path})
			continue
		}

		d.logger.Debug("tool unavailable after fallback chain", "tool", c.Tool)
		unavailable = append(unavailable, c.Tool)
	}
	return active, unavailable
}

// startWatcher wires the debounced filesystem watcher to scan triggers.
func (d *ToolDetector) startWatcher() error {
	w, err := NewWatcher(d.root, d.desc.Debounce, d.onChanges)
	if err != nil {
		return errors.Join(errors.ErrWatchTargetMissing, err)
	}
	w.Start()

	d.mu.Lock()
	d.watcher = w
	d.mu.Unlock()
	return nil
}

// startPolling launches the interval re-scan loop.
func (d *ToolDetector) startPolling() {
	d.mu.Lock()
	stopCh := d.stopCh
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.desc.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				_ = d.runScan(context.Background(), "", false)
			}
		}
	}()
}

// onChanges handles a debounced batch of filesystem changes. A single
// changed file prefers a scoped re-scan; anything more becomes a full scan.
// Triggers inside the throttle window are deferred and coalesced into one
// scan that fires when the window closes.
func (d *ToolDetector) onChanges(batch []Change) {
	relevant := batch[:0]
	for _, c := range batch {
		if d.wantsChange(c.Path) {
			relevant = append(relevant, c)
		}
	}
	if len(relevant) == 0 {
		return
	}

	target := ""
	if len(relevant) == 1 && relevant[0].Kind != ChangeDeleted {
		target = relevant[0].Path
	}

	d.trigger(target)
}

// wantsChange applies the descriptor's extension filter to a changed path.
func (d *ToolDetector) wantsChange(path string) bool {
	if len(d.desc.WatchExtensions) == 0 {
		return true
	}
	for _, ext := range d.desc.WatchExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// trigger requests a scan, enforcing the throttle. At most one deferred
// scan is pending at any time; additional triggers inside the window only
// widen its scope.
func (d *ToolDetector) trigger(target string) {
	d.mu.Lock()
	if d.state != StateRunning {
		d.mu.Unlock()
		return
	}

	remaining := d.desc.Throttle - d.clock.Now().Sub(d.lastFull)
	if !d.lastFull.IsZero() && remaining > 0 {
		if d.deferTimer == nil {
			d.pendTarget = target
			d.deferTimer = time.AfterFunc(remaining, d.firePending)
		} else if d.pendTarget != target {
			// Two different scopes coalesce into one full scan.
			d.pendTarget = ""
		}
		d.mu.Unlock()
		return
	}
	// The Add happens inside the same critical section as the state check
	// so a concurrent Stop cannot slip between them and miss this scan.
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		_ = d.runScan(context.Background(), target, false)
	}()
}

// firePending runs the deferred scan scheduled by trigger. The timer fires
// on its own goroutine, so the scan joins the waitgroup under the state
// check for the same reason trigger does: Stop must not return while a
// deferred scan is in flight.
func (d *ToolDetector) firePending() {
	d.mu.Lock()
	d.deferTimer = nil
	target := d.pendTarget
	d.pendTarget = ""
	if d.state != StateRunning {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	_ = d.runScan(context.Background(), target, false)
}

// runScan serializes scan passes. A second trigger arriving mid-scan sets
// the rerun flag: exactly one follow-up scan runs after the current pass,
// never a queue of N. When wait is true and a scan is already in flight,
// the call blocks until that scan finishes instead of starting another.
func (d *ToolDetector) runScan(ctx context.Context, target string, wait bool) error {
	d.mu.Lock()
	if d.scanning {
		if !wait {
			// Only fire-and-forget triggers need a follow-up pass. A
			// waiting caller rides the in-flight scan and is satisfied by
			// its result; scheduling a rerun for it would double-invoke
			// the tools.
			d.rerun = true
			if d.rerunTarget != target {
				d.rerunTarget = ""
			}
			d.mu.Unlock()
			return nil
		}
		done := d.scanDone
		d.mu.Unlock()

		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	d.scanning = true
	d.scanDone = make(chan struct{})
	scanCtx, cancel := context.WithCancel(ctx)
	d.scanCancel = cancel
	done := d.scanDone
	d.mu.Unlock()

	count, scanErr := d.doScan(scanCtx, target)
	cancel()

	d.mu.Lock()
	d.scanning = false
	d.scanCancel = nil
	rerun := d.rerun
	rerunTarget := d.rerunTarget
	d.rerun = false
	d.rerunTarget = ""
	close(done)
	d.mu.Unlock()

	// Published after the in-flight flags clear so observers of this event
	// see a quiescent detector.
	d.publish(event.NewScanCompletedEvent(d.desc.Name, target, count, scanErr))

	if rerun {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			_ = d.runScan(context.Background(), rerunTarget, false)
		}()
	}
	return nil
}

// doScan performs one detection pass: invoke each active tool, parse its
// output into records, and buffer them. Invocation failures are contained
// here; a timeout or spawn failure yields partial or empty results, never
// an error out of the detector.
func (d *ToolDetector) doScan(ctx context.Context, target string) (int, error) {
	d.publish(event.NewScanStartedEvent(d.desc.Name, target))

	// A fresh full scan replaces everything from the previous run, and a
	// scoped pass replaces what it is about to re-check, so stale findings
	// never linger and repeated saves of one file never buffer clones of a
	// live finding.
	if target == "" {
		d.buffer.Clear()
	} else {
		d.buffer.RemoveMatching(func(r Record) bool {
			return strings.HasPrefix(r.File(), target)
		})
	}

	d.mu.Lock()
	tools := append([]activeTool(nil), d.active...)
	d.mu.Unlock()

	var scanErr error
	count := 0

	for _, tool := range tools {
		if ctx.Err() != nil {
			break
		}

		args := d.argsFor(tool.candidate, target)
		res, err := d.runner.Run(ctx, execx.Spec{
			Command: tool.path,
			Args:    args,
			Dir:     d.root,
			Timeout: d.desc.Timeout,
		})
		if err != nil {
			switch {
			case errors.IsTimeout(err):
				d.logger.Warn("tool timed out, partial results",
					"tool", tool.candidate.Tool,
					"timeout", d.desc.Timeout.String())
				scanErr = err
			case errors.IsSpawn(err):
				d.logger.Warn("tool vanished, demoting",
					"tool", tool.candidate.Tool)
				d.demote(tool.candidate.Tool)
			default:
				// Canceled: the detector is stopping.
			}
			continue
		}

		records := tool.candidate.Parse(ToolOutput{
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			ExitCode: res.ExitCode,
		}, d.root)
		d.buffer.AddAll(records)
		count += len(records)

		d.logger.Debug("tool pass complete",
			"tool", tool.candidate.Tool,
			"exit_code", res.ExitCode,
			"records", len(records),
			"duration", res.Duration.String())
	}

	// Degraded mode: no usable tool, fall back to the heuristic scan.
	if len(tools) == 0 && d.desc.Heuristic != nil && ctx.Err() == nil {
		records := d.desc.Heuristic.Run(ctx, d.root, target, d.desc.Kind)
		d.buffer.AddAll(records)
		count += len(records)
	}

	if target == "" {
		d.mu.Lock()
		d.lastFull = d.clock.Now()
		d.mu.Unlock()
	}

	return count, scanErr
}

// argsFor picks the scoped argument builder when the tool supports it.
func (d *ToolDetector) argsFor(c Candidate, target string) []string {
	if target != "" && c.FileArgs != nil {
		return c.FileArgs(d.root, target)
	}
	return c.FullArgs(d.root)
}

// demote moves a tool from active to unavailable after a spawn failure.
func (d *ToolDetector) demote(tool string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, at := range d.active {
		if at.candidate.Tool == tool {
			d.active = append(d.active[:i], d.active[i+1:]...)
			break
		}
	}
	for _, u := range d.unavailable {
		if u == tool {
			return
		}
	}
	d.unavailable = append(d.unavailable, tool)
}

// fail transitions to the failed state and publishes the structured cause.
func (d *ToolDetector) fail(cause error) {
	d.mu.Lock()
	d.state = StateFailed
	if d.stopCh != nil {
		close(d.stopCh)
		d.stopCh = nil
	}
	d.mu.Unlock()

	d.publish(event.NewDetectorFailedEvent(d.desc.Name, cause))
	d.logger.Error("detector failed", "error", cause.Error())
}

// primaryTool names the first resolved tool, for the started event.
func (d *ToolDetector) primaryTool() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.active) == 0 {
		return ""
	}
	return d.active[0].candidate.Tool
}

// publish sends an event if a bus is attached.
func (d *ToolDetector) publish(e event.Event) {
	if d.bus != nil {
		d.bus.Publish(e)
	}
}

// filterByTarget keeps records anchored under the target path.
func filterByTarget(records []Record, target string) []Record {
	var out []Record
	for _, r := range records {
		if strings.HasPrefix(r.File(), target) {
			out = append(out, r)
		}
	}
	return out
}
