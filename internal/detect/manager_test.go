package detect

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vigil-dev/vigil/internal/errors"
	"github.com/vigil-dev/vigil/internal/event"
	"github.com/vigil-dev/vigil/internal/execx"
)

const buildDiag = "main.go:3:1: undefined: x\n"
const testFailJSON = `{"Action":"fail","Package":"example.com/ws","Test":"TestBroken"}` + "\n"

// managerFixture wires a Manager over a fake runner where the go toolchain
// resolves, golangci-lint and eslint do not, and every scan is deterministic.
type managerFixture struct {
	dir       string
	runner    *execx.FakeRunner
	clock     *ManualClock
	bus       *event.Bus
	manager   *Manager
	updated   chan event.FindingsUpdatedEvent
	panicMode atomic.Bool
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/ws\n")

	f := &managerFixture{
		dir:     dir,
		clock:   NewManualClock(time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)),
		bus:     event.NewBus(),
		updated: make(chan event.FindingsUpdatedEvent, 32),
	}
	f.runner = &execx.FakeRunner{
		Binaries: []string{"go"},
		Handler: func(spec execx.Spec) execx.Outcome {
			if f.panicMode.Load() && spec.Args[0] == "build" {
				panic("tool handler exploded")
			}
			switch spec.Args[0] {
			case "build":
				return execx.Outcome{Result: execx.Result{Stderr: buildDiag, ExitCode: 1}}
			case "test":
				return execx.Outcome{Result: execx.Result{Stdout: testFailJSON, ExitCode: 1}}
			}
			return execx.Outcome{}
		},
	}
	f.bus.Subscribe(event.TypeFindingsUpdated, func(e event.Event) {
		if fu, ok := e.(event.FindingsUpdatedEvent); ok {
			f.updated <- fu
		}
	})

	f.manager = NewManager(ManagerOptions{
		Root: dir,
		Settings: Settings{
			Timeout:  5 * time.Second,
			Throttle: 10 * time.Second,
		},
		Runner: f.runner,
		Clock:  f.clock,
		Bus:    f.bus,
	})
	t.Cleanup(func() { _ = f.manager.Stop() })
	return f
}

func (f *managerFixture) startAndSettle(t *testing.T) {
	t.Helper()
	if err := f.manager.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// One initial scan per detector family.
	for i := 0; i < 3; i++ {
		select {
		case <-f.updated:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for initial scan %d of 3", i+1)
		}
	}
}

func TestManagerInitialScansPopulateFindings(t *testing.T) {
	f := newManagerFixture(t)
	f.startAndSettle(t)

	findings := f.manager.Findings()
	if len(findings) != 2 {
		t.Fatalf("got %d findings, want 2 (build diag + test failure)", len(findings))
	}

	stats := f.manager.Stats()
	if stats.Total != 2 {
		t.Errorf("stats.Total = %d, want 2", stats.Total)
	}
	if stats.BySource["build"] != 1 || stats.BySource["test"] != 1 {
		t.Errorf("BySource = %v", stats.BySource)
	}
	if stats.BySeverity["critical"] != 2 {
		t.Errorf("BySeverity = %v, want 2 critical", stats.BySeverity)
	}
}

func TestManagerDetectRejectsBadSources(t *testing.T) {
	f := newManagerFixture(t)

	// Before Start every request is rejected.
	if _, err := f.manager.Detect(context.Background(), Options{}); !errors.Is(err, errors.ErrManagerStopped) {
		t.Errorf("Detect before Start: %v, want ErrManagerStopped", err)
	}

	f.startAndSettle(t)

	_, err := f.manager.Detect(context.Background(), Options{Source: "nonsense"})
	if !errors.Is(err, errors.ErrUnknownSource) {
		t.Errorf("unknown source: %v, want ErrUnknownSource", err)
	}
	if !errors.IsCallerFacing(err) {
		t.Errorf("rejection not caller-facing: %v", err)
	}
}

func TestManagerDetectSingleSourceBuffered(t *testing.T) {
	f := newManagerFixture(t)
	f.startAndSettle(t)

	records, err := f.manager.Detect(context.Background(), Options{
		Source:          "build",
		IncludeBuffered: true,
	})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(records) != 1 || records[0].Source.Kind != KindBuild {
		t.Fatalf("records = %+v, want the single build diagnostic", records)
	}
}

func TestManagerDedupAcrossScans(t *testing.T) {
	f := newManagerFixture(t)
	f.startAndSettle(t)

	// Force a fresh build scan past the throttle; the same diagnostic comes
	// back and must fold into the existing finding.
	f.clock.Advance(time.Minute)
	if _, err := f.manager.Detect(context.Background(), Options{Source: "build"}); err != nil {
		t.Fatalf("Detect: %v", err)
	}

	for _, tr := range f.manager.Findings() {
		if tr.Record.Source.Kind != KindBuild {
			continue
		}
		if tr.Occurrences != 2 {
			t.Errorf("build finding Occurrences = %d, want 2", tr.Occurrences)
		}
		return
	}
	t.Fatal("build finding missing from aggregate")
}

func TestManagerFanOutIsolatesPanics(t *testing.T) {
	f := newManagerFixture(t)
	f.startAndSettle(t)

	f.clock.Advance(time.Minute)
	f.panicMode.Store(true)

	records, err := f.manager.Detect(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	// The build detector blew up mid-scan; the test detector's results
	// must still come through.
	sawTest := false
	for _, r := range records {
		if r.Source.Kind == KindTest {
			sawTest = true
		}
	}
	if !sawTest {
		t.Errorf("fan-out lost surviving detector results: %+v", records)
	}
}

func TestManagerApplyConfigDisablesSource(t *testing.T) {
	f := newManagerFixture(t)
	f.startAndSettle(t)

	err := f.manager.ApplyConfig(map[string]bool{
		"build":           false,
		"test":            true,
		"static-analysis": true,
	}, nil)
	if err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}

	if _, err := f.manager.Detect(context.Background(), Options{Source: "build"}); !errors.Is(err, errors.ErrSourceDisabled) {
		t.Errorf("disabled source: %v, want ErrSourceDisabled", err)
	}

	// The disabled detector's findings leave the aggregate.
	for _, tr := range f.manager.Findings() {
		if tr.Record.Source.Kind == KindBuild {
			t.Errorf("build finding survived disable: %+v", tr.Record)
		}
	}

	for _, info := range f.manager.ListDetectors() {
		if info.Name == "build" {
			if info.Enabled {
				t.Error("build still reported enabled")
			}
			if info.State != StateIdle {
				t.Errorf("build state = %v, want idle after disable", info.State)
			}
		}
	}
}

func TestManagerApplyConfigReenablesSource(t *testing.T) {
	f := newManagerFixture(t)
	f.startAndSettle(t)

	disable := map[string]bool{"build": false, "test": true, "static-analysis": true}
	if err := f.manager.ApplyConfig(disable, nil); err != nil {
		t.Fatalf("disable: %v", err)
	}

	enable := map[string]bool{"build": true, "test": true, "static-analysis": true}
	if err := f.manager.ApplyConfig(enable, nil); err != nil {
		t.Fatalf("re-enable: %v", err)
	}

	// Re-enabling restarts the detector, which runs its initial scan.
	select {
	case <-f.updated:
	case <-time.After(5 * time.Second):
		t.Fatal("re-enabled detector never scanned")
	}

	if _, err := f.manager.Detect(context.Background(), Options{Source: "build", IncludeBuffered: true}); err != nil {
		t.Errorf("Detect after re-enable: %v", err)
	}
}

func TestManagerListDetectors(t *testing.T) {
	f := newManagerFixture(t)

	infos := f.manager.ListDetectors()
	if len(infos) != 3 {
		t.Fatalf("got %d detectors, want 3", len(infos))
	}
	wantOrder := []string{"build", "static-analysis", "test"}
	for i, info := range infos {
		if info.Name != wantOrder[i] {
			t.Errorf("infos[%d].Name = %q, want %q", i, info.Name, wantOrder[i])
		}
		if !info.Enabled {
			t.Errorf("%s disabled by default", info.Name)
		}
		if info.State != StateIdle {
			t.Errorf("%s state = %v before Start, want idle", info.Name, info.State)
		}
	}
}

func TestManagerFilterNarrowsResults(t *testing.T) {
	f := newManagerFixture(t)

	filter, err := NewFilter(SeverityLow, []SourceKind{KindTest}, nil)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if err := f.manager.ApplyConfig(nil, filter); err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}
	f.startAndSettle(t)

	records, err := f.manager.Detect(context.Background(), Options{IncludeBuffered: true})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	for _, r := range records {
		if r.Source.Kind != KindTest {
			t.Errorf("filter leaked %v record", r.Source.Kind)
		}
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want just the test failure", len(records))
	}
}

func TestManagerStopIdempotent(t *testing.T) {
	f := newManagerFixture(t)
	f.startAndSettle(t)

	if err := f.manager.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := f.manager.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
	if _, err := f.manager.Detect(context.Background(), Options{}); !errors.Is(err, errors.ErrManagerStopped) {
		t.Errorf("Detect after Stop: %v, want ErrManagerStopped", err)
	}
}
