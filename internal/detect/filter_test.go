package detect

import "testing"

func TestFilterMinSeverity(t *testing.T) {
	f, err := NewFilter(SeverityHigh, nil, nil)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}

	if f.Pass(anchoredRecord("low", "/ws/a.go", 1, SeverityMedium)) {
		t.Error("medium passed a high floor")
	}
	if !f.Pass(anchoredRecord("high", "/ws/a.go", 1, SeverityHigh)) {
		t.Error("high rejected by a high floor")
	}
	if !f.Pass(anchoredRecord("crit", "/ws/a.go", 1, SeverityCritical)) {
		t.Error("critical rejected by a high floor")
	}
}

func TestFilterKinds(t *testing.T) {
	f, err := NewFilter(SeverityLow, []SourceKind{KindBuild}, nil)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}

	build := anchoredRecord("b", "/ws/a.go", 1, SeverityHigh)
	if !f.Pass(build) {
		t.Error("build record rejected by build-only filter")
	}

	test := NewRecord("t", "test-failure", SeverityCritical, nil, Source{Kind: KindTest, Tool: "go test"})
	if f.Pass(test) {
		t.Error("test record passed a build-only filter")
	}
}

func TestFilterExcludeGlobs(t *testing.T) {
	f, err := NewFilter(SeverityLow, nil, []string{"**/*_gen.go", "/ws/vendor/**"})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}

	if f.Pass(anchoredRecord("gen", "/ws/pkg/types_gen.go", 1, SeverityCritical)) {
		t.Error("generated file not excluded")
	}
	if f.Pass(anchoredRecord("vendored", "/ws/vendor/dep/a.go", 1, SeverityCritical)) {
		t.Error("vendored file not excluded")
	}
	if !f.Pass(anchoredRecord("own", "/ws/pkg/types.go", 1, SeverityCritical)) {
		t.Error("non-matching file excluded")
	}
}

func TestFilterInvalidGlobRejected(t *testing.T) {
	if _, err := NewFilter(SeverityLow, nil, []string{"[unclosed"}); err == nil {
		t.Fatal("invalid glob accepted")
	}
}

func TestNilFilterPassesEverything(t *testing.T) {
	var f *Filter
	if !f.Pass(anchoredRecord("x", "/ws/a.go", 1, SeverityLow)) {
		t.Error("nil filter rejected a record")
	}
}

func TestFilterApply(t *testing.T) {
	f, err := NewFilter(SeverityHigh, nil, nil)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}

	in := []Tracked{
		{Record: anchoredRecord("keep", "/ws/a.go", 1, SeverityCritical)},
		{Record: anchoredRecord("drop", "/ws/a.go", 2, SeverityLow)},
	}
	out := f.Apply(in)
	if len(out) != 1 || out[0].Record.Message != "keep" {
		t.Errorf("Apply kept %d findings, want just the critical one", len(out))
	}
}
