package detect

import (
	"strings"
	"testing"
)

func TestParseGoBuild(t *testing.T) {
	stderr := strings.Join([]string{
		"# example.com/pkg",
		"main.go:10:2: undefined: fooBar",
		"util.go:3:1: syntax error: unexpected }",
		"random noise that matches nothing",
		"",
	}, "\n")

	records := ParseGoBuild(ToolOutput{Stderr: stderr, ExitCode: 1}, "/ws")
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	if records[0].File() != "/ws/main.go" || records[0].Line() != 10 {
		t.Errorf("records[0] anchored at %s:%d, want /ws/main.go:10", records[0].File(), records[0].Line())
	}
	if records[0].Kind != "TypeError" {
		t.Errorf("records[0].Kind = %q, want TypeError", records[0].Kind)
	}
	if records[1].Kind != "SyntaxError" {
		t.Errorf("records[1].Kind = %q, want SyntaxError", records[1].Kind)
	}
	for i, r := range records {
		if r.Severity != SeverityCritical {
			t.Errorf("records[%d].Severity = %v, want critical", i, r.Severity)
		}
		if r.Source.Tool != "go" || r.Source.Kind != KindBuild {
			t.Errorf("records[%d].Source = %+v", i, r.Source)
		}
	}
}

func TestParseGoBuildColumnOptional(t *testing.T) {
	records := ParseGoBuild(ToolOutput{Stderr: "main.go:7: cannot find package"}, "/ws")
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	loc := records[0].Frames[0].Location
	if loc.Line != 7 || loc.Column != 0 {
		t.Errorf("location = %d:%d, want 7:0", loc.Line, loc.Column)
	}
	if records[0].Kind != "ImportError" {
		t.Errorf("Kind = %q, want ImportError", records[0].Kind)
	}
}

func TestParseTsc(t *testing.T) {
	stdout := strings.Join([]string{
		"src/app.ts(5,10): error TS2322: Type 'string' is not assignable to type 'number'.",
		"src/app.ts(9,1): error TS1005: ';' expected.",
		"src/util.ts(2,3): warning TS6133: 'x' is declared but never read.",
	}, "\n")

	records := ParseTsc(ToolOutput{Stdout: stdout, ExitCode: 2}, "/ws")
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].Kind != "TypeError" || records[0].Severity != SeverityCritical {
		t.Errorf("records[0] = kind %q severity %v", records[0].Kind, records[0].Severity)
	}
	if records[1].Kind != "SyntaxError" {
		t.Errorf("records[1].Kind = %q, want SyntaxError for TS1xxx", records[1].Kind)
	}
	if records[2].Severity != SeverityHigh {
		t.Errorf("records[2].Severity = %v, want high for warning", records[2].Severity)
	}
	if got := records[0].Context.Metadata["code"]; got != "TS2322" {
		t.Errorf("metadata code = %q, want TS2322", got)
	}
}

func TestParseCargo(t *testing.T) {
	stderr := strings.Join([]string{
		"src/main.rs:5:9: error[E0308]: mismatched types",
		"src/lib.rs:12:1: warning: unused variable: `x`",
	}, "\n")

	records := ParseCargo(ToolOutput{Stderr: stderr, ExitCode: 101}, "/ws")
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Severity != SeverityCritical {
		t.Errorf("error severity = %v, want critical", records[0].Severity)
	}
	if got := records[0].Context.Metadata["code"]; got != "E0308" {
		t.Errorf("metadata code = %q, want E0308", got)
	}
	if records[1].Severity != SeverityHigh {
		t.Errorf("warning severity = %v, want high", records[1].Severity)
	}
	if records[1].Context.Metadata["code"] != "" {
		t.Errorf("codeless warning got metadata code %q", records[1].Context.Metadata["code"])
	}
}

func TestParseGoTest(t *testing.T) {
	stdout := strings.Join([]string{
		`{"Action":"run","Package":"example.com/pkg","Test":"TestAdd"}`,
		`{"Action":"output","Package":"example.com/pkg","Test":"TestAdd","Output":"=== RUN   TestAdd\n"}`,
		`{"Action":"output","Package":"example.com/pkg","Test":"TestAdd","Output":"    add_test.go:14: got 3, want 4\n"}`,
		`{"Action":"fail","Package":"example.com/pkg","Test":"TestAdd","Elapsed":0.01}`,
		`{"Action":"output","Package":"example.com/pkg","Test":"TestSkip","Output":"    add_test.go:30: short mode\n"}`,
		`{"Action":"skip","Package":"example.com/pkg","Test":"TestSkip"}`,
		`{"Action":"pass","Package":"example.com/pkg","Test":"TestOK"}`,
		`{"Action":"fail","Package":"example.com/pkg"}`,
	}, "\n")

	records := ParseGoTest(ToolOutput{Stdout: stdout, ExitCode: 1}, "/ws")
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (fail + skip, no package-level event)", len(records))
	}

	fail := records[0]
	if fail.Kind != "test-failure" || fail.Severity != SeverityCritical {
		t.Errorf("fail record = kind %q severity %v", fail.Kind, fail.Severity)
	}
	if fail.Message != "TestAdd: got 3, want 4" {
		t.Errorf("fail message = %q", fail.Message)
	}
	if fail.File() != "/ws/add_test.go" || fail.Line() != 14 {
		t.Errorf("fail anchored at %s:%d, want /ws/add_test.go:14", fail.File(), fail.Line())
	}
	if fail.Frames[0].Symbol != "TestAdd" {
		t.Errorf("fail symbol = %q, want TestAdd", fail.Frames[0].Symbol)
	}

	skip := records[1]
	if skip.Kind != "test-skipped" || skip.Severity != SeverityMedium {
		t.Errorf("skip record = kind %q severity %v", skip.Kind, skip.Severity)
	}
	if skip.Context.Metadata["test"] != "TestSkip" {
		t.Errorf("skip metadata test = %q", skip.Context.Metadata["test"])
	}
}

func TestParseGoTestFailWithoutAnchor(t *testing.T) {
	stdout := `{"Action":"fail","Package":"example.com/pkg","Test":"TestNoOutput"}`

	records := ParseGoTest(ToolOutput{Stdout: stdout, ExitCode: 1}, "/ws")
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Message != "TestNoOutput failed" {
		t.Errorf("message = %q, want fallback", records[0].Message)
	}
	if len(records[0].Frames) != 0 {
		t.Errorf("got %d frames, want none", len(records[0].Frames))
	}
}

func TestParseGolangciLint(t *testing.T) {
	stdout := strings.Join([]string{
		"pkg/server.go:42:5: G404: Use of weak random number generator (gosec)",
		"pkg/util.go:7:2: ineffectual assignment to err (ineffassign)",
	}, "\n")

	records := ParseGolangciLint(ToolOutput{Stdout: stdout, ExitCode: 1}, "/ws")
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Severity != SeverityCritical {
		t.Errorf("gosec severity = %v, want critical", records[0].Severity)
	}
	if records[0].Kind != "gosec" {
		t.Errorf("records[0].Kind = %q, want linter name", records[0].Kind)
	}
	if records[1].Severity != SeverityHigh {
		t.Errorf("ineffassign severity = %v, want high", records[1].Severity)
	}
}

func TestParseEslintUnix(t *testing.T) {
	stdout := strings.Join([]string{
		"src/app.js:1:10: Missing semicolon. [Error/semi]",
		"src/app.js:4:1: Unexpected console statement. [Warning/no-console]",
	}, "\n")

	records := ParseEslintUnix(ToolOutput{Stdout: stdout, ExitCode: 1}, "/ws")
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Severity != SeverityCritical || records[0].Kind != "semi" {
		t.Errorf("records[0] = kind %q severity %v", records[0].Kind, records[0].Severity)
	}
	if records[1].Severity != SeverityHigh || records[1].Kind != "no-console" {
		t.Errorf("records[1] = kind %q severity %v", records[1].Kind, records[1].Severity)
	}
}

func TestParsersSkipGarbage(t *testing.T) {
	garbage := ToolOutput{Stdout: "total garbage\n\x00\xff\nnot a diagnostic", Stderr: "more garbage"}
	parsers := map[string]ParseFunc{
		"go":       ParseGoBuild,
		"tsc":      ParseTsc,
		"cargo":    ParseCargo,
		"golangci": ParseGolangciLint,
		"eslint":   ParseEslintUnix,
		"gotest":   ParseGoTest,
	}
	for name, parse := range parsers {
		if got := parse(garbage, "/ws"); len(got) != 0 {
			t.Errorf("%s: parsed %d records from garbage, want 0", name, len(got))
		}
	}
}
