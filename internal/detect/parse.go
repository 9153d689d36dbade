package detect

import (
	"bufio"
	"encoding/json"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ToolOutput is the captured output of one tool invocation, handed to a
// parser. A non-zero exit code usually just means the tool found problems.
type ToolOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ParseFunc converts tool output into zero or more records. Unparseable
// lines are silently skipped, never surfaced as findings. root is the
// workspace root used to normalize relative paths.
type ParseFunc func(out ToolOutput, root string) []Record

// Tool diagnostic grammars. Each external tool's textual format is part of
// its contract; keeping every grammar in one isolated function per tool
// means a new tool version only touches its parser.
var (
	// go build / go vet: file.go:12:6: message (column optional)
	goDiagRe = regexp.MustCompile(`^(.+?\.go):(\d+)(?::(\d+))?: (.+)$`)

	// tsc: path/file.ts(12,5): error TS2322: message
	tscDiagRe = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): (error|warning) (TS\d+): (.+)$`)

	// cargo check --message-format short: src/main.rs:5:9: error[E0308]: message
	cargoDiagRe = regexp.MustCompile(`^(.+?\.rs):(\d+):(\d+): (error|warning)(?:\[(E\d+)\])?: (.+)$`)

	// golangci-lint: file.go:12:6: message (linter)
	golangciDiagRe = regexp.MustCompile(`^(.+?\.go):(\d+):(\d+): (.+?) \(([\w-]+)\)$`)

	// eslint --format unix: file.js:1:10: Missing semicolon. [Error/semi]
	eslintDiagRe = regexp.MustCompile(`^(.+?):(\d+):(\d+): (.+?) \[(Error|Warning)/(.+?)\]$`)

	// go test output anchor:     foo_test.go:12: boom
	goTestAnchorRe = regexp.MustCompile(`^\s*(.+?_test\.go):(\d+): ?(.*)$`)
)

// absPath normalizes a tool-reported path against the workspace root.
func absPath(root, path string) string {
	path = strings.TrimPrefix(path, "./")
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

// frameAt builds a single-frame stack for a file-anchored diagnostic.
func frameAt(file string, line, col int, raw string) []StackFrame {
	return []StackFrame{{
		Location: Location{File: file, Line: line, Column: col},
		RawLine:  raw,
	}}
}

// classifyGoMessage maps a Go compiler message to a record kind.
func classifyGoMessage(msg string) string {
	switch {
	case strings.HasPrefix(msg, "syntax error"):
		return "SyntaxError"
	case strings.HasPrefix(msg, "undefined:"),
		strings.Contains(msg, "cannot use "),
		strings.Contains(msg, "mismatched types"),
		strings.Contains(msg, "type "):
		return "TypeError"
	case strings.HasPrefix(msg, "cannot find "),
		strings.Contains(msg, "no required module"):
		return "ImportError"
	default:
		return "CompileError"
	}
}

// ParseGoBuild parses `go build` / `go vet` diagnostics from stderr.
func ParseGoBuild(out ToolOutput, root string) []Record {
	src := Source{Kind: KindBuild, Tool: "go"}
	var records []Record

	scanner := bufio.NewScanner(strings.NewReader(out.Stderr))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		m := goDiagRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		msg := m[4]
		records = append(records, NewRecord(
			msg,
			classifyGoMessage(msg),
			SeverityCritical,
			frameAt(absPath(root, m[1]), lineNo, col, line),
			src,
		))
	}
	return records
}

// ParseTsc parses `tsc --noEmit` diagnostics.
func ParseTsc(out ToolOutput, root string) []Record {
	src := Source{Kind: KindBuild, Tool: "tsc"}
	var records []Record

	scanner := bufio.NewScanner(strings.NewReader(out.Stdout + "\n" + out.Stderr))
	for scanner.Scan() {
		line := scanner.Text()
		m := tscDiagRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		severity := SeverityCritical
		if m[4] == "warning" {
			severity = SeverityHigh
		}
		kind := "TypeError"
		// TS1xxx codes are grammar-level diagnostics.
		if strings.HasPrefix(m[5], "TS1") {
			kind = "SyntaxError"
		}
		rec := NewRecord(m[6], kind, severity, frameAt(absPath(root, m[1]), lineNo, col, line), src)
		rec.Context.Metadata["code"] = m[5]
		records = append(records, rec)
	}
	return records
}

// ParseCargo parses `cargo check --message-format short` diagnostics.
func ParseCargo(out ToolOutput, root string) []Record {
	src := Source{Kind: KindBuild, Tool: "cargo"}
	var records []Record

	scanner := bufio.NewScanner(strings.NewReader(out.Stdout + "\n" + out.Stderr))
	for scanner.Scan() {
		line := scanner.Text()
		m := cargoDiagRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		severity := SeverityCritical
		if m[4] == "warning" {
			severity = SeverityHigh
		}
		rec := NewRecord(m[6], "CompileError", severity, frameAt(absPath(root, m[1]), lineNo, col, line), src)
		if m[5] != "" {
			rec.Context.Metadata["code"] = m[5]
		}
		records = append(records, rec)
	}
	return records
}

// goTestEvent is one line of `go test -json` output.
type goTestEvent struct {
	Action  string `json:"Action"`
	Package string `json:"Package"`
	Test    string `json:"Test"`
	Output  string `json:"Output"`
}

// ParseGoTest parses `go test -json` events into test-failure and
// test-skipped records. Output lines preceding a fail/skip event supply the
// file:line anchor and failure message for that test.
func ParseGoTest(out ToolOutput, root string) []Record {
	src := Source{Kind: KindTest, Tool: "go test"}
	var records []Record

	type pending struct {
		file    string
		line    int
		message string
		raw     string
	}
	collected := make(map[string]*pending)
	key := func(ev goTestEvent) string { return ev.Package + "/" + ev.Test }

	scanner := bufio.NewScanner(strings.NewReader(out.Stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev goTestEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		if ev.Test == "" {
			continue
		}

		switch ev.Action {
		case "output":
			m := goTestAnchorRe.FindStringSubmatch(strings.TrimRight(ev.Output, "\n"))
			if m == nil {
				continue
			}
			p := collected[key(ev)]
			if p == nil {
				p = &pending{}
				collected[key(ev)] = p
			}
			// Keep the first anchored line; it is the assertion site.
			if p.file == "" {
				p.file = m[1]
				p.line, _ = strconv.Atoi(m[2])
				p.message = m[3]
				p.raw = strings.TrimRight(ev.Output, "\n")
			}

		case "fail", "skip":
			p := collected[key(ev)]
			kind := "test-failure"
			severity := SeverityCritical
			if ev.Action == "skip" {
				kind = "test-skipped"
				severity = SeverityMedium
			}

			msg := ev.Test + " " + map[string]string{"fail": "failed", "skip": "skipped"}[ev.Action]
			var frames []StackFrame
			if p != nil && p.file != "" {
				if p.message != "" {
					msg = ev.Test + ": " + p.message
				}
				frames = []StackFrame{{
					Location: Location{File: absPath(root, p.file), Line: p.line},
					Symbol:   ev.Test,
					RawLine:  p.raw,
				}}
			}

			rec := NewRecord(msg, kind, severity, frames, src)
			rec.Context.Metadata["package"] = ev.Package
			rec.Context.Metadata["test"] = ev.Test
			records = append(records, rec)
			delete(collected, key(ev))
		}
	}
	return records
}

// ParseGolangciLint parses `golangci-lint run` default text output.
func ParseGolangciLint(out ToolOutput, root string) []Record {
	src := Source{Kind: KindStaticAnalysis, Tool: "golangci-lint"}
	var records []Record

	scanner := bufio.NewScanner(strings.NewReader(out.Stdout + "\n" + out.Stderr))
	for scanner.Scan() {
		line := scanner.Text()
		m := golangciDiagRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		linter := m[5]
		severity := SeverityHigh
		if linter == "gosec" {
			severity = SeverityCritical
		}
		rec := NewRecord(m[4], linter, severity, frameAt(absPath(root, m[1]), lineNo, col, line), src)
		records = append(records, rec)
	}
	return records
}

// ParseEslintUnix parses `eslint --format unix` output.
func ParseEslintUnix(out ToolOutput, root string) []Record {
	src := Source{Kind: KindStaticAnalysis, Tool: "eslint"}
	var records []Record

	scanner := bufio.NewScanner(strings.NewReader(out.Stdout))
	for scanner.Scan() {
		line := scanner.Text()
		m := eslintDiagRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		severity := SeverityHigh
		if m[5] == "Error" {
			severity = SeverityCritical
		}
		rec := NewRecord(m[4], m[6], severity, frameAt(absPath(root, m[1]), lineNo, col, line), src)
		records = append(records, rec)
	}
	return records
}
