package detect

import (
	"path/filepath"
	"time"
)

// Settings carries the tunables the manager pushes into descriptors from
// configuration. Zero values fall back to the per-field defaults below.
type Settings struct {
	// Timeout is the per-invocation wall-clock budget.
	Timeout time.Duration
	// Throttle is the minimum interval between full scans.
	Throttle time.Duration
	// Debounce is the file-event coalescing window.
	Debounce time.Duration
	// PollInterval enables interval re-scans when > 0.
	PollInterval time.Duration
	// Watch enables filesystem watching.
	Watch bool
	// HeuristicMaxFiles, HeuristicMaxFileSize, and HeuristicBudget are
	// the degraded-mode resource ceilings.
	HeuristicMaxFiles    int
	HeuristicMaxFileSize int64
	HeuristicBudget      time.Duration
}

const (
	defaultToolTimeout = 30 * time.Second
	defaultThrottle    = 10 * time.Second
	defaultDebounce    = 300 * time.Millisecond
)

func (s Settings) withDefaults() Settings {
	if s.Timeout <= 0 {
		s.Timeout = defaultToolTimeout
	}
	if s.Throttle <= 0 {
		s.Throttle = defaultThrottle
	}
	if s.Debounce <= 0 {
		s.Debounce = defaultDebounce
	}
	return s
}

func (s Settings) heuristic(extensions []string) *HeuristicScan {
	return &HeuristicScan{
		Extensions:  extensions,
		MaxFiles:    s.HeuristicMaxFiles,
		MaxFileSize: s.HeuristicMaxFileSize,
		Budget:      s.HeuristicBudget,
	}
}

// BuildDescriptor returns the build-error detector family: compilers and
// type checkers for the languages present in the workspace.
func BuildDescriptor(s Settings) Descriptor {
	s = s.withDefaults()
	return Descriptor{
		Name:      "build",
		Kind:      KindBuild,
		Languages: []string{"go", "typescript", "rust"},
		Candidates: []Candidate{
			{
				Tool:     "go",
				Command:  "go",
				Relevant: func(root string) bool { return fileExists(root, "go.mod") },
				FullArgs: func(root string) []string { return []string{"build", "./..."} },
				Parse:    ParseGoBuild,
			},
			{
				Tool:      "tsc",
				Command:   "tsc",
				LocalPath: filepath.Join("node_modules", ".bin", "tsc"),
				Relevant:  func(root string) bool { return fileExists(root, "tsconfig.json") },
				FullArgs:  func(root string) []string { return []string{"--noEmit", "--pretty", "false"} },
				FileArgs: func(root, file string) []string {
					return []string{"--noEmit", "--pretty", "false", file}
				},
				Parse: ParseTsc,
			},
			{
				Tool:     "cargo",
				Command:  "cargo",
				Relevant: func(root string) bool { return fileExists(root, "Cargo.toml") },
				FullArgs: func(root string) []string {
					return []string{"check", "--message-format", "short"}
				},
				Parse: ParseCargo,
			},
		},
		Heuristic:       s.heuristic([]string{".go", ".ts", ".tsx", ".rs"}),
		Timeout:         s.Timeout,
		Throttle:        s.Throttle,
		Debounce:        s.Debounce,
		PollInterval:    s.PollInterval,
		Watch:           s.Watch,
		WatchExtensions: []string{".go", ".ts", ".tsx", ".rs", ".mod", ".toml", ".json"},
	}
}

// TestDescriptor returns the test-failure detector family. It drives real
// test runners and parses their structured output; it never synthesizes
// results. When no runner is discoverable the capability is reported as
// unavailable and scans return empty sequences.
func TestDescriptor(s Settings) Descriptor {
	s = s.withDefaults()
	return Descriptor{
		Name:      "test",
		Kind:      KindTest,
		Languages: []string{"go"},
		Candidates: []Candidate{
			{
				Tool:     "go test",
				Command:  "go",
				Relevant: func(root string) bool { return fileExists(root, "go.mod") },
				FullArgs: func(root string) []string { return []string{"test", "-json", "./..."} },
				FileArgs: func(root, file string) []string {
					rel, err := filepath.Rel(root, filepath.Dir(file))
					if err != nil || rel == "" {
						rel = "."
					}
					return []string{"test", "-json", "./" + filepath.ToSlash(rel)}
				},
				Parse: ParseGoTest,
			},
		},
		// Test failures cannot be approximated by text scanning; degraded
		// mode reports empty results rather than fabricated ones.
		Heuristic:       nil,
		Timeout:         s.Timeout * 2,
		Throttle:        s.Throttle * 2,
		Debounce:        s.Debounce,
		PollInterval:    s.PollInterval,
		Watch:           s.Watch,
		WatchExtensions: []string{".go"},
	}
}

// StaticAnalysisDescriptor returns the static-analysis detector family:
// linters plus the language-agnostic heuristic text scan.
func StaticAnalysisDescriptor(s Settings) Descriptor {
	s = s.withDefaults()
	return Descriptor{
		Name:      "static-analysis",
		Kind:      KindStaticAnalysis,
		Languages: []string{"go", "javascript", "typescript"},
		Candidates: []Candidate{
			{
				Tool:    "golangci-lint",
				Command: "golangci-lint",
				Relevant: func(root string) bool {
					return fileExists(root, "go.mod") || fileExists(root, ".golangci.yml")
				},
				FullArgs: func(root string) []string { return []string{"run"} },
				FileArgs: func(root, file string) []string { return []string{"run", file} },
				Parse:    ParseGolangciLint,
			},
			{
				Tool:      "eslint",
				Command:   "eslint",
				LocalPath: filepath.Join("node_modules", ".bin", "eslint"),
				Relevant: func(root string) bool {
					return fileExists(root, "package.json")
				},
				FullArgs: func(root string) []string { return []string{"--format", "unix", "."} },
				FileArgs: func(root, file string) []string { return []string{"--format", "unix", file} },
				Parse:    ParseEslintUnix,
			},
		},
		Heuristic:       s.heuristic(nil),
		Timeout:         s.Timeout,
		Throttle:        s.Throttle,
		Debounce:        s.Debounce,
		PollInterval:    s.PollInterval,
		Watch:           s.Watch,
		WatchExtensions: nil, // any change can affect analysis findings
	}
}

// Descriptors returns the full set of known detector families keyed by name.
func Descriptors(s Settings) map[string]Descriptor {
	return map[string]Descriptor{
		"build":           BuildDescriptor(s),
		"test":            TestDescriptor(s),
		"static-analysis": StaticAnalysisDescriptor(s),
	}
}
