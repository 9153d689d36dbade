package detect

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// HeuristicPattern is one line-oriented pattern the degraded text scan
// looks for when no external tool is usable.
type HeuristicPattern struct {
	Regex    *regexp.Regexp
	Kind     string
	Severity Severity
	Message  string
}

// defaultHeuristicPatterns covers language-agnostic problems that remain
// detectable by plain text scanning.
var defaultHeuristicPatterns = []HeuristicPattern{
	{
		Regex:    regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
		Kind:     "security",
		Severity: SeverityCritical,
		Message:  "possible API key committed to source",
	},
	{
		Regex:    regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`),
		Kind:     "security",
		Severity: SeverityCritical,
		Message:  "private key block committed to source",
	},
	{
		Regex:    regexp.MustCompile(`(?i)\b(?:password|passwd|secret)\s*=\s*"[^"]{4,}"`),
		Kind:     "security",
		Severity: SeverityHigh,
		Message:  "hardcoded credential assignment",
	},
	{
		Regex:    regexp.MustCompile(`\bFIXME\b`),
		Kind:     "fixme-marker",
		Severity: SeverityMedium,
		Message:  "FIXME marker left in source",
	},
}

// HeuristicScan is the degraded detection mode used when every tool in a
// detector's fallback chain is unavailable. It walks the workspace and
// matches line patterns under hard resource ceilings.
type HeuristicScan struct {
	// Patterns to match per line. Empty means defaultHeuristicPatterns.
	Patterns []HeuristicPattern
	// Extensions limits which files are visited, e.g. {".go", ".ts"}.
	// Empty means all text files.
	Extensions []string
	// MaxFiles caps files visited per scan.
	MaxFiles int
	// MaxFileSize caps bytes read per file.
	MaxFileSize int64
	// Budget is the wall-clock ceiling for one scan pass. The scan is
	// raced against it and returns partial results when it expires.
	Budget time.Duration
}

// Resource ceiling defaults.
const (
	defaultHeuristicMaxFiles = 2000
	defaultHeuristicMaxSize  = 512 * 1024
	defaultHeuristicBudget   = 10 * time.Second
)

// skipDirs are directories never worth scanning.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"dist":         true,
	".vigil":       true,
}

// Run performs the heuristic scan rooted at root, scoped to target when
// non-empty. It returns partial results if the budget expires mid-walk.
func (h *HeuristicScan) Run(ctx context.Context, root, target string, kind SourceKind) []Record {
	patterns := h.Patterns
	if len(patterns) == 0 {
		patterns = defaultHeuristicPatterns
	}
	maxFiles := h.MaxFiles
	if maxFiles <= 0 {
		maxFiles = defaultHeuristicMaxFiles
	}
	maxSize := h.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultHeuristicMaxSize
	}
	budget := h.Budget
	if budget <= 0 {
		budget = defaultHeuristicBudget
	}

	scanCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := root
	if target != "" {
		start = target
	}

	src := Source{Kind: kind, Tool: "heuristic"}
	var records []Record
	visited := 0

	_ = filepath.WalkDir(start, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // Skip unreadable entries, keep walking
		}
		if scanCtx.Err() != nil {
			return filepath.SkipAll
		}

		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		if !h.wantsFile(path) {
			return nil
		}
		if visited >= maxFiles {
			return filepath.SkipAll
		}
		visited++

		records = append(records, h.scanFile(path, maxSize, patterns, src)...)
		return nil
	})

	return records
}

// wantsFile applies the extension filter.
func (h *HeuristicScan) wantsFile(path string) bool {
	if len(h.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, e := range h.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// scanFile matches patterns line by line against at most maxSize bytes.
func (h *HeuristicScan) scanFile(path string, maxSize int64, patterns []HeuristicPattern, src Source) []Record {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxSize))
	if err != nil || !isLikelyText(data) {
		return nil
	}

	var records []Record
	lineNo := 0
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		for _, p := range patterns {
			loc := p.Regex.FindStringIndex(line)
			if loc == nil {
				continue
			}
			records = append(records, NewRecord(
				p.Message,
				p.Kind,
				p.Severity,
				frameAt(filepath.Clean(path), lineNo, loc[0]+1, line),
				src,
			))
		}
	}
	return records
}

// isLikelyText reports whether data looks like a text file rather than a
// binary blob.
func isLikelyText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	sample := data
	if len(sample) > 1024 {
		sample = sample[:1024]
	}
	for _, b := range sample {
		if b == 0 {
			return false
		}
	}
	return utf8.Valid(sample) || utf8.RuneCount(sample) > 0
}
