package detect

import (
	"github.com/gobwas/glob"
)

// Filter narrows the findings the manager reports. The zero value passes
// everything.
type Filter struct {
	// MinSeverity drops findings below this severity.
	MinSeverity Severity
	// Kinds limits findings to these source kinds. Empty means all.
	Kinds []SourceKind
	// excludes drops findings whose file matches any compiled glob.
	excludes []glob.Glob
}

// NewFilter compiles a filter. Invalid glob patterns are rejected so a bad
// config entry fails loudly at load time instead of silently matching
// nothing.
func NewFilter(minSeverity Severity, kinds []SourceKind, excludeGlobs []string) (*Filter, error) {
	f := &Filter{MinSeverity: minSeverity, Kinds: kinds}
	for _, pattern := range excludeGlobs {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		f.excludes = append(f.excludes, g)
	}
	return f, nil
}

// Pass reports whether a record survives the filter.
func (f *Filter) Pass(r Record) bool {
	if f == nil {
		return true
	}
	if r.Severity < f.MinSeverity {
		return false
	}
	if len(f.Kinds) > 0 {
		ok := false
		for _, k := range f.Kinds {
			if r.Source.Kind == k {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	file := r.File()
	for _, g := range f.excludes {
		if g.Match(file) {
			return false
		}
	}
	return true
}

// Apply returns the findings that survive the filter.
func (f *Filter) Apply(findings []Tracked) []Tracked {
	if f == nil {
		return findings
	}
	out := findings[:0:0]
	for _, t := range findings {
		if f.Pass(t.Record) {
			out = append(out, t)
		}
	}
	return out
}
