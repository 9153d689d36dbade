package detect

// Stats summarizes the aggregate view. Computed on demand from a snapshot,
// never maintained incrementally, so it cannot drift from the findings.
type Stats struct {
	// Total is the number of deduplicated findings.
	Total int
	// Observations is the sum of occurrence counts across findings.
	Observations int
	// BySource counts findings per source kind.
	BySource map[string]int
	// ByTool counts findings per producing tool.
	ByTool map[string]int
	// ByKind counts findings per record kind.
	ByKind map[string]int
	// BySeverity counts findings per canonical severity name.
	BySeverity map[string]int
}

// ComputeStats derives summary statistics from a findings snapshot.
func ComputeStats(findings []Tracked) Stats {
	s := Stats{
		BySource:   make(map[string]int),
		ByTool:     make(map[string]int),
		ByKind:     make(map[string]int),
		BySeverity: make(map[string]int),
	}
	for _, t := range findings {
		s.Total++
		s.Observations += t.Occurrences
		s.BySource[string(t.Record.Source.Kind)]++
		s.ByTool[t.Record.Source.Tool]++
		s.ByKind[t.Record.Kind]++
		s.BySeverity[t.Record.Severity.String()]++
	}
	return s
}
