package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/vigil-dev/vigil/internal/detect"
	"github.com/vigil-dev/vigil/internal/util"
)

// Severity dot colors, matching the canonical scale.
var severityColors = map[detect.Severity]lipgloss.Color{
	detect.SeverityLow:      lipgloss.Color("8"),  // gray
	detect.SeverityMedium:   lipgloss.Color("12"), // blue
	detect.SeverityHigh:     lipgloss.Color("11"), // yellow
	detect.SeverityCritical: lipgloss.Color("9"),  // red
}

var (
	headingStyle  = lipgloss.NewStyle().Bold(true)
	locationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	toolStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	countStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

// terminalWidth returns the current terminal width, or a sane default when
// stdout is not a terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 100
}

// severityDot renders the colored severity marker.
func severityDot(s detect.Severity) string {
	return lipgloss.NewStyle().Foreground(severityColors[s]).Render("●")
}

// relPath shortens a finding's path relative to the workspace root.
func relPath(root, file string) string {
	if file == "" {
		return "(no location)"
	}
	if rel, err := filepath.Rel(root, file); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return file
}

// renderRecord formats one record as a single display line.
func renderRecord(root string, r detect.Record, width int) string {
	loc := relPath(root, r.File())
	if r.Line() > 0 {
		loc = fmt.Sprintf("%s:%d", loc, r.Line())
	}

	msg := r.Message
	// Budget: dot + space + location + space + message + tool tag
	avail := width - lipgloss.Width(loc) - len(r.Source.Tool) - 8
	if avail > 10 {
		msg = util.TruncateWidth(msg, avail)
	}

	return fmt.Sprintf("%s %s %s %s",
		severityDot(r.Severity),
		locationStyle.Render(loc),
		msg,
		toolStyle.Render("["+r.Source.Tool+"]"))
}

// renderTracked formats one deduplicated finding, with its occurrence count
// when it has been seen more than once.
func renderTracked(root string, tr detect.Tracked, width int) string {
	line := renderRecord(root, tr.Record, width)
	if tr.Occurrences > 1 {
		line += " " + countStyle.Render(fmt.Sprintf("(seen %dx)", tr.Occurrences))
	}
	return line
}

// renderHeading formats a section heading with a rule to the terminal edge.
func renderHeading(title string, width int) string {
	rule := width - lipgloss.Width(title) - 1
	if rule < 0 {
		rule = 0
	}
	return headingStyle.Render(title) + " " + strings.Repeat("─", rule)
}

// summarize renders a one-line severity breakdown.
func summarize(stats detect.Stats) string {
	if stats.Total == 0 {
		return "No problems detected."
	}
	parts := make([]string, 0, 4)
	for _, sev := range []detect.Severity{
		detect.SeverityCritical,
		detect.SeverityHigh,
		detect.SeverityMedium,
		detect.SeverityLow,
	} {
		if n := stats.BySeverity[sev.String()]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d %s", severityDot(sev), n, sev.String()))
		}
	}
	return fmt.Sprintf("%d findings: %s", stats.Total, strings.Join(parts, "  "))
}
