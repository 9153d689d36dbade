// Package util provides small shared helpers used across the codebase.
package util

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Truncate shortens a string to maxLen runes, appending "..." when it had
// to cut. It counts runes, not columns, so it is wrong for styled terminal
// output. Use TruncateWidth for anything that went through lipgloss.
func Truncate(s string, maxLen int) string {
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// TruncateWidth shortens a string to maxWidth visual columns, appending
// "..." when it had to cut. ANSI escape sequences and wide characters are
// measured correctly, so styled output keeps its styling.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	// ansi.Truncate counts the tail toward the final width
	return ansi.Truncate(s, maxWidth, "...")
}
