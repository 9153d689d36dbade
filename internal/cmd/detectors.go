package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vigil-dev/vigil/internal/config"
)

var detectorsCmd = &cobra.Command{
	Use:   "detectors",
	Short: "List detectors and their tool availability",
	Long: `List every detector family, whether it is enabled, and which of its
external tools resolve on this machine.

Detectors probe their tool fallback chains on start, so this command
briefly starts the detector set to report real availability.`,
	RunE: runDetectors,
}

func init() {
	rootCmd.AddCommand(detectorsCmd)
}

func runDetectors(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	mgr, logger, err := buildManager(cfg, nil, false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	// Start to run the fallback chains, so availability is real rather
	// than declared.
	if err := mgr.Start(); err != nil {
		return fmt.Errorf("failed to start detection: %w", err)
	}
	defer func() { _ = mgr.Stop() }()

	width := terminalWidth()
	fmt.Println()
	fmt.Println(renderHeading("DETECTORS", width))

	for _, info := range mgr.ListDetectors() {
		status := "enabled"
		if !info.Enabled {
			status = "disabled"
		}
		fmt.Printf("%s (%s, %s)\n", headingStyle.Render(info.Name), status, info.State)

		unavailable := make(map[string]bool, len(info.Capabilities.UnavailableTools))
		for _, tool := range info.Capabilities.UnavailableTools {
			unavailable[tool] = true
		}
		for _, tool := range info.Capabilities.Tools {
			mark := "✓"
			note := ""
			if unavailable[tool] {
				mark = "✗"
				note = " (not found)"
			}
			fmt.Printf("  %s %s%s\n", mark, tool, note)
		}
		if len(info.Capabilities.Languages) > 0 {
			fmt.Printf("  languages: %s\n", strings.Join(info.Capabilities.Languages, ", "))
		}
		fmt.Println()
	}
	return nil
}
