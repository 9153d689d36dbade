package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vigil-dev/vigil/internal/config"
	"github.com/vigil-dev/vigil/internal/detect"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show findings statistics for the workspace",
	Long: `Run a detection pass and display summary statistics: totals per
source, per tool, per kind, and per severity.`,
	RunE: runStats,
}

var (
	statsJSON bool // Output as JSON
)

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	mgr, logger, err := buildManager(cfg, nil, false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	if err := mgr.Start(); err != nil {
		return fmt.Errorf("failed to start detection: %w", err)
	}
	defer func() { _ = mgr.Stop() }()

	ctx, cancel := context.WithTimeout(context.Background(), 3*cfg.Tools.Timeout())
	defer cancel()

	if _, err := mgr.Detect(ctx, detect.Options{}); err != nil {
		return err
	}
	stats := mgr.Stats()

	if statsJSON {
		return printStatsJSON(stats)
	}
	printStatsText(stats)
	return nil
}

func printStatsText(stats detect.Stats) {
	width := terminalWidth()

	fmt.Println()
	fmt.Println(renderHeading("SUMMARY", width))
	fmt.Println(summarize(stats))
	if stats.Observations > stats.Total {
		fmt.Printf("%d total observations across %d distinct findings\n", stats.Observations, stats.Total)
	}
	fmt.Println()

	printBreakdown := func(title string, counts map[string]int) {
		if len(counts) == 0 {
			return
		}
		fmt.Println(renderHeading(title, width))
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		// Largest bucket first, name as tiebreaker
		sort.Slice(keys, func(i, j int) bool {
			if counts[keys[i]] != counts[keys[j]] {
				return counts[keys[i]] > counts[keys[j]]
			}
			return keys[i] < keys[j]
		})
		for _, k := range keys {
			fmt.Printf("  %-24s %d\n", k, counts[k])
		}
		fmt.Println()
	}

	printBreakdown("BY SOURCE", stats.BySource)
	printBreakdown("BY TOOL", stats.ByTool)
	printBreakdown("BY KIND", stats.ByKind)
}

func printStatsJSON(stats detect.Stats) error {
	out := struct {
		Total        int            `json:"total"`
		Observations int            `json:"observations"`
		BySource     map[string]int `json:"by_source"`
		ByTool       map[string]int `json:"by_tool"`
		ByKind       map[string]int `json:"by_kind"`
		BySeverity   map[string]int `json:"by_severity"`
	}{
		Total:        stats.Total,
		Observations: stats.Observations,
		BySource:     stats.BySource,
		ByTool:       stats.ByTool,
		ByKind:       stats.ByKind,
		BySeverity:   stats.BySeverity,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
