package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigil-dev/vigil/internal/config"
	"github.com/vigil-dev/vigil/internal/detect"
)

var scanCmd = &cobra.Command{
	Use:   "scan [target]",
	Short: "Run a one-shot detection pass",
	Long: `Run every enabled detector once against the workspace and print the
findings, ordered by severity.

An optional target argument scopes the scan to a file or directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

var (
	scanSource string // Limit to a single detector source
	scanJSON   bool   // Output as JSON
)

func init() {
	scanCmd.Flags().StringVarP(&scanSource, "source", "s", "", "detector source: build, test, or static-analysis")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Output findings as JSON")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
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

	target := ""
	if len(args) == 1 {
		target = args[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*cfg.Tools.Timeout())
	defer cancel()

	records, err := mgr.Detect(ctx, detect.Options{Source: scanSource, Target: target})
	if err != nil {
		return err
	}

	if scanJSON {
		return printRecordsJSON(records)
	}
	printRecordsText(cfg.Workspace.ResolveRoot(), records)
	return nil
}

func printRecordsText(root string, records []detect.Record) {
	width := terminalWidth()

	if len(records) == 0 {
		fmt.Println("No problems detected.")
		return
	}

	fmt.Println()
	fmt.Println(renderHeading(fmt.Sprintf("FINDINGS (%d)", len(records)), width))
	for _, r := range records {
		fmt.Println(renderRecord(root, r, width))
	}
	fmt.Println()
}

// recordJSON is the stable JSON shape for a finding.
type recordJSON struct {
	ID       string `json:"id"`
	Message  string `json:"message"`
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	IDELevel string `json:"ide_level"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Source   string `json:"source"`
	Tool     string `json:"tool"`
	Detected string `json:"detected_at"`
}

func printRecordsJSON(records []detect.Record) error {
	out := make([]recordJSON, 0, len(records))
	for _, r := range records {
		rj := recordJSON{
			ID:       r.ID,
			Message:  r.Message,
			Kind:     r.Kind,
			Severity: r.Severity.String(),
			IDELevel: r.Severity.IDELevel(),
			File:     r.File(),
			Line:     r.Line(),
			Source:   string(r.Source.Kind),
			Tool:     r.Source.Tool,
			Detected: r.Context.CreatedAt.Format(time.RFC3339),
		}
		if len(r.Frames) > 0 {
			rj.Column = r.Frames[0].Location.Column
		}
		out = append(out, rj)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
