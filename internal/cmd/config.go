package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vigil-dev/vigil/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or create Vigil configuration",
	Long: `View or create Vigil configuration.

Without arguments, displays the current effective configuration.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/vigil/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("# config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("# config file: (none - using defaults)\n")
	}

	out, err := yaml.Marshal(configDocument(cfg))
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

// configDocument lays the config out under its canonical keys so the YAML
// dump round-trips through Load.
func configDocument(cfg *config.Config) map[string]any {
	return map[string]any{
		"workspace": map[string]any{
			"root": cfg.Workspace.Root,
		},
		"detection": map[string]any{
			"sources": map[string]any{
				"build":           cfg.Detection.Sources.Build,
				"test":            cfg.Detection.Sources.Test,
				"static_analysis": cfg.Detection.Sources.StaticAnalysis,
			},
			"buffer_size":           cfg.Detection.BufferSize,
			"poll_interval_seconds": cfg.Detection.PollIntervalSeconds,
			"watch":                 cfg.Detection.Watch,
			"exclude_globs":         cfg.Detection.ExcludeGlobs,
			"min_severity":          cfg.Detection.MinSeverity,
		},
		"tools": map[string]any{
			"timeout_seconds":            cfg.Tools.TimeoutSeconds,
			"throttle_seconds":           cfg.Tools.ThrottleSeconds,
			"debounce_ms":                cfg.Tools.DebounceMs,
			"heuristic_max_files":        cfg.Tools.HeuristicMaxFiles,
			"heuristic_max_file_size_kb": cfg.Tools.HeuristicMaxFileSizeKB,
			"heuristic_budget_seconds":   cfg.Tools.HeuristicBudgetSeconds,
		},
		"logging": map[string]any{
			"enabled": cfg.Logging.Enabled,
			"level":   cfg.Logging.Level,
			"dir":     cfg.Logging.Dir,
		},
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Generate a commented config file
	configContent := `# Vigil Configuration

# Workspace settings
workspace:
  # Root directory to watch and scan (empty = current directory)
  root: ""

# Detection settings
detection:
  # Toggle individual detector families
  sources:
    build: true
    test: true
    static_analysis: true
  # Per-detector record buffer capacity
  buffer_size: 500
  # Re-scan on an interval in seconds (0 = disabled)
  poll_interval_seconds: 0
  # React to filesystem changes in watch mode
  watch: true
  # Drop findings whose file matches any of these globs
  # Example: ["**/*_gen.go", "**/vendor/**"]
  exclude_globs: []
  # Drop findings below this severity: low, medium, high, critical
  min_severity: low

# External tool invocation settings
tools:
  # Per-invocation wall-clock budget in seconds
  timeout_seconds: 30
  # Minimum interval between full scans in seconds
  throttle_seconds: 10
  # File-event coalescing window in milliseconds
  debounce_ms: 300
  # Degraded-mode text scan ceilings
  heuristic_max_files: 2000
  heuristic_max_file_size_kb: 512
  heuristic_budget_seconds: 10

# Logging settings
logging:
  enabled: true
  # Log level: debug, info, warn, error
  level: info
  # Log directory (empty = <workspace>/.vigil)
  dir: ""
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Default path: %s (not created)\n", configFile)
	}

	fmt.Println("\nSearch paths:")
	fmt.Printf("  1. %s\n", config.ConfigFile())
	fmt.Printf("  2. $HOME/.config/vigil/config.yaml\n")
	fmt.Printf("  3. ./config.yaml (current directory)\n")
	fmt.Println("\nEnvironment variables: VIGIL_* (e.g., VIGIL_TOOLS_TIMEOUT_SECONDS)")

	return nil
}
