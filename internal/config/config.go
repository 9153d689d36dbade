package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Vigil configuration
type Config struct {
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Detection DetectionConfig `mapstructure:"detection"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// WorkspaceConfig controls which directory tree is watched and scanned
type WorkspaceConfig struct {
	// Root is the workspace root to scan. Empty means the current directory.
	Root string `mapstructure:"root"`
}

// DetectionConfig controls the detector set and the findings view
type DetectionConfig struct {
	// Sources toggles individual detector families
	Sources SourcesConfig `mapstructure:"sources"`
	// BufferSize is the per-detector record buffer capacity (default: 500)
	BufferSize int `mapstructure:"buffer_size"`
	// PollIntervalSeconds re-scans on an interval when > 0 (default: 0, disabled)
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	// Watch enables filesystem watching in watch mode (default: true)
	Watch bool `mapstructure:"watch"`
	// ExcludeGlobs drops findings whose file matches any pattern
	// Examples: ["**/*_gen.go", "**/vendor/**"]
	ExcludeGlobs []string `mapstructure:"exclude_globs"`
	// MinSeverity drops findings below this severity
	// Options: "low", "medium", "high", "critical" (default: "low")
	MinSeverity string `mapstructure:"min_severity"`
}

// SourcesConfig toggles the detector families
type SourcesConfig struct {
	// Build enables the build-error detector (default: true)
	Build bool `mapstructure:"build"`
	// Test enables the test-failure detector (default: true)
	Test bool `mapstructure:"test"`
	// StaticAnalysis enables the static-analysis detector (default: true)
	StaticAnalysis bool `mapstructure:"static_analysis"`
}

// ToolsConfig controls external tool invocation
type ToolsConfig struct {
	// TimeoutSeconds is the per-invocation wall-clock budget (default: 30)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// ThrottleSeconds is the minimum interval between full scans (default: 10)
	ThrottleSeconds int `mapstructure:"throttle_seconds"`
	// DebounceMs is the file-event coalescing window in milliseconds (default: 300)
	DebounceMs int `mapstructure:"debounce_ms"`
	// HeuristicMaxFiles caps files visited per degraded-mode scan (default: 2000)
	HeuristicMaxFiles int `mapstructure:"heuristic_max_files"`
	// HeuristicMaxFileSizeKB caps bytes read per file in kilobytes (default: 512)
	HeuristicMaxFileSizeKB int `mapstructure:"heuristic_max_file_size_kb"`
	// HeuristicBudgetSeconds is the wall-clock ceiling per degraded-mode scan (default: 10)
	HeuristicBudgetSeconds int `mapstructure:"heuristic_budget_seconds"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the log directory. Empty means "<workspace>/.vigil"
	Dir string `mapstructure:"dir"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Root: "",
		},
		Detection: DetectionConfig{
			Sources: SourcesConfig{
				Build:          true,
				Test:           true,
				StaticAnalysis: true,
			},
			BufferSize:          500,
			PollIntervalSeconds: 0, // Disabled by default; watch mode covers liveness
			Watch:               true,
			ExcludeGlobs:        []string{},
			MinSeverity:         "low",
		},
		Tools: ToolsConfig{
			TimeoutSeconds:         30,
			ThrottleSeconds:        10,
			DebounceMs:             300,
			HeuristicMaxFiles:      2000,
			HeuristicMaxFileSizeKB: 512,
			HeuristicBudgetSeconds: 10,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "",
		},
	}
}

// Timeout returns the tool timeout as a time.Duration
func (t *ToolsConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// Throttle returns the scan throttle as a time.Duration
func (t *ToolsConfig) Throttle() time.Duration {
	return time.Duration(t.ThrottleSeconds) * time.Second
}

// Debounce returns the debounce window as a time.Duration
func (t *ToolsConfig) Debounce() time.Duration {
	return time.Duration(t.DebounceMs) * time.Millisecond
}

// HeuristicBudget returns the heuristic scan budget as a time.Duration
func (t *ToolsConfig) HeuristicBudget() time.Duration {
	return time.Duration(t.HeuristicBudgetSeconds) * time.Second
}

// HeuristicMaxFileSize returns the per-file size ceiling in bytes
func (t *ToolsConfig) HeuristicMaxFileSize() int64 {
	return int64(t.HeuristicMaxFileSizeKB) * 1024
}

// PollInterval returns the poll interval as a time.Duration (0 means disabled)
func (d *DetectionConfig) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalSeconds) * time.Second
}

// EnabledSources returns the source enablement map keyed by detector name
func (d *DetectionConfig) EnabledSources() map[string]bool {
	return map[string]bool{
		"build":           d.Sources.Build,
		"test":            d.Sources.Test,
		"static-analysis": d.Sources.StaticAnalysis,
	}
}

// ResolveRoot returns the workspace root, defaulting to the current
// directory and resolving to an absolute path.
func (w *WorkspaceConfig) ResolveRoot() string {
	root := w.Root
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return root
	}
	return abs
}

// ResolveLogDir returns the log directory, defaulting to .vigil under the
// workspace root.
func (l *LoggingConfig) ResolveLogDir(root string) string {
	if l.Dir != "" {
		if filepath.IsAbs(l.Dir) {
			return l.Dir
		}
		return filepath.Join(root, l.Dir)
	}
	return filepath.Join(root, ".vigil")
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Workspace defaults
	viper.SetDefault("workspace.root", defaults.Workspace.Root)

	// Detection defaults
	viper.SetDefault("detection.sources.build", defaults.Detection.Sources.Build)
	viper.SetDefault("detection.sources.test", defaults.Detection.Sources.Test)
	viper.SetDefault("detection.sources.static_analysis", defaults.Detection.Sources.StaticAnalysis)
	viper.SetDefault("detection.buffer_size", defaults.Detection.BufferSize)
	viper.SetDefault("detection.poll_interval_seconds", defaults.Detection.PollIntervalSeconds)
	viper.SetDefault("detection.watch", defaults.Detection.Watch)
	viper.SetDefault("detection.exclude_globs", defaults.Detection.ExcludeGlobs)
	viper.SetDefault("detection.min_severity", defaults.Detection.MinSeverity)

	// Tools defaults
	viper.SetDefault("tools.timeout_seconds", defaults.Tools.TimeoutSeconds)
	viper.SetDefault("tools.throttle_seconds", defaults.Tools.ThrottleSeconds)
	viper.SetDefault("tools.debounce_ms", defaults.Tools.DebounceMs)
	viper.SetDefault("tools.heuristic_max_files", defaults.Tools.HeuristicMaxFiles)
	viper.SetDefault("tools.heuristic_max_file_size_kb", defaults.Tools.HeuristicMaxFileSizeKB)
	viper.SetDefault("tools.heuristic_budget_seconds", defaults.Tools.HeuristicBudgetSeconds)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vigil")
	}
	// Fall back to ~/.config/vigil
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vigil"
	}
	return filepath.Join(home, ".config", "vigil")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
