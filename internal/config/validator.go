package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "tools.timeout_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidSeverities returns the list of valid minimum severities
func ValidSeverities() []string {
	return []string{"low", "medium", "high", "critical"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateDetection()...)
	errors = append(errors, c.validateTools()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateDetection validates the DetectionConfig
func (c *Config) validateDetection() []ValidationError {
	var errors []ValidationError

	if c.Detection.BufferSize < 0 {
		errors = append(errors, ValidationError{
			Field:   "detection.buffer_size",
			Value:   c.Detection.BufferSize,
			Message: "must be non-negative (0 means default)",
		})
	}

	// Upper bound to keep the merged view and TUI responsive
	const maxBufferSize = 100000
	if c.Detection.BufferSize > maxBufferSize {
		errors = append(errors, ValidationError{
			Field:   "detection.buffer_size",
			Value:   c.Detection.BufferSize,
			Message: fmt.Sprintf("exceeds maximum of %d", maxBufferSize),
		})
	}

	if c.Detection.PollIntervalSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "detection.poll_interval_seconds",
			Value:   c.Detection.PollIntervalSeconds,
			Message: "must be non-negative (0 disables polling)",
		})
	}

	if c.Detection.MinSeverity != "" && !slices.Contains(ValidSeverities(), c.Detection.MinSeverity) {
		errors = append(errors, ValidationError{
			Field:   "detection.min_severity",
			Value:   c.Detection.MinSeverity,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidSeverities(), ", ")),
		})
	}

	for _, pattern := range c.Detection.ExcludeGlobs {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errors = append(errors, ValidationError{
				Field:   "detection.exclude_globs",
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	return errors
}

// validateTools validates the ToolsConfig
func (c *Config) validateTools() []ValidationError {
	var errors []ValidationError

	if c.Tools.TimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "tools.timeout_seconds",
			Value:   c.Tools.TimeoutSeconds,
			Message: "must be non-negative (0 means default)",
		})
	}

	// A scan pass that can run for more than ten minutes is misconfigured
	const maxTimeoutSeconds = 600
	if c.Tools.TimeoutSeconds > maxTimeoutSeconds {
		errors = append(errors, ValidationError{
			Field:   "tools.timeout_seconds",
			Value:   c.Tools.TimeoutSeconds,
			Message: fmt.Sprintf("exceeds maximum of %d", maxTimeoutSeconds),
		})
	}

	if c.Tools.ThrottleSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "tools.throttle_seconds",
			Value:   c.Tools.ThrottleSeconds,
			Message: "must be non-negative (0 means default)",
		})
	}

	if c.Tools.DebounceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "tools.debounce_ms",
			Value:   c.Tools.DebounceMs,
			Message: "must be non-negative (0 means default)",
		})
	}

	if c.Tools.HeuristicMaxFiles < 0 {
		errors = append(errors, ValidationError{
			Field:   "tools.heuristic_max_files",
			Value:   c.Tools.HeuristicMaxFiles,
			Message: "must be non-negative (0 means default)",
		})
	}

	if c.Tools.HeuristicMaxFileSizeKB < 0 {
		errors = append(errors, ValidationError{
			Field:   "tools.heuristic_max_file_size_kb",
			Value:   c.Tools.HeuristicMaxFileSizeKB,
			Message: "must be non-negative (0 means default)",
		})
	}

	if c.Tools.HeuristicBudgetSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "tools.heuristic_budget_seconds",
			Value:   c.Tools.HeuristicBudgetSeconds,
			Message: "must be non-negative (0 means default)",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
