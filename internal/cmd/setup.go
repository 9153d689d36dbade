package cmd

import (
	"fmt"

	"github.com/vigil-dev/vigil/internal/config"
	"github.com/vigil-dev/vigil/internal/detect"
	"github.com/vigil-dev/vigil/internal/event"
	"github.com/vigil-dev/vigil/internal/logging"
)

// buildSettings maps configuration onto detector tunables. watch controls
// filesystem watching; scan-style commands leave it off.
func buildSettings(cfg *config.Config, watch bool) detect.Settings {
	return detect.Settings{
		Timeout:              cfg.Tools.Timeout(),
		Throttle:             cfg.Tools.Throttle(),
		Debounce:             cfg.Tools.Debounce(),
		PollInterval:         cfg.Detection.PollInterval(),
		Watch:                watch && cfg.Detection.Watch,
		HeuristicMaxFiles:    cfg.Tools.HeuristicMaxFiles,
		HeuristicMaxFileSize: cfg.Tools.HeuristicMaxFileSize(),
		HeuristicBudget:      cfg.Tools.HeuristicBudget(),
	}
}

// buildFilter compiles the findings filter from configuration.
func buildFilter(cfg *config.Config) (*detect.Filter, error) {
	minSev := detect.ParseSeverity(cfg.Detection.MinSeverity)
	f, err := detect.NewFilter(minSev, nil, cfg.Detection.ExcludeGlobs)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude glob: %w", err)
	}
	return f, nil
}

// buildLogger creates the file logger, or a nop logger when disabled.
func buildLogger(cfg *config.Config, root string) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	logger, err := logging.NewLogger(cfg.Logging.ResolveLogDir(root), cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logger, nil
}

// buildManager wires a Manager from loaded configuration. The returned
// logger must be closed by the caller.
func buildManager(cfg *config.Config, bus *event.Bus, watch bool) (*detect.Manager, *logging.Logger, error) {
	root := cfg.Workspace.ResolveRoot()

	logger, err := buildLogger(cfg, root)
	if err != nil {
		return nil, nil, err
	}

	filter, err := buildFilter(cfg)
	if err != nil {
		_ = logger.Close()
		return nil, nil, err
	}

	mgr := detect.NewManager(detect.ManagerOptions{
		Root:           root,
		Settings:       buildSettings(cfg, watch),
		Enabled:        cfg.Detection.EnabledSources(),
		Filter:         filter,
		Logger:         logger,
		Bus:            bus,
		BufferCapacity: cfg.Detection.BufferSize,
	})
	return mgr, logger, nil
}
