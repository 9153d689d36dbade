package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vigil-dev/vigil/internal/config"
	"github.com/vigil-dev/vigil/internal/detect"
)

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}

	if rootCmd.Use != "vigil" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "vigil")
	}

	// Check for expected subcommands (compare by Name(), not Use which includes args)
	expectedCmds := []string{"scan", "watch", "detectors", "stats", "config"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}

	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestDefaultConfigTemplateLoads(t *testing.T) {
	// The template written by `vigil config init` must survive a full
	// load-and-validate round trip with the same values as Default().
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if err := runConfigInit(configInitCmd, nil); err != nil {
		t.Fatalf("config init: %v", err)
	}

	path := filepath.Join(dir, "vigil", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template not written: %v", err)
	}

	viper.Reset()
	defer viper.Reset()
	config.SetDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("template is not valid YAML: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("template failed validation: %v", err)
	}
	def := config.Default()
	if cfg.Tools != def.Tools {
		t.Errorf("template tool settings drifted from defaults: %+v != %+v", cfg.Tools, def.Tools)
	}
	if cfg.Detection.BufferSize != def.Detection.BufferSize {
		t.Errorf("BufferSize = %d, want %d", cfg.Detection.BufferSize, def.Detection.BufferSize)
	}
	if cfg.Detection.MinSeverity != def.Detection.MinSeverity {
		t.Errorf("MinSeverity = %q, want %q", cfg.Detection.MinSeverity, def.Detection.MinSeverity)
	}
	if cfg.Logging.Level != def.Logging.Level {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, def.Logging.Level)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if err := runConfigInit(configInitCmd, nil); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if err := runConfigInit(configInitCmd, nil); err == nil {
		t.Fatal("second init overwrote an existing config file")
	}
}

func TestConfigDocumentRoundTrips(t *testing.T) {
	doc := configDocument(config.Default())

	out, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back map[string]any
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, section := range []string{"workspace", "detection", "tools", "logging"} {
		if _, ok := back[section]; !ok {
			t.Errorf("section %q missing from config dump", section)
		}
	}
}

func TestBuildSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.TimeoutSeconds = 60
	cfg.Detection.PollIntervalSeconds = 30

	s := buildSettings(cfg, true)
	if s.Timeout.Seconds() != 60 {
		t.Errorf("Timeout = %v, want 60s", s.Timeout)
	}
	if s.PollInterval.Seconds() != 30 {
		t.Errorf("PollInterval = %v, want 30s", s.PollInterval)
	}
	if !s.Watch {
		t.Error("Watch should be on for watch commands")
	}

	// Scan-style commands never watch, regardless of config
	s = buildSettings(cfg, false)
	if s.Watch {
		t.Error("Watch should be off for one-shot commands")
	}
}

func TestBuildFilterRejectsBadGlobs(t *testing.T) {
	cfg := config.Default()
	cfg.Detection.ExcludeGlobs = []string{"[unclosed"}

	if _, err := buildFilter(cfg); err == nil {
		t.Fatal("invalid glob accepted")
	}
}

func TestRelPath(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"/ws/pkg/main.go", filepath.Join("pkg", "main.go")},
		{"/elsewhere/main.go", "/elsewhere/main.go"},
		{"", "(no location)"},
	}
	for _, tt := range tests {
		if got := relPath("/ws", tt.file); got != tt.want {
			t.Errorf("relPath(/ws, %q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	empty := summarize(detect.Stats{BySeverity: map[string]int{}})
	if empty != "No problems detected." {
		t.Errorf("empty summary = %q", empty)
	}

	s := summarize(detect.Stats{
		Total:      3,
		BySeverity: map[string]int{"critical": 2, "low": 1},
	})
	if !strings.Contains(s, "3 findings") {
		t.Errorf("summary missing total: %q", s)
	}
	if !strings.Contains(s, "2 critical") || !strings.Contains(s, "1 low") {
		t.Errorf("summary missing breakdown: %q", s)
	}
}
