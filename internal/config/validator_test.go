package config

import (
	"strings"
	"testing"
)

func TestValidate_DefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default config has %d validation errors: %v", len(errs), ValidationErrors(errs))
	}
}

func TestValidate_Detection(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "negative buffer size",
			mutate:    func(c *Config) { c.Detection.BufferSize = -1 },
			wantField: "detection.buffer_size",
		},
		{
			name:      "buffer size above ceiling",
			mutate:    func(c *Config) { c.Detection.BufferSize = 1000001 },
			wantField: "detection.buffer_size",
		},
		{
			name:      "negative poll interval",
			mutate:    func(c *Config) { c.Detection.PollIntervalSeconds = -5 },
			wantField: "detection.poll_interval_seconds",
		},
		{
			name:      "unknown min severity",
			mutate:    func(c *Config) { c.Detection.MinSeverity = "catastrophic" },
			wantField: "detection.min_severity",
		},
		{
			name:      "invalid exclude glob",
			mutate:    func(c *Config) { c.Detection.ExcludeGlobs = []string{"[unclosed"} },
			wantField: "detection.exclude_globs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("expected validation errors, got none")
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %q in %v", tt.wantField, errs)
			}
		})
	}
}

func TestValidate_Tools(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "negative timeout",
			mutate:    func(c *Config) { c.Tools.TimeoutSeconds = -1 },
			wantField: "tools.timeout_seconds",
		},
		{
			name:      "timeout above ceiling",
			mutate:    func(c *Config) { c.Tools.TimeoutSeconds = 601 },
			wantField: "tools.timeout_seconds",
		},
		{
			name:      "negative throttle",
			mutate:    func(c *Config) { c.Tools.ThrottleSeconds = -1 },
			wantField: "tools.throttle_seconds",
		},
		{
			name:      "negative debounce",
			mutate:    func(c *Config) { c.Tools.DebounceMs = -1 },
			wantField: "tools.debounce_ms",
		},
		{
			name:      "negative heuristic max files",
			mutate:    func(c *Config) { c.Tools.HeuristicMaxFiles = -1 },
			wantField: "tools.heuristic_max_files",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("expected validation errors, got none")
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("errs[0].Field = %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestValidate_Logging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "verbose"

	errs := cfg.Validate()
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if errs[0].Field != "logging.level" {
		t.Errorf("Field = %q, want logging.level", errs[0].Field)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	none := ValidationErrors{}
	if none.Error() != "" {
		t.Errorf("empty errors produced %q", none.Error())
	}

	one := ValidationErrors{{Field: "a.b", Value: 1, Message: "bad"}}
	if !strings.Contains(one.Error(), "a.b") {
		t.Errorf("single error missing field: %q", one.Error())
	}
	if strings.Contains(one.Error(), "validation errors") {
		t.Errorf("single error used multi-error header: %q", one.Error())
	}

	two := ValidationErrors{
		{Field: "a.b", Value: 1, Message: "bad"},
		{Field: "c.d", Value: 2, Message: "worse"},
	}
	msg := two.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("multi-error header missing: %q", msg)
	}
	if !strings.Contains(msg, "c.d") {
		t.Errorf("second error missing: %q", msg)
	}
}
