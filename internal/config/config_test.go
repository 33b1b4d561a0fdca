package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("{}"), "jitclass.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mode != ModeJIT {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeJIT)
	}
	if cfg.Ordering != OrderingExtending {
		t.Errorf("Ordering = %q, want %q", cfg.Ordering, OrderingExtending)
	}
	if cfg.MaxInferencePasses != DefaultMaxInferencePasses {
		t.Errorf("MaxInferencePasses = %d, want %d", cfg.MaxInferencePasses, DefaultMaxInferencePasses)
	}
	if cfg.Validation.MaxRecordSize != DefaultMaxRecordSize {
		t.Errorf("MaxRecordSize = %d, want %d", cfg.Validation.MaxRecordSize, DefaultMaxRecordSize)
	}
}

func TestParseConfigPackedMode(t *testing.T) {
	input := `
mode: packed
max_inference_passes: 3
annotate: true
validation:
  max_record_size: 64
  forbidden_attribute_names: [__dict__, __weakref__]
log:
  verbosity: 3
`
	cfg, err := ParseConfig([]byte(input), "jitclass.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Ordering != OrderingExtendingBySize {
		t.Errorf("packed mode should default to %q, got %q", OrderingExtendingBySize, cfg.Ordering)
	}
	if cfg.MaxInferencePasses != 3 || !cfg.Annotate || cfg.Log.Verbosity != 3 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if len(cfg.Validation.ForbiddenAttributeNames) != 2 {
		t.Errorf("forbidden names = %v", cfg.Validation.ForbiddenAttributeNames)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bad mode", "mode: autojit", "unknown mode"},
		{"bad ordering", "ordering: random", "unknown ordering"},
		{"negative passes", "max_inference_passes: -1", "must be positive"},
		{"duplicate forbidden", "validation:\n  forbidden_attribute_names: [a, a]", "duplicate"},
		{"bad yaml", "mode: [", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.input), "jitclass.yaml")
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadAndFindConfig(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte("store: layouts.db\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, err := FindConfig(sub)
	if err != nil {
		t.Fatalf("FindConfig: %v", err)
	}
	if found != path {
		t.Fatalf("FindConfig = %q, want %q", found, path)
	}

	cfg, err := LoadConfig(found)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store != filepath.Join(dir, "layouts.db") {
		t.Errorf("Store = %q, want path next to config", cfg.Store)
	}
}
