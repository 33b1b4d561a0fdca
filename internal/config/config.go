package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the jitclass.yaml compiler configuration.
type Config struct {
	// Mode selects the strategy set used by the extension compiler
	// ("jit" or "packed"). Defaults to "jit".
	Mode string `yaml:"mode,omitempty"`

	// Ordering overrides the attribute ordering policy of the mode
	// ("extending" or "extending_by_size").
	Ordering string `yaml:"ordering,omitempty"`

	// MaxInferencePasses bounds the attribute/method inference loop.
	MaxInferencePasses int `yaml:"max_inference_passes,omitempty"`

	// Annotate captures emitted instructions per source line for every
	// compiled method.
	Annotate bool `yaml:"annotate,omitempty"`

	// Validation configures the built-in validator hooks.
	Validation Validation `yaml:"validation,omitempty"`

	// Store is the path of a SQLite database finalized layouts are written
	// to. Empty disables persistence. Relative to the config file.
	Store string `yaml:"store,omitempty"`

	Log Log `yaml:"log,omitempty"`
}

// Validation holds the limits checked by the layout validators.
type Validation struct {
	// MaxRecordSize is the largest native attribute record allowed, in bytes.
	MaxRecordSize int `yaml:"max_record_size,omitempty"`

	// ForbiddenAttributeNames may not be used as attribute names.
	ForbiddenAttributeNames []string `yaml:"forbidden_attribute_names,omitempty"`
}

type Log struct {
	// Verbosity follows commonlog: 0 errors only, 1 warnings, 2 info, 3+ debug.
	Verbosity int `yaml:"verbosity,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses a jitclass.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data, path)
	if err != nil {
		return nil, err
	}
	if cfg.Store != "" && !filepath.IsAbs(cfg.Store) {
		cfg.Store = filepath.Join(filepath.Dir(path), cfg.Store)
	}
	return cfg, nil
}

// ParseConfig parses jitclass.yaml content from bytes.
// The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.setDefaults()
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindConfig searches for jitclass.yaml starting from dir and walking up
// to parent directories. Returns an empty path when none exists.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (c *Config) setDefaults() {
	if c.Mode == "" {
		c.Mode = DefaultMode
	}
	if c.Ordering == "" {
		if c.Mode == ModePacked {
			c.Ordering = OrderingExtendingBySize
		} else {
			c.Ordering = DefaultOrdering
		}
	}
	if c.MaxInferencePasses == 0 {
		c.MaxInferencePasses = DefaultMaxInferencePasses
	}
	if c.Validation.MaxRecordSize == 0 {
		c.Validation.MaxRecordSize = DefaultMaxRecordSize
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	switch c.Mode {
	case ModeJIT, ModePacked:
	default:
		return fmt.Errorf("%s: unknown mode %q (want %q or %q)", path, c.Mode, ModeJIT, ModePacked)
	}

	switch c.Ordering {
	case OrderingExtending, OrderingExtendingBySize:
	default:
		return fmt.Errorf("%s: unknown ordering %q", path, c.Ordering)
	}

	if c.MaxInferencePasses < 1 {
		return fmt.Errorf("%s: max_inference_passes must be positive, got %d", path, c.MaxInferencePasses)
	}

	if c.Validation.MaxRecordSize < 0 {
		return fmt.Errorf("%s: validation.max_record_size must not be negative", path)
	}

	seen := make(map[string]bool)
	for i, name := range c.Validation.ForbiddenAttributeNames {
		if name == "" {
			return fmt.Errorf("%s: validation.forbidden_attribute_names[%d] is empty", path, i)
		}
		if seen[name] {
			return fmt.Errorf("%s: validation.forbidden_attribute_names: duplicate %q", path, name)
		}
		seen[name] = true
	}
	return nil
}
