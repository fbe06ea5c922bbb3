package runlog

import (
	"fmt"
	"path/filepath"
)

// Config selects the run log backend.
type Config struct {
	// Backend is one of "", "none", "jsonl", "rotating" or "sqlite".
	Backend    string `json:"backend" yaml:"backend"`
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// SetDefaults fills rotation limits and the default path.
func (c *Config) SetDefaults() {
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = filepath.Join("data", "runs.db")
		case "jsonl", "rotating":
			c.Path = filepath.Join("data", "runs.jsonl")
		}
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 30
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case "", "none", "jsonl", "rotating", "sqlite":
		return nil
	default:
		return fmt.Errorf("runlog: unknown backend %q", c.Backend)
	}
}

// Open returns the store selected by cfg.
func Open(cfg Config) (Store, error) {
	cfg.SetDefaults()
	switch cfg.Backend {
	case "", "none":
		return NopStore{}, nil
	case "jsonl":
		return NewJSONLStore(cfg.Path)
	case "rotating":
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("runlog: unknown backend %q", cfg.Backend)
	}
}
