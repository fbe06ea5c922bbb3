package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/caresched/core/factory"
	"github.com/kilianp07/caresched/core/metrics"
	"github.com/kilianp07/caresched/core/runlog"
	"github.com/kilianp07/caresched/infra/mqtt"
)

type Config struct {
	Grid      GridConfig           `json:"grid"`
	Scheduler SchedulerConfig      `json:"scheduler"`
	Solver    factory.ModuleConfig `json:"solver"`
	Metrics   metrics.Config       `json:"metrics"`
	RunLog    runlog.Config        `json:"runlog"`
	MQTT      mqtt.Config          `json:"mqtt"`
	HTTP      HTTPConfig           `json:"http"`
}

// Load reads path (yaml or json), then applies K_ prefixed environment
// overrides where "__" separates nesting levels, e.g. K_GRID__OPEN=08:00.
// A .env file in the working directory is loaded first when present. An
// empty path yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Grid.SetDefaults()
	c.Scheduler.SetDefaults()
	c.RunLog.SetDefaults()
	c.HTTP.SetDefaults()
	if c.MQTT.Enabled() {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section and reports the first failure.
func (c Config) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return fmt.Errorf("grid: %w", err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if m := c.Scheduler.SlotMinutes; m != 0 && m != c.Grid.GranularityMinutes {
		return fmt.Errorf("scheduler: slot_minutes %d differs from grid granularity %d", m, c.Grid.GranularityMinutes)
	}
	if err := c.RunLog.Validate(); err != nil {
		return err
	}
	if c.MQTT.Enabled() {
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	}
	return nil
}
