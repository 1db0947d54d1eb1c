package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	FlushIntervalSec int `yaml:"flush_interval_sec"`

	Limits LimitsConfig `yaml:"limits"`
	Store  StoreConfig  `yaml:"store"`
	Audit  AuditConfig  `yaml:"audit"`
}

type LimitsConfig struct {
	MaxNestedDepth int `yaml:"max_nested_depth"`
	MaxChildren    int `yaml:"max_children"`
	MinEdge        int `yaml:"min_edge"`
	MaxEdge        int `yaml:"max_edge"`
	MinY           int `yaml:"min_y"`
	MaxY           int `yaml:"max_y"`
}

type StoreConfig struct {
	Path      string `yaml:"path"`
	BackupDir string `yaml:"backup_dir"`
}

type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Defaults() Config {
	return Config{
		FlushIntervalSec: 300,
		Limits: LimitsConfig{
			MaxNestedDepth: 3,
			MaxChildren:    8,
			MinEdge:        4,
			MaxEdge:        4096,
			MinY:           -64,
			MaxY:           320,
		},
		Store: StoreConfig{
			Path:      "./data/lands.db",
			BackupDir: "./data/backups",
		},
		Audit: AuditConfig{Enabled: true},
	}
}

// Load reads path over Defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("lands.yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("lands.yaml: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.FlushIntervalSec <= 0 {
		return fmt.Errorf("flush_interval_sec must be > 0")
	}
	l := c.Limits
	if l.MaxNestedDepth <= 0 || l.MaxChildren <= 0 {
		return fmt.Errorf("limits.max_nested_depth and limits.max_children must be > 0")
	}
	if l.MinEdge <= 0 || l.MaxEdge < l.MinEdge {
		return fmt.Errorf("limits.min_edge must be > 0 and <= limits.max_edge")
	}
	if l.MinY > l.MaxY {
		return fmt.Errorf("limits.min_y must be <= limits.max_y")
	}
	return nil
}

func (c Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSec) * time.Second
}
