// Package config is the configuration collaborator: a yaml-backed settings
// document plus a keyed store the engine reads and subscribes to.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultGridWidth      = 640
	DefaultGridHeight     = 480
	DefaultCellSize       = 1.0
	DefaultSelfWeight     = 0.0
	DefaultNeighborWeight = 0.25
	DefaultDt             = 1.0
	DefaultGravity        = 0.01
	DefaultDamping        = 0.95
	DefaultDevice         = "sequential"
)

// Keys understood by the Store.
const (
	KeyGridWidth      = "grid_width"
	KeyGridHeight     = "grid_height"
	KeyCellSize       = "cell_size"
	KeySelfWeight     = "self_weight"
	KeyNeighborWeight = "neighbor_weight"
	KeyDevice         = "device"
	KeyDt             = "dt"
	KeyGravity        = "gravity"
	KeyDamping        = "damping"
	KeyDiffusePerTick = "diffuse_per_tick"
)

// Config is the persisted settings document.
type Config struct {
	GridWidth      int     `yaml:"grid_width"`
	GridHeight     int     `yaml:"grid_height"`
	CellSize       float64 `yaml:"cell_size"`
	SelfWeight     float64 `yaml:"self_weight"`
	NeighborWeight float64 `yaml:"neighbor_weight"`
	Device         string  `yaml:"device"`
	Dt             float64 `yaml:"dt"`
	Gravity        float64 `yaml:"gravity"`
	Damping        float64 `yaml:"damping"`
	DiffusePerTick bool    `yaml:"diffuse_per_tick"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		GridWidth:      DefaultGridWidth,
		GridHeight:     DefaultGridHeight,
		CellSize:       DefaultCellSize,
		SelfWeight:     DefaultSelfWeight,
		NeighborWeight: DefaultNeighborWeight,
		Device:         DefaultDevice,
		Dt:             DefaultDt,
		Gravity:        DefaultGravity,
		Damping:        DefaultDamping,
	}
}

// Load reads a yaml config file, filling missing keys from defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as yaml.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the ranges the engine depends on.
func (c *Config) Validate() error {
	if c.GridWidth < 1 || c.GridHeight < 1 {
		return fmt.Errorf("grid dimensions must be positive, got %dx%d", c.GridWidth, c.GridHeight)
	}
	if c.CellSize <= 0 {
		return fmt.Errorf("cell_size must be positive, got %f", c.CellSize)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", c.Dt)
	}
	if c.SelfWeight < 0 || c.SelfWeight > 10 || c.NeighborWeight < 0 || c.NeighborWeight > 10 {
		return fmt.Errorf("weights must lie in [0, 10], got self=%f neighbor=%f", c.SelfWeight, c.NeighborWeight)
	}
	if c.Device != "sequential" && c.Device != "accelerated" {
		return fmt.Errorf("unknown device %q", c.Device)
	}
	return nil
}
