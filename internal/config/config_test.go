package config

import (
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.GridWidth != DefaultGridWidth || cfg.GridHeight != DefaultGridHeight {
		t.Errorf("unexpected default grid %dx%d", cfg.GridWidth, cfg.GridHeight)
	}
	if cfg.Device != "sequential" {
		t.Errorf("expected sequential default device, got %s", cfg.Device)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width", func(c *Config) { c.GridWidth = 0 }},
		{"negative height", func(c *Config) { c.GridHeight = -1 }},
		{"zero cell size", func(c *Config) { c.CellSize = 0 }},
		{"zero dt", func(c *Config) { c.Dt = 0 }},
		{"negative self weight", func(c *Config) { c.SelfWeight = -0.1 }},
		{"huge neighbor weight", func(c *Config) { c.NeighborWeight = 11 }},
		{"unknown device", func(c *Config) { c.Device = "quantum" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.GridWidth = 32
	cfg.Gravity = 0.5
	cfg.DiffusePerTick = true

	if err := Save(path, cfg); err != nil {
		t.Fatalf("saving config: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if got.GridWidth != 32 || got.Gravity != 0.5 || !got.DiffusePerTick {
		t.Errorf("roundtrip lost values: %+v", got)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("small")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.GridWidth != 64 || cfg.GridHeight != 64 {
		t.Errorf("small preset grid %dx%d", cfg.GridWidth, cfg.GridHeight)
	}

	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	if len(names) == 0 {
		t.Fatal("expected presets")
	}
	found := false
	for _, n := range names {
		if n == "gravity-box" {
			found = true
		}
	}
	if !found {
		t.Error("gravity-box preset missing")
	}
}
