package config

// Presets are named starting configurations. Each returns a fresh copy so
// callers can mutate freely.
var presets = map[string]func() *Config{
	// Calm field: particles drift with weak coupling.
	"drift": func() *Config {
		cfg := Default()
		cfg.Gravity = 0.0
		cfg.Damping = 0.98
		return cfg
	},
	// The original gravity-box demo: particles rain through their own wake.
	"gravity-box": func() *Config {
		cfg := Default()
		cfg.Gravity = 0.01
		cfg.Damping = 0.95
		return cfg
	},
	// Diffusive field: cross seeds smear outward every tick.
	"smear": func() *Config {
		cfg := Default()
		cfg.DiffusePerTick = true
		cfg.SelfWeight = 0.0
		cfg.NeighborWeight = 0.25
		return cfg
	},
	// Small grid for quick experiments.
	"small": func() *Config {
		cfg := Default()
		cfg.GridWidth = 64
		cfg.GridHeight = 64
		return cfg
	},
}

// GetPreset returns a copy of the named preset, or nil when unknown.
func GetPreset(name string) *Config {
	fn, ok := presets[name]
	if !ok {
		return nil
	}
	return fn()
}

// ListPresets returns the available preset names.
func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	return names
}
