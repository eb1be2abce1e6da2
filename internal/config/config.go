// Package config loads the thin set of engine defaults a host process
// needs before constructing an engine: sample rate, channel budget,
// reverb amount, and the project roots a loader would search. Nothing
// here reaches into the engine's per-tick state.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EngineDefaults is passed straight into engine.New / the post-New
// setters; it never changes once the engine is constructed.
type EngineDefaults struct {
	SampleRate     float32  `yaml:"sample_rate"`
	MaxPCMChannels int      `yaml:"max_pcm_channels"`
	ReverbAmount   uint8    `yaml:"reverb_amount"`
	AnalogFilter   bool     `yaml:"analog_filter"`
	ProjectRoots   []string `yaml:"project_roots"`
}

// Default returns the engine's documented neutral defaults.
func Default() EngineDefaults {
	return EngineDefaults{
		SampleRate:     44100,
		MaxPCMChannels: 5,
		ReverbAmount:   0,
		AnalogFilter:   true,
	}
}

// Load reads a YAML config file, starting from Default() and overriding
// whatever fields the file sets.
func Load(path string) (EngineDefaults, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.MaxPCMChannels < 1 || cfg.MaxPCMChannels > 12 {
		return cfg, fmt.Errorf("config: max_pcm_channels must be 1..12, got %d", cfg.MaxPCMChannels)
	}
	return cfg, nil
}
