// Package config loads engine settings from a YAML file, falling back to
// defaults for anything unset.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	History  History  `yaml:"history"`
	Epsilons Epsilons `yaml:"epsilons"`
	Mesh     Mesh     `yaml:"mesh"`
	Material Material `yaml:"material"`
}

// History sets the undo depth per editing domain.
type History struct {
	SceneDepth int `yaml:"scene_depth"`
	GraphDepth int `yaml:"graph_depth"`
}

// Epsilons are the no-op suppression thresholds for transform deltas.
type Epsilons struct {
	Translation float64 `yaml:"translation"` // model units
	Angle       float64 `yaml:"angle"`       // radians
	Scale       float64 `yaml:"scale"`       // unitless factor
}

// Mesh controls tessellation quality.
type Mesh struct {
	Cells        int `yaml:"cells"`         // marching-cubes resolution per axis
	CurveSamples int `yaml:"curve_samples"` // tessellation samples per curve
}

// Material sets fallback material behavior.
type Material struct {
	// DefaultDensity, when positive, is used (mass per cubic model unit)
	// for entities whose metadata names no density. Zero leaves mass
	// properties unset.
	DefaultDensity float64 `yaml:"default_density"`
}

// Default returns the standard configuration.
func Default() Config {
	return Config{
		History:  History{SceneDepth: 60, GraphDepth: 40},
		Epsilons: Epsilons{Translation: 1e-6, Angle: 1e-4, Scale: 1e-6},
		Mesh:     Mesh{Cells: 120, CurveSamples: 64},
	}
}

// Load reads a YAML config file over the defaults. A missing file is not
// an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.History.SceneDepth < 1 || c.History.GraphDepth < 1 {
		return fmt.Errorf("config: history depths must be >= 1")
	}
	if c.Epsilons.Translation <= 0 || c.Epsilons.Angle <= 0 || c.Epsilons.Scale <= 0 {
		return fmt.Errorf("config: epsilons must be positive")
	}
	if c.Mesh.Cells < 8 {
		return fmt.Errorf("config: mesh cells must be >= 8")
	}
	if c.Mesh.CurveSamples < 4 {
		return fmt.Errorf("config: curve samples must be >= 4")
	}
	return nil
}

// DensityPtr returns the default density as a pointer, or nil when unset.
func (c Config) DensityPtr() *float64 {
	if c.Material.DefaultDensity > 0 {
		d := c.Material.DefaultDensity
		return &d
	}
	return nil
}
