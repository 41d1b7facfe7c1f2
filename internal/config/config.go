// Package config loads skelmerge settings from SKELMERGE_* environment
// variables. Command-line flags override what is loaded here.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds process-wide settings.
type Config struct {
	// Catalog is the SQLite catalog path.
	Catalog string `env:"SKELMERGE_CATALOG" envDefault:"database/clothing.db"`
	// OutputRoot is where builds named without a directory are written.
	OutputRoot string `env:"SKELMERGE_OUTPUT_ROOT" envDefault:"output"`
	// RuntimeVersion is stamped into skeleton.spine of every output.
	RuntimeVersion string `env:"SKELMERGE_RUNTIME_VERSION" envDefault:"4.2.0"`
	// WeightThreshold bounds the first vertex value of a weighted mesh.
	WeightThreshold float64 `env:"SKELMERGE_WEIGHT_THRESHOLD" envDefault:"20"`
}

// Load parses the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.WeightThreshold <= 0 {
		return nil, fmt.Errorf("SKELMERGE_WEIGHT_THRESHOLD must be positive, got %v", cfg.WeightThreshold)
	}
	return &cfg, nil
}
