// Package config holds the file and environment configuration
// consulted by the haptic core and the hapctl tool.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// GainMaxEnv overrides the configured gain ceiling at call time. Gain
// values are scaled linearly into [0, HAPTIC_GAIN_MAX].
const GainMaxEnv = "HAPTIC_GAIN_MAX"

// Config is the on-disk configuration.
type Config struct {
	// GainMax caps the effective gain of every device, in percent.
	GainMax int `toml:"gain_max"`
	// Backend selects the platform driver; empty picks the platform
	// default.
	Backend string       `toml:"backend"`
	Rumble  RumbleConfig `toml:"rumble"`
}

// RumbleConfig are the defaults used by the hapctl rumble command.
type RumbleConfig struct {
	Strength   float64 `toml:"strength"`
	DurationMs uint32  `toml:"duration_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		GainMax: 100,
		Rumble: RumbleConfig{
			Strength:   0.5,
			DurationMs: 1000,
		},
	}
}

// Load reads the configuration file, writing the defaults first when
// no file exists yet.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return cfg, err
	}
	if cfg.GainMax < 0 || cfg.GainMax > 100 {
		cfg.GainMax = 100
	}
	return cfg, nil
}

// Save writes the configuration, creating the directory as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// GainMax returns the gain ceiling in percent: the HAPTIC_GAIN_MAX
// environment value when set and valid, the fallback otherwise.
func GainMax(fallback int) int {
	v, ok := os.LookupEnv(GainMaxEnv)
	if !ok {
		return fallback
	}
	pct, err := strconv.Atoi(v)
	if err != nil || pct < 0 || pct > 100 {
		return fallback
	}
	return pct
}
