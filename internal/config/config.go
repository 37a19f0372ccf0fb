// Package config resolves the tool's configuration: the cache root directory
// and the location of the sampling toolchain.
//
// The cache root is an explicit value threaded through constructors, set
// once at startup and read-only afterwards. Resolution order, weakest first:
// built-in defaults, the user config file, environment variables, and
// explicit flag values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment variables honored during resolution.
const (
	EnvCachePath   = "STANCACHE_PATH"
	EnvCmdStanHome = "CMDSTAN"
)

// Config holds the resolved settings.
type Config struct {
	// CachePath is the cache root directory holding stored programs,
	// datasets, and the memo database.
	CachePath string `yaml:"cache_path"`
	// CmdStanHome is the CmdStan installation directory.
	CmdStanHome string `yaml:"cmdstan_home"`
}

// Default returns the built-in configuration: cache under ~/.stan_cache.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		// Degraded but usable: a relative cache directory.
		return Config{CachePath: ".stan_cache"}
	}
	return Config{CachePath: filepath.Join(home, ".stan_cache")}
}

// DefaultFilePath returns where the user config file is looked for.
func DefaultFilePath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "stancache", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "stancache", "config.yaml")
}

// Load reads a config file. Unknown keys are rejected so typos fail loudly
// instead of silently falling back to defaults.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve layers configuration sources. overrides holds flag-level values;
// empty fields defer to the environment, then the config file at filePath
// (skipped when absent), then defaults.
func Resolve(filePath string, overrides Config) (Config, error) {
	cfg := Default()

	if filePath != "" {
		fileCfg, err := Load(filePath)
		if err == nil {
			merge(&cfg, fileCfg)
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	merge(&cfg, Config{
		CachePath:   os.Getenv(EnvCachePath),
		CmdStanHome: os.Getenv(EnvCmdStanHome),
	})
	merge(&cfg, overrides)
	return cfg, nil
}

func merge(dst *Config, src Config) {
	if src.CachePath != "" {
		dst.CachePath = src.CachePath
	}
	if src.CmdStanHome != "" {
		dst.CmdStanHome = src.CmdStanHome
	}
}
