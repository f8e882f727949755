// Package config loads the inlinescan TOML configuration.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/colorfulnotion/dexinline/log"
	"github.com/pelletier/go-toml/v2"
)

const FileName = "inlinescan.toml"

type Config struct {
	Log       LogConfig       `toml:"log"`
	Cache     CacheConfig     `toml:"cache"`
	Scan      ScanConfig      `toml:"scan"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

type LogConfig struct {
	// Level is one of trace, debug, info, warn, error, crit.
	Level string `toml:"level"`
	// Modules enables Trace and Debug output for the listed modules,
	// comma separated, or "all".
	Modules string `toml:"modules"`
}

type CacheConfig struct {
	Enabled bool `toml:"enabled"`
	// Path of the LevelDB directory. Empty keeps the cache in memory.
	Path string `toml:"path"`
}

type ScanConfig struct {
	// Workers bounds concurrent analyses; 0 uses GOMAXPROCS.
	Workers int `toml:"workers"`
}

type TelemetryConfig struct {
	// OTLPEndpoint is the host:port of an OTLP/HTTP trace collector.
	// Tracing is off when empty.
	OTLPEndpoint string `toml:"otlp_endpoint"`
	Insecure     bool   `toml:"insecure"`
}

func Default() *Config {
	return &Config{
		Log:   LogConfig{Level: "info"},
		Cache: CacheConfig{Path: ".inlinescan-cache"},
	}
}

// Load reads path over the defaults. Unknown keys are errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Scan.Workers < 0 {
		return fmt.Errorf("scan.workers must not be negative, got %d", c.Scan.Workers)
	}
	return nil
}

func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
