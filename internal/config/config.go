// Package config loads pilot's runtime configuration: the wire codec's
// separator/frame length, the detector's queue cap, and CLI output
// defaults, via spf13/viper layered over a config file and the PILOT_ env
// prefix. Modeled on the teacher's config layering (file search order,
// defaults, Validate).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds pilot's runtime configuration.
type Config struct {
	Format  string `mapstructure:"format"`
	Verbose bool   `mapstructure:"verbose"`

	Wire     WireConfig     `mapstructure:"wire"`
	Detector DetectorConfig `mapstructure:"detector"`
}

// WireConfig controls event framing (spec §6).
type WireConfig struct {
	Separator string `mapstructure:"separator"` // single character
	FrameLen  int    `mapstructure:"frame_len"`
}

// DetectorConfig controls detector resource limits (spec §7 class 3).
type DetectorConfig struct {
	QueueCap int `mapstructure:"queue_cap"` // 0 = unbounded
}

// Default returns a Config populated with the spec's defaults.
func Default() *Config {
	return &Config{
		Format:  "ndjson",
		Verbose: false,
		Wire: WireConfig{
			Separator: "\t",
			FrameLen:  80,
		},
		Detector: DetectorConfig{
			QueueCap: 0,
		},
	}
}

// Load loads configuration from the first config file found and from the
// environment. Directories are searched in the order:
//  1. the current directory
//  2. the home directory
//  3. $XDG_CONFIG_HOME/pilot (or ~/.config/pilot)
//  4. /etc/pilot
//
// In each directory the names .pilot.yaml, .pilot.yml, pilot.yaml,
// pilot.yml and config.yaml are tried in that order.
func Load() (*Config, error) {
	cfg := Default()
	v := viper.New()

	v.SetDefault("format", cfg.Format)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("wire.separator", cfg.Wire.Separator)
	v.SetDefault("wire.frame_len", cfg.Wire.FrameLen)
	v.SetDefault("detector.queue_cap", cfg.Detector.QueueCap)

	v.SetEnvPrefix("PILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile := findConfigFile(); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	names := []string{".pilot.yaml", ".pilot.yml", "pilot.yaml", "pilot.yml"}

	home, homeErr := os.UserHomeDir()
	configDir, configDirErr := os.UserConfigDir()

	var searchPaths []string
	if cwd, err := os.Getwd(); err == nil {
		searchPaths = append(searchPaths, cwd)
	}
	if homeErr == nil {
		searchPaths = append(searchPaths, home)
	}
	if configDirErr == nil {
		searchPaths = append(searchPaths, filepath.Join(configDir, "pilot"))
	}
	searchPaths = append(searchPaths, "/etc/pilot")

	for _, dir := range searchPaths {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
		path := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks config values for basic correctness.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	switch strings.ToLower(c.Format) {
	case "", "ndjson", "text":
	default:
		return fmt.Errorf("invalid format: %q (expected ndjson or text)", c.Format)
	}
	if len(c.Wire.Separator) != 1 {
		return fmt.Errorf("wire.separator must be exactly one character, got %q", c.Wire.Separator)
	}
	if c.Wire.FrameLen < 2 {
		return fmt.Errorf("wire.frame_len must be >= 2, got %d", c.Wire.FrameLen)
	}
	if c.Detector.QueueCap < 0 {
		return fmt.Errorf("detector.queue_cap must be >= 0")
	}
	return nil
}

// ConfigFile returns the path to the config file that would be loaded.
func ConfigFile() string {
	return findConfigFile()
}
