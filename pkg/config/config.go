// Package config provides configuration loading and management for im3viewer.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"im3viewer/pkg/composite"
	"im3viewer/pkg/decoder"
	"im3viewer/pkg/loader"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Bands holds the band range averaged into each output channel
	Bands composite.BandConfig `yaml:"bands"`

	// Loader parameters
	Loader struct {
		// Pattern is the glob cube file names must match
		Pattern string `yaml:"pattern"`

		// Workers is the number of files decoded in parallel
		Workers int `yaml:"workers"`

		// Decoder names the cube decoder: "envi" or "external"
		Decoder string `yaml:"decoder"`

		// Command is the converter invocation for the external decoder
		Command []string `yaml:"command"`
	} `yaml:"loader"`

	// Output parameters
	Output struct {
		// Format is the image format used when the output name has no
		// recognised extension: "png" or "tiff"
		Format string `yaml:"format"`

		// Scale resizes the saved image; 1 keeps the cube's dimensions
		Scale float64 `yaml:"scale"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Bands = composite.DefaultBands()

	cfg.Loader.Pattern = loader.DefaultPattern
	cfg.Loader.Workers = 1
	cfg.Loader.Decoder = "envi"

	cfg.Output.Format = "png"
	cfg.Output.Scale = 1.0
	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig reads the YAML file at configPath over the defaults. A missing or
// empty file gives the defaults. Unknown keys are rejected so a misspelt band
// or loader setting does not silently fall back to its default.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	file, err := os.Open(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	defer file.Close()

	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error parsing config file %s: %w", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be used as given
func (c *Config) Validate() error {
	if err := c.Bands.Validate(); err != nil {
		return err
	}
	if c.Loader.Workers < 1 {
		return fmt.Errorf("loader.workers must be at least 1, got %d", c.Loader.Workers)
	}
	if _, err := filepath.Match(c.Loader.Pattern, ""); err != nil {
		return fmt.Errorf("loader.pattern '%s': %w", c.Loader.Pattern, err)
	}
	switch c.Loader.Decoder {
	case "envi":
	case "external":
		if len(c.Loader.Command) == 0 {
			return fmt.Errorf("loader.command is required by the external decoder")
		}
	default:
		return fmt.Errorf("unknown loader.decoder '%s'", c.Loader.Decoder)
	}
	switch c.Output.Format {
	case "png", "tiff":
	default:
		return fmt.Errorf("unknown output.format '%s'", c.Output.Format)
	}
	if !(c.Output.Scale > 0) {
		return fmt.Errorf("output.scale must be positive, got %g", c.Output.Scale)
	}
	return nil
}

// NewDecoder creates the decoder the configuration names
func (c *Config) NewDecoder() (decoder.Decoder, error) {
	return decoder.New(c.Loader.Decoder, decoder.Options{Command: c.Loader.Command})
}

// LoaderParams returns the loader settings
func (c *Config) LoaderParams() loader.Params {
	return loader.Params{Pattern: c.Loader.Pattern, Workers: c.Loader.Workers}
}

// SaveConfig writes cfg to configPath as YAML, creating parent directories
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	if err := os.WriteFile(configPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// CreateDefaultConfigFile writes the default configuration to configPath
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
