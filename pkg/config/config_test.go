package config

import (
	"os"
	"path/filepath"
	"testing"

	"im3viewer/pkg/composite"
)

// TestDefaultConfig verifies the default values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Bands != composite.DefaultBands() {
		t.Errorf("Expected default bands, got %+v", cfg.Bands)
	}
	if cfg.Loader.Pattern != "*.im3" {
		t.Errorf("Expected pattern *.im3, got %s", cfg.Loader.Pattern)
	}
	if cfg.Loader.Workers != 1 {
		t.Errorf("Expected 1 worker, got %d", cfg.Loader.Workers)
	}
	if cfg.Output.Format != "png" {
		t.Errorf("Expected png output, got %s", cfg.Output.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

// TestLoadConfigMissingFile verifies that a missing file gives the defaults
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Bands != composite.DefaultBands() {
		t.Errorf("Expected default bands, got %+v", cfg.Bands)
	}
}

// TestLoadConfigOverrides verifies that YAML values replace the defaults and
// unspecified values keep them
func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "im3viewer.yaml")
	data := `
bands:
  red:
    start: 20
    end: 25
loader:
  workers: 4
  decoder: external
  command: [bfconvert, "{input}", "{output}"]
output:
  scale: 0.5
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Bands.Red != (composite.Range{Start: 20, End: 25}) {
		t.Errorf("Expected red [20, 25), got %s", cfg.Bands.Red)
	}
	if cfg.Bands.Blue != (composite.Range{Start: 3, End: 9}) {
		t.Errorf("Expected blue to keep its default, got %s", cfg.Bands.Blue)
	}
	if cfg.Loader.Workers != 4 || cfg.Loader.Decoder != "external" || len(cfg.Loader.Command) != 3 {
		t.Errorf("Unexpected loader section: %+v", cfg.Loader)
	}
	if cfg.Loader.Pattern != "*.im3" {
		t.Errorf("Expected pattern to keep its default, got %s", cfg.Loader.Pattern)
	}
	if cfg.Output.Scale != 0.5 {
		t.Errorf("Expected scale 0.5, got %f", cfg.Output.Scale)
	}

	params := cfg.LoaderParams()
	if params.Workers != 4 || params.Pattern != "*.im3" {
		t.Errorf("Unexpected loader params: %+v", params)
	}
}

func TestLoadConfigEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected defaults for an empty file, got %v", err)
	}
	if cfg.Bands != composite.DefaultBands() || cfg.Loader.Workers != 1 {
		t.Errorf("Expected default config, got %+v", cfg)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := map[string]string{
		"empty range":     "bands:\n  green:\n    start: 5\n    end: 5\n",
		"zero workers":    "loader:\n  workers: 0\n",
		"unknown decoder": "loader:\n  decoder: imagej\n",
		"no command":      "loader:\n  decoder: external\n",
		"bad format":      "output:\n  format: gif\n",
		"bad scale":       "output:\n  scale: -1\n",
		"bad pattern":     "loader:\n  pattern: \"[a-\"\n",
		"bad yaml":        "bands: [\n",
		"unknown key":     "bands:\n  redd:\n    start: 1\n    end: 2\n",
	}

	for name, data := range tests {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(data), 0644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

// TestSaveAndLoadConfig verifies that a saved config loads back unchanged
func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("Failed to create default config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Bands != composite.DefaultBands() || cfg.Loader.Decoder != "envi" {
		t.Errorf("Saved default config did not load back: %+v", cfg)
	}
}

func TestNewDecoder(t *testing.T) {
	cfg := DefaultConfig()
	if dec, err := cfg.NewDecoder(); err != nil || dec == nil {
		t.Errorf("Expected ENVI decoder, got %v (%v)", dec, err)
	}
}
