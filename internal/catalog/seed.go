package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tiny built-in seed so a fresh catalog always has something to play.
//
//go:embed themes.yaml
var embeddedSeed []byte

type seedFile struct {
	Themes []Theme `yaml:"themes"`
}

// LoadSeed reads themes from a YAML file. An empty path selects the embedded defaults.
func LoadSeed(path string) ([]Theme, error) {
	data := embeddedSeed
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed %s: %w", path, err)
		}
		data = b
	}
	return ParseSeed(data)
}

// ParseSeed decodes a seed document and validates every theme in it.
func ParseSeed(data []byte) ([]Theme, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for _, t := range f.Themes {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("seed theme %q: %w", t.Name, err)
		}
	}
	return f.Themes, nil
}
