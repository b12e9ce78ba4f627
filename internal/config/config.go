// Package config loads the optional pearstate configuration file: a YAML
// document carrying a route table, unrouted prefixes, and default
// construction inputs for the CLI.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the parsed configuration document.
type File struct {
	// Routes maps exact pathnames to replacement entrypoints.
	Routes map[string]string `yaml:"routes"`
	// Unrouted lists pathname prefixes excluded from routing.
	Unrouted []string `yaml:"unrouted"`

	// Defaults for state construction, overridable by CLI flags.
	Dir     string         `yaml:"dir"`
	Link    string         `yaml:"link"`
	Storage string         `yaml:"storage"`
	Flags   map[string]any `yaml:"flags"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &f, nil
}

// LoadIfPresent loads path when it exists; a missing file yields an empty
// File rather than an error.
func LoadIfPresent(path string) (*File, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &File{}, nil
	}
	return Load(path)
}
