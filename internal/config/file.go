package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk configuration document: named client configurations
// plus the container maps that reference them.
type File struct {
	Clients map[string]ClientConfiguration `yaml:"clients"`
	Maps    []ContainerMap                 `yaml:"maps"`
}

// LoadFile reads and parses a YAML configuration file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseFile(data)
}

// ParseFile parses a YAML configuration document.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for i, m := range f.Maps {
		if m.Name == "" {
			return nil, fmt.Errorf("parse config: map %d has no name", i)
		}
		for j, c := range m.Containers {
			if c.Name == "" {
				return nil, fmt.Errorf("parse config: map %q container %d has no name", m.Name, j)
			}
		}
	}
	return &f, nil
}

// Map returns the container map with the given name, if present.
func (f *File) Map(name string) (*ContainerMap, bool) {
	for i := range f.Maps {
		if f.Maps[i].Name == name {
			return &f.Maps[i], true
		}
	}
	return nil, false
}
