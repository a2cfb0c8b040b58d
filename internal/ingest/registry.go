package ingest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RegistryEntry is one curated source in the registry file.
type RegistryEntry struct {
	ID            string   `yaml:"id"`
	Type          string   `yaml:"type"`
	Title         string   `yaml:"title"`
	Authors       []string `yaml:"authors,omitempty"`
	Organization  string   `yaml:"organization,omitempty"`
	DatePublished string   `yaml:"date_published,omitempty"`
	URL           string   `yaml:"url,omitempty"`
	File          string   `yaml:"file"` // path to the extracted text, relative to the registry
}

// Registry is the manually curated list of sources to process. It is
// configuration data consumed here, not pipeline logic.
type Registry struct {
	Version int             `yaml:"version"`
	Sources []RegistryEntry `yaml:"sources"`
}

// LoadRegistry reads and validates a registry file. An unparsable registry
// is a startup error.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}

	seen := make(map[string]bool, len(reg.Sources))
	for i, e := range reg.Sources {
		if e.ID == "" {
			return nil, fmt.Errorf("registry %s: entry %d has no id", path, i+1)
		}
		if e.File == "" {
			return nil, fmt.Errorf("registry %s: entry %s has no file", path, e.ID)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("registry %s: duplicate id %s", path, e.ID)
		}
		seen[e.ID] = true
	}

	return &reg, nil
}
